package peerid

import "testing"

func TestClosestForwardInterleavings(t *testing.T) {
	cases := []struct {
		name         string
		a, b, target ID
		want         ID
	}{
		// a < b < target: both candidates precede target, so reaching
		// either requires wrapping past 2^64-1; the smaller of the two
		// is encountered first after the wrap.
		{"a<b<target", 10, 20, 100, 10},
		// target < a < b: both candidates follow target directly, no
		// wrap needed; the nearer one (a) is closer to target.
		{"target<a<b", 5, 10, 1, 5},
		// b < target < a: a is reached directly (forward, no wrap); b
		// would require wrapping almost all the way around.
		{"b<target<a", 50, 5, 20, 50},
		// a < target < b: b is reached directly; a would require
		// wrapping almost all the way around.
		{"a<target<b", 5, 50, 20, 50},
		// exact match short-circuits
		{"exact-a", 7, 99, 7, 7},
		{"exact-b", 7, 99, 99, 99},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ClosestForward(c.a, c.b, c.target)
			if got != c.want {
				t.Fatalf("ClosestForward(%d,%d,%d) = %d, want %d", c.a, c.b, c.target, got, c.want)
			}
		})
	}
}

func TestClosestBackward(t *testing.T) {
	// predecessor target = my_id - 1; closest-backward prefers the
	// candidate immediately before target, walking backward. Both 0x20
	// and 0x30 exceed the target 0x0F, so both require wrapping; 0x30
	// wraps a shorter distance than 0x20.
	got := ClosestBackward(0x30, 0x20, 0x0F)
	if got != 0x30 {
		t.Fatalf("ClosestBackward = %#x, want 0x30", got)
	}
}

func TestWrapAround(t *testing.T) {
	// my_id64 = 2^64-5, target = my_id64 + 2^3 = 3 (mod 2^64)
	self := ID(^uint64(0) - 4) // 2^64 - 5
	target := FingerTarget(self, 3)
	if target != 3 {
		t.Fatalf("target = %d, want 3", target)
	}
	// b sits directly past target with no wrap required; a is "behind"
	// target and would need to wrap almost the full ring to be reached.
	a := ID(1)
	b := ID(1 << 40)
	got := ClosestForward(a, b, target)
	if got != b {
		t.Fatalf("ClosestForward across wrap = %d, want %d", got, b)
	}
}

func TestThreePeerRing(t *testing.T) {
	// spec.md §8 scenario 3: ids 0x10, 0x20, 0x30, all mutually friends.
	self := ID(0x10)
	// successor target (slot 0) = 0x11 -> closest forward among {0x20,0x30} is 0x20
	succTarget := FingerTarget(self, 0)
	got := ClosestForward(0x20, 0x30, succTarget)
	if got != 0x20 {
		t.Fatalf("successor = %#x, want 0x20", got)
	}
	// slot 3 target = 0x18 -> still 0x20
	got = ClosestForward(0x20, 0x30, FingerTarget(self, 3))
	if got != 0x20 {
		t.Fatalf("slot3 = %#x, want 0x20", got)
	}
	// predecessor target = 0x0F -> closest backward is 0x30
	predTarget := FingerTarget(self, PredecessorFingerIndex)
	got = ClosestBackward(0x20, 0x30, predTarget)
	if got != 0x30 {
		t.Fatalf("predecessor = %#x, want 0x30", got)
	}
}

func TestForwardDistance(t *testing.T) {
	if got := ForwardDistance(10, 20); got != 10 {
		t.Fatalf("ForwardDistance(10,20) = %d, want 10", got)
	}
	// wraps through 2^64-1 back to 0.
	self := ID(^uint64(0) - 4) // 2^64 - 5
	if got := ForwardDistance(self, 3); got != 8 {
		t.Fatalf("ForwardDistance across wrap = %d, want 8", got)
	}
}

func TestInForwardRange(t *testing.T) {
	if !InForwardRange(15, 10, 20) {
		t.Fatal("15 should be between 10 and 20")
	}
	if InForwardRange(25, 10, 20) {
		t.Fatal("25 should not be between 10 and 20")
	}
	// wrap case: lo > hi
	if !InForwardRange(2, ID(^uint64(0)-2), 5) {
		t.Fatal("2 should be between (2^64-3) and 5, wrapping")
	}
}
