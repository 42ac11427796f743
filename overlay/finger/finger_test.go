package finger

import (
	"testing"

	"xvine/identity"
	"xvine/overlay/peerid"
	"xvine/overlay/trail"
)

func peer() *identity.PeerID { return identity.NewPrivateKey().PeerID() }

func newTrailVia(hop *identity.PeerID) *trail.Trail {
	return &trail.Trail{ID: trail.NewID(), Hops: []*identity.PeerID{hop}}
}

func TestAddEmptySlotStoresFriend(t *testing.T) {
	self := peer()
	friendPeer := peer()
	tbl := NewTable(self, peerid.ID(1), 2)
	tbl.IsFriend = func(id *identity.PeerID) bool { return id.Equal(friendPeer) }

	tbl.Add(friendPeer, nil, 0, peerid.ID(2))
	f := tbl.Get(0)
	if f == nil || !f.Identity.Equal(friendPeer) {
		t.Fatalf("expected friend stored at slot 0")
	}
	if f.Kind != KindFriend {
		t.Fatalf("expected KindFriend, got %v", f.Kind)
	}
	if len(f.Trails) != 0 {
		t.Fatalf("friend finger must have no trails")
	}
}

func TestMergeTrailEvictsLongestWhenFull(t *testing.T) {
	self := peer()
	target := peer()
	tbl := NewTable(self, peerid.ID(1), 2) // K=2
	tbl.IsFriend = func(*identity.PeerID) bool { return false }

	var torndown []*trail.Trail
	tbl.OnTeardown = func(tr *trail.Trail) { torndown = append(torndown, tr) }

	h1, h2, h3 := peer(), peer(), peer()
	longTrail := &trail.Trail{ID: trail.NewID(), Hops: []*identity.PeerID{h1, h2, h3}} // length 3
	shortTrail := newTrailVia(h1)                                                     // length 1
	evenShorter := &trail.Trail{ID: trail.NewID(), Hops: []*identity.PeerID{}}         // length 0, direct-ish

	tbl.Add(target, longTrail, 5, peerid.ID(10))
	tbl.Add(target, shortTrail, 5, peerid.ID(10))
	if len(tbl.Get(5).Trails) != 2 {
		t.Fatalf("expected 2 trails stored, got %d", len(tbl.Get(5).Trails))
	}

	// third trail, shorter than the longest (3): should evict longTrail.
	thirdHop := peer()
	thirdTrail := newTrailVia(thirdHop)
	tbl.Add(target, thirdTrail, 5, peerid.ID(10))

	if len(tbl.Get(5).Trails) != 2 {
		t.Fatalf("K=2 must be enforced, got %d trails", len(tbl.Get(5).Trails))
	}
	if len(torndown) != 1 || torndown[0] != longTrail {
		t.Fatalf("expected the length-3 trail to be torn down, got %v", torndown)
	}
	_ = evenShorter
}

func TestClosenessTiebreakEvictsLoser(t *testing.T) {
	self := peer()
	tbl := NewTable(self, peerid.ID(0x10), 2)
	tbl.IsFriend = func(*identity.PeerID) bool { return false }

	// Build PeerIDs with PeerIDFromBytes and crafted leading bytes so
	// their Projection64 values are fixed (0x20 and 0x30) and do not
	// depend on hash output, then drive the closeness tiebreak through
	// Table.Add: two candidates for the successor slot compete for
	// target 0x11.
	// The closer one must stay installed.
	aID := identity.PeerIDFromBytes(append([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x20}, make([]byte, 56)...))
	bID := identity.PeerIDFromBytes(append([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x30}, make([]byte, 56)...))

	tbl.Add(aID, newTrailVia(peer()), 0, peerid.ID(0x11)) // successor target
	if !tbl.Get(0).Identity.Equal(aID) {
		t.Fatalf("expected aID installed first")
	}
	tbl.Add(bID, newTrailVia(peer()), 0, peerid.ID(0x11))
	// closest-forward to 0x11 among {0x20,0x30} is 0x20 == aID: bID should lose.
	if !tbl.Get(0).Identity.Equal(aID) {
		t.Fatalf("expected aID (0x20) to remain winner over bID (0x30) for target 0x11")
	}
}

func TestRemoveTearsDownTrails(t *testing.T) {
	self := peer()
	tbl := NewTable(self, peerid.ID(1), 2)
	tbl.IsFriend = func(*identity.PeerID) bool { return false }
	var torndown int
	tbl.OnTeardown = func(*trail.Trail) { torndown++ }

	target := peer()
	tbl.Add(target, newTrailVia(peer()), 7, peerid.ID(99))
	tbl.Remove(7)
	if torndown != 1 {
		t.Fatalf("expected 1 teardown, got %d", torndown)
	}
	if tbl.Get(7) != nil {
		t.Fatalf("expected slot emptied")
	}
}
