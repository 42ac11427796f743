package friend

import (
	"testing"
	"time"

	"xvine/identity"
)

func testPeer() *identity.PeerID {
	return identity.NewPrivateKey().PeerID()
}

func TestEnqueueDropsLowImportanceWhenFull(t *testing.T) {
	f := NewFriend(testPeer(), 1)
	now := time.Now()
	d1 := Enqueue(f, &PendingMessage{Importance: 10, Deadline: now.Add(time.Minute)})
	if d1 {
		t.Fatal("first message should not be dropped")
	}
	d2 := Enqueue(f, &PendingMessage{Importance: 10, Deadline: now.Add(time.Minute)})
	if !d2 {
		t.Fatal("second low-importance message should be dropped when queue is full")
	}
	if f.QueueLen() != 1 {
		t.Fatalf("queue len = %d, want 1", f.QueueLen())
	}
}

func TestEnqueueControlDisplacesSameKind(t *testing.T) {
	f := NewFriend(testPeer(), 1)
	now := time.Now()
	Enqueue(f, &PendingMessage{Importance: 10, Kind: 5, Direction: 0, Deadline: now.Add(time.Minute)})
	dropped := Enqueue(f, &PendingMessage{Importance: 100, Kind: 5, Direction: 0, Deadline: now.Add(time.Minute)})
	if dropped {
		t.Fatal("control message should not report dropped")
	}
	if f.QueueLen() != 1 {
		t.Fatalf("queue len = %d, want 1 (displaced)", f.QueueLen())
	}
	got, _ := Pop(f, now)
	if got.Importance != 100 {
		t.Fatalf("expected the control message to survive displacement, got importance %d", got.Importance)
	}
}

func TestPopSkipsExpired(t *testing.T) {
	f := NewFriend(testPeer(), 10)
	now := time.Now()
	Enqueue(f, &PendingMessage{Deadline: now.Add(-time.Second)}) // already expired
	Enqueue(f, &PendingMessage{Deadline: now.Add(time.Minute), Bytes: []byte("keep")})
	msg, expired := Pop(f, now)
	if expired != 1 {
		t.Fatalf("expired = %d, want 1", expired)
	}
	if msg == nil || string(msg.Bytes) != "keep" {
		t.Fatalf("expected surviving message, got %v", msg)
	}
}

func TestPickRandomNonCongested(t *testing.T) {
	tbl := NewTable(2, 8)
	now := time.Now()
	a := tbl.OnConnect(testPeer())
	b := tbl.OnConnect(testPeer())
	a.TrailsCount = 2 // at threshold: congested
	b.MarkCongested(now.Add(time.Minute))

	if got := tbl.PickRandomNonCongested(now); got != nil {
		t.Fatalf("expected no non-congested friend, got %v", got.ID)
	}

	b.CongestedUntil = time.Time{}
	got := tbl.PickRandomNonCongested(now)
	if got == nil || !got.ID.Equal(b.ID) {
		t.Fatalf("expected b to be selected, got %v", got)
	}
}

func TestOnDisconnectRemoves(t *testing.T) {
	tbl := NewTable(64, 8)
	p := testPeer()
	tbl.OnConnect(p)
	if tbl.Get(p) == nil {
		t.Fatal("expected friend present after connect")
	}
	tbl.OnDisconnect(p)
	if tbl.Get(p) != nil {
		t.Fatal("expected friend removed after disconnect")
	}
}
