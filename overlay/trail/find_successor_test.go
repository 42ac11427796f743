package trail

import (
	"testing"

	"xvine/identity"
	"xvine/overlay/peerid"
)

func idFromByte(b byte) *identity.PeerID {
	buf := append([]byte{0, 0, 0, 0, 0, 0, 0, b}, make([]byte, 56)...)
	return identity.PeerIDFromBytes(buf)
}

func TestFindSuccessorPicksClosestFriend(t *testing.T) {
	self := idFromByte(0x10)
	friendA := idFromByte(0x20)
	friendB := idFromByte(0x30)
	candidates := []Candidate{
		{ID: friendA, Ring: peerid.ID(0x20)},
		{ID: friendB, Ring: peerid.ID(0x30)},
	}
	hop := FindSuccessor(self, peerid.ID(0x10), candidates, peerid.ID(0x11), false)
	if !hop.Peer.Equal(friendA) {
		t.Fatalf("expected friendA (0x20) closest to 0x11, got %s", hop.Peer)
	}
}

func TestFindSuccessorReturnsSelfWhenClosest(t *testing.T) {
	self := idFromByte(0x10)
	far := idFromByte(0xF0)
	candidates := []Candidate{{ID: far, Ring: peerid.ID(0xF0)}}
	hop := FindSuccessor(self, peerid.ID(0x10), candidates, peerid.ID(0x0F), false)
	if !hop.Peer.Equal(self) {
		t.Fatalf("expected self to be closest, got %s", hop.Peer)
	}
}

func TestFindSuccessorViaTrail(t *testing.T) {
	self := idFromByte(0x10)
	target := idFromByte(0x20)
	firstHop := idFromByte(0x15)
	tr := &Trail{ID: NewID(), Hops: []*identity.PeerID{firstHop}}
	candidates := []Candidate{{ID: target, Ring: peerid.ID(0x20), NextHop: firstHop, ViaTrail: tr}}
	hop := FindSuccessor(self, peerid.ID(0x10), candidates, peerid.ID(0x11), false)
	if !hop.Peer.Equal(target) || !hop.NextHop.Equal(firstHop) {
		t.Fatalf("expected to reach target via firstHop, got peer=%s nexthop=%v", hop.Peer, hop.NextHop)
	}
}
