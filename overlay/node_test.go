package overlay

import (
	"context"
	"testing"
	"time"

	"xvine/identity"
	"xvine/overlay/forward"
	"xvine/overlay/wire"
	"xvine/store"
)

type fakeLink struct {
	peer   *identity.PeerID
	frames [][]byte
}

func (l *fakeLink) Peer() *identity.PeerID { return l.peer }
func (l *fakeLink) Send(ctx context.Context, frame []byte) error {
	l.frames = append(l.frames, frame)
	return nil
}
func (l *fakeLink) Close() error { return nil }

func testNode() *Node {
	priv := identity.NewPrivateKey()
	cfg := DefaultConfig()
	return NewNode(priv, cfg, store.NewMemory(100), nil, nil, nil)
}

func attachLink(n *Node, peer *identity.PeerID) *fakeLink {
	l := &fakeLink{peer: peer}
	n.links[peer.Key()] = l
	n.Friends.OnConnect(peer)
	return l
}

func TestHandlePutStoresLocallyWhenSelfIsDestination(t *testing.T) {
	n := testNode()
	from := identity.NewPrivateKey().PeerID()

	msg := &wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: from},
		BestKnownDest: n.Self,
		Key:           []byte("key1"),
		Payload:       []byte("value1"),
		ExpirationNs:  uint64(time.Hour),
	}
	n.handlePut(from, msg)

	recs, err := n.Store.Get([]byte("key1"))
	if err != nil || len(recs) != 1 || string(recs[0].Payload) != "value1" {
		t.Fatalf("expected stored record, got %v %v", recs, err)
	}
}

func TestHandlePutRejectsBadCanonicalKey(t *testing.T) {
	n := testNode()
	from := identity.NewPrivateKey().PeerID()

	msg := &wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: from},
		BestKnownDest: n.Self,
		BlockType:     1,
		Key:           []byte("not-the-hash"),
		Payload:       []byte("value1"),
		ExpirationNs:  uint64(time.Hour),
	}
	n.handlePut(from, msg)

	if recs, _ := n.Store.Get(msg.Key); len(recs) != 0 {
		t.Fatalf("expected mismatched-key PUT to be rejected, got %v", recs)
	}
	if got := n.Stats.Snapshot().Malformed; got != 1 {
		t.Fatalf("expected Malformed counter to increment, got %d", got)
	}
}

func TestHandlePutAcceptsMatchingCanonicalKey(t *testing.T) {
	n := testNode()
	from := identity.NewPrivateKey().PeerID()
	payload := []byte("value1")
	key := forward.CanonicalKey(1, payload)

	msg := &wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: from},
		BestKnownDest: n.Self,
		BlockType:     1,
		Key:           key,
		Payload:       payload,
		ExpirationNs:  uint64(time.Hour),
	}
	n.handlePut(from, msg)

	recs, err := n.Store.Get(key)
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected stored record, got %v %v", recs, err)
	}
}

func TestHandlePutDropsOnTTLExpiry(t *testing.T) {
	n := testNode()
	other := identity.NewPrivateKey().PeerID()
	link := attachLink(n, other)

	msg := &wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: other},
		BestKnownDest: other, // exact ring match forces a forward, not a terminus.
		Key:           []byte("key1"),
		Payload:       []byte("value1"),
		ExpirationNs:  uint64(time.Hour),
		TTL:           0,
	}
	n.handlePut(other, msg)

	if len(link.frames) != 0 {
		t.Fatalf("expected TTL-expired PUT to be dropped, got %d frames", len(link.frames))
	}
	if got := n.Stats.Snapshot().HopsExpired; got != 1 {
		t.Fatalf("expected HopsExpired counter to increment, got %d", got)
	}
}

func TestHandlePutDropsOnHopCountCap(t *testing.T) {
	n := testNode()
	other := identity.NewPrivateKey().PeerID()
	link := attachLink(n, other)

	msg := &wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: other},
		BestKnownDest: other,
		Key:           []byte("key1"),
		Payload:       []byte("value1"),
		ExpirationNs:  uint64(time.Hour),
		TTL:           n.Config.DefaultTTL,
		HopCount:      n.Config.MaxHopCount,
	}
	n.handlePut(other, msg)

	if len(link.frames) != 0 {
		t.Fatalf("expected hop-cap-exceeded PUT to be dropped, got %d frames", len(link.frames))
	}
}

func TestHandlePutAppendsPutPathOnlyWithRecordRoute(t *testing.T) {
	n := testNode()
	other := identity.NewPrivateKey().PeerID()
	link := attachLink(n, other)

	base := wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: other},
		BestKnownDest: other,
		Key:           []byte("key1"),
		Payload:       []byte("value1"),
		ExpirationNs:  uint64(time.Hour),
		TTL:           n.Config.DefaultTTL,
	}

	withoutRoute := base
	n.handlePut(other, &withoutRoute)
	if len(link.frames) != 1 {
		t.Fatalf("expected one forwarded frame, got %d", len(link.frames))
	}
	decoded, err := wire.Decode(link.frames[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	fwd, ok := decoded.(*wire.PutMsg)
	if !ok {
		t.Fatalf("expected PutMsg, got %T", decoded)
	}
	if len(fwd.PutPath) != 0 {
		t.Fatalf("expected no PutPath recorded without record-route option, got %v", fwd.PutPath)
	}

	link.frames = nil
	withRoute := base
	withRoute.Options = wire.OptRecordRoute
	n.handlePut(other, &withRoute)
	decoded, err = wire.Decode(link.frames[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	fwd, ok = decoded.(*wire.PutMsg)
	if !ok {
		t.Fatalf("expected PutMsg, got %T", decoded)
	}
	if len(fwd.PutPath) != 1 || !fwd.PutPath[0].Equal(n.Self) {
		t.Fatalf("expected PutPath to record self with record-route option, got %v", fwd.PutPath)
	}
}

func TestHandlePutReplicatesToAdditionalFingers(t *testing.T) {
	n := testNode()
	from := identity.NewPrivateKey().PeerID()
	other1 := identity.NewPrivateKey().PeerID()
	other2 := identity.NewPrivateKey().PeerID()
	link1 := attachLink(n, other1)
	link2 := attachLink(n, other2)

	msg := &wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: from},
		BestKnownDest: n.Self,
		Key:           []byte("key1"),
		Payload:       []byte("value1"),
		ExpirationNs:  uint64(time.Hour),
		Replication:   3,
	}
	n.handlePut(from, msg)

	if len(link1.frames)+len(link2.frames) != 2 {
		t.Fatalf("expected 2 replicated PUTs across both friends, got %d+%d", len(link1.frames), len(link2.frames))
	}
}

func TestHandleGetReturnsResultOverLink(t *testing.T) {
	n := testNode()
	from := identity.NewPrivateKey().PeerID()
	link := attachLink(n, from)

	key := []byte("key1")
	_ = n.Store.Put(store.Record{Key: key, Payload: []byte("value1"), Expiration: time.Now().Add(time.Hour)})

	msg := &wire.GetMsg{
		Header:        wire.Header{MsgType: wire.Get, From: from},
		BestKnownDest: n.Self,
		Key:           key,
	}
	n.handleGet(from, msg)

	if len(link.frames) != 1 {
		t.Fatalf("expected one reply frame, got %d", len(link.frames))
	}
	decoded, err := wire.Decode(link.frames[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	res, ok := decoded.(*wire.GetResultMsg)
	if !ok {
		t.Fatalf("expected GetResultMsg, got %T", decoded)
	}
	if string(res.Payload) != "value1" {
		t.Fatalf("unexpected payload %q", res.Payload)
	}
}

func TestHandleTrailSetupTerminusReplies(t *testing.T) {
	n := testNode()
	from := identity.NewPrivateKey().PeerID()
	link := attachLink(n, from)

	msg := &wire.TrailSetupMsg{
		Header:           wire.Header{MsgType: wire.TrailSetup, From: from},
		DestinationValue: uint64(n.SelfValue),
		Source:           from,
		BestKnownDest:    from,
		TrailID:          [64]byte{1, 2, 3},
	}
	n.handleTrailSetup(from, msg)

	if len(link.frames) != 1 {
		t.Fatalf("expected terminus reply, got %d frames", len(link.frames))
	}
	decoded, err := wire.Decode(link.frames[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	res, ok := decoded.(*wire.TrailSetupResultMsg)
	if !ok {
		t.Fatalf("expected TrailSetupResultMsg, got %T", decoded)
	}
	if !res.Finger.Equal(n.Self) {
		t.Fatalf("expected terminus to name self as finger")
	}
}

func TestHandleTrailRejectionMarksCongestion(t *testing.T) {
	n := testNode()
	congested := identity.NewPrivateKey().PeerID()
	attachLink(n, congested)

	msg := &wire.TrailRejectionMsg{
		Header:    wire.Header{MsgType: wire.TrailRejection, From: congested},
		Source:    n.Self,
		Congested: congested,
		TrailID:   [64]byte{9},
	}
	n.handleTrailRejection(congested, msg)

	f := n.Friends.Get(congested)
	if f == nil || !f.Congested(n.Config.TrailsThroughFriendThreshold, time.Now()) {
		t.Fatalf("expected congested friend to be marked")
	}
}

func TestOnStabilizeTickNoopWithoutFriends(t *testing.T) {
	n := testNode()
	// must not panic with zero friends.
	n.onStabilizeTick()
	if n.Fingers.SearchIndex() != 0 {
		t.Fatalf("expected search index unchanged without friends")
	}
}
