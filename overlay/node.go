//----------------------------------------------------------------------
// This file is part of xvine.
// Copyright (C) 2022 Bernd Fix >Y<
//
// xvine is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// xvine is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

// Package overlay composes the X-Vine subsystems (friend/routing/finger/
// trail/stabilize/forward/conn/wire) into a single Node running one
// cooperative event loop per process, grounded on the teacher's
// core/node.go Start/Receive pair. Unlike the teacher, which spawns a
// goroutine per inbound message, a Node here dispatches every event
// inline on its own loop goroutine: the finger/friend/routing tables are
// touched by many handlers in sequence within one protocol step (e.g. a
// TRAIL_SETUP_RESULT both installs a finger and adjusts the first-hop
// friend's trail count) and serializing them removes the need for per-table locks
// entirely.
package overlay

import (
	"context"
	"log"
	"sort"
	"time"

	"xvine/identity"
	"xvine/overlay/conn"
	"xvine/overlay/errs"
	"xvine/overlay/finger"
	"xvine/overlay/forward"
	"xvine/overlay/friend"
	"xvine/overlay/peerid"
	"xvine/overlay/routing"
	"xvine/overlay/stabilize"
	"xvine/overlay/stats"
	"xvine/overlay/trail"
	"xvine/overlay/wire"
	"xvine/store"
	"xvine/transport"
)

// Node is one X-Vine peer.
type Node struct {
	Self      *identity.PeerID
	priv      *identity.PrivateKey
	SelfValue peerid.ID

	Config  *Config
	Friends *friend.Table
	Routing *routing.Table
	Fingers *finger.Table
	Store   store.Blobstore
	Stats   *stats.Counters

	events PeerEvents
	dialer transport.Dialer

	listeners []Listener

	// pendingSetup correlates a TRAIL_SETUP this node originated with the
	// finger-table slot its TRAIL_SETUP_RESULT should install into.
	pendingSetup map[trail.ID]int

	links map[string]transport.Link
	conns map[string]*conn.Connection

	submit chan submission

	logger *log.Logger
}

// submission is a client-originated PUT or GET, queued onto the Run
// loop's select so it is handled on the same goroutine as every wire
// message instead of racing the table mutations dispatch makes.
type submission struct {
	key     []byte
	payload []byte
	ttl     time.Duration
	get     bool
}

// PeerEvents is the subset of transport.PeerEvents a Node consumes.
type PeerEvents = transport.PeerEvents

// NewNode creates a Node with empty tables, ready to Run once a
// transport is attached.
func NewNode(priv *identity.PrivateKey, cfg *Config, st store.Blobstore, events PeerEvents, dialer transport.Dialer, logger *log.Logger) *Node {
	self := priv.PeerID()
	selfValue := peerid.ID(self.Projection64())
	if logger == nil {
		logger = log.Default()
	}
	n := &Node{
		Self:         self,
		priv:         priv,
		SelfValue:    selfValue,
		Config:       cfg,
		Friends:      friend.NewTable(cfg.TrailsThroughFriendThreshold, cfg.QueueMax()),
		Routing:      routing.NewTable(cfg.RoutingTableCapacity),
		Fingers:      finger.NewTable(self, selfValue, cfg.MaxTrailsPerFinger),
		Store:        st,
		Stats:        &stats.Counters{},
		conns:        make(map[string]*conn.Connection),
		links:        make(map[string]transport.Link),
		events:       events,
		dialer:       dialer,
		pendingSetup: make(map[trail.ID]int),
		submit:       make(chan submission, 16),
		logger:       logger,
	}
	n.Fingers.IsFriend = func(id *identity.PeerID) bool { return n.Friends.Get(id) != nil }
	n.Fingers.OnFriendTrailDelta = n.onFriendTrailDelta
	n.Fingers.OnTeardown = n.teardownTrail
	n.Fingers.OnCompress = n.compressTrail
	return n
}

// AddListener registers a Listener for protocol Events (spec §4.7).
func (n *Node) AddListener(l Listener) {
	n.listeners = append(n.listeners, l)
}

func (n *Node) emit(ev *Event) {
	for _, l := range n.listeners {
		l(ev)
	}
}

// ConnectTo actively dials addr (in whatever form the attached
// transport.Dialer expects) and registers the resulting link as a new
// friend, for bootstrap peers a node is configured to join through
// rather than ones that dial in.
func (n *Node) ConnectTo(ctx context.Context, addr string) error {
	link, err := n.dialer.Dial(ctx, addr)
	if err != nil {
		return err
	}
	n.onConnected(link)
	return nil
}

//----------------------------------------------------------------------
// event loop
//----------------------------------------------------------------------

// Run drives the node's event loop until ctx is cancelled: inbound
// frames are decoded and dispatched, new links register friends,
// disconnects tear down dependent state, and a stabilization ticker
// drives the periodic finger probe.
func (n *Node) Run(ctx context.Context) {
	stabilizeTick := time.NewTicker(n.Config.FindFingerTrailInterval)
	defer stabilizeTick.Stop()
	expireTick := time.NewTicker(time.Minute)
	defer expireTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case in := <-n.events.Inbound():
			n.handleFrame(in.From, in.Frame)
		case link := <-n.events.Connected():
			n.onConnected(link)
		case peer := <-n.events.Disconnected():
			n.onDisconnected(peer)
		case <-stabilizeTick.C:
			n.onStabilizeTick()
		case <-expireTick.C:
			n.Store.Expire(time.Now())
		case s := <-n.submit:
			n.handleSubmission(s)
		}
	}
}

func (n *Node) handleSubmission(s submission) {
	if s.get {
		n.handleGet(n.Self, &wire.GetMsg{
			Header:        wire.Header{MsgType: wire.Get, From: n.Self},
			BestKnownDest: n.Self,
			TTL:           n.Config.DefaultTTL,
			Key:           s.key,
		})
		return
	}
	n.handlePut(n.Self, &wire.PutMsg{
		Header:        wire.Header{MsgType: wire.Put, From: n.Self},
		BestKnownDest: n.Self,
		Key:           s.key,
		Payload:       s.payload,
		ExpirationNs:  uint64(s.ttl),
		TTL:           n.Config.DefaultTTL,
		Replication:   n.Config.DefaultReplication,
	})
}

// Put queues a client-originated PUT for key/payload, routed via
// find_successor starting from self.
func (n *Node) Put(ctx context.Context, key, payload []byte, ttl time.Duration) error {
	select {
	case n.submit <- submission{key: key, payload: payload, ttl: ttl}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get queues a client-originated GET for key. The result, if any, arrives
// asynchronously as an EvGetResult Event.
func (n *Node) Get(ctx context.Context, key []byte) error {
	select {
	case n.submit <- submission{key: key, get: true}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Node) handleFrame(from *identity.PeerID, frame []byte) {
	msg, err := wire.Decode(frame)
	if err != nil {
		n.Stats.Malformed.Add(1)
		n.logger.Printf("overlay: malformed frame from %s: %v", from, err)
		return
	}
	n.dispatch(from, msg)
}

func (n *Node) onConnected(link transport.Link) {
	peer := link.Peer()
	n.Friends.OnConnect(peer)
	n.links[peer.Key()] = link
	n.conns[peer.Key()] = conn.New()
	n.emit(&Event{Type: EvFriendConnected, Peer: peer})
}

func (n *Node) onDisconnected(peer *identity.PeerID) {
	n.Friends.OnDisconnect(peer)
	delete(n.conns, peer.Key())
	delete(n.links, peer.Key())

	affected := n.Routing.RemoveFriend(peer)
	for _, tid := range affected {
		n.emit(&Event{Type: EvConnectionBroken, Peer: peer, Val: tid})
		n.Stats.TrailBroken.Add(1)
	}
	// drop fingers reached through the departed friend.
	for _, fg := range n.Fingers.AllPresent() {
		kept := fg.Trails[:0]
		for _, tr := range fg.Trails {
			if fh := tr.FirstHop(); fh == nil || !fh.Equal(peer) {
				kept = append(kept, tr)
			}
		}
		lost := len(kept) < len(fg.Trails)
		fg.Trails = kept
		if (lost && len(kept) == 0) || (fg.Kind == finger.KindFriend && fg.Identity.Equal(peer)) {
			n.Fingers.Remove(fg.TableIndex)
		}
	}
	n.emit(&Event{Type: EvFriendDisconnected, Peer: peer})
}

//----------------------------------------------------------------------
// outbound frame delivery: send-side bookkeeping (flow control via
// conn.Connection) stays in one place, separate from the dispatch switch.
//----------------------------------------------------------------------

func (n *Node) send(ctx context.Context, peer *identity.PeerID, msg wire.Message) error {
	link, ok := n.links[peer.Key()]
	if !ok {
		n.Stats.LinkDown.Add(1)
		return errs.ErrLinkDown
	}
	frame, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	c := n.conns[peer.Key()]
	if c != nil {
		c.OnSend()
	}
	return link.Send(ctx, frame)
}

//----------------------------------------------------------------------
// finger-table callbacks
//----------------------------------------------------------------------

func (n *Node) onFriendTrailDelta(first *identity.PeerID, delta int) {
	f := n.Friends.Get(first)
	if f == nil {
		return
	}
	if delta > 0 {
		f.TrailsCount += uint32(delta)
	} else if f.TrailsCount > 0 {
		f.TrailsCount -= uint32(-delta)
	}
}

func (n *Node) teardownTrail(tr *trail.Trail) {
	n.Routing.RemoveTrail(tr.ID)
	if fh := tr.FirstHop(); fh != nil {
		_ = n.send(context.Background(), fh, &wire.TrailTeardownMsg{
			Header:    wire.Header{MsgType: wire.TrailTeardown, From: n.Self},
			TrailID:   tr.ID,
			Direction: routing.SrcToDest,
		})
	}
	n.Stats.TrailsTornDown.Add(1)
	n.emit(&Event{Type: EvTrailTornDown})
}

func (n *Node) compressTrail(tr *trail.Trail, newFirstFriend *identity.PeerID) {
	oldFirst := tr.FirstHop()
	if oldFirst == nil {
		return
	}
	_ = n.send(context.Background(), oldFirst, &wire.TrailCompressionMsg{
		Header:         wire.Header{MsgType: wire.TrailCompression, From: n.Self},
		Source:         n.Self,
		NewFirstFriend: newFirstFriend,
		TrailID:        tr.ID,
	})
	n.Stats.Compressions.Add(1)
	n.emit(&Event{Type: EvTrailCompressed})
}

//----------------------------------------------------------------------
// stabilization tick
//----------------------------------------------------------------------

func (n *Node) onStabilizeTick() {
	probe := stabilize.Tick(n.SelfValue, n.Fingers.SearchIndex())
	if n.Friends.Len() == 0 {
		return
	}
	n.startTrailSetup(probe.Target, probe.IsPred, probe.Index)

	if succ := n.Fingers.Successor(); succ != nil {
		n.verifySuccessor(succ)
	}
}

func (n *Node) verifySuccessor(succ *finger.Finger) {
	tr := finger.SelectTrail(succ, func(p *identity.PeerID) bool {
		f := n.Friends.Get(p)
		return f != nil && f.Congested(n.Config.TrailsThroughFriendThreshold, time.Now())
	})
	var firstHop *identity.PeerID
	if tr != nil {
		firstHop = tr.FirstHop()
	} else {
		firstHop = succ.Identity
	}
	if firstHop == nil {
		return
	}
	id := trail.NewID()
	_ = n.send(context.Background(), firstHop, &wire.VerifySuccessorMsg{
		Header:           wire.Header{MsgType: wire.VerifySuccessor, From: n.Self},
		Source:           n.Self,
		ClaimedSuccessor: succ.Identity,
		TrailID:          id,
	})
	n.Stats.Verifications.Add(1)
	n.emit(&Event{Type: EvVerifySuccessor, Peer: succ.Identity})
}

//----------------------------------------------------------------------
// trail setup (originator side)
//----------------------------------------------------------------------

// startTrailSetup begins a TRAIL_SETUP search for targetValue, installing
// the result into finger slot index once it resolves.
func (n *Node) startTrailSetup(targetValue peerid.ID, isPredecessor bool, index int) {
	f := n.Friends.PickRandomNonCongested(time.Now())
	if f == nil {
		return
	}
	id := trail.NewID()
	msg := &wire.TrailSetupMsg{
		Header:           wire.Header{MsgType: wire.TrailSetup, From: n.Self},
		IsPredecessor:    isPredecessor,
		DestinationValue: uint64(targetValue),
		Source:           n.Self,
		BestKnownDest:    n.Self,
		TrailID:          id,
		Hops:             nil,
	}
	if err := n.send(context.Background(), f.ID, msg); err != nil {
		return
	}
	n.Routing.Add(id, routing.SrcToDest, n.Self, f.ID)
	n.Stats.TrailsSetup.Add(1)
	n.pendingSetup[id] = index
}

// takePendingIndex retrieves and clears the finger-table slot a
// TRAIL_SETUP_RESULT for id should install into.
func (n *Node) takePendingIndex(id trail.ID) (int, bool) {
	idx, ok := n.pendingSetup[id]
	delete(n.pendingSetup, id)
	return idx, ok
}

//----------------------------------------------------------------------
// dispatch
//----------------------------------------------------------------------

func (n *Node) dispatch(from *identity.PeerID, msg wire.Message) {
	switch m := msg.(type) {
	case *wire.TrailSetupMsg:
		n.handleTrailSetup(from, m)
	case *wire.TrailSetupResultMsg:
		n.handleTrailSetupResult(from, m)
	case *wire.TrailRejectionMsg:
		n.handleTrailRejection(from, m)
	case *wire.TrailTeardownMsg:
		n.handleTrailTeardown(from, m)
	case *wire.TrailCompressionMsg:
		n.handleTrailCompression(from, m)
	case *wire.VerifySuccessorMsg:
		n.handleVerifySuccessor(from, m)
	case *wire.VerifySuccessorResultMsg:
		n.handleVerifySuccessorResult(from, m)
	case *wire.NotifyNewSuccessorMsg:
		n.handleNotifyNewSuccessor(from, m)
	case *wire.AddTrailMsg:
		n.handleAddTrail(from, m)
	case *wire.ConnectionBrokenMsg:
		n.handleConnectionBroken(from, m)
	case *wire.PutMsg:
		n.handlePut(from, m)
	case *wire.GetMsg:
		n.handleGet(from, m)
	case *wire.GetResultMsg:
		n.handleGetResult(from, m)
	default:
		n.logger.Printf("overlay: unhandled message type from %s", from)
	}
}

//----------------------------------------------------------------------
// TRAIL_SETUP family (spec §4.4)
//----------------------------------------------------------------------

func (n *Node) handleTrailSetup(from *identity.PeerID, m *wire.TrailSetupMsg) {
	dest := peerid.ID(m.DestinationValue)

	candidates := n.candidatesFor(m.Hops)
	hop := trail.FindSuccessor(n.Self, n.SelfValue, candidates, dest, m.IsPredecessor)

	if hop.Peer.Equal(n.Self) {
		// terminus reached: reply with TRAIL_SETUP_RESULT along the reversed hops.
		n.replyTrailSetupResult(from, m, n.Self)
		return
	}
	if n.Routing.Full() {
		_ = n.send(context.Background(), from, &wire.TrailRejectionMsg{
			Header:    wire.Header{MsgType: wire.TrailRejection, From: n.Self},
			Source:    m.Source,
			Congested: n.Self,
			DestValue: m.DestinationValue,
			TrailID:   m.TrailID,
			Hops:      m.Hops,
		})
		n.Stats.TrailFull.Add(1)
		return
	}
	if (&trail.Trail{Hops: m.Hops}).Contains(n.Self) {
		return // already on this trail: never append self twice
	}
	bestDest, next, intermediateID := n.resolveBestDest(hop, m.BestKnownDest, m.IntermediateTrailID, dest, m.IsPredecessor)
	n.Routing.Add(m.TrailID, routing.SrcToDest, from, next)
	fwd := *m
	fwd.Hops = append(append([]*identity.PeerID{}, m.Hops...), n.Self)
	fwd.BestKnownDest = bestDest
	fwd.IntermediateTrailID = intermediateID
	_ = n.send(context.Background(), next, &fwd)
}

// resolveBestDest implements the "on-message value wins" comparison of
// spec §4.4 step 2 / §4.5 step 3: local is this node's own find_successor
// result; if the message's own best-known destination is closer to dest
// and this node's routing table still has a live entry for the message's
// intermediate_trail_id, that entry's next hop is used instead of local's.
// Otherwise local's result stands, carrying its own via-trail id forward
// as the new intermediate_trail_id for the next hop to consult.
func (n *Node) resolveBestDest(local trail.Hop, msgBestDest *identity.PeerID, msgTrailID trail.ID, dest peerid.ID, isPredecessor bool) (bestDest, next *identity.PeerID, intermediateID trail.ID) {
	localNext := local.Peer
	if local.NextHop != nil {
		localNext = local.NextHop
	}
	localTrailID := trail.ID{}
	if local.ViaTrail != nil {
		localTrailID = local.ViaTrail.ID
	}

	if msgBestDest == nil || msgBestDest.Equal(n.Self) {
		return local.Peer, localNext, localTrailID
	}

	localRing := peerid.ID(local.Peer.Projection64())
	msgRing := peerid.ID(msgBestDest.Projection64())
	var winner peerid.ID
	if isPredecessor {
		winner = peerid.ClosestBackward(localRing, msgRing, dest)
	} else {
		winner = peerid.ClosestForward(localRing, msgRing, dest)
	}
	if winner != msgRing {
		return local.Peer, localNext, localTrailID
	}
	if rtNext := n.Routing.NextHop(msgTrailID, routing.SrcToDest); rtNext != nil {
		return msgBestDest, rtNext, msgTrailID
	}
	// message's destination wins the comparison but this node has no
	// routing entry for its trail: fall back to the local recomputation.
	return local.Peer, localNext, localTrailID
}

// candidatesFor enumerates every friend and trail-reachable finger as a
// find_successor candidate, excluding any candidate that is itself a
// peer already on existingHops (the message's own path so far); the hops
// of a finger's trail are not checked against existingHops.
func (n *Node) candidatesFor(existingHops []*identity.PeerID) []trail.Candidate {
	alreadyVisited := func(p *identity.PeerID) bool {
		for _, h := range existingHops {
			if h.Equal(p) {
				return true
			}
		}
		return false
	}

	out := make([]trail.Candidate, 0, n.Friends.Len()+peerid.NumFingers)
	for _, f := range n.Friends.All() {
		if alreadyVisited(f.ID) {
			continue
		}
		out = append(out, trail.Candidate{ID: f.ID, Ring: peerid.ID(f.ID.Projection64())})
	}
	for _, fg := range n.Fingers.AllPresent() {
		if fg.Kind != finger.KindTrail || alreadyVisited(fg.Identity) {
			continue
		}
		tr := finger.SelectTrail(fg, func(p *identity.PeerID) bool {
			fr := n.Friends.Get(p)
			return fr != nil && fr.Congested(n.Config.TrailsThroughFriendThreshold, time.Now())
		})
		if tr == nil {
			continue
		}
		out = append(out, trail.Candidate{
			ID:       fg.Identity,
			Ring:     peerid.ID(fg.Identity.Projection64()),
			NextHop:  tr.FirstHop(),
			ViaTrail: tr,
		})
	}
	return out
}

func (n *Node) replyTrailSetupResult(toward *identity.PeerID, m *wire.TrailSetupMsg, terminus *identity.PeerID) {
	_ = n.send(context.Background(), toward, &wire.TrailSetupResultMsg{
		Header:           wire.Header{MsgType: wire.TrailSetupResult, From: n.Self},
		Finger:           terminus,
		Querying:         m.Source,
		IsPredecessor:    m.IsPredecessor,
		DestinationValue: m.DestinationValue,
		TrailID:          m.TrailID,
		Hops:             m.Hops,
	})
}

func (n *Node) handleTrailSetupResult(from *identity.PeerID, m *wire.TrailSetupResultMsg) {
	if m.Querying.Equal(n.Self) {
		idx, ok := n.takePendingIndex(m.TrailID)
		tr := &trail.Trail{ID: m.TrailID, Hops: append([]*identity.PeerID{}, m.Hops...)}
		if ok {
			n.Fingers.Add(m.Finger, tr, idx, peerid.ID(m.DestinationValue))
		}
		n.emit(&Event{Type: EvTrailSetupResult, Peer: m.Finger})
		return
	}
	// forward back toward querying along the reversed hop chain.
	pos := forward.PathPosition(m.Hops, n.Self)
	var prev *identity.PeerID
	if pos > 0 {
		prev = m.Hops[pos-1]
	} else {
		prev = m.Querying
	}
	entry := n.Routing.Lookup(m.TrailID, routing.SrcToDest)
	if entry != nil {
		prev = entry.PrevHop
	}
	n.Routing.Add(m.TrailID, routing.DestToSrc, from, prev)
	_ = n.send(context.Background(), prev, m)
}

func (n *Node) handleTrailRejection(from *identity.PeerID, m *wire.TrailRejectionMsg) {
	n.Routing.RemoveTrail(m.TrailID)
	if cf := n.Friends.Get(m.Congested); cf != nil {
		d := time.Duration(m.CongestionNs)
		if d <= 0 || d > n.Config.CongestionTimeout {
			d = n.Config.CongestionTimeout
		}
		cf.MarkCongested(time.Now().Add(d))
	}
	n.Stats.Congestions.Add(1)
	n.emit(&Event{Type: EvCongested, Peer: m.Congested})

	if m.Source.Equal(n.Self) {
		delete(n.pendingSetup, m.TrailID)
		return
	}
	pos := forward.PathPosition(m.Hops, n.Self)
	var prev *identity.PeerID
	if pos > 0 {
		prev = m.Hops[pos-1]
	} else {
		prev = m.Source
	}
	_ = n.send(context.Background(), prev, m)
}

func (n *Node) handleTrailTeardown(from *identity.PeerID, m *wire.TrailTeardownMsg) {
	dir := m.Direction
	next := n.Routing.NextHop(m.TrailID, dir)
	n.Routing.Remove(m.TrailID, dir)
	if next != nil {
		_ = n.send(context.Background(), next, m)
	}
}

// handleTrailCompression is relayed hop-by-hop from the shortcut point
// back toward the trail's old first hop; every hop it passes through is
// being bypassed by the new direct friend link, so it drops its own
// routing entries for this trail and forwards on toward whichever peer
// it used to reach the destination (spec §4.3 compression).
func (n *Node) handleTrailCompression(from *identity.PeerID, m *wire.TrailCompressionMsg) {
	entry := n.Routing.Lookup(m.TrailID, routing.SrcToDest)
	n.Routing.RemoveTrail(m.TrailID)
	if entry != nil && !entry.NextHop.Equal(from) {
		_ = n.send(context.Background(), entry.NextHop, m)
	}
}

//----------------------------------------------------------------------
// Stabilization handlers (spec §4.4)
//----------------------------------------------------------------------

func (n *Node) handleVerifySuccessor(from *identity.PeerID, m *wire.VerifySuccessorMsg) {
	pred := n.Fingers.Predecessor()
	var predPeer *identity.PeerID
	var predTrail []*identity.PeerID
	if pred != nil {
		predPeer = pred.Identity
		if tr := finger.SelectTrail(pred, nil); tr != nil {
			predTrail = tr.Hops
		}
	} else {
		predPeer = n.Self
	}
	_ = n.send(context.Background(), from, &wire.VerifySuccessorResultMsg{
		Header:             wire.Header{MsgType: wire.VerifySuccessorResult, From: n.Self},
		Querying:           m.Source,
		SourceSuccessor:    n.Self,
		CurrentPredecessor: predPeer,
		TrailID:            m.TrailID,
		Direction:          routing.DestToSrc,
		Trail:              predTrail,
	})
}

func (n *Node) handleVerifySuccessorResult(from *identity.PeerID, m *wire.VerifySuccessorResultMsg) {
	if !m.Querying.Equal(n.Self) {
		return
	}
	reportedVal := peerid.ID(m.CurrentPredecessor.Projection64())
	succVal := peerid.ID(m.SourceSuccessor.Projection64())
	outcome := stabilize.EvaluateVerifyResult(n.SelfValue, succVal, reportedVal)
	if outcome == stabilize.AdoptPredecessorAsSuccessor {
		tr := &trail.Trail{ID: trail.NewID(), Hops: append([]*identity.PeerID{}, m.Trail...)}
		n.Fingers.Add(m.CurrentPredecessor, tr, 0, peerid.FingerTarget(n.SelfValue, 0))
		n.emit(&Event{Type: EvNewSuccessor, Peer: m.CurrentPredecessor})
	}
}

func (n *Node) handleNotifyNewSuccessor(from *identity.PeerID, m *wire.NotifyNewSuccessorMsg) {
	tr := &trail.Trail{ID: m.TrailID, Hops: append([]*identity.PeerID{}, m.Trail...)}
	n.Fingers.Add(m.NewSuccessor, tr, peerid.PredecessorFingerIndex, n.SelfValue)
}

func (n *Node) handleAddTrail(from *identity.PeerID, m *wire.AddTrailMsg) {
	pos := forward.PathPosition(m.Trail, n.Self)
	if pos < 0 {
		return
	}
	var next *identity.PeerID
	if pos+1 < len(m.Trail) {
		next = m.Trail[pos+1]
	} else {
		next = m.Destination
	}
	n.Routing.Add(m.TrailID, routing.SrcToDest, from, next)
}

func (n *Node) handleConnectionBroken(from *identity.PeerID, m *wire.ConnectionBrokenMsg) {
	next := n.Routing.NextHop(m.CID, routing.DestToSrc)
	n.Routing.RemoveTrail(m.CID)
	if next != nil {
		_ = n.send(context.Background(), next, m)
		return
	}
	// we are the trail's root: drop the broken trail from the finger
	// holding it (the finger itself stays, even with no trails left).
	for _, fg := range n.Fingers.AllPresent() {
		for i, tr := range fg.Trails {
			if tr.ID == m.CID {
				fg.Trails = append(fg.Trails[:i], fg.Trails[i+1:]...)
				break
			}
		}
	}
}

//----------------------------------------------------------------------
// PUT / GET / GET_RESULT (spec §4.5)
//----------------------------------------------------------------------

func (n *Node) handlePut(from *identity.PeerID, m *wire.PutMsg) {
	if !forward.VerifyBlockIntegrity(m.BlockType, m.Key, m.Payload) {
		n.Stats.Malformed.Add(1)
		return
	}

	// the message carries BestKnownDest (the closest peer known so far to
	// the key's ring value) rather than the raw key, so routing here
	// mirrors TRAIL_SETUP's candidate search exactly.
	target := peerid.ID(m.BestKnownDest.Projection64())
	candidates := n.candidatesFor(m.PutPath)
	hop := trail.FindSuccessor(n.Self, n.SelfValue, candidates, target, false)

	if hop.Peer.Equal(n.Self) {
		exp := forward.RandomizeExpiration(time.Now(), time.Duration(m.ExpirationNs), n.Config.MaxMigrationExp)
		_ = n.Store.Put(store.Record{Key: m.Key, BlockType: m.BlockType, Payload: m.Payload, Expiration: exp})
		n.emit(&Event{Type: EvPut, Peer: from})
		n.replicatePut(m)
		return
	}

	ttl, drop := forward.ExpireHop(m.TTL, m.HopCount, n.Config.MaxHopCount)
	if drop {
		n.Stats.HopsExpired.Add(1)
		return
	}

	next, intermediateID := n.resolveForwardHop(hop, m.IntermediateTrailID)
	fwd := *m
	fwd.TTL = ttl
	fwd.HopCount++
	fwd.BestKnownDest = hop.Peer
	fwd.IntermediateTrailID = intermediateID
	if m.Options&wire.OptRecordRoute != 0 {
		fwd.PutPath = forward.AppendHop(m.PutPath, n.Self)
	}
	_ = n.send(context.Background(), next, &fwd)
}

// replicatePut fans a just-stored PUT out to additional find_successor
// destinations per spec §4.5 step 2, ranked by ring proximity to self (the
// key's landing point) so the nearest-available fingers are preferred.
func (n *Node) replicatePut(m *wire.PutMsg) {
	candidates := n.candidatesFor(m.PutPath)
	want := forward.ReplicationTargets(m.Replication, len(candidates))
	if want == 0 {
		return
	}
	sort.Slice(candidates, func(i, j int) bool {
		return peerid.ForwardDistance(n.SelfValue, candidates[i].Ring) < peerid.ForwardDistance(n.SelfValue, candidates[j].Ring)
	})
	for i := 0; i < want && i < len(candidates); i++ {
		c := candidates[i]
		next := c.ID
		if c.NextHop != nil {
			next = c.NextHop
		}
		intermediateID := trail.ID{}
		if c.ViaTrail != nil {
			intermediateID = c.ViaTrail.ID
		}
		fwd := *m
		fwd.TTL = n.Config.DefaultTTL
		fwd.HopCount = 0
		fwd.BestKnownDest = c.ID
		fwd.IntermediateTrailID = intermediateID
		fwd.PutPath = nil
		_ = n.send(context.Background(), next, &fwd)
	}
}

func (n *Node) handleGet(from *identity.PeerID, m *wire.GetMsg) {
	if recs, _ := n.Store.Get(m.Key); len(recs) > 0 {
		rec := recs[0]
		if from.Equal(n.Self) {
			n.emit(&Event{Type: EvGetResult, Val: rec.Payload})
			return
		}
		querying := from
		if len(m.GetPath) > 0 {
			querying = m.GetPath[0]
		}
		path := forward.AppendHop(m.GetPath, n.Self)
		_ = n.send(context.Background(), from, &wire.GetResultMsg{
			Header:       wire.Header{MsgType: wire.GetResult, From: n.Self},
			BlockType:    rec.BlockType,
			Querying:     querying,
			ExpirationNs: uint64(rec.Expiration.Sub(time.Now())),
			Key:          m.Key,
			GetPath:      path,
			Payload:      rec.Payload,
		})
		n.emit(&Event{Type: EvGet, Peer: from})
		return
	}
	target := peerid.ID(m.BestKnownDest.Projection64())
	candidates := n.candidatesFor(m.GetPath)
	hop := trail.FindSuccessor(n.Self, n.SelfValue, candidates, target, false)
	if hop.Peer.Equal(n.Self) {
		// nothing stored here and nowhere closer to go: drop.
		return
	}

	ttl, drop := forward.ExpireHop(m.TTL, m.HopCount, n.Config.MaxHopCount)
	if drop {
		n.Stats.HopsExpired.Add(1)
		return
	}

	next, intermediateID := n.resolveForwardHop(hop, m.IntermediateTrailID)
	fwd := *m
	fwd.TTL = ttl
	fwd.HopCount++
	fwd.BestKnownDest = hop.Peer
	fwd.IntermediateTrailID = intermediateID
	// GetPath accumulation is never gated by options: GET_RESULT routes
	// back along its reverse, so every hop must record itself regardless
	// of the record-route bit (unlike PutPath, which is purely informational).
	fwd.GetPath = forward.AppendHop(m.GetPath, n.Self)
	_ = n.send(context.Background(), next, &fwd)
}

// resolveForwardHop implements spec §4.5 step 3's routing-table-first
// resolution: if this node still has a live routing entry for the
// message's intermediate_trail_id, that entry's next hop is preferred
// over hop (the freshly recomputed find_successor result) since it
// continues routing along the same trail a prior hop already committed
// to; recompute-driven routing applies only once that entry is gone
// (trail torn down, finger evicted, and so on).
func (n *Node) resolveForwardHop(hop trail.Hop, intermediateID trail.ID) (next *identity.PeerID, newIntermediateID trail.ID) {
	if rtNext := n.Routing.NextHop(intermediateID, routing.SrcToDest); rtNext != nil {
		return rtNext, intermediateID
	}
	next = hop.Peer
	if hop.NextHop != nil {
		next = hop.NextHop
	}
	if hop.ViaTrail != nil {
		newIntermediateID = hop.ViaTrail.ID
	}
	return next, newIntermediateID
}

func (n *Node) handleGetResult(from *identity.PeerID, m *wire.GetResultMsg) {
	if m.Querying.Equal(n.Self) {
		n.emit(&Event{Type: EvGetResult, Val: m.Payload})
		return
	}
	next := forward.NextOnReversePath(m.GetPath, n.Self)
	if next == nil {
		next = m.Querying
	}
	_ = n.send(context.Background(), next, m)
}
