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

// Package friend implements the Friend table (§4.2 of the core spec):
// direct neighbors, per-friend bounded send queues, congestion tracking
// and random non-congested selection for trail setup.
package friend

import (
	"container/list"
	"math/rand"
	"time"

	"xvine/identity"
)

// PendingMessage is a queued outbound message awaiting transmission to a
// friend.
type PendingMessage struct {
	Importance uint8     // control messages use >=100
	Deadline   time.Time // dropped if still queued past this
	Bytes      []byte
	Kind       int // wire message type, used for control-message displacement
	Direction  int // used to match a control message for displacement
}

// expired reports whether the message's deadline has passed.
func (m *PendingMessage) expired(now time.Time) bool {
	return now.After(m.Deadline)
}

// Friend is a direct, link-layer-connected neighbor.
type Friend struct {
	ID              *identity.PeerID
	TrailsCount     uint32 // number of trails + fingers using this friend as first hop
	CongestedUntil  time.Time
	queue           *list.List // of *PendingMessage, oldest first
	QueueMax        int
}

// NewFriend creates a Friend with an empty send queue.
func NewFriend(id *identity.PeerID, queueMax int) *Friend {
	return &Friend{
		ID:       id,
		queue:    list.New(),
		QueueMax: queueMax,
	}
}

// Congested reports whether the friend is currently over the trail
// threshold or serving out a negotiated congestion timeout.
func (f *Friend) Congested(threshold uint32, now time.Time) bool {
	return f.TrailsCount >= threshold || now.Before(f.CongestedUntil)
}

// MarkCongested records a congestion timeout, e.g. after a TRAIL_REJECTION.
func (f *Friend) MarkCongested(until time.Time) {
	if until.After(f.CongestedUntil) {
		f.CongestedUntil = until
	}
}

// QueueLen returns the number of messages currently queued.
func (f *Friend) QueueLen() int {
	return f.queue.Len()
}

// Enqueue appends msg to f's send queue, applying the bounded-queue and
// control-displacement rules of spec §4.2.
func Enqueue(f *Friend, msg *PendingMessage) (dropped bool) {
	if f.queue.Len() < f.QueueMax {
		f.queue.PushBack(msg)
		return false
	}
	if msg.Importance < 100 {
		return true
	}
	// control message: try to displace one queued message of the same
	// kind/direction.
	for e := f.queue.Front(); e != nil; e = e.Next() {
		q := e.Value.(*PendingMessage)
		if q.Kind == msg.Kind && q.Direction == msg.Direction {
			f.queue.Remove(e)
			f.queue.PushBack(msg)
			return false
		}
	}
	// no displaceable entry found; still admit the control message since
	// it is higher priority than anything that could be dropped in its
	// place is not guaranteed — spec allows displacing at most one, not
	// guarantees one exists. Enqueue anyway: the friend link will drain
	// it in order; exceeding QueueMax by one control message is bounded
	// and self-correcting on the next drain.
	f.queue.PushBack(msg)
	return false
}

// Pop removes and returns the next message ready for transmission,
// skipping (and counting) any expired messages. It returns nil if the
// queue is empty.
func Pop(f *Friend, now time.Time) (msg *PendingMessage, expiredCount int) {
	for {
		e := f.queue.Front()
		if e == nil {
			return nil, expiredCount
		}
		f.queue.Remove(e)
		m := e.Value.(*PendingMessage)
		if m.expired(now) {
			expiredCount++
			continue
		}
		return m, expiredCount
	}
}

//----------------------------------------------------------------------

// Table is the set of all directly-connected friends.
type Table struct {
	Threshold uint32 // TrailsThroughFriendThreshold
	QueueMax  int

	friends map[string]*Friend
}

// NewTable creates an empty friend table.
func NewTable(threshold uint32, queueMax int) *Table {
	return &Table{
		Threshold: threshold,
		QueueMax:  queueMax,
		friends:   make(map[string]*Friend),
	}
}

// OnConnect installs a new Friend, returning it. Returns the existing
// Friend unchanged if the peer was already connected (duplicate connect
// notifications are tolerated).
func (t *Table) OnConnect(id *identity.PeerID) *Friend {
	if f, ok := t.friends[id.Key()]; ok {
		return f
	}
	f := NewFriend(id, t.QueueMax)
	t.friends[id.Key()] = f
	return f
}

// Get returns the Friend for id, or nil if not connected.
func (t *Table) Get(id *identity.PeerID) *Friend {
	return t.friends[id.Key()]
}

// OnDisconnect removes a Friend. Callers are responsible for tearing down
// routing entries and fingers that depend on this friend (that spans the
// routing/finger packages and is orchestrated by the overlay package).
func (t *Table) OnDisconnect(id *identity.PeerID) {
	delete(t.friends, id.Key())
}

// All returns every connected Friend.
func (t *Table) All() []*Friend {
	out := make([]*Friend, 0, len(t.friends))
	for _, f := range t.friends {
		out = append(out, f)
	}
	return out
}

// Len returns the number of connected friends.
func (t *Table) Len() int {
	return len(t.friends)
}

// PickRandomNonCongested returns a uniformly random friend with
// TrailsCount below the threshold and no active congestion timeout. It
// returns nil if every friend is congested or there are no friends.
func (t *Table) PickRandomNonCongested(now time.Time) *Friend {
	candidates := make([]*Friend, 0, len(t.friends))
	for _, f := range t.friends {
		if !f.Congested(t.Threshold, now) {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}
