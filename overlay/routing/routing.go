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

// Package routing implements the per-node routing table (§3, §4.4 of the
// core spec): a capacity-bounded map from (trail_id, direction) to the
// next hop a forwarded message should take. Entries are created as a side
// effect of forwarding a trail setup and torn down on TRAIL_TEARDOWN or
// friend disconnect.
package routing

import (
	"xvine/identity"
	"xvine/overlay/trail"
)

// Direction a trail-bound message travels relative to its setup order.
type Direction int

const (
	SrcToDest Direction = 0
	DestToSrc Direction = 1
)

// Entry is a single routing-table row: how to continue forwarding a
// message tagged with TrailID.
type Entry struct {
	TrailID trail.ID
	PrevHop *identity.PeerID
	NextHop *identity.PeerID
}

// key identifies an entry uniquely: a trail carries independent state per
// direction since routing entries are bidirectional (spec §4.4 Teardown).
type key struct {
	trail trail.ID
	dir   Direction
}

// Table is the capacity-bounded routing table.
type Table struct {
	Capacity int
	entries  map[key]*Entry
}

// NewTable creates an empty routing table with the given capacity.
func NewTable(capacity int) *Table {
	return &Table{Capacity: capacity, entries: make(map[key]*Entry)}
}

// Full reports whether the table is at capacity; trail setup requests are
// rejected (TRAIL_REJECTION, ErrTrailFull) when this is true.
func (t *Table) Full() bool {
	return len(t.entries) >= t.Capacity
}

// Add installs a routing entry for (id, dir). Returns false if the table
// is already full (the caller must reject the setup instead).
func (t *Table) Add(id trail.ID, dir Direction, prev, next *identity.PeerID) bool {
	k := key{id, dir}
	if _, exists := t.entries[k]; !exists && t.Full() {
		return false
	}
	t.entries[k] = &Entry{TrailID: id, PrevHop: prev, NextHop: next}
	return true
}

// Lookup returns the entry for (id, dir), or nil if none exists.
func (t *Table) Lookup(id trail.ID, dir Direction) *Entry {
	return t.entries[key{id, dir}]
}

// NextHop returns the peer to forward a message tagged (id, dir) toward,
// or nil if this trail/direction is unknown locally — the message is
// dropped without error per spec §4.4 Teardown semantics.
func (t *Table) NextHop(id trail.ID, dir Direction) *identity.PeerID {
	if e := t.Lookup(id, dir); e != nil {
		return e.NextHop
	}
	return nil
}

// Remove deletes the entry for (id, dir). Idempotent: removing an entry
// that doesn't exist is a no-op, matching the teardown message's
// idempotent semantics.
func (t *Table) Remove(id trail.ID, dir Direction) {
	delete(t.entries, key{id, dir})
}

// RemoveTrail removes both directions of a trail (used on full teardown
// or finger removal).
func (t *Table) RemoveTrail(id trail.ID) {
	delete(t.entries, key{id, SrcToDest})
	delete(t.entries, key{id, DestToSrc})
}

// RemoveFriend removes every entry mentioning peer as prev or next hop,
// returning the trail ids affected — used on peer disconnect (spec §4.4
// Connection broken) to let the caller emit CONNECTION_BROKEN toward each
// affected trail's root.
func (t *Table) RemoveFriend(peer *identity.PeerID) (affected []trail.ID) {
	for k, e := range t.entries {
		if e.PrevHop.Equal(peer) || e.NextHop.Equal(peer) {
			delete(t.entries, k)
			affected = append(affected, e.TrailID)
		}
	}
	return
}

// Len returns the number of entries currently stored.
func (t *Table) Len() int {
	return len(t.entries)
}
