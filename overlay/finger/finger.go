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

// Package finger implements the 65-slot finger table (§3, §4.3 of the
// core spec): per-slot candidate selection, trail-set maintenance bounded
// by K, scan-and-compress on insert, and the search-pointer walk used by
// stabilization.
package finger

import (
	"sort"

	"xvine/identity"
	"xvine/overlay/peerid"
	"xvine/overlay/trail"
)

// Kind classifies a finger's relationship to the holder, supplementing
// spec.md from the original GDS_NEIGHBOURS_finger_type enum (see
// SPEC_FULL.md, Supplemented Features) instead of inferring the
// relationship ad hoc at every call site.
type Kind int

const (
	KindEmpty Kind = iota
	KindSelf
	KindFriend
	KindTrail
)

// Finger is a single slot's content.
type Finger struct {
	Identity   *identity.PeerID
	TableIndex int
	Kind       Kind
	Trails     []*trail.Trail // empty for KindSelf/KindFriend, <=K for KindTrail
}

// CompressFunc describes a trail-compression hook that returns the index
// within hops where a now-redundant prefix ends (the new trail begins at
// hops[cutAt]). Table does not use this type: Add's scan-and-compress
// step reports a shortcut through the OnCompress field instead, and cuts
// the trail itself.
type CompressFunc func(tr *trail.Trail) (cutAt int, isFriend func(*identity.PeerID) bool)

// Table holds all peerid.NumFingers finger slots for one node.
type Table struct {
	Self        *identity.PeerID
	SelfValue   peerid.ID
	K           int // MaxTrailsPerFinger
	slots       [peerid.NumFingers]*Finger
	searchIndex int // current_search_finger_index, walks 0..64 then wraps

	// IsFriend reports whether a peer is a directly-connected friend;
	// wired by the overlay package to the friend table.
	IsFriend func(*identity.PeerID) bool
	// OnFriendTrailDelta adjusts a friend's TrailsCount by delta (+1 when
	// a trail/finger starts using it as first hop, -1 when it stops).
	OnFriendTrailDelta func(first *identity.PeerID, delta int)
	// OnTeardown is called to emit TRAIL_TEARDOWN for a trail being
	// evicted or removed.
	OnTeardown func(tr *trail.Trail)
	// OnCompress is called when Add's scan finds a shortcut; it should
	// emit TRAIL_COMPRESSION toward the trail's current first hop.
	OnCompress func(tr *trail.Trail, newFirstFriend *identity.PeerID)
}

// NewTable creates an empty finger table.
func NewTable(self *identity.PeerID, selfValue peerid.ID, k int) *Table {
	return &Table{Self: self, SelfValue: selfValue, K: k}
}

// Get returns the finger stored at index i (nil if empty).
func (t *Table) Get(i int) *Finger {
	return t.slots[i]
}

// Successor returns the finger at slot 0, or nil if unset.
func (t *Table) Successor() *Finger {
	return t.slots[0]
}

// Predecessor returns the finger at the predecessor slot, or nil if
// unset.
func (t *Table) Predecessor() *Finger {
	return t.slots[peerid.PredecessorFingerIndex]
}

// SearchIndex returns the slot stabilization should probe next.
func (t *Table) SearchIndex() int {
	return t.searchIndex
}

// classify determines a finger's Kind relative to this table.
func (t *Table) classify(id *identity.PeerID) Kind {
	if id.Equal(t.Self) {
		return KindSelf
	}
	if t.IsFriend != nil && t.IsFriend(id) {
		return KindFriend
	}
	return KindTrail
}

// compressScan looks for a non-first hop on tr that is actually a direct
// friend of this node and, if found, shortens tr in place to begin at
// that friend, reporting the shortcut via OnCompress. This implements
// spec §4.3 step 2 ("scan-and-compress the trail").
func (t *Table) compressScan(tr *trail.Trail) {
	if t.IsFriend == nil || len(tr.Hops) < 2 {
		return
	}
	for i := 1; i < len(tr.Hops); i++ {
		if t.IsFriend(tr.Hops[i]) {
			shortcut := tr.Hops[i]
			if t.OnCompress != nil {
				t.OnCompress(tr, shortcut)
			}
			tr.Hops = tr.Hops[i:]
			return
		}
	}
}

// Add installs or updates the finger for identity at tableIndex, learned
// via tr (nil/empty trail means identity is a direct Friend or self).
// ultimateValue is the target ring value for this slot, used to break
// ties between a previously-stored finger and the new candidate.
func (t *Table) Add(id *identity.PeerID, tr *trail.Trail, tableIndex int, ultimateValue peerid.ID) {
	// step 1: successor short-circuit — a non-zero slot learning about
	// the current successor resets the search pointer without storing.
	if tableIndex != 0 {
		if succ := t.slots[0]; succ != nil && succ.Identity.Equal(id) {
			t.searchIndex = 0
			return
		}
	}

	// step 2: scan-and-compress.
	if tr != nil && len(tr.Hops) > 0 {
		t.compressScan(tr)
	}

	kind := t.classify(id)
	var trails []*trail.Trail
	if kind == KindTrail && tr != nil {
		trails = []*trail.Trail{tr}
	}

	existing := t.slots[tableIndex]

	// step 3: empty slot.
	if existing == nil {
		t.install(tableIndex, &Finger{Identity: id, TableIndex: tableIndex, Kind: kind, Trails: trails}, trails)
		t.advanceSearch(tableIndex)
		return
	}

	// step 5: same identity already stored.
	if existing.Identity.Equal(id) {
		if kind != KindTrail || tr == nil {
			// re-learning self/friend status on an existing slot: nothing
			// to add to the (empty) trail set.
			return
		}
		t.mergeTrail(existing, tr)
		return
	}

	// step 4: occupied by a different identity — closeness tiebreak.
	var winner *identity.PeerID
	if tableIndex == peerid.PredecessorFingerIndex {
		w := peerid.ClosestBackward(toRing(existing.Identity), toRing(id), ultimateValue)
		winner = ringWinner(w).peerFor(existing.Identity, id)
	} else {
		w := peerid.ClosestForward(toRing(existing.Identity), toRing(id), ultimateValue)
		winner = ringWinner(w).peerFor(existing.Identity, id)
	}
	if winner.Equal(id) {
		t.evict(existing)
		t.install(tableIndex, &Finger{Identity: id, TableIndex: tableIndex, Kind: kind, Trails: trails}, trails)
	}
	// else existing wins: new trail is simply dropped; Add does not touch
	// any routing-table entries made along it.
	t.advanceSearch(tableIndex)
}

// install stores f at tableIndex and credits the friend counter for each
// trail's first hop (or for id itself if it is a friend).
func (t *Table) install(tableIndex int, f *Finger, trails []*trail.Trail) {
	t.slots[tableIndex] = f
	if f.Kind == KindFriend && t.OnFriendTrailDelta != nil {
		t.OnFriendTrailDelta(f.Identity, 1)
	}
	for _, tr := range trails {
		if fh := tr.FirstHop(); fh != nil && t.OnFriendTrailDelta != nil {
			t.OnFriendTrailDelta(fh, 1)
		}
	}
}

// mergeTrail implements spec §4.3 step 5: append if under K, else evict
// the longest trail in favor of a strictly shorter newcomer.
func (t *Table) mergeTrail(f *Finger, tr *trail.Trail) {
	for _, existing := range f.Trails {
		if !trail.DistinctHops(existing, tr) {
			return // duplicate hop sequence: drop silently
		}
	}
	if len(f.Trails) < t.K {
		f.Trails = append(f.Trails, tr)
		if fh := tr.FirstHop(); fh != nil && t.OnFriendTrailDelta != nil {
			t.OnFriendTrailDelta(fh, 1)
		}
		return
	}
	// table full: find the longest.
	longestIdx, longestLen := -1, -1
	for i, existing := range f.Trails {
		if existing.Length() > longestLen {
			longestIdx, longestLen = i, existing.Length()
		}
	}
	if tr.Length() >= longestLen {
		return // not strictly shorter: drop newcomer
	}
	evicted := f.Trails[longestIdx]
	if t.OnTeardown != nil {
		t.OnTeardown(evicted)
	}
	if fh := evicted.FirstHop(); fh != nil && t.OnFriendTrailDelta != nil {
		t.OnFriendTrailDelta(fh, -1)
	}
	f.Trails[longestIdx] = tr
	if fh := tr.FirstHop(); fh != nil && t.OnFriendTrailDelta != nil {
		t.OnFriendTrailDelta(fh, 1)
	}
}

// evict removes f entirely: tears down every trail and releases friend
// counters (spec §4.3 Remove).
func (t *Table) evict(f *Finger) {
	for _, tr := range f.Trails {
		if t.OnTeardown != nil {
			t.OnTeardown(tr)
		}
		if fh := tr.FirstHop(); fh != nil && t.OnFriendTrailDelta != nil {
			t.OnFriendTrailDelta(fh, -1)
		}
	}
	if f.Kind == KindFriend && t.OnFriendTrailDelta != nil {
		t.OnFriendTrailDelta(f.Identity, -1)
	}
}

// Remove empties slot i, tearing down all its trails first (spec §4.3
// Remove operation).
func (t *Table) Remove(i int) {
	f := t.slots[i]
	if f == nil {
		return
	}
	if f.Kind != KindSelf {
		t.evict(f)
	}
	t.slots[i] = nil
}

// advanceSearch implements spec §4.3 step 6: if the newly-touched index
// equals the current search pointer, decrement it (wrapping 0 -> 64).
func (t *Table) advanceSearch(tableIndex int) {
	if tableIndex != t.searchIndex {
		return
	}
	if t.searchIndex == 0 {
		t.searchIndex = peerid.PredecessorFingerIndex
	} else {
		t.searchIndex--
	}
}

// SelectTrail implements spec §4.3 select_trail: among f's trails, choose
// the shortest whose first hop is not congested. congested reports
// whether a peer is currently congested.
func SelectTrail(f *Finger, congested func(*identity.PeerID) bool) *trail.Trail {
	var best *trail.Trail
	for _, tr := range f.Trails {
		fh := tr.FirstHop()
		if fh != nil && congested != nil && congested(fh) {
			continue
		}
		if best == nil || tr.Length() < best.Length() {
			best = tr
		}
	}
	return best
}

// AllPresent returns every non-empty finger, sorted by table index — used
// by find_successor to enumerate known peers alongside friends and self.
func (t *Table) AllPresent() []*Finger {
	out := make([]*Finger, 0, peerid.NumFingers)
	for _, f := range t.slots {
		if f != nil {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableIndex < out[j].TableIndex })
	return out
}

//----------------------------------------------------------------------
// small ring-comparison plumbing: peerid.ID doesn't know about PeerID, so
// we resolve "which underlying identity.PeerID won" by re-mapping the
// winning ring value back to whichever candidate produced it.
//----------------------------------------------------------------------

func toRing(id *identity.PeerID) peerid.ID {
	return peerid.ID(id.Projection64())
}

type ringWinner peerid.ID

func (w ringWinner) peerFor(a, b *identity.PeerID) *identity.PeerID {
	if peerid.ID(w) == toRing(a) {
		return a
	}
	return b
}
