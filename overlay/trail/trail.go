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

// Package trail implements the Trail type and the trail engine (§3, §4.4
// of the core spec): source-routed paths to non-friend fingers, their
// setup/teardown/compression, and find_successor candidate selection.
package trail

import (
	"crypto/rand"

	"xvine/identity"
)

// ID is the 512-bit random identifier of a Trail, unique across the
// network with overwhelming probability (generalizes the teacher's
// 32/64-bit RndUInt64 in core/util.go to the spec's 512-bit TrailId).
type ID [64]byte

// NewID generates a fresh random trail id.
func NewID() ID {
	var id ID
	_, _ = rand.Read(id[:])
	return id
}

// Trail is an ordered, source-routed path from its owning finger-holder
// (root) to a finger (target), excluding both endpoints.
type Trail struct {
	ID   ID
	Hops []*identity.PeerID // excludes root and target
}

// Length returns the number of intermediate hops.
func (t *Trail) Length() int {
	return len(t.Hops)
}

// FirstHop returns the trail's first hop (must be a Friend of the root),
// or nil for an empty trail (root and target are directly connected).
func (t *Trail) FirstHop() *identity.PeerID {
	if len(t.Hops) == 0 {
		return nil
	}
	return t.Hops[0]
}

// Contains reports whether p already appears on the trail. The overlay's
// TRAIL_SETUP handler checks the message's hops with it before appending
// itself, and drops the setup instead of appending a peer that is already
// on the trail.
func (t *Trail) Contains(p *identity.PeerID) bool {
	for _, h := range t.Hops {
		if h.Equal(p) {
			return true
		}
	}
	return false
}

// DistinctHops reports whether two trails have different hop sequences
// (used by finger table duplicate-trail rejection, spec §4.3 step 5).
func DistinctHops(a, b *Trail) bool {
	if len(a.Hops) != len(b.Hops) {
		return true
	}
	for i, h := range a.Hops {
		if !h.Equal(b.Hops[i]) {
			return true
		}
	}
	return false
}

// Reversed returns a new Trail with the hop order reversed and a fresh
// random id. Nothing else in this module calls it; the stabilization
// handlers copy trails without reversing them.
func (t *Trail) Reversed() *Trail {
	n := len(t.Hops)
	out := make([]*identity.PeerID, n)
	for i, h := range t.Hops {
		out[n-1-i] = h
	}
	return &Trail{ID: NewID(), Hops: out}
}

// Concat returns a new Trail, with a fresh random id, holding t's hops
// followed by other's hops. Hops of other already present in the result
// are dropped so no peer appears twice. Nothing else in this module calls
// it: the VERIFY_SUCCESSOR originator installs a new successor with the
// returned trail as is.
func (t *Trail) Concat(other *Trail) *Trail {
	out := make([]*identity.PeerID, 0, len(t.Hops)+len(other.Hops))
	out = append(out, t.Hops...)
	for _, h := range other.Hops {
		dup := false
		for _, e := range out {
			if e.Equal(h) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, h)
		}
	}
	return &Trail{ID: NewID(), Hops: out}
}
