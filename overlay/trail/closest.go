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

package trail

import (
	"xvine/identity"
	"xvine/overlay/peerid"
)

// Candidate is one peer find_successor considers: self, a friend (no
// trail needed, NextHop is nil), or a finger reached via a trail.
type Candidate struct {
	ID      *identity.PeerID
	Ring    peerid.ID
	NextHop *identity.PeerID // nil when Candidate IS the next hop (a friend)
	ViaTrail *Trail          // non-nil when reached through a finger's trail
}

// ClosestPeer implements find_successor's candidate comparison (spec §4.4
// step 2, factored out of find_successor per the original source's
// Closest_Peer struct — see SPEC_FULL.md Supplemented Features): among a
// list of candidates, pick whichever is nearest ultimateValue under the
// appropriate ring comparison (backward for predecessor lookups, forward
// otherwise). Returns nil if candidates is empty.
func ClosestPeer(candidates []Candidate, ultimateValue peerid.ID, isPredecessor bool) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		var winner peerid.ID
		if isPredecessor {
			winner = peerid.ClosestBackward(best.Ring, c.Ring, ultimateValue)
		} else {
			winner = peerid.ClosestForward(best.Ring, c.Ring, ultimateValue)
		}
		if winner == c.Ring && winner != best.Ring {
			best = c
		}
	}
	return &best
}
