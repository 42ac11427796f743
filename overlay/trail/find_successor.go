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

// Hop describes where find_successor should send a TRAIL_SETUP (or a PUT/
// GET) next: either directly to a Friend or self (ViaTrail and NextHop
// both nil; Peer is the next hop) or along a finger's trail (NextHop is
// the trail's first hop).
type Hop struct {
	Peer     *identity.PeerID
	NextHop  *identity.PeerID
	ViaTrail *Trail
}

// FindSuccessor implements spec §4.4's find_successor: given the local
// node (self) and every known candidate (friends and fingers, supplied by
// the caller since this package has no access to those tables), pick the
// peer closest to destinationValue. If self itself is the closest,
// FindSuccessor reports that by returning a Hop whose Peer equals selfID
// and whose NextHop is nil — the caller is the destination.
func FindSuccessor(selfID *identity.PeerID, selfValue peerid.ID, candidates []Candidate, destinationValue peerid.ID, isPredecessor bool) Hop {
	all := make([]Candidate, 0, len(candidates)+1)
	all = append(all, Candidate{ID: selfID, Ring: selfValue})
	all = append(all, candidates...)

	best := ClosestPeer(all, destinationValue, isPredecessor)
	if best == nil || best.ID.Equal(selfID) {
		return Hop{Peer: selfID}
	}
	return Hop{Peer: best.ID, NextHop: best.NextHop, ViaTrail: best.ViaTrail}
}
