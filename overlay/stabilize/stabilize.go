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

// Package stabilize implements the periodic tick decisions of spec §4.4's
// Stabilization: which finger slot to probe next, and whether a
// VERIFY_SUCCESSOR_RESULT should replace the current successor/
// predecessor. It holds no network or table state of its own — every
// function is pure, taking the relevant inputs and returning what the
// overlay package (which owns the finger/friend/routing tables and the
// wire connection) should do next. This mirrors the teacher's
// core/node.go stabilization ticker while generalizing its flood-gossip
// refresh to the finger-table walk of the X-Vine design.
package stabilize

import (
	"xvine/overlay/peerid"
)

// NextProbe is the outcome of one stabilization tick: which table index to
// probe and the ring value a TRAIL_SETUP for that slot should target.
type NextProbe struct {
	Index    int
	Target   peerid.ID
	IsPred   bool
}

// FingerTarget computes the target ring value for probing table index i,
// relative to selfValue. Slot peerid.PredecessorFingerIndex targets the
// predecessor search (is_predecessor=1); all others target
// self + 2^i (spec §4.3).
func FingerTarget(selfValue peerid.ID, i int) peerid.ID {
	return peerid.FingerTarget(selfValue, i)
}

// Tick decides the next slot to probe, given the search pointer a finger
// table currently reports (finger.Table.SearchIndex()). It always probes
// the slot the pointer currently names, then the caller's finger.Add will
// advance the pointer on a successful install.
func Tick(selfValue peerid.ID, searchIndex int) NextProbe {
	return NextProbe{
		Index:  searchIndex,
		Target: FingerTarget(selfValue, searchIndex),
		IsPred: searchIndex == peerid.PredecessorFingerIndex,
	}
}

// VerifyOutcome is the decision produced by EvaluateVerifyResult.
type VerifyOutcome int

const (
	// KeepSuccessor: our successor's predecessor is still us (or unknown);
	// nothing to do.
	KeepSuccessor VerifyOutcome = iota
	// AdoptPredecessorAsSuccessor: the successor reports a predecessor
	// that is not us and lies between us and the current successor —
	// adopt it as our new, closer successor.
	AdoptPredecessorAsSuccessor
	// NotifySuccessorOfUs: the successor's reported predecessor is
	// neither us nor the successor and lies outside (us, successor) —
	// nothing to adopt. The overlay's VERIFY_SUCCESSOR_RESULT handler
	// takes no action on this outcome; it sends no NOTIFY_NEW_SUCCESSOR.
	// (A reported predecessor equal to us yields KeepSuccessor.)
	NotifySuccessorOfUs
)

// EvaluateVerifyResult implements spec §4.4's VERIFY_SUCCESSOR_RESULT
// handling: given our own ring value, our current successor's ring value,
// and the predecessor that successor reports, decide whether that
// reported predecessor should become our new successor.
func EvaluateVerifyResult(selfValue, currentSuccessor, reportedPredecessor peerid.ID) VerifyOutcome {
	if reportedPredecessor == selfValue || reportedPredecessor == currentSuccessor {
		return KeepSuccessor
	}
	if peerid.InForwardRange(reportedPredecessor, selfValue, currentSuccessor) {
		return AdoptPredecessorAsSuccessor
	}
	return NotifySuccessorOfUs
}

// AffectedSlots returns, in order, the finger slot indices in ids that
// are marked in brokenIndexSet (slots referencing a trail that just
// broke, which a caller can Remove so the next Tick rediscovers them).
func AffectedSlots(ids []int, brokenIndexSet map[int]bool) []int {
	out := make([]int, 0, len(ids))
	for _, i := range ids {
		if brokenIndexSet[i] {
			out = append(out, i)
		}
	}
	return out
}
