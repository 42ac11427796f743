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

// Package peerid implements ring arithmetic over Z/2^64, the 64-bit
// projection of a full PeerID used for finger-table indexing and
// closeness comparisons.
package peerid

// ID is the 64-bit ring projection of a PeerID (the identifier's leading
// 64 bits). Arithmetic on it wraps modulo 2^64 by ordinary uint64
// overflow.
type ID uint64

// PredecessorFingerIndex is the table index reserved for the predecessor
// (as opposed to indices 0..63, which track successors at increasing
// ring distances).
const PredecessorFingerIndex = 64

// NumFingers is the total number of finger slots: 64 successor fingers
// plus 1 predecessor finger.
const NumFingers = 65

// FingerTarget returns the target ring value for finger-table index i,
// relative to self. For i in [0,63] this is self + 2^i; for
// PredecessorFingerIndex it is self - 1.
func FingerTarget(self ID, i int) ID {
	if i == PredecessorFingerIndex {
		return self - 1
	}
	return self + (1 << uint(i))
}

// fwdDist returns the number of steps walking forward (clockwise, in the
// direction of increasing ring value, wrapping through 2^64-1 back to 0)
// starting AT from and stopping AT to.
func fwdDist(from, to ID) uint64 {
	return uint64(to - from)
}

// ForwardDistance exports fwdDist for callers outside this package that
// need to rank candidates by ring proximity, such as picking replication
// targets in forward distance order from a destination value.
func ForwardDistance(from, to ID) uint64 {
	return fwdDist(from, to)
}

// ClosestForward returns whichever of a, b is the better approximation of
// "the first node reached walking forward starting at target" — i.e. the
// candidate with the smaller forward distance FROM target, which is the
// successor-of-target relation a Chord-style finger table slot wants. An
// exact match is returned immediately. This is a total function over
// Z/2^64: every ordering of a, b, target (including wrap-around) reduces
// to a distance comparison that itself wraps consistently by unsigned
// subtraction.
func ClosestForward(a, b, target ID) ID {
	if a == target {
		return a
	}
	if b == target {
		return b
	}
	da := fwdDist(target, a)
	db := fwdDist(target, b)
	if da <= db {
		return a
	}
	return b
}

// ClosestBackward returns whichever of a, b is the better approximation of
// "the first node reached walking backward starting at target" — the
// predecessor-of-target relation used for finger table index 64. An exact
// match is returned immediately.
func ClosestBackward(a, b, target ID) ID {
	if a == target {
		return a
	}
	if b == target {
		return b
	}
	da := fwdDist(a, target)
	db := fwdDist(b, target)
	if da <= db {
		return a
	}
	return b
}

// InForwardRange reports whether v lies strictly between lo and hi when
// walking forward from lo to hi (wrapping through 2^64-1 if hi < lo).
// Used by stabilization to decide "is this candidate strictly between my
// predecessor and me".
func InForwardRange(v, lo, hi ID) bool {
	if lo == hi {
		// degenerate single-point ring: nothing is strictly between.
		return false
	}
	if lo < hi {
		return v > lo && v < hi
	}
	// wraps around 2^64-1 -> 0
	return v > lo || v < hi
}
