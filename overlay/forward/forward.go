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

// Package forward implements the PUT/GET/GET_RESULT decision logic of
// spec §4.5: expiration randomization, replication fan-out sizing, and
// reverse-path lookup for GET_RESULT. Like stabilize, it holds no state
// of its own — it is called by the overlay package, which owns the
// finger/friend tables and actually emits wire messages.
package forward

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"time"

	"golang.org/x/crypto/blake2b"

	"xvine/identity"
)

// BlockTypeGeneric is the only block type in this module without a
// content-derived key: it carries caller-chosen keys (namespace/arbitrary
// storage), so VerifyBlockIntegrity always accepts it.
const BlockTypeGeneric = 0

// CanonicalKey computes the datastore key a block of the given type must
// hash to, per spec §4.5 step 1's "block-type module computes a canonical
// key from the payload" integrity check: blake2b-256 of the block type tag
// followed by the payload, reusing the same hash primitive xvine/identity
// uses for deriving PeerIDs rather than introducing a second one.
func CanonicalKey(blockType uint32, payload []byte) []byte {
	h, _ := blake2b.New256(nil)
	var tb [4]byte
	binary.BigEndian.PutUint32(tb[:], blockType)
	_, _ = h.Write(tb[:])
	_, _ = h.Write(payload)
	return h.Sum(nil)
}

// VerifyBlockIntegrity reports whether key is valid for (blockType,
// payload): BlockTypeGeneric passes unconditionally, every other block
// type must satisfy key == CanonicalKey(blockType, payload).
func VerifyBlockIntegrity(blockType uint32, key, payload []byte) bool {
	if blockType == BlockTypeGeneric {
		return true
	}
	return bytes.Equal(CanonicalKey(blockType, payload), key)
}

// ExpireHop applies spec §4.5 step 3's TTL/hop-count accounting at a
// forwarding hop: decrements ttl and reports whether the message must be
// dropped (ttl exhausted or hopCount at or past the configured cap).
func ExpireHop(ttl, hopCount, maxHops uint32) (remaining uint32, drop bool) {
	if ttl == 0 {
		return 0, true
	}
	remaining = ttl - 1
	if remaining == 0 || hopCount >= maxHops {
		return remaining, true
	}
	return remaining, false
}

// RandomizeExpiration implements spec §4.8's anti-timing-correlation
// formula: base + rand(0, base mod maxMigrationExp). Every replica of a
// PUT along its replication fan-out gets an independently randomized
// expiration so observing expiry times cannot correlate replicas.
func RandomizeExpiration(base time.Time, baseTTL, maxMigrationExp time.Duration) time.Time {
	if maxMigrationExp <= 0 {
		return base.Add(baseTTL)
	}
	mod := baseTTL % maxMigrationExp
	if mod <= 0 {
		return base.Add(baseTTL)
	}
	jitter := time.Duration(rand.Int63n(int64(mod)))
	return base.Add(baseTTL + jitter)
}

// PathPosition returns the index of self within path, or -1 if absent.
// Used by GET_RESULT forwarding to find where to step next when walking
// the accumulated get_path in reverse (spec §4.5).
func PathPosition(path []*identity.PeerID, self *identity.PeerID) int {
	for i, p := range path {
		if p.Equal(self) {
			return i
		}
	}
	return -1
}

// NextOnReversePath returns the peer GET_RESULT should be forwarded to
// next: the entry immediately before self's own position in path (path
// was accumulated root-to-destination by the original GET). Returns nil
// once self is path[0], meaning the original querying peer is reached.
func NextOnReversePath(path []*identity.PeerID, self *identity.PeerID) *identity.PeerID {
	pos := PathPosition(path, self)
	if pos <= 0 {
		return nil
	}
	return path[pos-1]
}

// AppendHop appends self to path if it is not already the last entry,
// matching the no-duplicate-append discipline trails enforce (spec §9
// design note, carried into PUT/GET path accumulation for consistency).
func AppendHop(path []*identity.PeerID, self *identity.PeerID) []*identity.PeerID {
	if len(path) > 0 && path[len(path)-1].Equal(self) {
		return path
	}
	out := make([]*identity.PeerID, len(path), len(path)+1)
	copy(out, path)
	return append(out, self)
}

// ReplicationTargets bounds how many distinct find_successor destinations
// a PUT should additionally be sent to beyond its primary forward hop,
// per spec §4.5's Replication field: min(replication-1, available fingers).
func ReplicationTargets(replication uint32, availableFingers int) int {
	want := int(replication) - 1
	if want < 0 {
		want = 0
	}
	if want > availableFingers {
		want = availableFingers
	}
	return want
}
