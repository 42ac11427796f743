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

// Package identity provides the peer identity collaborator named in the
// core specification §1(a): an ordered peer-id hashing primitive that
// produces a 512-bit identifier from a node's long-term signing key. The
// core never sees key material directly, only the resulting PeerID.
package identity

import (
	"encoding/base32"
	"encoding/binary"

	"github.com/bfix/gospel/crypto/ed25519"
	"golang.org/x/crypto/blake2b"
)

// PeerID is the 512-bit identifier of a node in the overlay. It is derived
// from the node's Ed25519 public key by salted BLAKE2b-512 hashing, not the
// raw key bytes, so the hashing primitive required by the core spec is a
// distinct, swappable step from the signature scheme itself.
type PeerID struct {
	Data []byte `size:"(Size)" init:"Init"` // 64-byte hash digest

	// transient
	pub   *ed25519.PublicKey
	tag   uint32
	str32 string
}

// idSalt separates peer-id hashing from any other use of BLAKE2b in the
// wider framework (signatures, content hashing); it is a domain separator,
// not a secret.
var idSalt = []byte("xvine/peerid/v1")

// NewPeerID derives a PeerID from an Ed25519 public key.
func NewPeerID(pub *ed25519.PublicKey) *PeerID {
	h, err := blake2b.New512(idSalt)
	if err != nil {
		// blake2b.New512 only fails for an over-long key; idSalt is fixed
		// and well under the limit, so this is unreachable in practice.
		panic(err)
	}
	h.Write(pub.Bytes())
	p := &PeerID{Data: h.Sum(nil), pub: pub}
	p.Init()
	return p
}

// PeerIDFromBytes rebuilds a PeerID from its binary representation, e.g.
// after wire decoding. The public key cannot be recovered from the hash, so
// pub is nil; this form is only used for comparison and routing, not for
// verifying signatures.
func PeerIDFromBytes(data []byte) *PeerID {
	p := new(PeerID)
	p.Data = make([]byte, p.Size())
	copy(p.Data, data)
	p.Init()
	return p
}

// Init derives the transient, cached fields from Data.
func (p *PeerID) Init() {
	if p == nil {
		return
	}
	p.tag = binary.BigEndian.Uint32(p.Data[:4])
	p.str32 = base32.StdEncoding.EncodeToString(p.Data)[:8]
}

// Size of a PeerID in its binary representation (512 bits).
func (p *PeerID) Size() uint {
	return 64
}

// Tag returns a short, non-cryptographic identifier useful for logging and
// hash-bucketing by callers that don't need the full id.
func (p *PeerID) Tag() uint32 {
	if p == nil {
		return 0
	}
	return p.tag
}

// Projection64 returns the 64-bit ring projection used by ring arithmetic:
// the leading 8 bytes of the id, host-endian as specified, exposed here
// big-endian and left to the caller (overlay/peerid) to interpret per its
// own ring convention.
func (p *PeerID) Projection64() uint64 {
	return binary.BigEndian.Uint64(p.Data[:8])
}

// Key returns a string suitable for use as a map key.
func (p *PeerID) Key() string {
	if p == nil {
		return ""
	}
	return string(p.Data)
}

// String returns a short, human-readable (base32) representation.
func (p *PeerID) String() string {
	if p == nil {
		return "(none)"
	}
	return p.str32
}

// Equal reports whether two PeerIDs denote the same node.
func (p *PeerID) Equal(q *PeerID) bool {
	if p == nil || q == nil {
		return p == q
	}
	if len(p.Data) != len(q.Data) {
		return false
	}
	for i, b := range p.Data {
		if q.Data[i] != b {
			return false
		}
	}
	return true
}

// Bytes returns a copy of the binary representation.
func (p *PeerID) Bytes() []byte {
	out := make([]byte, len(p.Data))
	copy(out, p.Data)
	return out
}

//----------------------------------------------------------------------

// PrivateKey is a node's long-term Ed25519 signing key, from which its
// PeerID is derived. Signing/verification themselves are out of this
// core's scope; only key generation and PeerID derivation live here.
type PrivateKey struct {
	prv *ed25519.PrivateKey
}

// NewPrivateKey generates a fresh Ed25519 keypair for a new node.
func NewPrivateKey() *PrivateKey {
	_, prv := ed25519.NewKeypair()
	return &PrivateKey{prv: prv}
}

// PeerID returns the node's identifier derived from the public half of the
// key.
func (k *PrivateKey) PeerID() *PeerID {
	return NewPeerID(k.prv.Public())
}
