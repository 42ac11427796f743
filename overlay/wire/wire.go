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

// Package wire defines the wire-level message types of spec §6 — every
// message begins with {u16 size, u16 type} — and a type registry for
// decoding, replacing the "void *cls" callback-table pattern the spec's
// design notes call out for re-architecture (§9) with a typed dispatch
// table keyed on the message type tag.
package wire

import (
	"fmt"

	"xvine/identity"
	"xvine/overlay/routing"
	"xvine/overlay/trail"
)

// Message type tags.
const (
	TrailSetup = iota + 1
	TrailSetupResult
	TrailRejection
	TrailTeardown
	TrailCompression
	VerifySuccessor
	VerifySuccessorResult
	NotifyNewSuccessor
	AddTrail
	ConnectionBroken
	Put
	Get
	GetResult
)

// Header is embedded in every wire message (grounded on the teacher's
// core/message.go MessageImpl: MsgSize/MsgType with order:"big" tags).
type Header struct {
	MsgSize uint16 `order:"big"`
	MsgType uint16 `order:"big"`
	From    *identity.PeerID
}

// Message is the common interface every wire type satisfies.
type Message interface {
	Type() uint16
	Sender() *identity.PeerID
	String() string
}

func (h *Header) Type() uint16             { return h.MsgType }
func (h *Header) Sender() *identity.PeerID { return h.From }

//----------------------------------------------------------------------

// TrailSetupMsg originates or forwards a trail-construction request.
type TrailSetupMsg struct {
	Header
	IsPredecessor       bool
	DestinationValue    uint64
	Source              *identity.PeerID
	BestKnownDest       *identity.PeerID
	IntermediateTrailID trail.ID
	TrailID             trail.ID
	Hops                []*identity.PeerID
}

func (m *TrailSetupMsg) String() string {
	return fmt.Sprintf("TrailSetup{src=%s dest=%#x hops=%d}", m.Source, m.DestinationValue, len(m.Hops))
}

// TrailSetupResultMsg is the reply propagated back along the reversed hop
// list once a terminus is found.
type TrailSetupResultMsg struct {
	Header
	Finger           *identity.PeerID
	Querying         *identity.PeerID
	IsPredecessor    bool
	DestinationValue uint64
	TrailID          trail.ID
	Hops             []*identity.PeerID
}

func (m *TrailSetupResultMsg) String() string {
	return fmt.Sprintf("TrailSetupResult{finger=%s hops=%d}", m.Finger, len(m.Hops))
}

// TrailRejectionMsg signals routing-table exhaustion at a hop.
type TrailRejectionMsg struct {
	Header
	Source        *identity.PeerID
	Congested     *identity.PeerID
	DestValue     uint64
	IsPredecessor bool
	TrailID       trail.ID
	CongestionNs  uint64
	Hops          []*identity.PeerID
}

func (m *TrailRejectionMsg) String() string {
	return fmt.Sprintf("TrailRejection{congested=%s}", m.Congested)
}

// TrailTeardownMsg is strictly hop-by-hop and idempotent.
type TrailTeardownMsg struct {
	Header
	TrailID   trail.ID
	Direction routing.Direction
}

func (m *TrailTeardownMsg) String() string {
	return fmt.Sprintf("TrailTeardown{dir=%d}", m.Direction)
}

// TrailCompressionMsg shortcuts a trail once a direct-friend shortcut is
// discovered downstream.
type TrailCompressionMsg struct {
	Header
	Source         *identity.PeerID
	NewFirstFriend *identity.PeerID
	TrailID        trail.ID
}

func (m *TrailCompressionMsg) String() string {
	return fmt.Sprintf("TrailCompression{newFirst=%s}", m.NewFirstFriend)
}

// VerifySuccessorMsg asks the current successor to confirm/replace our
// predecessor claim.
type VerifySuccessorMsg struct {
	Header
	Source           *identity.PeerID
	ClaimedSuccessor *identity.PeerID
	TrailID          trail.ID
	Trail            []*identity.PeerID
}

func (m *VerifySuccessorMsg) String() string {
	return fmt.Sprintf("VerifySuccessor{source=%s}", m.Source)
}

// VerifySuccessorResultMsg carries back the successor's current
// predecessor and the trail to reach it.
type VerifySuccessorResultMsg struct {
	Header
	Querying           *identity.PeerID
	SourceSuccessor    *identity.PeerID
	CurrentPredecessor *identity.PeerID
	TrailID            trail.ID
	Direction          routing.Direction
	Trail              []*identity.PeerID
}

func (m *VerifySuccessorResultMsg) String() string {
	return fmt.Sprintf("VerifySuccessorResult{predecessor=%s}", m.CurrentPredecessor)
}

// NotifyNewSuccessorMsg installs routing entries along a newly-discovered
// successor's trail and, at the terminal, re-runs predecessor update.
type NotifyNewSuccessorMsg struct {
	Header
	Source      *identity.PeerID
	NewSuccessor *identity.PeerID
	TrailID     trail.ID
	Trail       []*identity.PeerID
}

func (m *NotifyNewSuccessorMsg) String() string {
	return fmt.Sprintf("NotifyNewSuccessor{new=%s}", m.NewSuccessor)
}

// AddTrailMsg installs a routing entry at an intermediate peer for a trail
// it did not originally take part in constructing (used when a verified
// predecessor's reversed trail is pushed out).
type AddTrailMsg struct {
	Header
	Source      *identity.PeerID
	Destination *identity.PeerID
	TrailID     trail.ID
	Trail       []*identity.PeerID
}

func (m *AddTrailMsg) String() string {
	return fmt.Sprintf("AddTrail{dest=%s}", m.Destination)
}

// ConnectionBrokenMsg is generated toward a trail's root when an
// intermediate peer's downstream link fails.
type ConnectionBrokenMsg struct {
	Header
	CID   trail.ID
	Peer1 *identity.PeerID
	Peer2 *identity.PeerID
}

func (m *ConnectionBrokenMsg) String() string {
	return fmt.Sprintf("ConnectionBroken{%s<->%s}", m.Peer1, m.Peer2)
}

// OptRecordRoute is the PutMsg/GetMsg Options bit requesting that each
// intermediate hop append itself to the accumulated path (spec §4.5 step
// 4). GetMsg's GetPath is always recorded regardless of this bit, since
// GET_RESULT's reverse routing depends on it structurally; only PUT's
// path recording is optional.
const OptRecordRoute uint32 = 1 << 0

// PutMsg carries a key/value insertion along a resolved path.
type PutMsg struct {
	Header
	Options             uint32
	BlockType            uint32
	Replication          uint32
	BestKnownDest        *identity.PeerID
	IntermediateTrailID  trail.ID
	TTL                  uint32
	HopCount             uint32
	PutPath              []*identity.PeerID
	ExpirationNs         uint64
	Key                  []byte
	Payload              []byte
}

func (m *PutMsg) String() string {
	return fmt.Sprintf("Put{key=%x hops=%d}", m.Key, m.HopCount)
}

// GetMsg is symmetric to PutMsg; GetPath accumulates the reverse route.
type GetMsg struct {
	Header
	Options             uint32
	BlockType           uint32
	Replication         uint32
	BestKnownDest       *identity.PeerID
	IntermediateTrailID trail.ID
	TTL                 uint32
	HopCount            uint32
	GetPath             []*identity.PeerID
	Key                 []byte
}

func (m *GetMsg) String() string {
	return fmt.Sprintf("Get{key=%x hops=%d}", m.Key, m.HopCount)
}

// GetResultMsg is routed along the reverse of the accumulated GetPath.
type GetResultMsg struct {
	Header
	BlockType    uint32
	Querying     *identity.PeerID
	ExpirationNs uint64
	Key          []byte
	PutPath      []*identity.PeerID
	GetPath      []*identity.PeerID
	Payload      []byte
}

func (m *GetResultMsg) String() string {
	return fmt.Sprintf("GetResult{key=%x}", m.Key)
}
