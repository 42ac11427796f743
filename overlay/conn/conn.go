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

// Package conn implements the per-friend link-layer Connection state
// machine (§5 of the core spec): handshake (NEW -> SENT -> ACK -> READY),
// wrap-safe 32-bit PID flow control, keepalive/POLL scheduling and
// eager-ACK thresholds. It is independent of the overlay routing logic
// (friend/finger/trail) — those packages assume a Connection is READY and
// leave transport-level reliability entirely to this one, mirroring the
// teacher's separation between core/node.go (overlay logic) and
// core/network.go (link handling).
package conn

import "time"

// State is a Connection's handshake phase.
type State int

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateReady
	StateDestroy
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACK"
	case StateReady:
		return "READY"
	case StateDestroy:
		return "DESTROY"
	default:
		return "?"
	}
}

// pidLess reports whether a precedes b under 32-bit wrap-safe comparison:
// (b-a) mod 2^32 < 2^31, with a != b, means b is ahead of a.
func pidLess(a, b uint32) bool {
	return uint32(b-a) < 1<<31 && a != b
}

// Connection tracks one link's handshake and flow-control state. All
// fields are owned by the single event-loop goroutine that processes this
// peer's messages; no internal locking.
type Connection struct {
	State State

	LastPidSent uint32
	LastPidRecv uint32
	LastAckSent uint32
	LastAckRecv uint32

	LastActivity  time.Time
	PollBackoff   time.Duration
	PollBackoffMax time.Duration
}

// New creates a Connection in the NEW state.
func New() *Connection {
	return &Connection{
		State:         StateNew,
		PollBackoff:   time.Second,
		PollBackoffMax: time.Minute,
	}
}

// OnHandshakeSent transitions NEW -> SENT.
func (c *Connection) OnHandshakeSent() {
	if c.State == StateNew {
		c.State = StateSent
	}
}

// OnHandshakeAck transitions SENT -> ACK, ACK -> READY; READY stays READY.
func (c *Connection) OnHandshakeAck() {
	switch c.State {
	case StateSent:
		c.State = StateAcked
	case StateAcked, StateReady:
		c.State = StateReady
	}
}

// OnPeerReady transitions ACK -> READY once the peer confirms its own
// side of the handshake (symmetric to OnHandshakeAck, driven by the
// remote's first data PID rather than a dedicated ack).
func (c *Connection) OnPeerReady() {
	if c.State == StateAcked || c.State == StateSent {
		c.State = StateReady
	}
}

// Ready reports whether the connection may carry overlay traffic.
func (c *Connection) Ready() bool {
	return c.State == StateReady
}

// Destroy marks the connection as gone; the friend/routing/finger cleanup
// this triggers is orchestrated by the overlay package.
func (c *Connection) Destroy() {
	c.State = StateDestroy
}

// CanSend reports whether flow control allows sending another data
// message: the last PID sent must still be behind the last one acked,
// wrap-safely.
func (c *Connection) CanSend() bool {
	return c.State == StateReady && pidLess(c.LastPidSent, c.LastAckRecv)
}

// OnSend records that a message with the next PID was sent.
func (c *Connection) OnSend() uint32 {
	c.LastPidSent++
	return c.LastPidSent
}

// OnReceive records an inbound message's PID, rejecting stale or
// duplicate ones (wrap-safe). recv must be strictly ahead of
// LastPidRecv to be accepted.
func (c *Connection) OnReceive(pid uint32) (accept bool) {
	if c.LastPidRecv != 0 && !pidLess(c.LastPidRecv, pid) {
		return false
	}
	c.LastPidRecv = pid
	c.LastActivity = time.Now()
	return true
}

// OnAck records an inbound ACK for the given PID.
func (c *Connection) OnAck(pid uint32) {
	if pidLess(c.LastAckRecv, pid) || c.LastAckRecv == 0 {
		c.LastAckRecv = pid
	}
}

// NeedsEagerAck reports whether an immediate ACK should be sent rather
// than waiting for the next keepalive, per spec §5: last_ack_sent trails
// last_pid_recv by more than 3.
func (c *Connection) NeedsEagerAck() bool {
	return uint32(c.LastPidRecv-c.LastAckSent) > 3
}

// OnAckSent records that an ACK up to pid was transmitted.
func (c *Connection) OnAckSent(pid uint32) {
	c.LastAckSent = pid
}

// NeedsKeepalive reports whether refresh has elapsed since the last
// observed activity and a POLL should be sent.
func (c *Connection) NeedsKeepalive(now time.Time, refresh time.Duration) bool {
	return now.Sub(c.LastActivity) >= refresh
}

// Expired reports whether the connection should be torn down outright:
// four refresh intervals of total silence (spec §5 keepalive timeout).
func (c *Connection) Expired(now time.Time, refresh time.Duration) bool {
	return now.Sub(c.LastActivity) >= 4*refresh
}

// OnPollSent doubles the POLL backoff, capped at PollBackoffMax.
func (c *Connection) OnPollSent() time.Duration {
	cur := c.PollBackoff
	c.PollBackoff *= 2
	if c.PollBackoff > c.PollBackoffMax {
		c.PollBackoff = c.PollBackoffMax
	}
	return cur
}

// ResetPollBackoff restores the initial POLL interval once activity
// resumes.
func (c *Connection) ResetPollBackoff(initial time.Duration) {
	c.PollBackoff = initial
}
