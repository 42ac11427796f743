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

// Package transport defines the Link collaborator boundary the overlay
// package sends/receives raw frames through, generalizing the teacher's
// core/network.go Envelope/Transport split: the overlay logic never
// touches a socket directly, only this interface.
package transport

import (
	"context"

	"xvine/identity"
)

// Link is a single outbound connection to a friend. Frame is a complete
// wire.Encode()-produced byte slice; Link never interprets it.
type Link interface {
	Peer() *identity.PeerID
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// Inbound is a frame received from a peer, handed to the overlay event
// loop for decoding and dispatch.
type Inbound struct {
	From  *identity.PeerID
	Frame []byte
}

// PeerEvents is how a transport implementation tells the overlay package
// about link lifecycle: new inbound frames, a peer connecting, or a link
// going down. Grounded on the teacher's core/node.go OnConnect/OnMessage
// callback pair, generalized into one channel-oriented interface so
// multiple transport implementations (in-process, websocket) can share a
// single consumer loop.
type PeerEvents interface {
	// Inbound delivers every frame received on any currently open link.
	Inbound() <-chan Inbound
	// Connected delivers a Link each time a new peer becomes reachable.
	Connected() <-chan Link
	// Disconnected delivers a peer id each time a link is lost.
	Disconnected() <-chan *identity.PeerID
}

// Dialer opens a new Link to a peer at addr, in whatever form the
// concrete transport expects (in-process node name, ws:// URL, ...).
type Dialer interface {
	Dial(ctx context.Context, addr string) (Link, error)
}
