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

package transport

import (
	"context"
	"fmt"
	"sync"

	"xvine/identity"
)

// Bus is an in-process transport for tests and the simulator: every
// registered node can dial every other by PeerID, frames are delivered
// over buffered Go channels rather than a socket. Grounded on the
// teacher's in-memory sim network, generalized to the Link/PeerEvents
// split so the simulator and a real websocket transport are
// interchangeable from the overlay package's point of view.
type Bus struct {
	mu    sync.Mutex
	nodes map[string]*busEndpoint
}

// NewBus creates an empty in-process transport fabric.
func NewBus() *Bus {
	return &Bus{nodes: make(map[string]*busEndpoint)}
}

type busEndpoint struct {
	id           *identity.PeerID
	inbound      chan Inbound
	connected    chan Link
	disconnected chan *identity.PeerID
}

// Register attaches a node to the bus and returns its PeerEvents feed.
func (b *Bus) Register(id *identity.PeerID) PeerEvents {
	b.mu.Lock()
	defer b.mu.Unlock()
	ep := &busEndpoint{
		id:           id,
		inbound:      make(chan Inbound, 256),
		connected:    make(chan Link, 16),
		disconnected: make(chan *identity.PeerID, 16),
	}
	b.nodes[id.Key()] = ep
	return ep
}

func (e *busEndpoint) Inbound() <-chan Inbound                 { return e.inbound }
func (e *busEndpoint) Connected() <-chan Link                  { return e.connected }
func (e *busEndpoint) Disconnected() <-chan *identity.PeerID   { return e.disconnected }

// Dial establishes a bidirectional in-process link between from and the
// peer named by addr (its PeerID key). Both sides observe a Connected
// event.
func (b *Bus) Dial(ctx context.Context, from *identity.PeerID, addr string) (Link, error) {
	b.mu.Lock()
	target, ok := b.nodes[addr]
	source, sok := b.nodes[from.Key()]
	b.mu.Unlock()
	if !ok || !sok {
		return nil, fmt.Errorf("transport: unknown bus peer %q", addr)
	}

	fwd := &busLink{bus: b, from: from, to: target.id}
	rev := &busLink{bus: b, from: target.id, to: from}

	select {
	case target.connected <- rev:
	default:
	}
	select {
	case source.connected <- fwd:
	default:
	}
	return fwd, nil
}

// busLink is a Link bound to one direction of a Bus connection.
type busLink struct {
	bus  *Bus
	from *identity.PeerID
	to   *identity.PeerID
}

func (l *busLink) Peer() *identity.PeerID { return l.to }

func (l *busLink) Send(ctx context.Context, frame []byte) error {
	l.bus.mu.Lock()
	target, ok := l.bus.nodes[l.to.Key()]
	l.bus.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: peer %s no longer on bus", l.to)
	}
	msg := Inbound{From: l.from, Frame: frame}
	select {
	case target.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *busLink) Close() error {
	l.bus.mu.Lock()
	target, ok := l.bus.nodes[l.to.Key()]
	source, sok := l.bus.nodes[l.from.Key()]
	l.bus.mu.Unlock()
	if ok {
		select {
		case target.disconnected <- l.from:
		default:
		}
	}
	if sok {
		select {
		case source.disconnected <- l.to:
		default:
		}
	}
	return nil
}
