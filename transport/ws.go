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
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"xvine/identity"
)

// upgrader is shared by every inbound WSLink; CheckOrigin is left to the
// caller's http.Handler wrapping (overlay nodes are expected to sit
// behind their own auth/ACL layer, not rely on browser origin checks).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSServer accepts inbound friend connections over websocket and feeds
// them into a PeerEvents stream, for peers reachable over plain TCP/HTTP
// rather than the in-process Bus.
type WSServer struct {
	self         *identity.PeerID
	inbound      chan Inbound
	connected    chan Link
	disconnected chan *identity.PeerID
}

// NewWSServer creates a websocket-backed PeerEvents source for self.
func NewWSServer(self *identity.PeerID) *WSServer {
	return &WSServer{
		self:         self,
		inbound:      make(chan Inbound, 256),
		connected:    make(chan Link, 16),
		disconnected: make(chan *identity.PeerID, 16),
	}
}

func (s *WSServer) Inbound() <-chan Inbound               { return s.inbound }
func (s *WSServer) Connected() <-chan Link                { return s.connected }
func (s *WSServer) Disconnected() <-chan *identity.PeerID { return s.disconnected }

// ServeHTTP upgrades an incoming request to a websocket connection and
// registers the resulting Link, keyed by the remote peer's announced
// identity in the handshake query parameter "peer" (resolved by the
// caller into an *identity.PeerID before the link is usable for sends;
// here we accept it pre-resolved to keep this package free of the wire
// codec's decode path).
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request, remote *identity.PeerID) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	link := newWSLink(c, remote, s.inbound, s.disconnected)
	select {
	case s.connected <- link:
	default:
	}
	go link.readLoop()
}

// WSDialer dials outbound websocket connections.
type WSDialer struct {
	self         *identity.PeerID
	inbound      chan Inbound
	disconnected chan *identity.PeerID
}

// NewWSDialer creates a dialer that feeds received frames into inbound.
func NewWSDialer(self *identity.PeerID, inbound chan Inbound, disconnected chan *identity.PeerID) *WSDialer {
	return &WSDialer{self: self, inbound: inbound, disconnected: disconnected}
}

// Dial opens a websocket connection to addr (a ws:// or wss:// URL).
func (d *WSDialer) Dial(ctx context.Context, addr string) (Link, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	link := newWSLink(c, nil, d.inbound, d.disconnected)
	go link.readLoop()
	return link, nil
}

// wsLink implements Link over a single *websocket.Conn.
type wsLink struct {
	conn         *websocket.Conn
	peer         *identity.PeerID
	inbound      chan<- Inbound
	disconnected chan<- *identity.PeerID
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

func newWSLink(c *websocket.Conn, peer *identity.PeerID, inbound chan<- Inbound, disconnected chan<- *identity.PeerID) *wsLink {
	return &wsLink{conn: c, peer: peer, inbound: inbound, disconnected: disconnected}
}

func (l *wsLink) Peer() *identity.PeerID { return l.peer }

func (l *wsLink) Send(ctx context.Context, frame []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (l *wsLink) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.conn.Close()
		if l.disconnected != nil && l.peer != nil {
			select {
			case l.disconnected <- l.peer:
			default:
			}
		}
	})
	return err
}

func (l *wsLink) readLoop() {
	defer l.Close()
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case l.inbound <- Inbound{From: l.peer, Frame: data}:
		default:
			// inbound queue saturated: drop, matching the bounded-queue
			// philosophy of the friend send queues rather than blocking
			// the read loop indefinitely.
		}
	}
}
