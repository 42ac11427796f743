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

// Package sim runs a multi-node in-process X-Vine network over
// transport.Bus, for development and the xvine-sim CLI. Grounded on the
// teacher's sim package (environment/network/node/config split), adapted
// from its flood-gossip coverage model to trail-routed ring membership:
// "coverage" here means every node's finger table has converged rather
// than every node having heard every beacon.
package sim

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"xvine/identity"
	"xvine/overlay"
	"xvine/store"
	"xvine/transport"
)

// Config describes one simulation run. JSON-tagged to match the
// teacher's sim/config.go Cfg/ReadConfig convention.
type Config struct {
	NumNodes      int    `json:"numNodes"`
	BootstrapFanout int  `json:"bootstrapFanout"` // friends each node dials at start
	StoreCapacity int    `json:"storeCapacity"`
}

// DefaultConfig returns a small but non-trivial run.
func DefaultConfig() *Config {
	return &Config{NumNodes: 16, BootstrapFanout: 3, StoreCapacity: 4096}
}

// Network is a running in-process X-Vine simulation.
type Network struct {
	RunID  uuid.UUID
	Bus    *transport.Bus
	Nodes  []*overlay.Node
	Config *Config

	cancel  context.CancelFunc
	running context.Context
}

// New builds cfg.NumNodes nodes wired to a shared transport.Bus, each
// initially isolated (no friends), and has each node i dial the next
// cfg.BootstrapFanout nodes by index ((i+1)%N, (i+2)%N, ...) as friend
// links to bootstrap ring membership.
func New(cfg *Config, logger *log.Logger) *Network {
	bus := transport.NewBus()
	net := &Network{RunID: uuid.New(), Bus: bus, Config: cfg}

	keys := make([]*identity.PrivateKey, cfg.NumNodes)
	ids := make([]*identity.PeerID, cfg.NumNodes)
	for i := range keys {
		keys[i] = identity.NewPrivateKey()
		ids[i] = keys[i].PeerID()
	}

	net.Nodes = make([]*overlay.Node, cfg.NumNodes)
	for i, key := range keys {
		events := bus.Register(ids[i])
		st := store.NewMemory(cfg.StoreCapacity)
		net.Nodes[i] = overlay.NewNode(key, overlay.DefaultConfig(), st, events, nil, logger)
	}

	for i, n := range net.Nodes {
		for f := 0; f < cfg.BootstrapFanout && f < cfg.NumNodes-1; f++ {
			target := (i + f + 1) % cfg.NumNodes
			_, _ = bus.Dial(context.Background(), n.Self, ids[target].Key())
		}
	}
	return net
}

// Run starts every node's event loop and blocks until ctx is cancelled.
func (net *Network) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	net.cancel = cancel
	net.running = ctx
	done := make(chan struct{}, len(net.Nodes))
	for _, n := range net.Nodes {
		go net.runNode(ctx, n, done)
	}
	<-ctx.Done()
	for range net.Nodes {
		<-done
	}
}

func (net *Network) runNode(ctx context.Context, n *overlay.Node, done chan struct{}) {
	n.Run(ctx)
	if done != nil {
		done <- struct{}{}
	}
}

// Stop cancels a running network.
func (net *Network) Stop() {
	if net.cancel != nil {
		net.cancel()
	}
}

// Join adds a fresh node to a running network, bootstrapping it by
// dialing fanout existing members — the churn model's join side.
func (net *Network) Join(fanout int) *overlay.Node {
	priv := identity.NewPrivateKey()
	self := priv.PeerID()
	events := net.Bus.Register(self)
	st := store.NewMemory(net.Config.StoreCapacity)
	n := overlay.NewNode(priv, overlay.DefaultConfig(), st, events, nil, nil)
	net.Nodes = append(net.Nodes, n)

	for i := 0; i < fanout && i < len(net.Nodes)-1; i++ {
		target := net.Nodes[i]
		_, _ = net.Bus.Dial(context.Background(), self, target.Self.Key())
	}
	if net.running != nil {
		go net.runNode(net.running, n, nil)
	}
	return n
}

// Leave removes node i from net.Nodes — the churn model's leave side.
// It does not close the node's bus links or stop its event loop, so its
// peers receive no Disconnected event and keep their trails through it.
func (net *Network) Leave(i int) {
	if i < 0 || i >= len(net.Nodes) {
		return
	}
	net.Nodes = append(net.Nodes[:i], net.Nodes[i+1:]...)
}

// Inject submits a client-originated PUT on node i.
func (net *Network) Inject(ctx context.Context, i int, key, payload []byte, ttl time.Duration) error {
	return net.Nodes[i].Put(ctx, key, payload, ttl)
}

// Fetch submits a client-originated GET on node i; the result surfaces
// asynchronously through that node's Listeners (overlay.EvGetResult).
func (net *Network) Fetch(ctx context.Context, i int, key []byte) error {
	return net.Nodes[i].Get(ctx, key)
}

// RoutingReport summarizes per-node routing/finger table occupancy, used
// by the CLI's final report and by tests asserting convergence.
type RoutingReport struct {
	Peer         string
	FriendCount  int
	FingerCount  int
	RoutingCount int
}

// Report snapshots every node's table sizes.
func (net *Network) Report() []RoutingReport {
	out := make([]RoutingReport, 0, len(net.Nodes))
	for _, n := range net.Nodes {
		out = append(out, RoutingReport{
			Peer:         n.Self.String(),
			FriendCount:  n.Friends.Len(),
			FingerCount:  len(n.Fingers.AllPresent()),
			RoutingCount: n.Routing.Len(),
		})
	}
	return out
}

// String renders a RoutingReport line, used by the CLI.
func (r RoutingReport) String() string {
	return fmt.Sprintf("%s friends=%d fingers=%d routing=%d", r.Peer, r.FriendCount, r.FingerCount, r.RoutingCount)
}
