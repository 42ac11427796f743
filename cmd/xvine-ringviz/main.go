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

// Command xvine-ringviz draws an SVG snapshot of a network's ring
// layout: every node placed by ring value, friend links as thin grey
// chords and finger links as colored chords. Grounded on the teacher's
// sim/canvas.go SVGCanvas, re-targeted from an interactive simulation
// window to a single static file since a headless overlay daemon has no
// GUI surface to draw into.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	svg "github.com/ajstarks/svgo"

	"xvine/overlay/finger"
	"xvine/sim"
)

func main() {
	var (
		numNodes   int
		fanout     int
		settleSecs int
		out        string
		size       int
	)
	flag.IntVar(&numNodes, "nodes", 24, "number of nodes")
	flag.IntVar(&fanout, "fanout", 3, "bootstrap friends per node")
	flag.IntVar(&settleSecs, "settle", 2, "seconds to let stabilization run before drawing")
	flag.StringVar(&out, "o", "ring.svg", "output SVG file")
	flag.IntVar(&size, "size", 900, "canvas size in pixels")
	flag.Parse()

	cfg := &sim.Config{NumNodes: numNodes, BootstrapFanout: fanout, StoreCapacity: 64}
	net := sim.New(cfg, log.Default())

	ctx, cancel := context.WithCancel(context.Background())
	go net.Run(ctx)
	time.Sleep(time.Duration(settleSecs) * time.Second)
	cancel()

	f, err := os.Create(out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	render(f, net, size)
	fmt.Printf("wrote %s\n", out)
}

func render(w *os.File, net *sim.Network, size int) {
	canvas := svg.New(w)
	canvas.Start(size, size)
	defer canvas.End()

	cx, cy := float64(size)/2, float64(size)/2
	radius := float64(size)/2 - 60

	pos := make(map[string][2]float64, len(net.Nodes))
	for _, n := range net.Nodes {
		frac := float64(n.SelfValue) / float64(math.MaxUint64)
		angle := frac * 2 * math.Pi
		x := cx + radius*math.Cos(angle)
		y := cy + radius*math.Sin(angle)
		pos[n.Self.Key()] = [2]float64{x, y}
	}

	canvas.Circle(int(cx), int(cy), int(radius), "fill:none;stroke:#ddd;stroke-width:1")

	// friend chords first so finger chords draw on top.
	for _, n := range net.Nodes {
		from := pos[n.Self.Key()]
		for _, fr := range n.Friends.All() {
			to, ok := pos[fr.ID.Key()]
			if !ok {
				continue
			}
			canvas.Line(int(from[0]), int(from[1]), int(to[0]), int(to[1]), "stroke:#ccc;stroke-width:1")
		}
	}

	for _, n := range net.Nodes {
		from := pos[n.Self.Key()]
		for _, fg := range n.Fingers.AllPresent() {
			if fg.Kind != finger.KindTrail {
				continue
			}
			to, ok := pos[fg.Identity.Key()]
			if !ok {
				continue
			}
			canvas.Line(int(from[0]), int(from[1]), int(to[0]), int(to[1]), "stroke:#4477aa;stroke-width:1;stroke-opacity:0.5")
		}
	}

	for _, n := range net.Nodes {
		p := pos[n.Self.Key()]
		canvas.Circle(int(p[0]), int(p[1]), 4, "fill:#222;stroke:none")
	}
}
