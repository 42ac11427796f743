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

// Command xvine-sim drives the in-process X-Vine network simulator.
// Grounded on the teacher's root main.go (build network, run, poll,
// report), generalized from flag to cobra subcommands now that the
// driver has more than one verb: run, churn and inject.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"xvine/sim"
)

var (
	numNodes      int
	bootstrapFan  int
	storeCapacity int
	runSeconds    int
)

func main() {
	root := &cobra.Command{
		Use:   "xvine-sim",
		Short: "Run an in-process X-Vine overlay simulation",
	}
	root.PersistentFlags().IntVar(&numNodes, "nodes", 16, "number of nodes")
	root.PersistentFlags().IntVar(&bootstrapFan, "fanout", 3, "bootstrap friends dialed per node")
	root.PersistentFlags().IntVar(&storeCapacity, "store-capacity", 4096, "per-node datastore capacity")

	root.AddCommand(runCmd(), churnCmd(), injectCmd())
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func baseConfig() *sim.Config {
	return &sim.Config{NumNodes: numNodes, BootstrapFanout: bootstrapFan, StoreCapacity: storeCapacity}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build a network and run it until interrupted or --seconds elapses",
		RunE: func(cmd *cobra.Command, args []string) error {
			net := sim.New(baseConfig(), log.Default())
			ctx, cancel := context.WithCancel(context.Background())
			go net.Run(ctx)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			var timeout <-chan time.Time
			if runSeconds > 0 {
				timeout = time.After(time.Duration(runSeconds) * time.Second)
			}
			tick := time.NewTicker(5 * time.Second)
			defer tick.Stop()

		loop:
			for {
				select {
				case <-tick.C:
					for _, r := range net.Report() {
						log.Println(r)
					}
				case <-timeout:
					break loop
				case <-sigCh:
					break loop
				}
			}
			cancel()
			fmt.Println("final report:")
			for _, r := range net.Report() {
				fmt.Println(r)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runSeconds, "seconds", 0, "stop after this many seconds (0 = run until signalled)")
	return cmd
}

func churnCmd() *cobra.Command {
	var joins, leaves int
	cmd := &cobra.Command{
		Use:   "churn",
		Short: "Run a network while repeatedly joining and removing nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			net := sim.New(baseConfig(), log.Default())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go net.Run(ctx)

			for i := 0; i < joins; i++ {
				net.Join(bootstrapFan)
				time.Sleep(100 * time.Millisecond)
			}
			for i := 0; i < leaves && i < len(net.Nodes); i++ {
				net.Leave(0)
				time.Sleep(100 * time.Millisecond)
			}
			for _, r := range net.Report() {
				fmt.Println(r)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&joins, "joins", 5, "nodes to join during the run")
	cmd.Flags().IntVar(&leaves, "leaves", 5, "nodes to remove during the run")
	return cmd
}

func injectCmd() *cobra.Command {
	var key, value string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Build a network, PUT a value on node 0, then GET it back",
		RunE: func(cmd *cobra.Command, args []string) error {
			net := sim.New(baseConfig(), log.Default())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go net.Run(ctx)
			time.Sleep(200 * time.Millisecond)

			if err := net.Inject(ctx, 0, []byte(key), []byte(value), ttl); err != nil {
				return err
			}
			time.Sleep(200 * time.Millisecond)
			if err := net.Fetch(ctx, 0, []byte(key)); err != nil {
				return err
			}
			time.Sleep(200 * time.Millisecond)

			recs, err := net.Nodes[0].Store.Get([]byte(key))
			if err != nil {
				return err
			}
			fmt.Printf("stored locally: %d record(s)\n", len(recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "demo", "key to PUT/GET")
	cmd.Flags().StringVar(&value, "value", "hello", "value to PUT")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "value TTL")
	return cmd
}
