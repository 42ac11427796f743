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

package overlay

import (
	"time"

	"xvine/overlay/peerid"
)

// Config holds the named knobs from spec §6, one JSON-tagged struct with
// package-level defaults, following the teacher's core/config.go
// (package-local `cfg` + `SetConfiguration`) generalized to a value each
// Node owns instead of process-global mutable state.
type Config struct {
	MaxConnections               int           `json:"maxConnections"`
	MaxMsgsQueue                 int           `json:"maxMsgsQueue"`
	RefreshConnectionTime        time.Duration `json:"refreshConnectionTime"`
	FindFingerTrailInterval      time.Duration `json:"findFingerTrailInterval"`
	CongestionTimeout             time.Duration `json:"congestionTimeout"`
	TrailsThroughFriendThreshold  uint32        `json:"trailsThroughFriendThreshold"`
	MaxTrailsPerFinger            int           `json:"maxTrailsPerFinger"`
	GetTimeout                    time.Duration `json:"getTimeout"`
	MaxMigrationExp               time.Duration `json:"maxMigrationExp"`
	RoutingTableCapacity          int           `json:"routingTableCapacity"`
	DefaultTTL                    uint32        `json:"defaultTTL"`
	MaxHopCount                   uint32        `json:"maxHopCount"`
	DefaultReplication            uint32        `json:"defaultReplication"`
}

// DefaultConfig returns the spec's documented defaults (§6).
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:               256,
		MaxMsgsQueue:                 1024,
		RefreshConnectionTime:        5 * time.Minute,
		FindFingerTrailInterval:      30 * time.Second,
		CongestionTimeout:            2 * time.Minute,
		TrailsThroughFriendThreshold: 64,
		MaxTrailsPerFinger:           2,
		GetTimeout:                   2 * time.Minute,
		MaxMigrationExp:              1 * time.Hour,
		RoutingTableCapacity:         4096,
		DefaultTTL:                  peerid.NumFingers,
		MaxHopCount:                 2 * peerid.NumFingers,
		DefaultReplication:          3,
	}
}

// QueueMax returns the per-friend queue size: max_msgs_queue /
// max_connections + 1, as specified in §4.2.
func (c *Config) QueueMax() int {
	if c.MaxConnections <= 0 {
		return c.MaxMsgsQueue + 1
	}
	return c.MaxMsgsQueue/c.MaxConnections + 1
}
