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

// Package stats implements the "statistics counters per error kind" user
// surface named in the core spec's error-handling design (§7), plus
// protocol-milestone counters mirrored from the Event/Listener seam the
// teacher uses in core/event.go and core/node.go.
package stats

import "sync/atomic"

// Counters is a per-node set of monotonically increasing error and
// protocol-event counters. All fields are accessed only via atomic
// operations so a reporting goroutine can read them without synchronizing
// with the single event-loop goroutine that increments them.
type Counters struct {
	LinkDown      atomic.Uint64
	TrailFull     atomic.Uint64
	TrailBroken   atomic.Uint64
	Malformed     atomic.Uint64
	DuplicatePid  atomic.Uint64
	StalePid      atomic.Uint64
	Deadline      atomic.Uint64
	QueueDropped  atomic.Uint64
	TrailsSetup   atomic.Uint64
	TrailsTornDown atomic.Uint64
	Compressions  atomic.Uint64
	Congestions   atomic.Uint64
	Verifications atomic.Uint64
	HopsExpired   atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters, convenient for tests
// and reporting tools.
type Snapshot struct {
	LinkDown, TrailFull, TrailBroken, Malformed                    uint64
	DuplicatePid, StalePid, Deadline, QueueDropped                 uint64
	TrailsSetup, TrailsTornDown, Compressions, Congestions         uint64
	Verifications, HopsExpired                                     uint64
}

// Snapshot reads all counters.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		LinkDown:       c.LinkDown.Load(),
		TrailFull:      c.TrailFull.Load(),
		TrailBroken:    c.TrailBroken.Load(),
		Malformed:      c.Malformed.Load(),
		DuplicatePid:   c.DuplicatePid.Load(),
		StalePid:       c.StalePid.Load(),
		Deadline:       c.Deadline.Load(),
		QueueDropped:   c.QueueDropped.Load(),
		TrailsSetup:    c.TrailsSetup.Load(),
		TrailsTornDown: c.TrailsTornDown.Load(),
		Compressions:   c.Compressions.Load(),
		Congestions:    c.Congestions.Load(),
		Verifications:  c.Verifications.Load(),
		HopsExpired:    c.HopsExpired.Load(),
	}
}
