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

// Package errs defines the typed error kinds named in the core spec's
// error-handling design (§7). None of these propagate to upper layers for
// reachability problems — the DHT is best-effort — but they drive the
// statistics counters in overlay/stats and are reported to the Listener
// seam for observability.
package errs

import "errors"

var (
	// ErrLinkDown: a directly-connected peer is no longer reachable.
	// Recovered locally by purging routing entries; stabilization
	// rebuilds.
	ErrLinkDown = errors.New("link down")

	// ErrTrailFull: routing-table capacity exhausted at a hop. Signalled
	// to the setup originator via TRAIL_REJECTION.
	ErrTrailFull = errors.New("routing table full")

	// ErrTrailBroken: a mid-trail peer's downstream link failed.
	// Signalled toward the trail root with CONNECTION_BROKEN.
	ErrTrailBroken = errors.New("trail broken")

	// ErrMalformed: message size/field inconsistent with its declared
	// type. Dropped silently; not proof of a malicious peer.
	ErrMalformed = errors.New("malformed message")

	// ErrDuplicatePid: a PID already seen on this connection direction.
	ErrDuplicatePid = errors.New("duplicate pid")

	// ErrStalePid: a PID older than the last one processed.
	ErrStalePid = errors.New("stale pid")

	// ErrDeadline: a message's deadline passed while still queued.
	ErrDeadline = errors.New("deadline expired")
)
