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

package wire

import (
	"fmt"

	"github.com/bfix/gospel/data"

	"xvine/overlay/errs"
)

// Decoder turns a raw frame body (everything after the {size,type}
// header) into a concrete Message.
type Decoder func(body []byte) (Message, error)

// dispatch maps a message type tag to its decoder, replacing the
// teacher's (and the original source's) per-callback registration table
// with a single typed registry.
var dispatch = map[uint16]Decoder{}

// Register installs a decoder for typ. Called from each message type's
// own init(), keeping the registry colocated with the type it decodes.
func Register(typ uint16, dec Decoder) {
	dispatch[typ] = dec
}

// Decode parses a full frame (header + body) into a Message, returning
// errs.ErrMalformed if the type tag is unknown or the declared size
// doesn't match the frame length.
func Decode(frame []byte) (Message, error) {
	if len(frame) < 4 {
		return nil, errs.ErrMalformed
	}
	size := uint16(frame[0])<<8 | uint16(frame[1])
	typ := uint16(frame[2])<<8 | uint16(frame[3])
	if int(size) != len(frame) {
		return nil, errs.ErrMalformed
	}
	dec, ok := dispatch[typ]
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %d", errs.ErrMalformed, typ)
	}
	msg, err := dec(frame[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	return msg, nil
}

// Encode serializes msg to its full wire frame, header included. It uses
// gospel/data's reflective codec against the struct tags declared on each
// message type, exactly as the teacher's core/id.go and
// core/forward_table.go rely on for PeerID/Forward encoding.
func Encode(msg Message) ([]byte, error) {
	body, err := data.Marshal(msg)
	if err != nil {
		return nil, err
	}
	size := uint16(4 + len(body))
	out := make([]byte, 0, size)
	out = append(out, byte(size>>8), byte(size))
	out = append(out, byte(msg.Type()>>8), byte(msg.Type()))
	out = append(out, body...)
	return out, nil
}

// decodeInto is a small helper shared by every Register call below: it
// unmarshals body into a freshly allocated T via gospel/data, sets the
// header's type tag (Marshal/Unmarshal round-trips the other header
// fields), and returns it as a Message.
func decodeInto[T any](typ uint16, body []byte, setType func(*T, uint16)) (Message, error) {
	out := new(T)
	if err := data.Unmarshal(body, out); err != nil {
		return nil, err
	}
	setType(out, typ)
	return any(out).(Message), nil
}

func init() {
	Register(TrailSetup, func(b []byte) (Message, error) {
		return decodeInto(uint16(TrailSetup), b, func(m *TrailSetupMsg, t uint16) { m.MsgType = t })
	})
	Register(TrailSetupResult, func(b []byte) (Message, error) {
		return decodeInto(uint16(TrailSetupResult), b, func(m *TrailSetupResultMsg, t uint16) { m.MsgType = t })
	})
	Register(TrailRejection, func(b []byte) (Message, error) {
		return decodeInto(uint16(TrailRejection), b, func(m *TrailRejectionMsg, t uint16) { m.MsgType = t })
	})
	Register(TrailTeardown, func(b []byte) (Message, error) {
		return decodeInto(uint16(TrailTeardown), b, func(m *TrailTeardownMsg, t uint16) { m.MsgType = t })
	})
	Register(TrailCompression, func(b []byte) (Message, error) {
		return decodeInto(uint16(TrailCompression), b, func(m *TrailCompressionMsg, t uint16) { m.MsgType = t })
	})
	Register(VerifySuccessor, func(b []byte) (Message, error) {
		return decodeInto(uint16(VerifySuccessor), b, func(m *VerifySuccessorMsg, t uint16) { m.MsgType = t })
	})
	Register(VerifySuccessorResult, func(b []byte) (Message, error) {
		return decodeInto(uint16(VerifySuccessorResult), b, func(m *VerifySuccessorResultMsg, t uint16) { m.MsgType = t })
	})
	Register(NotifyNewSuccessor, func(b []byte) (Message, error) {
		return decodeInto(uint16(NotifyNewSuccessor), b, func(m *NotifyNewSuccessorMsg, t uint16) { m.MsgType = t })
	})
	Register(AddTrail, func(b []byte) (Message, error) {
		return decodeInto(uint16(AddTrail), b, func(m *AddTrailMsg, t uint16) { m.MsgType = t })
	})
	Register(ConnectionBroken, func(b []byte) (Message, error) {
		return decodeInto(uint16(ConnectionBroken), b, func(m *ConnectionBrokenMsg, t uint16) { m.MsgType = t })
	})
	Register(Put, func(b []byte) (Message, error) {
		return decodeInto(uint16(Put), b, func(m *PutMsg, t uint16) { m.MsgType = t })
	})
	Register(Get, func(b []byte) (Message, error) {
		return decodeInto(uint16(Get), b, func(m *GetMsg, t uint16) { m.MsgType = t })
	})
	Register(GetResult, func(b []byte) (Message, error) {
		return decodeInto(uint16(GetResult), b, func(m *GetResultMsg, t uint16) { m.MsgType = t })
	})
}
