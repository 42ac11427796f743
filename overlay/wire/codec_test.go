package wire

import (
	"errors"
	"testing"

	"xvine/identity"
	"xvine/overlay/errs"
)

func testPeer(b byte) *identity.PeerID {
	data := make([]byte, 64)
	data[0] = b
	return identity.PeerIDFromBytes(data)
}

func TestEncodeDecodePutRoundtrip(t *testing.T) {
	from := testPeer(1)
	dest := testPeer(2)
	msg := &PutMsg{
		Header:        Header{MsgType: Put, From: from},
		BlockType:     7,
		BestKnownDest: dest,
		HopCount:      3,
		PutPath:       []*identity.PeerID{from, dest},
		ExpirationNs:  123456,
		Key:           []byte("key"),
		Payload:       []byte("payload"),
	}

	frame, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := Decode(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	out, ok := decoded.(*PutMsg)
	if !ok {
		t.Fatalf("expected *PutMsg, got %T", decoded)
	}
	if out.Type() != Put {
		t.Fatalf("expected type %d, got %d", Put, out.Type())
	}
	if string(out.Key) != "key" || string(out.Payload) != "payload" {
		t.Fatalf("key/payload did not survive roundtrip: %+v", out)
	}
	if out.HopCount != 3 || out.BlockType != 7 {
		t.Fatalf("scalar fields did not survive roundtrip: %+v", out)
	}
	if !out.BestKnownDest.Equal(dest) {
		t.Fatalf("BestKnownDest did not survive roundtrip")
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	if _, err := Decode([]byte{0, 1}); err == nil {
		t.Fatalf("expected error decoding a too-short frame")
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	frame := []byte{0, 4, 0xFF, 0xFF}
	_, err := Decode(frame)
	if err == nil {
		t.Fatalf("expected error decoding unknown message type")
	}
	if !errors.Is(err, errs.ErrMalformed) {
		t.Fatalf("expected ErrMalformed wrapped, got %v", err)
	}
}
