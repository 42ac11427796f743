package transport

import (
	"context"
	"testing"
	"time"

	"xvine/identity"
)

func TestBusDialDeliversFrame(t *testing.T) {
	bus := NewBus()
	a := identity.NewPrivateKey().PeerID()
	b := identity.NewPrivateKey().PeerID()

	evA := bus.Register(a)
	evB := bus.Register(b)

	link, err := bus.Dial(context.Background(), a, b.Key())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	select {
	case <-evB.Connected():
	case <-time.After(time.Second):
		t.Fatalf("b never saw a Connected event")
	}

	if err := link.Send(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case in := <-evB.Inbound():
		if string(in.Frame) != "hello" {
			t.Fatalf("unexpected frame: %q", in.Frame)
		}
	case <-time.After(time.Second):
		t.Fatalf("b never received the frame")
	}

	_ = evA
}

func TestBusDialUnknownPeer(t *testing.T) {
	bus := NewBus()
	a := identity.NewPrivateKey().PeerID()
	bus.Register(a)
	if _, err := bus.Dial(context.Background(), a, "nonexistent"); err == nil {
		t.Fatalf("expected error dialing unknown peer")
	}
}
