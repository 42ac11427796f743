package sim

import (
	"context"
	"testing"
	"time"
)

func TestNewWiresBootstrapLinks(t *testing.T) {
	cfg := &Config{NumNodes: 5, BootstrapFanout: 2, StoreCapacity: 64}
	net := New(cfg, nil)
	if len(net.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(net.Nodes))
	}
	for _, n := range net.Nodes {
		if n.Friends.Len() == 0 {
			t.Fatalf("expected every node to have at least one bootstrap friend")
		}
	}
}

func TestRunAndStop(t *testing.T) {
	cfg := &Config{NumNodes: 3, BootstrapFanout: 1, StoreCapacity: 64}
	net := New(cfg, nil)

	go net.Run(context.Background())
	time.Sleep(20 * time.Millisecond)
	net.Stop()
}

func TestJoinAddsNode(t *testing.T) {
	cfg := &Config{NumNodes: 3, BootstrapFanout: 1, StoreCapacity: 64}
	net := New(cfg, nil)
	before := len(net.Nodes)

	n := net.Join(2)
	if len(net.Nodes) != before+1 {
		t.Fatalf("expected node count to grow by one")
	}
	if n.Friends.Len() == 0 {
		t.Fatalf("expected joined node to have bootstrap friends")
	}
}

func TestLeaveRemovesNode(t *testing.T) {
	cfg := &Config{NumNodes: 4, BootstrapFanout: 1, StoreCapacity: 64}
	net := New(cfg, nil)
	before := len(net.Nodes)

	net.Leave(0)
	if len(net.Nodes) != before-1 {
		t.Fatalf("expected node count to shrink by one")
	}
}

func TestInjectStoresLocallyWhenSelfIsClosest(t *testing.T) {
	cfg := &Config{NumNodes: 1, BootstrapFanout: 0, StoreCapacity: 64}
	net := New(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go net.Run(ctx)

	if err := net.Inject(context.Background(), 0, []byte("k"), []byte("v"), time.Hour); err != nil {
		t.Fatalf("inject failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	recs, err := net.Nodes[0].Store.Get([]byte("k"))
	if err != nil || len(recs) != 1 {
		t.Fatalf("expected stored record, got %v %v", recs, err)
	}
}
