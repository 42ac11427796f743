package forward

import (
	"testing"
	"time"

	"xvine/identity"
)

func peer() *identity.PeerID { return identity.NewPrivateKey().PeerID() }

func TestRandomizeExpirationWithinBounds(t *testing.T) {
	base := time.Now()
	baseTTL := 90 * time.Minute
	maxMig := time.Hour
	for i := 0; i < 20; i++ {
		got := RandomizeExpiration(base, baseTTL, maxMig)
		min := base.Add(baseTTL)
		max := base.Add(baseTTL + maxMig)
		if got.Before(min) || got.After(max) {
			t.Fatalf("expiration %v out of bounds [%v,%v]", got, min, max)
		}
	}
}

func TestNextOnReversePath(t *testing.T) {
	a, b, c := peer(), peer(), peer()
	path := []*identity.PeerID{a, b, c}
	if next := NextOnReversePath(path, c); !next.Equal(b) {
		t.Fatalf("expected b, got %s", next)
	}
	if next := NextOnReversePath(path, a); next != nil {
		t.Fatalf("expected nil at path origin, got %s", next)
	}
}

func TestAppendHopNoDuplicate(t *testing.T) {
	a, b := peer(), peer()
	path := AppendHop(nil, a)
	path = AppendHop(path, b)
	path = AppendHop(path, b)
	if len(path) != 2 {
		t.Fatalf("expected no duplicate append, got %d entries", len(path))
	}
}

func TestReplicationTargetsBounded(t *testing.T) {
	if got := ReplicationTargets(5, 2); got != 2 {
		t.Fatalf("expected bounded to 2 available fingers, got %d", got)
	}
	if got := ReplicationTargets(1, 10); got != 0 {
		t.Fatalf("expected 0 extra targets for replication=1, got %d", got)
	}
}

func TestVerifyBlockIntegrityGenericAlwaysPasses(t *testing.T) {
	if !VerifyBlockIntegrity(BlockTypeGeneric, []byte("anything"), []byte("payload")) {
		t.Fatalf("expected BlockTypeGeneric to pass regardless of key/payload")
	}
}

func TestVerifyBlockIntegrityTypedBlockChecksCanonicalKey(t *testing.T) {
	payload := []byte("payload")
	key := CanonicalKey(1, payload)
	if !VerifyBlockIntegrity(1, key, payload) {
		t.Fatalf("expected canonical key to verify")
	}
	if VerifyBlockIntegrity(1, []byte("wrong"), payload) {
		t.Fatalf("expected mismatched key to fail verification")
	}
}

func TestExpireHopDropsOnTTLExhaustion(t *testing.T) {
	if _, drop := ExpireHop(0, 0, 32); !drop {
		t.Fatalf("expected TTL=0 to drop")
	}
	if remaining, drop := ExpireHop(1, 0, 32); !drop || remaining != 0 {
		t.Fatalf("expected TTL=1 to decrement to 0 and drop, got remaining=%d drop=%v", remaining, drop)
	}
}

func TestExpireHopDropsOnHopCountCap(t *testing.T) {
	if _, drop := ExpireHop(10, 32, 32); !drop {
		t.Fatalf("expected hopCount at cap to drop")
	}
	if _, drop := ExpireHop(10, 31, 32); drop {
		t.Fatalf("expected hopCount below cap not to drop")
	}
}
