package core_test

import (
	"DepositsDetector/internal/core"
	"DepositsDetector/internal/observability"
	"DepositsDetector/internal/persistence"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type countingStore struct {
	inner *persistence.MemoryStore
	calls atomic.Int64
	err   error
}

func (c *countingStore) GetOrCreateOperationID(ctx context.Context, depositID int64, candidate uuid.UUID) (uuid.UUID, error) {
	c.calls.Add(1)
	if c.err != nil {
		return uuid.Nil, c.err
	}
	return c.inner.GetOrCreateOperationID(ctx, depositID, candidate)
}

func TestKeyRegistry_StableKey(t *testing.T) {
	store := &countingStore{inner: persistence.NewMemoryStore()}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	kr := core.NewKeyRegistry(4, store, metrics)
	ctx := context.Background()

	first, err := kr.KeyFor(ctx, 1)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first == uuid.Nil {
		t.Fatal("expected a minted key")
	}
	for i := 0; i < 3; i++ {
		again, err := kr.KeyFor(ctx, 1)
		if err != nil {
			t.Fatalf("repeat %d: %v", i, err)
		}
		if again != first {
			t.Errorf("repeat %d: got %s, want %s", i, again, first)
		}
	}

	if n := store.calls.Load(); n != 1 {
		t.Errorf("store calls: got %d, want 1 (later lookups are cached)", n)
	}
	if got := testutil.ToFloat64(metrics.KeyCacheHits); got != 3 {
		t.Errorf("cache hits: got %v, want 3", got)
	}
}

func TestKeyRegistry_EvictedKeyComesBackFromStore(t *testing.T) {
	store := &countingStore{inner: persistence.NewMemoryStore()}
	kr := core.NewKeyRegistry(2, store, nil)
	ctx := context.Background()

	k1, _ := kr.KeyFor(ctx, 1)
	kr.KeyFor(ctx, 2)
	kr.KeyFor(ctx, 3) // evicts 1

	if kr.Size() != 2 {
		t.Errorf("size: got %d, want 2", kr.Size())
	}

	again, err := kr.KeyFor(ctx, 1)
	if err != nil {
		t.Fatalf("lookup after eviction: %v", err)
	}
	if again != k1 {
		t.Errorf("key after eviction: got %s, want %s", again, k1)
	}
	if n := store.calls.Load(); n != 4 {
		t.Errorf("store calls: got %d, want 4", n)
	}
}

func TestKeyRegistry_ConcurrentFirstCallers(t *testing.T) {
	kr := core.NewKeyRegistry(64, persistence.NewMemoryStore(), nil)
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	keys := make([]uuid.UUID, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := kr.KeyFor(ctx, 77)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			keys[i] = k
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if keys[i] != keys[0] {
			t.Fatalf("caller %d got %s, caller 0 got %s", i, keys[i], keys[0])
		}
	}
}

func TestKeyRegistry_StoreError(t *testing.T) {
	boom := errors.New("db down")
	kr := core.NewKeyRegistry(4, &countingStore{err: boom}, nil)

	if _, err := kr.KeyFor(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
	if kr.Size() != 0 {
		t.Error("a failed lookup must not be cached")
	}
}
