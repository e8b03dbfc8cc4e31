package catalog_test

import (
	"DepositsDetector/internal/catalog"
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSource struct {
	assets catalog.Assets
	err    error
	loads  int
}

func (f *fakeSource) Load(ctx context.Context) (catalog.Assets, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.assets, nil
}

func TestAssets_FindByExternalID(t *testing.T) {
	assets := catalog.Assets{
		{ID: "BTC", ExternalID: 10, Symbol: "BTC", Accuracy: 8},
		{ID: "ETH", ExternalID: 20, Symbol: "ETH", Accuracy: 6},
	}

	a, ok := assets.FindByExternalID(20)
	if !ok || a.ID != "ETH" {
		t.Errorf("got %+v (ok=%v), want ETH", a, ok)
	}
	if _, ok := assets.FindByExternalID(30); ok {
		t.Error("asset 30 should not be found")
	}
}

func TestCached_ServesSnapshotWithinTTL(t *testing.T) {
	src := &fakeSource{assets: catalog.Assets{{ID: "BTC", ExternalID: 1, Accuracy: 8}}}
	c := catalog.NewCached(src, time.Minute)

	now := time.Unix(1_700_000_000, 0)
	c.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if _, err := c.ListAll(context.Background(), false); err != nil {
			t.Fatalf("ListAll: %v", err)
		}
	}
	if src.loads != 1 {
		t.Errorf("loads: got %d, want 1", src.loads)
	}

	now = now.Add(2 * time.Minute)
	if _, err := c.ListAll(context.Background(), false); err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if src.loads != 2 {
		t.Errorf("loads after ttl: got %d, want 2", src.loads)
	}
}

func TestCached_ForceRefresh(t *testing.T) {
	src := &fakeSource{assets: catalog.Assets{}}
	c := catalog.NewCached(src, time.Hour)

	c.ListAll(context.Background(), false)
	c.ListAll(context.Background(), true)
	if src.loads != 2 {
		t.Errorf("loads: got %d, want 2", src.loads)
	}
}

func TestCached_StaleOnError(t *testing.T) {
	src := &fakeSource{assets: catalog.Assets{{ID: "BTC", ExternalID: 1}}}
	c := catalog.NewCached(src, time.Nanosecond)

	if _, err := c.ListAll(context.Background(), false); err != nil {
		t.Fatalf("ListAll: %v", err)
	}

	src.err = errors.New("db down")
	assets, err := c.ListAll(context.Background(), false)
	if err != nil {
		t.Fatalf("expected stale snapshot, got error %v", err)
	}
	if len(assets) != 1 {
		t.Errorf("stale snapshot: got %d assets, want 1", len(assets))
	}

	if _, err := c.ListAll(context.Background(), true); err == nil {
		t.Error("forced refresh should surface the load error")
	}
}

func TestCached_ErrorWithoutSnapshot(t *testing.T) {
	c := catalog.NewCached(&fakeSource{err: errors.New("db down")}, time.Minute)
	if _, err := c.ListAll(context.Background(), false); err == nil {
		t.Error("expected error when nothing is cached")
	}
}
