package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Asset maps an upstream asset onto the internal ledger asset.
type Asset struct {
	ID         string // internal ledger asset id
	ExternalID int64  // upstream asset id carried by deposit updates
	Symbol     string
	Accuracy   int // decimal places the ledger accepts
}

// Assets is an immutable catalog snapshot.
type Assets []Asset

// FindByExternalID returns the asset registered for an upstream asset id.
func (a Assets) FindByExternalID(externalID int64) (Asset, bool) {
	for _, asset := range a {
		if asset.ExternalID == externalID {
			return asset, true
		}
	}
	return Asset{}, false
}

// Catalog lists all known assets. forceRefresh bypasses any cache.
type Catalog interface {
	ListAll(ctx context.Context, forceRefresh bool) (Assets, error)
}

// Source loads the full asset list from its backing store.
type Source interface {
	Load(ctx context.Context) (Assets, error)
}

// Cached serves ListAll from an in-memory snapshot refreshed every ttl.
// Safe for concurrent use by all account loops.
type Cached struct {
	source Source
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	snapshot  Assets
	fetchedAt time.Time
}

func NewCached(source Source, ttl time.Duration) *Cached {
	return &Cached{
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *Cached) ListAll(ctx context.Context, forceRefresh bool) (Assets, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.snapshot, nil
	}

	assets, err := c.source.Load(ctx)
	if err != nil {
		if c.snapshot != nil && !forceRefresh {
			// Keep serving the last snapshot until the source recovers.
			return c.snapshot, nil
		}
		return nil, fmt.Errorf("load asset catalog: %w", err)
	}

	c.snapshot = assets
	c.fetchedAt = c.now()
	return assets, nil
}

// SetClock overrides the time source; used by tests.
func (c *Cached) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
