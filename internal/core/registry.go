package core

import (
	"DepositsDetector/internal/observability"
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// KeyRegistry resolves the idempotency key of a deposit.
// Two tiers: an in-memory LRU in front of the durable OperationIDStore.
// A key enters the LRU only after the store has persisted it.
type KeyRegistry struct {
	mu  sync.Mutex
	lru *keyLRU

	store   OperationIDStore
	newKey  func() uuid.UUID
	metrics *observability.Metrics
}

func NewKeyRegistry(capacity int, store OperationIDStore, metrics *observability.Metrics) *KeyRegistry {
	return &KeyRegistry{
		lru:     newKeyLRU(capacity),
		store:   store,
		newKey:  uuid.New,
		metrics: metrics,
	}
}

// KeyFor returns the key bound to depositID, minting and persisting one on
// first sight. Every call for the same deposit returns the same key.
func (kr *KeyRegistry) KeyFor(ctx context.Context, depositID int64) (uuid.UUID, error) {
	kr.mu.Lock()
	key, ok := kr.lru.get(depositID)
	kr.mu.Unlock()
	if ok {
		if kr.metrics != nil {
			kr.metrics.KeyCacheHits.Inc()
		}
		return key, nil
	}

	if kr.metrics != nil {
		kr.metrics.KeyCacheMisses.Inc()
	}

	key, err := kr.store.GetOrCreateOperationID(ctx, depositID, kr.newKey())
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve operation id for deposit %d: %w", depositID, err)
	}

	kr.mu.Lock()
	kr.lru.add(depositID, key)
	kr.mu.Unlock()

	return key, nil
}

// Size returns the number of cached keys.
func (kr *KeyRegistry) Size() int {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	return kr.lru.lruList.Len()
}

// --- LRU Implementation ---

// keyLRU is not thread-safe; KeyRegistry guards it.
type keyLRU struct {
	capacity int
	cache    map[int64]*list.Element
	lruList  *list.List
}

type keyEntry struct {
	depositID int64
	key       uuid.UUID
}

func newKeyLRU(capacity int) *keyLRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &keyLRU{
		capacity: capacity,
		cache:    make(map[int64]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// get returns the cached key and promotes it to the front.
func (lru *keyLRU) get(depositID int64) (uuid.UUID, bool) {
	elem, exists := lru.cache[depositID]
	if !exists {
		return uuid.Nil, false
	}
	lru.lruList.MoveToFront(elem)
	return elem.Value.(*keyEntry).key, true
}

func (lru *keyLRU) add(depositID int64, key uuid.UUID) {
	if elem, exists := lru.cache[depositID]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	elem := lru.lruList.PushFront(&keyEntry{depositID: depositID, key: key})
	lru.cache[depositID] = elem

	if lru.lruList.Len() > lru.capacity {
		oldest := lru.lruList.Back()
		lru.lruList.Remove(oldest)
		delete(lru.cache, oldest.Value.(*keyEntry).depositID)
	}
}
