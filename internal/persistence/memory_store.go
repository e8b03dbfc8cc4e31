package persistence

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps cursors and operation ids in process memory.
// Nothing survives a restart; intended for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	cursors map[int64]int64
	opIDs   map[int64]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cursors: make(map[int64]int64),
		opIDs:   make(map[int64]uuid.UUID),
	}
}

func (ms *MemoryStore) GetCursor(_ context.Context, brokerAccountID int64) (int64, bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	c, ok := ms.cursors[brokerAccountID]
	return c, ok, nil
}

func (ms *MemoryStore) SetCursor(_ context.Context, brokerAccountID, cursor int64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.cursors[brokerAccountID] = cursor
	return nil
}

func (ms *MemoryStore) GetOrCreateOperationID(_ context.Context, depositID int64, candidate uuid.UUID) (uuid.UUID, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if id, ok := ms.opIDs[depositID]; ok {
		return id, nil
	}
	ms.opIDs[depositID] = candidate
	return candidate, nil
}
