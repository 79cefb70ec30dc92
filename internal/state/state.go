// Package state persists per-SKU sync state behind a narrow key-value
// interface so the orchestrator stays decoupled from the storage engine.
package state

import (
	"context"
	"errors"
	"sync"

	"github.com/fairyhunter13/catalog-delta-sync/internal/model"
)

// ErrNotFound is returned by Get when a SKU has never been synced.
var ErrNotFound = errors.New("sync state not found")

// Store is the keyed get/put contract required by the orchestrator.
// Put is an upsert; last writer wins. Each SKU's state is independently
// consistent — no multi-key guarantees.
type Store interface {
	Get(ctx context.Context, sku string) (model.SyncStateRecord, error)
	Put(ctx context.Context, rec model.SyncStateRecord) error
}

// Memory is an in-process Store used by tests and the memory driver.
type Memory struct {
	mu sync.RWMutex
	m  map[string]model.SyncStateRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string]model.SyncStateRecord)}
}

func (s *Memory) Get(_ context.Context, sku string) (model.SyncStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[sku]
	if !ok {
		return model.SyncStateRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *Memory) Put(_ context.Context, rec model.SyncStateRecord) error {
	if rec.SKU == "" {
		return errors.New("empty sku")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[rec.SKU] = rec
	return nil
}

// Len reports the number of tracked SKUs. Diagnostic use only.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
