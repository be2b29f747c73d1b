package storage

import (
	"context"
	"sync"
)

// Keys under which the register persists its state. Values are JSON text.
const (
	KeyCart         = "cart"
	KeyCatalog      = "catalog"
	KeyTaxRate      = "taxRate"
	KeyRoundingMode = "roundingMode"
)

// Store is the key-value persistence the register writes through
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryStore keeps values in process memory
type MemoryStore struct {
	values map[string]string
	mu     sync.RWMutex
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.values[key]
	return value, exists, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
