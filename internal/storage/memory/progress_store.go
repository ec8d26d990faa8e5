package memory

import (
	"context"
	"sync"

	"amm-position-ledger/internal/storage"
)

// ProgressStore is an in-memory implementation of storage.ProgressStore.
type ProgressStore struct {
	mu       sync.RWMutex
	progress map[string]uint64
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		progress: make(map[string]uint64),
	}
}

// GetProgress returns the cursor for name.
func (s *ProgressStore) GetProgress(_ context.Context, name string) (*storage.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.progress[name]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &storage.Progress{Name: name, LastBlock: block}, nil
}

// SetProgress saves the cursor.
func (s *ProgressStore) SetProgress(_ context.Context, progress *storage.Progress) error {
	if progress == nil || progress.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progress.Name] = progress.LastBlock
	return nil
}

var _ storage.ProgressStore = (*ProgressStore)(nil)
