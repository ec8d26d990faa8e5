package memory

import (
	"context"

	"amm-position-ledger/internal/storage"
)

// ProcessedLogStore is an in-memory implementation of storage.ProcessedLogStore.
type ProcessedLogStore struct {
	rows *table[struct{}]
}

func newProcessedLogStore(db *DB) *ProcessedLogStore {
	return &ProcessedLogStore{rows: newTable(db, func(v struct{}) struct{} { return v })}
}

// IsProcessed reports whether the log key has been applied.
func (s *ProcessedLogStore) IsProcessed(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}
	return s.rows.has(key), nil
}

// MarkProcessed records the log key. Returns ErrDuplicateKey if already recorded.
func (s *ProcessedLogStore) MarkProcessed(_ context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	return s.rows.insert(key, struct{}{})
}

var _ storage.ProcessedLogStore = (*ProcessedLogStore)(nil)
