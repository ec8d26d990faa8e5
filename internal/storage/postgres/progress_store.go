package postgres

import (
	"context"
	"fmt"

	"amm-position-ledger/internal/storage"
)

// ProgressStore is a PostgreSQL implementation of storage.ProgressStore.
// One row per cursor name in indexer_progress.
type ProgressStore struct {
	q querier
}

// NewProgressStore creates a new PostgreSQL progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{q: pool}
}

var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetProgress returns the cursor for name.
func (s *ProgressStore) GetProgress(ctx context.Context, name string) (*storage.Progress, error) {
	progress := storage.Progress{Name: name}
	err := s.q.QueryRow(ctx, `
		SELECT last_block
		FROM indexer_progress
		WHERE name = $1
	`, name).Scan(&progress.LastBlock)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &progress, nil
}

// SetProgress saves the cursor.
// Uses upsert to handle initial insert and subsequent updates.
func (s *ProgressStore) SetProgress(ctx context.Context, progress *storage.Progress) error {
	if progress == nil || progress.Name == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO indexer_progress (name, last_block, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block,
		    updated_at = NOW()
	`, progress.Name, progress.LastBlock)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}
