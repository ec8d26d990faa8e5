package postgres

import (
	"context"
	"fmt"

	"amm-position-ledger/internal/storage"
)

// ProcessedLogStore implements storage.ProcessedLogStore using PostgreSQL.
type ProcessedLogStore struct {
	q querier
}

// NewProcessedLogStore creates a new ProcessedLogStore on the pool.
func NewProcessedLogStore(pool *Pool) *ProcessedLogStore {
	return &ProcessedLogStore{q: pool}
}

var _ storage.ProcessedLogStore = (*ProcessedLogStore)(nil)

// IsProcessed reports whether the log key has been applied.
func (s *ProcessedLogStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}

	var exists bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM processed_logs WHERE id = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("is processed: %w", err)
	}
	return exists, nil
}

// MarkProcessed records the log key. Returns ErrDuplicateKey if already recorded.
func (s *ProcessedLogStore) MarkProcessed(ctx context.Context, key string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `INSERT INTO processed_logs (id) VALUES ($1)`, key)
	return insertErr("processed log", err)
}
