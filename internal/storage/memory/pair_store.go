package memory

import (
	"context"
	"sort"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// PairStore is an in-memory implementation of storage.PairStore.
type PairStore struct {
	rows *table[*domain.Pair]
}

func newPairStore(db *DB) *PairStore {
	return &PairStore{rows: newTable(db, (*domain.Pair).Clone)}
}

// Insert adds a new pair. Returns ErrDuplicateKey if id exists.
func (s *PairStore) Insert(_ context.Context, p *domain.Pair) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.rows.insert(p.ID, p)
}

// Update overwrites a pair. Returns ErrNotFound if not exists.
func (s *PairStore) Update(_ context.Context, p *domain.Pair) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.rows.update(p.ID, p)
}

// Get retrieves a pair by address. Returns ErrNotFound if not exists.
func (s *PairStore) Get(_ context.Context, id string) (*domain.Pair, error) {
	p, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

// List returns all pairs ordered by creation block, then id.
func (s *PairStore) List(_ context.Context) ([]*domain.Pair, error) {
	pairs := s.rows.list(nil)
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].BlockNumber != pairs[j].BlockNumber {
			return pairs[i].BlockNumber < pairs[j].BlockNumber
		}
		return pairs[i].ID < pairs[j].ID
	})
	return pairs, nil
}

var _ storage.PairStore = (*PairStore)(nil)
