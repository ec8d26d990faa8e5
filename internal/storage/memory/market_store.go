package memory

import (
	"context"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// MarketStore is an in-memory implementation of storage.MarketStore.
type MarketStore struct {
	rows *table[*domain.Market]
}

func newMarketStore(db *DB) *MarketStore {
	return &MarketStore{rows: newTable(db, (*domain.Market).Clone)}
}

// Insert adds a new market. Returns ErrDuplicateKey if id exists.
func (s *MarketStore) Insert(_ context.Context, m *domain.Market) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.rows.insert(m.ID, m)
}

// Update overwrites a market. Returns ErrNotFound if not exists.
func (s *MarketStore) Update(_ context.Context, m *domain.Market) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.rows.update(m.ID, m)
}

// Get retrieves a market by id. Returns ErrNotFound if not exists.
func (s *MarketStore) Get(_ context.Context, id string) (*domain.Market, error) {
	m, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return m, nil
}

var _ storage.MarketStore = (*MarketStore)(nil)
