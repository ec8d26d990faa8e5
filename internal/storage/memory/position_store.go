package memory

import (
	"context"
	"sort"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// AccountPositionStore is an in-memory implementation of storage.AccountPositionStore.
type AccountPositionStore struct {
	rows *table[*domain.AccountPosition]
}

func newAccountPositionStore(db *DB) *AccountPositionStore {
	return &AccountPositionStore{rows: newTable(db, func(ap *domain.AccountPosition) *domain.AccountPosition {
		c := *ap
		return &c
	})}
}

// Get retrieves a counter record by id. Returns ErrNotFound if not exists.
func (s *AccountPositionStore) Get(_ context.Context, id string) (*domain.AccountPosition, error) {
	ap, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ap, nil
}

// Put creates or overwrites the counter record.
func (s *AccountPositionStore) Put(_ context.Context, ap *domain.AccountPosition) error {
	if ap == nil || ap.ID == "" {
		return storage.ErrInvalidInput
	}
	s.rows.put(ap.ID, ap)
	return nil
}

var _ storage.AccountPositionStore = (*AccountPositionStore)(nil)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	rows *table[*domain.Position]
}

func newPositionStore(db *DB) *PositionStore {
	return &PositionStore{rows: newTable(db, (*domain.Position).Clone)}
}

// Get retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(_ context.Context, id string) (*domain.Position, error) {
	p, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

// Put creates or overwrites a position.
func (s *PositionStore) Put(_ context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}
	s.rows.put(p.ID, p)
	return nil
}

// ListByAccount returns all positions of an account ordered by id.
func (s *PositionStore) ListByAccount(_ context.Context, account string) ([]*domain.Position, error) {
	positions := s.rows.list(func(p *domain.Position) bool { return p.Account == account })
	sort.Slice(positions, func(i, j int) bool { return positions[i].ID < positions[j].ID })
	return positions, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
