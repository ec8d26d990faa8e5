package memory

import (
	"context"
	"errors"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	rows *table[*domain.Account]
}

func newAccountStore(db *DB) *AccountStore {
	return &AccountStore{rows: newTable(db, func(a *domain.Account) *domain.Account {
		c := *a
		return &c
	})}
}

// Ensure creates the account if it does not exist.
func (s *AccountStore) Ensure(_ context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}
	if err := s.rows.insert(a.ID, a); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return err
	}
	return nil
}

// Get retrieves an account by id. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(_ context.Context, id string) (*domain.Account, error) {
	a, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

var _ storage.AccountStore = (*AccountStore)(nil)
