package postgres

import (
	"context"
	"fmt"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
type AccountStore struct {
	q querier
}

// NewAccountStore creates a new AccountStore on the pool.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{q: pool}
}

var _ storage.AccountStore = (*AccountStore)(nil)

// Ensure creates the account if it does not exist.
func (s *AccountStore) Ensure(ctx context.Context, a *domain.Account) error {
	if a == nil || a.ID == "" {
		return storage.ErrInvalidInput
	}
	if _, err := s.q.Exec(ctx, `INSERT INTO accounts (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, a.ID); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}

// Get retrieves an account by id. Returns ErrNotFound if not exists.
func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	var a domain.Account
	err := s.q.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1`, id).Scan(&a.ID)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}
