package memory

import (
	"context"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	rows *table[*domain.Token]
}

func newTokenStore(db *DB) *TokenStore {
	return &TokenStore{rows: newTable(db, (*domain.Token).Clone)}
}

// Insert adds a new token. Returns ErrDuplicateKey if id exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.Token) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.rows.insert(t.ID, t)
}

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(_ context.Context, id string) (*domain.Token, error) {
	t, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

var _ storage.TokenStore = (*TokenStore)(nil)
