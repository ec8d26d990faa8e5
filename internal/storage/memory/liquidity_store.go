package memory

import (
	"context"
	"sort"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/storage"
)

// LiquidityStore is an in-memory implementation of storage.LiquidityStore.
type LiquidityStore struct {
	rows *table[*domain.AccountLiquidity]
}

func newLiquidityStore(db *DB) *LiquidityStore {
	return &LiquidityStore{rows: newTable(db, (*domain.AccountLiquidity).Clone)}
}

// Get retrieves the balance record for (pair, account). Returns ErrNotFound if not exists.
func (s *LiquidityStore) Get(_ context.Context, pair, account string) (*domain.AccountLiquidity, error) {
	id := entityid.LiquidityKey{Pair: pair, Account: account}.String()
	l, ok := s.rows.get(id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return l, nil
}

// Put creates or overwrites the balance record.
func (s *LiquidityStore) Put(_ context.Context, l *domain.AccountLiquidity) error {
	if l == nil || l.Pair == "" || l.Account == "" {
		return storage.ErrInvalidInput
	}
	id := entityid.LiquidityKey{Pair: l.Pair, Account: l.Account}.String()
	s.rows.put(id, l)
	return nil
}

// ListByPair returns every balance record of a pair ordered by account.
func (s *LiquidityStore) ListByPair(_ context.Context, pair string) ([]*domain.AccountLiquidity, error) {
	rows := s.rows.list(func(l *domain.AccountLiquidity) bool { return l.Pair == pair })
	sort.Slice(rows, func(i, j int) bool { return rows[i].Account < rows[j].Account })
	return rows, nil
}

var _ storage.LiquidityStore = (*LiquidityStore)(nil)
