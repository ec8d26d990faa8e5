package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/storage"
)

// LiquidityStore implements storage.LiquidityStore using PostgreSQL.
// The balance column carries a CHECK (balance >= 0), so a negative write fails the transaction.
type LiquidityStore struct {
	q querier
}

// NewLiquidityStore creates a new LiquidityStore on the pool.
func NewLiquidityStore(pool *Pool) *LiquidityStore {
	return &LiquidityStore{q: pool}
}

var _ storage.LiquidityStore = (*LiquidityStore)(nil)

// Get retrieves the balance record for (pair, account). Returns ErrNotFound if not exists.
func (s *LiquidityStore) Get(ctx context.Context, pair, account string) (*domain.AccountLiquidity, error) {
	var (
		l       domain.AccountLiquidity
		balance pgtype.Numeric
	)
	err := s.q.QueryRow(ctx, `
		SELECT id, pair, account, balance
		FROM account_liquidity
		WHERE id = $1
	`, entityid.LiquidityKey{Pair: pair, Account: account}.String()).Scan(&l.ID, &l.Pair, &l.Account, &balance)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get liquidity: %w", err)
	}
	l.Balance = bigInt(balance)
	return &l, nil
}

// Put creates or overwrites the balance record.
func (s *LiquidityStore) Put(ctx context.Context, l *domain.AccountLiquidity) error {
	if l == nil || l.Pair == "" || l.Account == "" {
		return storage.ErrInvalidInput
	}

	id := entityid.LiquidityKey{Pair: l.Pair, Account: l.Account}.String()
	_, err := s.q.Exec(ctx, `
		INSERT INTO account_liquidity (id, pair, account, balance)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET balance = EXCLUDED.balance
	`, id, l.Pair, l.Account, numeric(l.Balance))
	if err != nil {
		return fmt.Errorf("put liquidity: %w", err)
	}
	return nil
}

// ListByPair returns every balance record of a pair ordered by account.
func (s *LiquidityStore) ListByPair(ctx context.Context, pair string) ([]*domain.AccountLiquidity, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, pair, account, balance
		FROM account_liquidity
		WHERE pair = $1
		ORDER BY account ASC
	`, pair)
	if err != nil {
		return nil, fmt.Errorf("list liquidity: %w", err)
	}
	defer rows.Close()

	var out []*domain.AccountLiquidity
	for rows.Next() {
		var (
			l       domain.AccountLiquidity
			balance pgtype.Numeric
		)
		if err := rows.Scan(&l.ID, &l.Pair, &l.Account, &balance); err != nil {
			return nil, fmt.Errorf("scan liquidity: %w", err)
		}
		l.Balance = bigInt(balance)
		out = append(out, &l)
	}
	return out, rows.Err()
}
