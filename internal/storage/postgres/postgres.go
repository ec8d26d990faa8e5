// Package postgres stores the ledger in PostgreSQL. Every store runs on either the pool
// or a transaction; DB.RunInTx binds a full storage.Stores set to one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB implements storage.UnitOfWork on a pool.
type DB struct {
	pool *Pool
}

// NewDB creates a DB over pool.
func NewDB(pool *Pool) *DB {
	return &DB{pool: pool}
}

// Stores returns stores that run each statement on the pool, outside any transaction.
func (db *DB) Stores() *storage.Stores {
	return newStores(db.pool)
}

// Progress returns the indexer progress store.
func (db *DB) Progress() *ProgressStore {
	return NewProgressStore(db.pool)
}

// RunInTx runs fn in one transaction. It commits when fn returns nil and rolls back otherwise.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, s *storage.Stores) error) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		return fn(ctx, newStores(tx))
	})
}

var _ storage.UnitOfWork = (*DB)(nil)

func newStores(q querier) *storage.Stores {
	return &storage.Stores{
		Accounts:         &AccountStore{q: q},
		Tokens:           &TokenStore{q: q},
		Pairs:            &PairStore{q: q},
		Markets:          &MarketStore{q: q},
		Liquidity:        &LiquidityStore{q: q},
		AccountPositions: &AccountPositionStore{q: q},
		Positions:        &PositionStore{q: q},
		Snapshots:        &SnapshotStore{q: q},
		Transactions:     &TransactionStore{q: q},
		Correlations:     &CorrelationStore{q: q},
		ProcessedLogs:    &ProcessedLogStore{q: q},
	}
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

// isNotFoundError checks if error indicates no rows found.
func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// numeric encodes v for a NUMERIC column. nil encodes as NULL.
func numeric(v *big.Int) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: new(big.Int).Set(v), Valid: true}
}

// bigInt decodes an integral NUMERIC. pgx may return trailing zeros as a positive exponent.
func bigInt(n pgtype.Numeric) *big.Int {
	if !n.Valid || n.Int == nil {
		return nil
	}
	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		v.Mul(v, pow10(n.Exp))
	case n.Exp < 0:
		v.Quo(v, pow10(-n.Exp))
	}
	return v
}

func pow10(exp int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
}

// balances decodes a TEXT[] of "token|account|amount".
func balances(list []string) (domain.Balances, error) {
	b, err := domain.ParseBalances(list)
	if err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}
	if b == nil {
		b = domain.Balances{}
	}
	return b, nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
