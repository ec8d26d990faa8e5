package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// PairStore implements storage.PairStore using PostgreSQL.
type PairStore struct {
	q querier
}

// NewPairStore creates a new PairStore on the pool.
func NewPairStore(pool *Pool) *PairStore {
	return &PairStore{q: pool}
}

var _ storage.PairStore = (*PairStore)(nil)

const pairColumns = `id, factory, token0, token1, reserve0, reserve1, total_supply, block_number, timestamp`

// Insert adds a new pair. Returns ErrDuplicateKey if id exists.
func (s *PairStore) Insert(ctx context.Context, p *domain.Pair) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO pairs (`+pairColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		p.ID, p.Factory, p.Token0, p.Token1,
		numeric(p.Reserve0), numeric(p.Reserve1), numeric(p.TotalSupply),
		p.BlockNumber, p.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pair: %w", err)
	}
	return nil
}

// Update overwrites reserves and total supply. Returns ErrNotFound if not exists.
func (s *PairStore) Update(ctx context.Context, p *domain.Pair) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE pairs
		SET reserve0 = $2, reserve1 = $3, total_supply = $4
		WHERE id = $1
	`, p.ID, numeric(p.Reserve0), numeric(p.Reserve1), numeric(p.TotalSupply))
	if err != nil {
		return fmt.Errorf("update pair: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Get retrieves a pair by address. Returns ErrNotFound if not exists.
func (s *PairStore) Get(ctx context.Context, id string) (*domain.Pair, error) {
	row := s.q.QueryRow(ctx, `SELECT `+pairColumns+` FROM pairs WHERE id = $1`, id)

	p, err := scanPair(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pair: %w", err)
	}
	return p, nil
}

// List returns all pairs ordered by creation block, then id.
func (s *PairStore) List(ctx context.Context) ([]*domain.Pair, error) {
	rows, err := s.q.Query(ctx, `SELECT `+pairColumns+` FROM pairs ORDER BY block_number ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}
	defer rows.Close()

	var pairs []*domain.Pair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

func scanPair(row pgx.Row) (*domain.Pair, error) {
	var (
		p                  domain.Pair
		reserve0, reserve1 pgtype.Numeric
		totalSupply        pgtype.Numeric
	)
	if err := row.Scan(
		&p.ID, &p.Factory, &p.Token0, &p.Token1,
		&reserve0, &reserve1, &totalSupply,
		&p.BlockNumber, &p.Timestamp,
	); err != nil {
		return nil, err
	}
	p.Reserve0 = bigInt(reserve0)
	p.Reserve1 = bigInt(reserve1)
	p.TotalSupply = bigInt(totalSupply)
	return &p, nil
}
