package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	q querier
}

// NewTokenStore creates a new TokenStore on the pool.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{q: pool}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if id exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.Token) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	var decimals pgtype.Int2
	if t.Decimals != nil {
		decimals = pgtype.Int2{Int16: int16(*t.Decimals), Valid: true}
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO tokens (
			id, name, symbol, decimals, total_supply, token_standard,
			minted_by_market, block_number, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		t.ID, t.Name, t.Symbol, decimals, numeric(t.TotalSupply), t.TokenStandard,
		t.MintedByMarket, t.BlockNumber, t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Get retrieves a token by address. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(ctx context.Context, id string) (*domain.Token, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, symbol, decimals, total_supply, token_standard,
		       minted_by_market, block_number, timestamp
		FROM tokens
		WHERE id = $1
	`, id)

	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		t        domain.Token
		decimals pgtype.Int2
		supply   pgtype.Numeric
	)
	if err := row.Scan(
		&t.ID, &t.Name, &t.Symbol, &decimals, &supply, &t.TokenStandard,
		&t.MintedByMarket, &t.BlockNumber, &t.Timestamp,
	); err != nil {
		return nil, err
	}
	if decimals.Valid {
		d := uint8(decimals.Int16)
		t.Decimals = &d
	}
	t.TotalSupply = bigInt(supply)
	return &t, nil
}
