package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// MarketStore implements storage.MarketStore using PostgreSQL.
type MarketStore struct {
	q querier
}

// NewMarketStore creates a new MarketStore on the pool.
func NewMarketStore(pool *Pool) *MarketStore {
	return &MarketStore{q: pool}
}

var _ storage.MarketStore = (*MarketStore)(nil)

// Insert adds a new market. Returns ErrDuplicateKey if id exists.
func (s *MarketStore) Insert(ctx context.Context, m *domain.Market) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO markets (
			id, account, protocol_name, protocol_type, input_tokens, output_token,
			reward_tokens, input_token_total_balances, output_token_total_supply,
			block_number, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		m.ID, m.Account, m.ProtocolName, m.ProtocolType,
		nonNilStrings(m.InputTokens), m.OutputToken, nonNilStrings(m.RewardTokens),
		m.InputTokenTotalBalances.Strings(), numeric(m.OutputTokenTotalSupply),
		m.BlockNumber, m.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert market: %w", err)
	}
	return nil
}

// Update overwrites the market totals. Returns ErrNotFound if not exists.
func (s *MarketStore) Update(ctx context.Context, m *domain.Market) error {
	if m == nil || m.ID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE markets
		SET input_token_total_balances = $2,
		    output_token_total_supply = $3,
		    block_number = $4,
		    timestamp = $5
		WHERE id = $1
	`, m.ID, m.InputTokenTotalBalances.Strings(), numeric(m.OutputTokenTotalSupply), m.BlockNumber, m.Timestamp)
	if err != nil {
		return fmt.Errorf("update market: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Get retrieves a market by id. Returns ErrNotFound if not exists.
func (s *MarketStore) Get(ctx context.Context, id string) (*domain.Market, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, account, protocol_name, protocol_type, input_tokens, output_token,
		       reward_tokens, input_token_total_balances, output_token_total_supply,
		       block_number, timestamp
		FROM markets
		WHERE id = $1
	`, id)

	m, err := scanMarket(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get market: %w", err)
	}
	return m, nil
}

func scanMarket(row pgx.Row) (*domain.Market, error) {
	var (
		m      domain.Market
		totals []string
		supply pgtype.Numeric
	)
	if err := row.Scan(
		&m.ID, &m.Account, &m.ProtocolName, &m.ProtocolType, &m.InputTokens, &m.OutputToken,
		&m.RewardTokens, &totals, &supply,
		&m.BlockNumber, &m.Timestamp,
	); err != nil {
		return nil, err
	}

	b, err := balances(totals)
	if err != nil {
		return nil, err
	}
	m.InputTokenTotalBalances = b
	m.OutputTokenTotalSupply = bigInt(supply)
	return &m, nil
}
