package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// AccountPositionStore implements storage.AccountPositionStore using PostgreSQL.
type AccountPositionStore struct {
	q querier
}

// NewAccountPositionStore creates a new AccountPositionStore on the pool.
func NewAccountPositionStore(pool *Pool) *AccountPositionStore {
	return &AccountPositionStore{q: pool}
}

var _ storage.AccountPositionStore = (*AccountPositionStore)(nil)

// Get retrieves a counter record by id. Returns ErrNotFound if not exists.
func (s *AccountPositionStore) Get(ctx context.Context, id string) (*domain.AccountPosition, error) {
	var ap domain.AccountPosition
	err := s.q.QueryRow(ctx, `
		SELECT id, position_counter FROM account_positions WHERE id = $1
	`, id).Scan(&ap.ID, &ap.PositionCounter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account position: %w", err)
	}
	return &ap, nil
}

// Put creates or overwrites the counter record.
func (s *AccountPositionStore) Put(ctx context.Context, ap *domain.AccountPosition) error {
	if ap == nil || ap.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO account_positions (id, position_counter)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
		SET position_counter = EXCLUDED.position_counter
	`, ap.ID, ap.PositionCounter)
	if err != nil {
		return fmt.Errorf("put account position: %w", err)
	}
	return nil
}

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	q querier
}

// NewPositionStore creates a new PositionStore on the pool.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{q: pool}
}

var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `id, account_position, account, market, position_type,
	output_token_balance, input_token_balances, reward_token_balances, transferred_to,
	closed, block_number, timestamp, history_counter`

// Get retrieves a position by id. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, id string) (*domain.Position, error) {
	row := s.q.QueryRow(ctx, `SELECT `+positionColumns+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// Put creates or overwrites a position.
func (s *PositionStore) Put(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO positions (`+positionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE
		SET output_token_balance = EXCLUDED.output_token_balance,
		    input_token_balances = EXCLUDED.input_token_balances,
		    reward_token_balances = EXCLUDED.reward_token_balances,
		    transferred_to = EXCLUDED.transferred_to,
		    closed = EXCLUDED.closed,
		    block_number = EXCLUDED.block_number,
		    timestamp = EXCLUDED.timestamp,
		    history_counter = EXCLUDED.history_counter
	`,
		p.ID, p.AccountPosition, p.Account, p.Market, string(p.PositionType),
		numeric(p.OutputTokenBalance), p.InputTokenBalances.Strings(), p.RewardTokenBalances.Strings(),
		nonNilStrings(p.TransferredTo), p.Closed, p.BlockNumber, p.Timestamp, p.HistoryCounter,
	)
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

// ListByAccount returns all positions of an account ordered by id.
func (s *PositionStore) ListByAccount(ctx context.Context, account string) ([]*domain.Position, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+positionColumns+`
		FROM positions
		WHERE account = $1
		ORDER BY id ASC
	`, account)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var (
		p              domain.Position
		positionType   string
		output         pgtype.Numeric
		inputs, reward []string
	)
	if err := row.Scan(
		&p.ID, &p.AccountPosition, &p.Account, &p.Market, &positionType,
		&output, &inputs, &reward, &p.TransferredTo,
		&p.Closed, &p.BlockNumber, &p.Timestamp, &p.HistoryCounter,
	); err != nil {
		return nil, err
	}

	var err error
	p.PositionType = domain.PositionType(positionType)
	p.OutputTokenBalance = bigInt(output)
	if p.InputTokenBalances, err = balances(inputs); err != nil {
		return nil, err
	}
	if p.RewardTokenBalances, err = balances(reward); err != nil {
		return nil, err
	}
	return &p, nil
}
