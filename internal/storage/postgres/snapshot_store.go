package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// All three snapshot tables are append-only.
type SnapshotStore struct {
	q querier
}

// NewSnapshotStore creates a new SnapshotStore on the pool.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{q: pool}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertPosition adds a position snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) InsertPosition(ctx context.Context, snap *domain.PositionSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO position_snapshots (
			id, position, transaction, output_token_balance, input_token_balances,
			reward_token_balances, transferred_to, block_number, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		snap.ID, snap.Position, snap.Transaction, numeric(snap.OutputTokenBalance),
		snap.InputTokenBalances.Strings(), snap.RewardTokenBalances.Strings(),
		nonNilStrings(snap.TransferredTo), snap.BlockNumber, snap.Timestamp,
	)
	return insertErr("position snapshot", err)
}

// InsertMarket adds a market snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) InsertMarket(ctx context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO market_snapshots (
			id, market, input_token_balances, output_token_total_supply, block_number,
			timestamp, transaction_hash, transaction_index_in_block, log_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		snap.ID, snap.Market, snap.InputTokenBalances.Strings(), numeric(snap.OutputTokenTotalSupply),
		snap.BlockNumber, snap.Timestamp, snap.TransactionHash, snap.TransactionIndexInBlock, snap.LogIndex,
	)
	return insertErr("market snapshot", err)
}

// InsertPair adds a pair snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) InsertPair(ctx context.Context, snap *domain.PairSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO pair_snapshots (
			id, pair, reserve0, reserve1, total_supply, block_number,
			timestamp, transaction_hash, transaction_index_in_block, log_index
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		snap.ID, snap.Pair, numeric(snap.Reserve0), numeric(snap.Reserve1), numeric(snap.TotalSupply),
		snap.BlockNumber, snap.Timestamp, snap.TransactionHash, snap.TransactionIndexInBlock, snap.LogIndex,
	)
	return insertErr("pair snapshot", err)
}

// ListPositionSnapshots returns snapshots of a position in insertion order.
func (s *SnapshotStore) ListPositionSnapshots(ctx context.Context, position string) ([]*domain.PositionSnapshot, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, position, transaction, output_token_balance, input_token_balances,
		       reward_token_balances, transferred_to, block_number, timestamp
		FROM position_snapshots
		WHERE position = $1
		ORDER BY seq ASC
	`, position)
	if err != nil {
		return nil, fmt.Errorf("list position snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.PositionSnapshot
	for rows.Next() {
		snap, err := scanPositionSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// ListMarketSnapshots returns snapshots of a market in chain order.
func (s *SnapshotStore) ListMarketSnapshots(ctx context.Context, market string) ([]*domain.MarketSnapshot, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, market, input_token_balances, output_token_total_supply, block_number,
		       timestamp, transaction_hash, transaction_index_in_block, log_index
		FROM market_snapshots
		WHERE market = $1
		ORDER BY block_number ASC, transaction_index_in_block ASC, log_index ASC
	`, market)
	if err != nil {
		return nil, fmt.Errorf("list market snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.MarketSnapshot
	for rows.Next() {
		snap, err := scanMarketSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// ListPairSnapshots returns snapshots of a pair in chain order.
func (s *SnapshotStore) ListPairSnapshots(ctx context.Context, pair string) ([]*domain.PairSnapshot, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, pair, reserve0, reserve1, total_supply, block_number,
		       timestamp, transaction_hash, transaction_index_in_block, log_index
		FROM pair_snapshots
		WHERE pair = $1
		ORDER BY block_number ASC, transaction_index_in_block ASC, log_index ASC
	`, pair)
	if err != nil {
		return nil, fmt.Errorf("list pair snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*domain.PairSnapshot
	for rows.Next() {
		var (
			snap                       domain.PairSnapshot
			reserve0, reserve1, supply pgtype.Numeric
		)
		if err := rows.Scan(
			&snap.ID, &snap.Pair, &reserve0, &reserve1, &supply, &snap.BlockNumber,
			&snap.Timestamp, &snap.TransactionHash, &snap.TransactionIndexInBlock, &snap.LogIndex,
		); err != nil {
			return nil, fmt.Errorf("scan pair snapshot: %w", err)
		}
		snap.Reserve0 = bigInt(reserve0)
		snap.Reserve1 = bigInt(reserve1)
		snap.TotalSupply = bigInt(supply)
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}

func scanPositionSnapshot(row pgx.Row) (*domain.PositionSnapshot, error) {
	var (
		snap           domain.PositionSnapshot
		output         pgtype.Numeric
		inputs, reward []string
	)
	if err := row.Scan(
		&snap.ID, &snap.Position, &snap.Transaction, &output, &inputs,
		&reward, &snap.TransferredTo, &snap.BlockNumber, &snap.Timestamp,
	); err != nil {
		return nil, err
	}

	var err error
	snap.OutputTokenBalance = bigInt(output)
	if snap.InputTokenBalances, err = balances(inputs); err != nil {
		return nil, err
	}
	if snap.RewardTokenBalances, err = balances(reward); err != nil {
		return nil, err
	}
	return &snap, nil
}

func scanMarketSnapshot(row pgx.Row) (*domain.MarketSnapshot, error) {
	var (
		snap   domain.MarketSnapshot
		inputs []string
		supply pgtype.Numeric
	)
	if err := row.Scan(
		&snap.ID, &snap.Market, &inputs, &supply, &snap.BlockNumber,
		&snap.Timestamp, &snap.TransactionHash, &snap.TransactionIndexInBlock, &snap.LogIndex,
	); err != nil {
		return nil, err
	}

	b, err := balances(inputs)
	if err != nil {
		return nil, err
	}
	snap.InputTokenBalances = b
	snap.OutputTokenTotalSupply = bigInt(supply)
	return &snap, nil
}

// insertErr maps an append-only insert error.
func insertErr(what string, err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateKeyError(err) {
		return storage.ErrDuplicateKey
	}
	return fmt.Errorf("insert %s: %w", what, err)
}
