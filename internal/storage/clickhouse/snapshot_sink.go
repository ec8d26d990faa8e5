package clickhouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/snapshot"
)

// SnapshotSink copies snapshots into ReplacingMergeTree tables keyed by snapshot id,
// so a replayed batch collapses onto the rows already written.
type SnapshotSink struct {
	conn *Conn
}

// NewSnapshotSink creates a sink writing through conn.
func NewSnapshotSink(conn *Conn) *SnapshotSink {
	return &SnapshotSink{conn: conn}
}

// WriteSnapshots sends one batch per non-empty snapshot kind.
func (s *SnapshotSink) WriteSnapshots(ctx context.Context, created snapshot.Created) error {
	if err := s.writePositions(ctx, created.Positions); err != nil {
		return err
	}
	if err := s.writeMarkets(ctx, created.Markets); err != nil {
		return err
	}
	return s.writePairs(ctx, created.Pairs)
}

func (s *SnapshotSink) writePositions(ctx context.Context, snaps []*domain.PositionSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO position_snapshots (
			id, position, transaction, output_token_balance, input_token_balances,
			reward_token_balances, transferred_to, block_number, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare position batch: %w", err)
	}
	defer batch.Abort()

	for _, p := range snaps {
		err = batch.Append(
			p.ID, p.Position, p.Transaction, nonNil(p.OutputTokenBalance),
			p.InputTokenBalances.Strings(), p.RewardTokenBalances.Strings(), nonNilStrings(p.TransferredTo),
			p.BlockNumber, unixTime(p.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append position snapshot %s: %w", p.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send position batch: %w", err)
	}
	return nil
}

func (s *SnapshotSink) writeMarkets(ctx context.Context, snaps []*domain.MarketSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_snapshots (
			id, market, input_token_balances, output_token_total_supply, block_number,
			timestamp, transaction_hash, transaction_index_in_block, log_index
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare market batch: %w", err)
	}
	defer batch.Abort()

	for _, m := range snaps {
		var supply any
		if m.OutputTokenTotalSupply != nil {
			supply = m.OutputTokenTotalSupply
		}
		err = batch.Append(
			m.ID, m.Market, m.InputTokenBalances.Strings(), supply, m.BlockNumber,
			unixTime(m.Timestamp), m.TransactionHash, uint32(m.TransactionIndexInBlock), uint32(m.LogIndex),
		)
		if err != nil {
			return fmt.Errorf("append market snapshot %s: %w", m.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send market batch: %w", err)
	}
	return nil
}

func (s *SnapshotSink) writePairs(ctx context.Context, snaps []*domain.PairSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pair_snapshots (
			id, pair, reserve0, reserve1, total_supply, block_number,
			timestamp, transaction_hash, transaction_index_in_block, log_index
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare pair batch: %w", err)
	}
	defer batch.Abort()

	for _, p := range snaps {
		err = batch.Append(
			p.ID, p.Pair, nonNil(p.Reserve0), nonNil(p.Reserve1), nonNil(p.TotalSupply), p.BlockNumber,
			unixTime(p.Timestamp), p.TransactionHash, uint32(p.TransactionIndexInBlock), uint32(p.LogIndex),
		)
		if err != nil {
			return fmt.Errorf("append pair snapshot %s: %w", p.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send pair batch: %w", err)
	}
	return nil
}

// ListPairSnapshots returns the deduplicated snapshots of pair in chain order.
func (s *SnapshotSink) ListPairSnapshots(ctx context.Context, pair string) ([]*domain.PairSnapshot, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, pair, reserve0, reserve1, total_supply, block_number,
		       timestamp, transaction_hash, transaction_index_in_block, log_index
		FROM pair_snapshots FINAL
		WHERE pair = ?
		ORDER BY block_number, transaction_index_in_block, log_index
	`, pair)
	if err != nil {
		return nil, fmt.Errorf("query pair snapshots: %w", err)
	}
	defer rows.Close()

	var out []*domain.PairSnapshot
	for rows.Next() {
		var (
			p                 domain.PairSnapshot
			r0, r1, supply    big.Int
			ts                time.Time
			txIndex, logIndex uint32
		)
		if err := rows.Scan(&p.ID, &p.Pair, &r0, &r1, &supply, &p.BlockNumber,
			&ts, &p.TransactionHash, &txIndex, &logIndex); err != nil {
			return nil, fmt.Errorf("scan pair snapshot: %w", err)
		}
		p.Reserve0, p.Reserve1, p.TotalSupply = &r0, &r1, &supply
		p.Timestamp = uint64(ts.Unix())
		p.TransactionIndexInBlock = uint(txIndex)
		p.LogIndex = uint(logIndex)
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CountPositionSnapshots returns the number of distinct position snapshot ids for position.
func (s *SnapshotSink) CountPositionSnapshots(ctx context.Context, position string) (uint64, error) {
	var n uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM position_snapshots FINAL WHERE position = ?`, position,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count position snapshots: %w", err)
	}
	return n, nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func unixTime(seconds uint64) time.Time {
	return time.Unix(int64(seconds), 0).UTC()
}
