// Package snapshot records immutable point-in-time copies of positions, markets and pairs.
package snapshot

import (
	"context"
	"fmt"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/storage"
)

// Created lists the snapshots written through a Recorder.
type Created struct {
	Positions []*domain.PositionSnapshot
	Markets   []*domain.MarketSnapshot
	Pairs     []*domain.PairSnapshot
}

// Len returns the total number of snapshots.
func (c Created) Len() int {
	return len(c.Positions) + len(c.Markets) + len(c.Pairs)
}

// Recorder inserts snapshots and remembers what it created.
// A Recorder is scoped to one unit of work.
type Recorder struct {
	store   storage.SnapshotStore
	created Created
}

// NewRecorder creates a Recorder over store.
func NewRecorder(store storage.SnapshotStore) *Recorder {
	return &Recorder{store: store}
}

// SnapshotPosition captures p as it stood before tx was applied.
// It advances p.HistoryCounter and stamps p with the block of tx; the caller persists p.
func (r *Recorder) SnapshotPosition(ctx context.Context, p *domain.Position, tx *domain.Transaction) (*domain.PositionSnapshot, error) {
	counter := p.HistoryCounter + 1
	snap := &domain.PositionSnapshot{
		ID:                  entityid.PositionSnapshotKey{Position: p.ID, HistoryCounter: counter}.String(),
		Position:            p.ID,
		Transaction:         tx.ID,
		OutputTokenBalance:  p.OutputTokenBalance,
		InputTokenBalances:  p.InputTokenBalances,
		RewardTokenBalances: p.RewardTokenBalances,
		TransferredTo:       p.TransferredTo,
		BlockNumber:         tx.BlockNumber,
		Timestamp:           tx.Timestamp,
	}
	snap = snap.Clone()

	if err := r.store.InsertPosition(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert position snapshot %s: %w", snap.ID, err)
	}

	p.HistoryCounter = counter
	p.BlockNumber = tx.BlockNumber
	p.Timestamp = tx.Timestamp
	r.created.Positions = append(r.created.Positions, snap)
	return snap, nil
}

// SnapshotMarket captures the market totals at the given log.
func (r *Recorder) SnapshotMarket(ctx context.Context, m *domain.Market, meta event.Meta) (*domain.MarketSnapshot, error) {
	snap := &domain.MarketSnapshot{
		ID:                      entityid.LogKey{TxHash: meta.TxHash, LogIndex: meta.LogIndex}.String(),
		Market:                  m.ID,
		InputTokenBalances:      m.InputTokenTotalBalances,
		OutputTokenTotalSupply:  m.OutputTokenTotalSupply,
		BlockNumber:             meta.BlockNumber,
		Timestamp:               meta.BlockTimestamp,
		TransactionHash:         meta.TxHash,
		TransactionIndexInBlock: meta.TxIndex,
		LogIndex:                meta.LogIndex,
	}
	snap = snap.Clone()

	if err := r.store.InsertMarket(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert market snapshot %s: %w", snap.ID, err)
	}
	r.created.Markets = append(r.created.Markets, snap)
	return snap, nil
}

// SnapshotPair captures reserves and total supply at the given log.
func (r *Recorder) SnapshotPair(ctx context.Context, p *domain.Pair, meta event.Meta) (*domain.PairSnapshot, error) {
	snap := &domain.PairSnapshot{
		ID:                      entityid.LogKey{TxHash: meta.TxHash, LogIndex: meta.LogIndex}.String(),
		Pair:                    p.ID,
		Reserve0:                p.Reserve0,
		Reserve1:                p.Reserve1,
		TotalSupply:             p.TotalSupply,
		BlockNumber:             meta.BlockNumber,
		Timestamp:               meta.BlockTimestamp,
		TransactionHash:         meta.TxHash,
		TransactionIndexInBlock: meta.TxIndex,
		LogIndex:                meta.LogIndex,
	}
	snap = snap.Clone()

	if err := r.store.InsertPair(ctx, snap); err != nil {
		return nil, fmt.Errorf("insert pair snapshot %s: %w", snap.ID, err)
	}
	r.created.Pairs = append(r.created.Pairs, snap)
	return snap, nil
}

// Created returns the snapshots written so far.
func (r *Recorder) Created() Created {
	return r.created
}
