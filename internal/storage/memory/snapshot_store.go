package memory

import (
	"context"
	"sort"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// All snapshot collections are append-only.
type SnapshotStore struct {
	positions *table[*domain.PositionSnapshot]
	markets   *table[*domain.MarketSnapshot]
	pairs     *table[*domain.PairSnapshot]
}

func newSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{
		positions: newTable(db, (*domain.PositionSnapshot).Clone),
		markets:   newTable(db, (*domain.MarketSnapshot).Clone),
		pairs:     newTable(db, (*domain.PairSnapshot).Clone),
	}
}

// InsertPosition adds a position snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) InsertPosition(_ context.Context, snap *domain.PositionSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.positions.insert(snap.ID, snap)
}

// InsertMarket adds a market snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) InsertMarket(_ context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.markets.insert(snap.ID, snap)
}

// InsertPair adds a pair snapshot. Returns ErrDuplicateKey if id exists.
func (s *SnapshotStore) InsertPair(_ context.Context, snap *domain.PairSnapshot) error {
	if snap == nil || snap.ID == "" {
		return storage.ErrInvalidInput
	}
	return s.pairs.insert(snap.ID, snap)
}

// ListPositionSnapshots returns snapshots of a position in insertion order.
func (s *SnapshotStore) ListPositionSnapshots(_ context.Context, position string) ([]*domain.PositionSnapshot, error) {
	return s.positions.list(func(snap *domain.PositionSnapshot) bool {
		return snap.Position == position
	}), nil
}

// ListMarketSnapshots returns snapshots of a market in chain order.
func (s *SnapshotStore) ListMarketSnapshots(_ context.Context, market string) ([]*domain.MarketSnapshot, error) {
	snaps := s.markets.list(func(snap *domain.MarketSnapshot) bool {
		return snap.Market == market
	})
	sort.SliceStable(snaps, func(i, j int) bool {
		return chainLess(
			snaps[i].BlockNumber, snaps[i].TransactionIndexInBlock, snaps[i].LogIndex,
			snaps[j].BlockNumber, snaps[j].TransactionIndexInBlock, snaps[j].LogIndex,
		)
	})
	return snaps, nil
}

// ListPairSnapshots returns snapshots of a pair in chain order.
func (s *SnapshotStore) ListPairSnapshots(_ context.Context, pair string) ([]*domain.PairSnapshot, error) {
	snaps := s.pairs.list(func(snap *domain.PairSnapshot) bool {
		return snap.Pair == pair
	})
	sort.SliceStable(snaps, func(i, j int) bool {
		return chainLess(
			snaps[i].BlockNumber, snaps[i].TransactionIndexInBlock, snaps[i].LogIndex,
			snaps[j].BlockNumber, snaps[j].TransactionIndexInBlock, snaps[j].LogIndex,
		)
	})
	return snaps, nil
}

// chainLess orders by (block, tx index, log index).
func chainLess(blockA uint64, txA, logA uint, blockB uint64, txB, logB uint) bool {
	if blockA != blockB {
		return blockA < blockB
	}
	if txA != txB {
		return txA < txB
	}
	return logA < logB
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
