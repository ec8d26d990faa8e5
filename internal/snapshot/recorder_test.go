package snapshot

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/storage"
	"amm-position-ledger/internal/storage/memory"
)

func TestRecorder_SnapshotPositionCapturesPriorState(t *testing.T) {
	db := memory.NewDB()
	r := NewRecorder(db.Snapshots)
	ctx := context.Background()

	p := &domain.Position{
		ID:                 "0xu-0xp-INVESTMENT-1",
		OutputTokenBalance: big.NewInt(100),
		InputTokenBalances: domain.NewBalances(domain.NewTokenBalance("0xa", "0xu", big.NewInt(7))),
		TransferredTo:      []string{"0xv"},
		HistoryCounter:     2,
	}
	tx := &domain.Transaction{ID: "0xu-0xabc-0x3", BlockNumber: 50, Timestamp: 1234}

	snap, err := r.SnapshotPosition(ctx, p, tx)
	if err != nil {
		t.Fatalf("SnapshotPosition failed: %v", err)
	}

	if snap.ID != "0xu-0xp-INVESTMENT-1-3" {
		t.Errorf("ID = %s, want 0xu-0xp-INVESTMENT-1-3", snap.ID)
	}
	if p.HistoryCounter != 3 || p.BlockNumber != 50 || p.Timestamp != 1234 {
		t.Errorf("position not advanced: %+v", p)
	}

	// Mutating the live position must not reach the snapshot.
	p.OutputTokenBalance.SetInt64(0)
	p.TransferredTo[0] = "0xw"

	stored, _ := db.Snapshots.ListPositionSnapshots(ctx, p.ID)
	if len(stored) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(stored))
	}
	if stored[0].OutputTokenBalance.Int64() != 100 || stored[0].TransferredTo[0] != "0xv" {
		t.Errorf("snapshot changed with position: %+v", stored[0])
	}
	if snap.OutputTokenBalance.Int64() != 100 {
		t.Errorf("returned snapshot changed with position: %s", snap.OutputTokenBalance)
	}
}

func TestRecorder_PairAndMarketIDs(t *testing.T) {
	db := memory.NewDB()
	r := NewRecorder(db.Snapshots)
	ctx := context.Background()

	meta := event.Meta{TxHash: "0xabc", LogIndex: 26, BlockNumber: 9, BlockTimestamp: 99, TxIndex: 4}
	pair := &domain.Pair{ID: "0xp", Reserve0: big.NewInt(1), Reserve1: big.NewInt(2), TotalSupply: big.NewInt(3)}
	market := &domain.Market{ID: "0xp", OutputTokenTotalSupply: big.NewInt(3)}

	ps, err := r.SnapshotPair(ctx, pair, meta)
	if err != nil {
		t.Fatalf("SnapshotPair failed: %v", err)
	}
	ms, err := r.SnapshotMarket(ctx, market, meta)
	if err != nil {
		t.Fatalf("SnapshotMarket failed: %v", err)
	}

	if ps.ID != "0xabc26" || ms.ID != "0xabc26" {
		t.Errorf("ids = %s, %s, want 0xabc26", ps.ID, ms.ID)
	}
	if ps.BlockNumber != 9 || ps.TransactionIndexInBlock != 4 || ps.Timestamp != 99 {
		t.Errorf("pair snapshot position fields wrong: %+v", ps)
	}

	if _, err := r.SnapshotPair(ctx, pair, meta); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey on reuse, got %v", err)
	}

	created := r.Created()
	if len(created.Pairs) != 1 || len(created.Markets) != 1 || created.Len() != 2 {
		t.Errorf("unexpected created set: %+v", created)
	}
}
