package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

func TestCorrelationStore_MintPutAndGet(t *testing.T) {
	db := NewDB()
	ctx := context.Background()

	if _, err := db.Correlations.GetMint(ctx, "0xtx"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m := &domain.Mint{ID: "0xtx", Pair: "0xp", To: "0xu", LiquidityAmount: big.NewInt(5), TransferEventApplied: true}
	if err := db.Correlations.PutMint(ctx, m); err != nil {
		t.Fatalf("PutMint failed: %v", err)
	}

	m.SyncEventApplied = true
	if err := db.Correlations.PutMint(ctx, m); err != nil {
		t.Fatalf("PutMint overwrite failed: %v", err)
	}

	got, err := db.Correlations.GetMint(ctx, "0xtx")
	if err != nil {
		t.Fatalf("GetMint failed: %v", err)
	}
	if !got.TransferEventApplied || !got.SyncEventApplied || got.MintEventApplied {
		t.Errorf("unexpected flags: %+v", got)
	}
}

func TestCorrelationStore_SyncMarker(t *testing.T) {
	db := NewDB()
	ctx := context.Background()

	ok, err := db.Correlations.HasSyncMarker(ctx, "0xp", "0xtx")
	if err != nil || ok {
		t.Fatalf("expected no marker, got %v %v", ok, err)
	}

	marker := &domain.SyncMarker{Pair: "0xp", TxHash: "0xtx"}
	if err := db.Correlations.PutSyncMarker(ctx, marker); err != nil {
		t.Fatalf("PutSyncMarker failed: %v", err)
	}
	if err := db.Correlations.PutSyncMarker(ctx, marker); err != nil {
		t.Fatalf("PutSyncMarker should be idempotent: %v", err)
	}

	ok, _ = db.Correlations.HasSyncMarker(ctx, "0xp", "0xtx")
	if !ok {
		t.Error("expected marker for (0xp, 0xtx)")
	}
	ok, _ = db.Correlations.HasSyncMarker(ctx, "0xother", "0xtx")
	if ok {
		t.Error("marker should be scoped to its pair")
	}
}

func TestProcessedLogStore_Duplicate(t *testing.T) {
	db := NewDB()
	ctx := context.Background()

	if err := db.ProcessedLogs.MarkProcessed(ctx, "0xtx-3"); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if err := db.ProcessedLogs.MarkProcessed(ctx, "0xtx-3"); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := db.ProcessedLogs.IsProcessed(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProgressStore_GetSet(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	if _, err := store.GetProgress(ctx, "uniswap-v2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetProgress(ctx, &storage.Progress{Name: "uniswap-v2", LastBlock: 42}); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	p, err := store.GetProgress(ctx, "uniswap-v2")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if p.LastBlock != 42 {
		t.Errorf("LastBlock = %d, want 42", p.LastBlock)
	}

	if err := store.SetProgress(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
