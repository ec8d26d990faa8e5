package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/storage"
)

func TestSnapshotStore_PositionSnapshotsInInsertionOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	position := "0x01-0xaa-INVESTMENT-1"
	// Ids sort differently from insertion order.
	for _, id := range []string{position + "-9", position + "-10", position + "-11"} {
		require.NoError(t, store.InsertPosition(ctx, &domain.PositionSnapshot{
			ID:                 id,
			Position:           position,
			Transaction:        "0x01-0x02-0x1",
			OutputTokenBalance: big.NewInt(1),
			InputTokenBalances: domain.NewBalances(domain.NewTokenBalance("0xa0", "0x01", big.NewInt(2))),
		}))
	}
	err := store.InsertPosition(ctx, &domain.PositionSnapshot{ID: position + "-9", Position: position, OutputTokenBalance: big.NewInt(1)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	snaps, err := store.ListPositionSnapshots(ctx, position)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, position+"-9", snaps[0].ID)
	assert.Equal(t, position+"-10", snaps[1].ID)
	assert.Equal(t, position+"-11", snaps[2].ID)
	assert.Equal(t, "2", snaps[0].InputTokenBalances.Get("0xa0").String())
	assert.Empty(t, snaps[0].RewardTokenBalances)
}

func TestSnapshotStore_MarketAndPairInChainOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	type at struct {
		block    uint64
		txIndex  uint
		logIndex uint
	}
	positions := []at{{5, 1, 0}, {5, 0, 7}, {4, 3, 2}}
	for i, p := range positions {
		id := "0xtx" + string(rune('a'+i))
		require.NoError(t, store.InsertPair(ctx, &domain.PairSnapshot{
			ID:                      id,
			Pair:                    "0xaa",
			Reserve0:                big.NewInt(int64(i)),
			Reserve1:                big.NewInt(0),
			TotalSupply:             big.NewInt(0),
			BlockNumber:             p.block,
			TransactionHash:         id,
			TransactionIndexInBlock: p.txIndex,
			LogIndex:                p.logIndex,
		}))
		require.NoError(t, store.InsertMarket(ctx, &domain.MarketSnapshot{
			ID:                      id,
			Market:                  "0xaa",
			InputTokenBalances:      domain.NewBalances(domain.NewTokenBalance("0xa0", "0xaa", big.NewInt(int64(i)))),
			BlockNumber:             p.block,
			TransactionHash:         id,
			TransactionIndexInBlock: p.txIndex,
			LogIndex:                p.logIndex,
		}))
	}

	pairs, err := store.ListPairSnapshots(ctx, "0xaa")
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, []string{"2", "1", "0"}, []string{
		pairs[0].Reserve0.String(), pairs[1].Reserve0.String(), pairs[2].Reserve0.String(),
	})

	markets, err := store.ListMarketSnapshots(ctx, "0xaa")
	require.NoError(t, err)
	require.Len(t, markets, 3)
	assert.Equal(t, "0xtxc", markets[0].ID)
	assert.Equal(t, "0xtxb", markets[1].ID)
	assert.Nil(t, markets[0].OutputTokenTotalSupply)

	err = store.InsertPair(ctx, &domain.PairSnapshot{ID: "0xtxa", Pair: "0xaa",
		Reserve0: big.NewInt(0), Reserve1: big.NewInt(0), TotalSupply: big.NewInt(0)})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTransactionStore_InsertGetList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransactionStore(pool)

	invest := &domain.Transaction{
		ID:              "0x01-0xbb-0x3",
		Account:         "0x01",
		TransactionHash: "0xbb",
		Market:          "0xaa",
		From:            ptr("0x01"),
		To:              ptr("0xcc"),
		TransactionType: domain.TransactionTypeInvest,
		InputTokenAmounts: domain.NewBalances(
			domain.NewTokenBalance("0xa0", "0x01", big.NewInt(1_000_000)),
			domain.NewTokenBalance("0xb0", "0x01", big.NewInt(4_000_000)),
		),
		OutputTokenAmount: big.NewInt(1_999_000),
		BlockNumber:       2,
		LogIndex:          3,
	}
	transferOut := &domain.Transaction{
		ID:                "0x01-0xcc-0x0",
		Account:           "0x01",
		TransactionHash:   "0xcc",
		Market:            "0xaa",
		TransactionType:   domain.TransactionTypeTransferOut,
		TransferredTo:     ptr("0x02"),
		OutputTokenAmount: big.NewInt(500),
		BlockNumber:       1,
	}

	require.NoError(t, store.Insert(ctx, invest))
	require.NoError(t, store.Insert(ctx, transferOut))
	assert.ErrorIs(t, store.Insert(ctx, invest), storage.ErrDuplicateKey)

	got, err := store.Get(ctx, invest.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeInvest, got.TransactionType)
	require.NotNil(t, got.From)
	assert.Equal(t, "0x01", *got.From)
	assert.Nil(t, got.TransferredTo)
	assert.True(t, got.InputTokenAmounts.Equal(invest.InputTokenAmounts))
	assert.Equal(t, uint(3), got.LogIndex)

	list, err := store.ListByAccount(ctx, "0x01")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, transferOut.ID, list[0].ID)
	assert.Nil(t, list[0].From)
	require.NotNil(t, list[0].TransferredTo)
	assert.Equal(t, "0x02", *list[0].TransferredTo)
	assert.Empty(t, list[0].InputTokenAmounts)

	_, err = store.Get(ctx, "0x02-0xbb-0x3")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCorrelationStore_MintBurnAndMarkers(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCorrelationStore(pool)

	_, err := store.GetMint(ctx, "0xbb")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mint := &domain.Mint{ID: "0xbb", Pair: "0xaa", SyncEventApplied: true}
	require.NoError(t, store.PutMint(ctx, mint))

	mint.To = "0x01"
	mint.LiquidityAmount = big.NewInt(1_999_000)
	mint.TransferEventApplied = true
	require.NoError(t, store.PutMint(ctx, mint))

	got, err := store.GetMint(ctx, "0xbb")
	require.NoError(t, err)
	assert.Equal(t, "0x01", got.To)
	assert.Equal(t, "1999000", got.LiquidityAmount.String())
	assert.Nil(t, got.Amount0)
	assert.True(t, got.TransferEventApplied)
	assert.True(t, got.SyncEventApplied)
	assert.False(t, got.IsComplete())

	burn := &domain.Burn{
		ID:                   "0xdd",
		Pair:                 "0xaa",
		To:                   "0x01",
		Recipient:            "0x03",
		Sender:               "0xcc",
		LiquidityAmount:      big.NewInt(10),
		Amount0:              big.NewInt(5),
		Amount1:              big.NewInt(20),
		TransferEventApplied: true,
		SyncEventApplied:     true,
		BurnEventApplied:     true,
		Reconciled:           true,
	}
	require.NoError(t, store.PutBurn(ctx, burn))

	gotBurn, err := store.GetBurn(ctx, "0xdd")
	require.NoError(t, err)
	assert.Equal(t, "0x03", gotBurn.Recipient)
	assert.True(t, gotBurn.IsComplete())
	assert.True(t, gotBurn.Reconciled)
	assert.Equal(t, "20", gotBurn.Amount1.String())

	has, err := store.HasSyncMarker(ctx, "0xaa", "0xee")
	require.NoError(t, err)
	assert.False(t, has)

	marker := &domain.SyncMarker{Pair: "0xaa", TxHash: "0xee"}
	require.NoError(t, store.PutSyncMarker(ctx, marker))
	require.NoError(t, store.PutSyncMarker(ctx, marker))

	has, err = store.HasSyncMarker(ctx, "0xaa", "0xee")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestProcessedLogAndProgressStores(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	logs := NewProcessedLogStore(pool)

	ok, err := logs.IsProcessed(ctx, "0xbb-3")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, logs.MarkProcessed(ctx, "0xbb-3"))
	assert.ErrorIs(t, logs.MarkProcessed(ctx, "0xbb-3"), storage.ErrDuplicateKey)

	ok, err = logs.IsProcessed(ctx, "0xbb-3")
	require.NoError(t, err)
	assert.True(t, ok)

	progress := NewProgressStore(pool)
	_, err = progress.GetProgress(ctx, "uniswap-v2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, progress.SetProgress(ctx, &storage.Progress{Name: "uniswap-v2", LastBlock: 100}))
	require.NoError(t, progress.SetProgress(ctx, &storage.Progress{Name: "uniswap-v2", LastBlock: 250}))

	got, err := progress.GetProgress(ctx, "uniswap-v2")
	require.NoError(t, err)
	assert.Equal(t, uint64(250), got.LastBlock)

	assert.ErrorIs(t, progress.SetProgress(ctx, nil), storage.ErrInvalidInput)
}
