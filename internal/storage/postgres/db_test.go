package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/processor"
	"amm-position-ledger/internal/storage"
)

func TestDB_RunInTxCommits(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	db := NewDB(pool)

	err := db.RunInTx(ctx, func(ctx context.Context, s *storage.Stores) error {
		if err := s.Accounts.Ensure(ctx, &domain.Account{ID: "0x01"}); err != nil {
			return err
		}
		return s.ProcessedLogs.MarkProcessed(ctx, "0xbb-0")
	})
	require.NoError(t, err)

	_, err = db.Stores().Accounts.Get(ctx, "0x01")
	require.NoError(t, err)
	ok, err := db.Stores().ProcessedLogs.IsProcessed(ctx, "0xbb-0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDB_RunInTxRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	db := NewDB(pool)
	errBoom := errors.New("boom")

	err := db.RunInTx(ctx, func(ctx context.Context, s *storage.Stores) error {
		if err := s.Accounts.Ensure(ctx, &domain.Account{ID: "0x01"}); err != nil {
			return err
		}
		if err := s.Liquidity.Put(ctx, &domain.AccountLiquidity{Pair: "0xaa", Account: "0x01", Balance: big.NewInt(7)}); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	_, err = db.Stores().Accounts.Get(ctx, "0x01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = db.Stores().Liquidity.Get(ctx, "0xaa", "0x01")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNumeric_LargeValuesRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "1000000000000000000000", maxUint256} {
		v := mustBig(t, s)
		assert.Equal(t, s, bigInt(numeric(v)).String())
	}
	assert.Nil(t, bigInt(numeric(nil)))

	// pgx may decode trailing zeros as a positive exponent.
	assert.Equal(t, "12000", bigInt(pgtype.Numeric{Int: big.NewInt(12), Exp: 3, Valid: true}).String())
}

// Drives the processor through Postgres: pair creation and a first mint in one pass.
func TestDB_ProcessorFirstMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	db := NewDB(pool)
	proc := processor.New(db)

	const (
		factory = "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"
		pair    = "0x00000000000000000000000000000000000000aa"
		token0  = "0x00000000000000000000000000000000000000a0"
		token1  = "0x00000000000000000000000000000000000000b0"
		user    = "0x0000000000000000000000000000000000000001"
		router  = "0x00000000000000000000000000000000000000cc"
	)
	meta := func(address, tx string, block uint64, logIndex uint) event.Meta {
		return event.Meta{Address: address, BlockNumber: block, BlockTimestamp: 1_700_000_000, TxHash: tx, LogIndex: logIndex}
	}
	events := []event.Event{
		&event.PairCreated{Meta: meta(factory, "0x01", 1, 0), Token0: token0, Token1: token1, Pair: pair},
		&event.Transfer{Meta: meta(pair, "0x02", 2, 0), From: domain.AddressZero, To: domain.AddressZero, Value: big.NewInt(domain.MinimumLiquidity)},
		&event.Transfer{Meta: meta(pair, "0x02", 2, 1), From: domain.AddressZero, To: user, Value: big.NewInt(1_999_000)},
		&event.Sync{Meta: meta(pair, "0x02", 2, 2), Reserve0: big.NewInt(1_000_000), Reserve1: big.NewInt(4_000_000)},
		&event.Mint{Meta: meta(pair, "0x02", 2, 3), Sender: router, Amount0: big.NewInt(1_000_000), Amount1: big.NewInt(4_000_000)},
	}
	require.NoError(t, proc.ProcessAll(ctx, events))

	// Replaying the same window changes nothing.
	require.NoError(t, proc.ProcessAll(ctx, events))

	stores := db.Stores()
	positions, err := stores.Positions.ListByAccount(ctx, user)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "1999000", positions[0].OutputTokenBalance.String())
	assert.Equal(t, "999500", positions[0].InputTokenBalances.Get(token0).String())

	txs, err := stores.Transactions.ListByAccount(ctx, user)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TransactionTypeInvest, txs[0].TransactionType)

	p, err := stores.Pairs.Get(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, "2000000", p.TotalSupply.String())
}
