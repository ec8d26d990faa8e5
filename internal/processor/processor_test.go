package processor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/ledger"
	"amm-position-ledger/internal/observability"
	"amm-position-ledger/internal/snapshot"
	"amm-position-ledger/internal/storage"
	"amm-position-ledger/internal/storage/memory"
)

const (
	factoryAddr = "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f"
	pairAddr    = "0x00000000000000000000000000000000000000aa"
	token0      = "0x00000000000000000000000000000000000000a0"
	token1      = "0x00000000000000000000000000000000000000b0"
	userAddr    = "0x0000000000000000000000000000000000000001"
	peerAddr    = "0x0000000000000000000000000000000000000002"
	routerAddr  = "0x00000000000000000000000000000000000000cc"
	zero        = domain.AddressZero

	createTx = "0x01"
	mintTx   = "0x02"
	burnTx   = "0x03"
	peerTx   = "0x04"
)

func bi(v int64) *big.Int { return big.NewInt(v) }

func at(address, tx string, block uint64, logIndex uint) event.Meta {
	from := userAddr
	to := routerAddr
	return event.Meta{
		Address:        address,
		BlockNumber:    block,
		BlockTimestamp: 1_700_000_000 + block*12,
		TxHash:         tx,
		TxIndex:        0,
		LogIndex:       logIndex,
		TxFrom:         &from,
		TxTo:           &to,
	}
}

func pairCreated() event.Event {
	return &event.PairCreated{Meta: at(factoryAddr, createTx, 1, 0), Token0: token0, Token1: token1, Pair: pairAddr}
}

// First mint: lock 1000, mint 1_999_000 to user, reserves 1_000_000 / 4_000_000.
func lockTransfer() event.Event {
	return &event.Transfer{Meta: at(pairAddr, mintTx, 2, 0), From: zero, To: zero, Value: bi(domain.MinimumLiquidity)}
}

func mintTransfer() event.Event {
	return &event.Transfer{Meta: at(pairAddr, mintTx, 2, 1), From: zero, To: userAddr, Value: bi(1_999_000)}
}

func mintSync() event.Event {
	return &event.Sync{Meta: at(pairAddr, mintTx, 2, 2), Reserve0: bi(1_000_000), Reserve1: bi(4_000_000)}
}

func mintLog() event.Event {
	return &event.Mint{Meta: at(pairAddr, mintTx, 2, 3), Sender: routerAddr, Amount0: bi(1_000_000), Amount1: bi(4_000_000)}
}

func firstMint() []event.Event {
	return []event.Event{pairCreated(), lockTransfer(), mintTransfer(), mintSync(), mintLog()}
}

// Full exit of the user. Supply returns to the locked 1000.
func burnScenario() []event.Event {
	return []event.Event{
		&event.Transfer{Meta: at(pairAddr, burnTx, 3, 0), From: userAddr, To: pairAddr, Value: bi(1_999_000)},
		&event.Transfer{Meta: at(pairAddr, burnTx, 3, 1), From: pairAddr, To: zero, Value: bi(1_999_000)},
		&event.Sync{Meta: at(pairAddr, burnTx, 3, 2), Reserve0: bi(500), Reserve1: bi(2_000)},
		&event.Burn{Meta: at(pairAddr, burnTx, 3, 3), Sender: routerAddr, Amount0: bi(999_500), Amount1: bi(3_998_000), To: userAddr},
	}
}

type fixture struct {
	db      *memory.DB
	proc    *Processor
	metrics *observability.Metrics
	sink    *recordingSink
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := memory.NewDB()
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	sink := &recordingSink{}
	opts = append([]Option{WithMetrics(m), WithSnapshotSink(sink)}, opts...)
	return &fixture{db: db, proc: New(db, opts...), metrics: m, sink: sink}
}

func (f *fixture) apply(t *testing.T, events ...event.Event) {
	t.Helper()
	for _, ev := range events {
		require.NoError(t, f.proc.Process(context.Background(), ev), "process %s at log %d", ev.Kind(), ev.EventMeta().LogIndex)
	}
}

func (f *fixture) position(t *testing.T, id string) *domain.Position {
	t.Helper()
	p, err := f.db.Positions.Get(context.Background(), id)
	require.NoError(t, err, "position %s", id)
	return p
}

func (f *fixture) balance(t *testing.T, account string) *big.Int {
	t.Helper()
	b, err := ledger.New(f.db.Liquidity).Balance(context.Background(), pairAddr, account)
	require.NoError(t, err)
	return b
}

type recordingSink struct {
	batches []snapshot.Created
	err     error
}

func (s *recordingSink) WriteSnapshots(_ context.Context, created snapshot.Created) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, created)
	return nil
}

type staticMetadata map[string]domain.TokenMetadata

func (m staticMetadata) ReadMetadata(_ context.Context, token string) domain.TokenMetadata {
	return m[token]
}

const userPosition = userAddr + "-" + pairAddr + "-INVESTMENT-1"

func TestProcessor_PairCreated(t *testing.T) {
	name := "Token A"
	decimals := uint8(18)
	f := newFixture(t, WithMetadataReader(staticMetadata{
		token0: {Name: &name, Decimals: &decimals},
	}))
	ctx := context.Background()

	f.apply(t, pairCreated())

	pair, err := f.db.Pairs.Get(ctx, pairAddr)
	require.NoError(t, err)
	assert.Equal(t, factoryAddr, pair.Factory)
	assert.Equal(t, token0, pair.Token0)
	assert.Equal(t, int64(0), pair.TotalSupply.Int64())

	m, err := f.db.Markets.Get(ctx, pairAddr)
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolNameUniswapV2, m.ProtocolName)
	assert.Equal(t, []string{token0, token1}, m.InputTokens)
	assert.Equal(t, pairAddr, m.OutputToken)

	t0, err := f.db.Tokens.Get(ctx, token0)
	require.NoError(t, err)
	assert.Equal(t, "Token A", t0.Name)
	assert.Equal(t, domain.UnknownTokenField, t0.Symbol)
	require.NotNil(t, t0.Decimals)
	assert.Equal(t, uint8(18), *t0.Decimals)

	t1, err := f.db.Tokens.Get(ctx, token1)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownTokenField, t1.Name)
	assert.Nil(t, t1.Decimals)

	lp, err := f.db.Tokens.Get(ctx, pairAddr)
	require.NoError(t, err)
	require.NotNil(t, lp.MintedByMarket)
	assert.Equal(t, pairAddr, *lp.MintedByMarket)

	_, err = f.db.Accounts.Get(ctx, factoryAddr)
	assert.NoError(t, err)

	pairSnaps, _ := f.db.Snapshots.ListPairSnapshots(ctx, pairAddr)
	marketSnaps, _ := f.db.Snapshots.ListMarketSnapshots(ctx, pairAddr)
	assert.Len(t, pairSnaps, 1)
	assert.Len(t, marketSnaps, 1)
}

func TestProcessor_SecondPairCreatedSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, pairCreated())
	again := &event.PairCreated{Meta: at(factoryAddr, "0x99", 5, 0), Token0: token1, Token1: token0, Pair: pairAddr}
	f.apply(t, again)

	pair, err := f.db.Pairs.Get(ctx, pairAddr)
	require.NoError(t, err)
	assert.Equal(t, token0, pair.Token0)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EventsSkipped.WithLabelValues("pair_created", "pair_exists")))
}

func TestProcessor_MintScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, firstMint()...)

	pair, err := f.db.Pairs.Get(ctx, pairAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), pair.TotalSupply.Int64())
	assert.Equal(t, int64(1_000_000), pair.Reserve0.Int64())

	p := f.position(t, userPosition)
	assert.Equal(t, int64(1_999_000), p.OutputTokenBalance.Int64())
	assert.Equal(t, int64(999_500), p.InputTokenBalances.Get(token0).Int64())
	assert.Equal(t, int64(3_998_000), p.InputTokenBalances.Get(token1).Int64())
	assert.False(t, p.Closed)
	assert.Equal(t, uint64(1), p.HistoryCounter)

	txs, err := f.db.Transactions.ListByAccount(ctx, userAddr)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, userAddr+"-"+mintTx+"-0x3", tx.ID)
	assert.Equal(t, domain.TransactionTypeInvest, tx.TransactionType)
	assert.Equal(t, int64(1_999_000), tx.OutputTokenAmount.Int64())
	assert.Equal(t, int64(1_000_000), tx.InputTokenAmounts.Get(token0).Int64())
	assert.Equal(t, int64(4_000_000), tx.InputTokenAmounts.Get(token1).Int64())

	// The lock never becomes a position.
	_, err = f.db.AccountPositions.Get(ctx, zero+"-"+pairAddr+"-INVESTMENT")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, int64(0), f.balance(t, zero).Int64())

	m, err := f.db.Markets.Get(ctx, pairAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), m.OutputTokenTotalSupply.Int64())
	assert.Equal(t, int64(4_000_000), m.InputTokenTotalBalances.Get(token1).Int64())

	pairSnaps, _ := f.db.Snapshots.ListPairSnapshots(ctx, pairAddr)
	assert.Len(t, pairSnaps, 4, "creation, lock, share mint, sync")
	marketSnaps, _ := f.db.Snapshots.ListMarketSnapshots(ctx, pairAddr)
	require.Len(t, marketSnaps, 2, "creation and reconciliation")
	assert.Equal(t, mintTx+"3", marketSnaps[1].ID)

	mintRec, err := f.db.Correlations.GetMint(ctx, mintTx)
	require.NoError(t, err)
	assert.True(t, mintRec.Reconciled)
	assert.Equal(t, routerAddr, mintRec.Sender)

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Completions.WithLabelValues("mint")))
}

func TestProcessor_MintOrderIndependence(t *testing.T) {
	subEvents := []event.Event{mintTransfer(), mintSync(), mintLog()}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	for _, order := range orders {
		f := newFixture(t)
		f.apply(t, pairCreated(), lockTransfer())
		for _, i := range order {
			f.apply(t, subEvents[i])
		}

		p := f.position(t, userPosition)
		assert.Equal(t, int64(1_999_000), p.OutputTokenBalance.Int64(), "order %v", order)
		assert.Equal(t, int64(999_500), p.InputTokenBalances.Get(token0).Int64(), "order %v", order)
		assert.Equal(t, int64(3_998_000), p.InputTokenBalances.Get(token1).Int64(), "order %v", order)
		assert.Equal(t, uint64(1), p.HistoryCounter, "order %v", order)

		txs, _ := f.db.Transactions.ListByAccount(context.Background(), userAddr)
		require.Len(t, txs, 1, "order %v", order)
		assert.Equal(t, domain.TransactionTypeInvest, txs[0].TransactionType, "order %v", order)
	}
}

func TestProcessor_ReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, firstMint()...)
	before := f.position(t, userPosition)
	pairSnaps, _ := f.db.Snapshots.ListPairSnapshots(ctx, pairAddr)

	f.apply(t, mintSync(), mintLog(), mintTransfer())

	after := f.position(t, userPosition)
	assert.Equal(t, before.HistoryCounter, after.HistoryCounter)
	assert.Equal(t, 0, before.OutputTokenBalance.Cmp(after.OutputTokenBalance))

	pair, _ := f.db.Pairs.Get(ctx, pairAddr)
	assert.Equal(t, int64(2_000_000), pair.TotalSupply.Int64(), "replayed share mint must not double the supply")

	replayed, _ := f.db.Snapshots.ListPairSnapshots(ctx, pairAddr)
	assert.Len(t, replayed, len(pairSnaps))

	txs, _ := f.db.Transactions.ListByAccount(ctx, userAddr)
	assert.Len(t, txs, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EventsDuplicate.WithLabelValues("sync")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EventsDuplicate.WithLabelValues("mint")))
}

func TestProcessor_BurnToZeroClosesPosition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, firstMint()...)
	f.apply(t, burnScenario()...)

	p := f.position(t, userPosition)
	assert.True(t, p.Closed)
	assert.Equal(t, int64(0), p.OutputTokenBalance.Int64())
	assert.Equal(t, uint64(2), p.HistoryCounter)

	snaps, _ := f.db.Snapshots.ListPositionSnapshots(ctx, userPosition)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(1_999_000), snaps[1].OutputTokenBalance.Int64(), "second snapshot holds the pre-burn state")

	pair, _ := f.db.Pairs.Get(ctx, pairAddr)
	assert.Equal(t, int64(1000), pair.TotalSupply.Int64())
	assert.Equal(t, int64(0), f.balance(t, userAddr).Int64())
	assert.Equal(t, int64(0), f.balance(t, pairAddr).Int64())

	txs, _ := f.db.Transactions.ListByAccount(ctx, userAddr)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.TransactionTypeRedeem, txs[1].TransactionType)
	assert.Equal(t, int64(999_500), txs[1].InputTokenAmounts.Get(token0).Int64())

	burnRec, _ := f.db.Correlations.GetBurn(ctx, burnTx)
	assert.Equal(t, userAddr, burnRec.Recipient)

	// Re-entering opens a new version.
	remint := []event.Event{
		&event.Transfer{Meta: at(pairAddr, "0x05", 4, 0), From: zero, To: userAddr, Value: bi(1000)},
		&event.Sync{Meta: at(pairAddr, "0x05", 4, 1), Reserve0: bi(1000), Reserve1: bi(4000)},
		&event.Mint{Meta: at(pairAddr, "0x05", 4, 2), Sender: routerAddr, Amount0: bi(500), Amount1: bi(2000)},
	}
	f.apply(t, remint...)

	next := f.position(t, userAddr+"-"+pairAddr+"-INVESTMENT-2")
	assert.False(t, next.Closed)
	assert.Equal(t, int64(1000), next.OutputTokenBalance.Int64())
	assert.Equal(t, int64(500), next.InputTokenBalances.Get(token0).Int64())

	ap, _ := f.db.AccountPositions.Get(ctx, userAddr+"-"+pairAddr+"-INVESTMENT")
	assert.Equal(t, uint64(2), ap.PositionCounter)
}

func TestProcessor_PeerTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, firstMint()...)
	f.apply(t, &event.Transfer{Meta: at(pairAddr, peerTx, 5, 7), From: userAddr, To: peerAddr, Value: bi(499_000)})

	sender := f.position(t, userPosition)
	assert.Equal(t, int64(1_500_000), sender.OutputTokenBalance.Int64())
	assert.Equal(t, []string{peerAddr}, sender.TransferredTo)
	assert.Equal(t, int64(750_000), sender.InputTokenBalances.Get(token0).Int64())

	receiver := f.position(t, peerAddr+"-"+pairAddr+"-INVESTMENT-1")
	assert.Equal(t, int64(499_000), receiver.OutputTokenBalance.Int64())
	assert.Equal(t, int64(998_000), receiver.InputTokenBalances.Get(token1).Int64())

	out, err := f.db.Transactions.Get(ctx, userAddr+"-"+peerTx+"-0x7")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeTransferOut, out.TransactionType)
	require.NotNil(t, out.TransferredTo)
	assert.Equal(t, peerAddr, *out.TransferredTo)

	in, err := f.db.Transactions.Get(ctx, peerAddr+"-"+peerTx+"-0x7")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeTransferIn, in.TransactionType)
	require.NotNil(t, in.TransferredFrom)
	assert.Equal(t, userAddr, *in.TransferredFrom)

	// Shares are conserved across holders.
	total := new(big.Int).Add(f.balance(t, userAddr), f.balance(t, peerAddr))
	assert.Equal(t, int64(1_999_000), total.Int64())
}

func TestProcessor_ZeroValueTransferIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, firstMint()...)
	f.apply(t, &event.Transfer{Meta: at(pairAddr, peerTx, 5, 0), From: userAddr, To: peerAddr, Value: bi(0)})

	txs, _ := f.db.Transactions.ListByAccount(ctx, userAddr)
	assert.Len(t, txs, 1)
	_, err := f.db.Positions.Get(ctx, peerAddr+"-"+pairAddr+"-INVESTMENT-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessor_MissingPairSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := &event.Sync{Meta: at(pairAddr, "0x77", 9, 0), Reserve0: bi(1), Reserve1: bi(1)}
	require.NoError(t, f.proc.Process(ctx, ev))

	done, err := f.db.ProcessedLogs.IsProcessed(ctx, "0x77-0")
	require.NoError(t, err)
	assert.True(t, done, "skipped events are marked processed")

	ok, _ := f.db.Correlations.HasSyncMarker(ctx, pairAddr, "0x77")
	assert.False(t, ok, "nothing is written for a skipped event")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EventsSkipped.WithLabelValues("sync", "missing_entity")))
}

func TestProcessor_NegativeBalanceRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, firstMint()...)
	bad := &event.Transfer{Meta: at(pairAddr, peerTx, 5, 0), From: peerAddr, To: userAddr, Value: bi(1)}

	err := f.proc.Process(ctx, bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.True(t, errors.Is(err, ledger.ErrNegativeBalance))

	assert.Equal(t, int64(1_999_000), f.balance(t, userAddr).Int64(), "credit side rolled back")
	done, _ := f.db.ProcessedLogs.IsProcessed(ctx, peerTx+"-0")
	assert.False(t, done, "failed event is not marked processed")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.InvariantViolations.WithLabelValues("transfer")))
}

func TestProcessor_ProcessAllHaltPolicy(t *testing.T) {
	bad := &event.Transfer{Meta: at(pairAddr, peerTx, 5, 0), From: peerAddr, To: userAddr, Value: bi(1)}
	after := &event.Sync{Meta: at(pairAddr, peerTx, 5, 1), Reserve0: bi(7), Reserve1: bi(7)}
	events := append(firstMint(), bad, after)

	halting := newFixture(t)
	err := halting.proc.ProcessAll(context.Background(), events)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	pair, _ := halting.db.Pairs.Get(context.Background(), pairAddr)
	assert.Equal(t, int64(1_000_000), pair.Reserve0.Int64(), "halted before the later sync")

	lenient := newFixture(t, WithHaltOnInvariant(false))
	require.NoError(t, lenient.proc.ProcessAll(context.Background(), events))
	pair, _ = lenient.db.Pairs.Get(context.Background(), pairAddr)
	assert.Equal(t, int64(7), pair.Reserve0.Int64(), "continued past the violation")
}

func TestProcessor_ProcessAllRejectsDisorder(t *testing.T) {
	f := newFixture(t)
	events := []event.Event{mintSync(), mintTransfer()}
	assert.ErrorIs(t, f.proc.ProcessAll(context.Background(), events), event.ErrInvalidOrdering)
}

func TestProcessor_SnapshotsForwardedToSink(t *testing.T) {
	f := newFixture(t)

	f.apply(t, firstMint()...)

	var pairs, markets, positions int
	for _, c := range f.sink.batches {
		pairs += len(c.Pairs)
		markets += len(c.Markets)
		positions += len(c.Positions)
	}
	assert.Equal(t, 4, pairs)
	assert.Equal(t, 2, markets)
	assert.Equal(t, 1, positions)
}

func TestProcessor_SinkFailureDoesNotFailEvent(t *testing.T) {
	f := newFixture(t)
	f.sink.err = errors.New("clickhouse down")

	f.apply(t, firstMint()...)

	_ = f.position(t, userPosition)
	assert.Equal(t, float64(len(firstMint())), testutil.ToFloat64(f.metrics.SinkErrors))
}
