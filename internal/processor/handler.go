package processor

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"amm-position-ledger/internal/correlation"
	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/ledger"
	"amm-position-ledger/internal/observability"
	"amm-position-ledger/internal/position"
	"amm-position-ledger/internal/snapshot"
	"amm-position-ledger/internal/storage"
	"amm-position-ledger/internal/txledger"
)

var minimumLiquidity = big.NewInt(domain.MinimumLiquidity)

// Handler applies single events against one set of stores.
// It is built per unit of work; all writes go through s.
type Handler struct {
	stores     *storage.Stores
	ledger     *ledger.Ledger
	correlator *correlation.Correlator
	accountant *position.Accountant
	snapshots  *snapshot.Recorder
	metadata   MetadataReader
	log        zerolog.Logger
	metrics    *observability.Metrics
}

// NewHandler wires the ledger components over s. metadata and metrics may be nil.
func NewHandler(s *storage.Stores, snapshots *snapshot.Recorder, metadata MetadataReader, log zerolog.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		stores:     s,
		ledger:     ledger.New(s.Liquidity),
		correlator: correlation.New(s.Correlations, log, metrics),
		accountant: position.New(s, txledger.New(s.Transactions), snapshots),
		snapshots:  snapshots,
		metadata:   metadata,
		log:        log,
		metrics:    metrics,
	}
}

// Handle dispatches ev by kind.
func (h *Handler) Handle(ctx context.Context, ev event.Event) error {
	switch e := ev.(type) {
	case *event.PairCreated:
		return h.HandlePairCreated(ctx, e)
	case *event.Transfer:
		return h.HandleTransfer(ctx, e)
	case *event.Mint:
		return h.HandleMint(ctx, e)
	case *event.Burn:
		return h.HandleBurn(ctx, e)
	case *event.Sync:
		return h.HandleSync(ctx, e)
	default:
		return fmt.Errorf("unsupported event kind %q", ev.Kind())
	}
}

// HandlePairCreated registers the pool, its tokens and its market.
// A pool that already exists is left untouched.
func (h *Handler) HandlePairCreated(ctx context.Context, e *event.PairCreated) error {
	if _, err := h.stores.Pairs.Get(ctx, e.Pair); err == nil {
		h.metrics.RecordSkipped(string(e.Kind()), "pair_exists")
		h.log.Warn().Str("pair", e.Pair).Str("tx", e.TxHash).Msg("pair already created")
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get pair %s: %w", e.Pair, err)
	}

	for _, id := range []string{e.Address, e.Pair} {
		if err := h.stores.Accounts.Ensure(ctx, &domain.Account{ID: id}); err != nil {
			return fmt.Errorf("ensure account %s: %w", id, err)
		}
	}

	market := e.Pair
	if err := h.ensureToken(ctx, e.Token0, e.Meta, nil); err != nil {
		return err
	}
	if err := h.ensureToken(ctx, e.Token1, e.Meta, nil); err != nil {
		return err
	}
	if err := h.ensureToken(ctx, e.Pair, e.Meta, &market); err != nil {
		return err
	}

	pair := &domain.Pair{
		ID:          e.Pair,
		Factory:     e.Address,
		Token0:      e.Token0,
		Token1:      e.Token1,
		Reserve0:    new(big.Int),
		Reserve1:    new(big.Int),
		TotalSupply: new(big.Int),
		BlockNumber: e.BlockNumber,
		Timestamp:   e.BlockTimestamp,
	}
	if err := h.stores.Pairs.Insert(ctx, pair); err != nil {
		return fmt.Errorf("insert pair %s: %w", pair.ID, err)
	}

	m := &domain.Market{
		ID:           e.Pair,
		Account:      e.Pair,
		ProtocolName: domain.ProtocolNameUniswapV2,
		ProtocolType: domain.ProtocolTypeExchange,
		InputTokens:  []string{e.Token0, e.Token1},
		OutputToken:  e.Pair,
		RewardTokens: []string{},
		BlockNumber:  e.BlockNumber,
		Timestamp:    e.BlockTimestamp,
	}
	m.MirrorPair(pair)
	if err := h.stores.Markets.Insert(ctx, m); err != nil {
		return fmt.Errorf("insert market %s: %w", m.ID, err)
	}

	if _, err := h.snapshots.SnapshotPair(ctx, pair, e.Meta); err != nil {
		return err
	}
	if _, err := h.snapshots.SnapshotMarket(ctx, m, e.Meta); err != nil {
		return err
	}

	h.log.Info().
		Str("pair", pair.ID).
		Str("token0", pair.Token0).
		Str("token1", pair.Token1).
		Uint64("block", pair.BlockNumber).
		Msg("pair created")
	return nil
}

// HandleTransfer classifies a pool share transfer and applies it.
func (h *Handler) HandleTransfer(ctx context.Context, e *event.Transfer) error {
	if e.Value == nil || e.Value.Sign() == 0 {
		return nil
	}

	pair, err := h.pair(ctx, e.Address)
	if err != nil {
		return err
	}

	from, to, value := e.From, e.To, e.Value

	switch {
	case from == domain.AddressZero && to == domain.AddressZero:
		if pair.TotalSupply.Sign() != 0 || value.Cmp(minimumLiquidity) != 0 {
			h.log.Warn().Str("pair", pair.ID).Str("tx", e.TxHash).Str("value", value.String()).
				Msg("null-to-null transfer outside the minimum liquidity lock")
		}
		pair.TotalSupply.Add(pair.TotalSupply, value)
		return h.savePairWithSnapshot(ctx, pair, e.Meta)

	case from == domain.AddressZero:
		pair.TotalSupply.Add(pair.TotalSupply, value)
		if _, err := h.ledger.Credit(ctx, pair.ID, to, value); err != nil {
			return err
		}
		if err := h.savePairWithSnapshot(ctx, pair, e.Meta); err != nil {
			return err
		}
		done, err := h.correlator.OnTransferMint(ctx, e.Meta, to, value)
		if err != nil {
			return err
		}
		return h.reconcile(ctx, pair, e.Meta, done)

	case to == pair.ID:
		if _, err := h.ledger.Debit(ctx, pair.ID, from, value); err != nil {
			return err
		}
		if _, err := h.ledger.Credit(ctx, pair.ID, pair.ID, value); err != nil {
			return err
		}
		done, err := h.correlator.OnTransferBurn(ctx, e.Meta, from, value)
		if err != nil {
			return err
		}
		return h.reconcile(ctx, pair, e.Meta, done)

	case from == pair.ID && to == domain.AddressZero:
		if _, err := h.ledger.Debit(ctx, pair.ID, pair.ID, value); err != nil {
			return err
		}
		if pair.TotalSupply.Cmp(value) < 0 {
			return fmt.Errorf("burn %s from %s with supply %s: %w", value, pair.ID, pair.TotalSupply, ErrNegativeSupply)
		}
		pair.TotalSupply.Sub(pair.TotalSupply, value)
		if err := h.savePairWithSnapshot(ctx, pair, e.Meta); err != nil {
			return err
		}
		done, err := h.correlator.OnBurnSupply(ctx, e.Meta, value)
		if err != nil {
			return err
		}
		return h.reconcile(ctx, pair, e.Meta, done)

	default:
		if _, err := h.ledger.Debit(ctx, pair.ID, from, value); err != nil {
			return err
		}
		if _, err := h.ledger.Credit(ctx, pair.ID, to, value); err != nil {
			return err
		}
		return h.peerTransfer(ctx, pair, e.Meta, from, to, value)
	}
}

// HandleMint applies a Mint amounts log.
func (h *Handler) HandleMint(ctx context.Context, e *event.Mint) error {
	pair, err := h.pair(ctx, e.Address)
	if err != nil {
		return err
	}
	done, err := h.correlator.OnMint(ctx, e.Meta, e.Sender, e.Amount0, e.Amount1)
	if err != nil {
		return err
	}
	return h.reconcile(ctx, pair, e.Meta, done)
}

// HandleBurn applies a Burn amounts log.
func (h *Handler) HandleBurn(ctx context.Context, e *event.Burn) error {
	pair, err := h.pair(ctx, e.Address)
	if err != nil {
		return err
	}
	done, err := h.correlator.OnBurn(ctx, e.Meta, e.Sender, e.To, e.Amount0, e.Amount1)
	if err != nil {
		return err
	}
	return h.reconcile(ctx, pair, e.Meta, done)
}

// HandleSync updates reserves and applies the sync to pending records.
func (h *Handler) HandleSync(ctx context.Context, e *event.Sync) error {
	pair, err := h.pair(ctx, e.Address)
	if err != nil {
		return err
	}

	pair.Reserve0 = new(big.Int).Set(e.Reserve0)
	pair.Reserve1 = new(big.Int).Set(e.Reserve1)
	if err := h.savePairWithSnapshot(ctx, pair, e.Meta); err != nil {
		return err
	}

	done, err := h.correlator.OnSync(ctx, e.Meta)
	if err != nil {
		return err
	}
	return h.reconcile(ctx, pair, e.Meta, done...)
}

// peerTransfer moves a position between two accounts. The balances are already updated.
func (h *Handler) peerTransfer(ctx context.Context, pair *domain.Pair, meta event.Meta, from, to string, value *big.Int) error {
	if from == to {
		return nil
	}

	if isHolder(pair, from) {
		bal, err := h.ledger.Balance(ctx, pair.ID, from)
		if err != nil {
			return err
		}
		receiver := to
		if _, err := h.accountant.Redeem(ctx, position.Action{
			Meta:               meta,
			Account:            from,
			Market:             pair.ID,
			OutputTokenAmount:  value,
			OutputTokenBalance: bal,
			InputTokenBalances: ledger.InputBalances(pair, from, bal),
			TransferredTo:      &receiver,
		}); err != nil {
			return err
		}
	}

	if isHolder(pair, to) {
		bal, err := h.ledger.Balance(ctx, pair.ID, to)
		if err != nil {
			return err
		}
		sender := from
		if _, err := h.accountant.Invest(ctx, position.Action{
			Meta:               meta,
			Account:            to,
			Market:             pair.ID,
			OutputTokenAmount:  value,
			OutputTokenBalance: bal,
			InputTokenBalances: ledger.InputBalances(pair, to, bal),
			TransferredFrom:    &sender,
		}); err != nil {
			return err
		}
	}
	return nil
}

// reconcile runs the position update for each completed record, then snapshots the market once.
func (h *Handler) reconcile(ctx context.Context, pair *domain.Pair, meta event.Meta, done ...*correlation.Completion) error {
	applied := 0
	for _, c := range done {
		if c == nil {
			continue
		}
		var err error
		switch c.Kind {
		case correlation.KindMint:
			err = h.reconcileMint(ctx, pair, meta, c.Mint)
		case correlation.KindBurn:
			err = h.reconcileBurn(ctx, pair, meta, c.Burn)
		}
		if err != nil {
			return err
		}
		h.metrics.RecordCompletion(string(c.Kind))
		applied++
	}
	if applied == 0 {
		return nil
	}

	m, err := h.market(ctx, pair, meta)
	if err != nil {
		return err
	}
	_, err = h.snapshots.SnapshotMarket(ctx, m, meta)
	return err
}

func (h *Handler) reconcileMint(ctx context.Context, pair *domain.Pair, meta event.Meta, m *domain.Mint) error {
	bal, err := h.ledger.Balance(ctx, pair.ID, m.To)
	if err != nil {
		return err
	}
	_, err = h.accountant.Invest(ctx, position.Action{
		Meta:               meta,
		Account:            m.To,
		Market:             pair.ID,
		OutputTokenAmount:  m.LiquidityAmount,
		InputTokenAmounts:  amounts(pair, m.To, m.Amount0, m.Amount1),
		OutputTokenBalance: bal,
		InputTokenBalances: ledger.InputBalances(pair, m.To, bal),
	})
	if err != nil {
		return fmt.Errorf("reconcile mint %s: %w", m.ID, err)
	}
	h.log.Debug().Str("pair", pair.ID).Str("tx", m.ID).Str("account", m.To).Msg("mint reconciled")
	return nil
}

func (h *Handler) reconcileBurn(ctx context.Context, pair *domain.Pair, meta event.Meta, b *domain.Burn) error {
	bal, err := h.ledger.Balance(ctx, pair.ID, b.To)
	if err != nil {
		return err
	}
	_, err = h.accountant.Redeem(ctx, position.Action{
		Meta:               meta,
		Account:            b.To,
		Market:             pair.ID,
		OutputTokenAmount:  b.LiquidityAmount,
		InputTokenAmounts:  amounts(pair, b.To, b.Amount0, b.Amount1),
		OutputTokenBalance: bal,
		InputTokenBalances: ledger.InputBalances(pair, b.To, bal),
	})
	if err != nil {
		return fmt.Errorf("reconcile burn %s: %w", b.ID, err)
	}
	h.log.Debug().Str("pair", pair.ID).Str("tx", b.ID).Str("account", b.To).Msg("burn reconciled")
	return nil
}

// pair loads the pool for an event. Unknown pools yield ErrMissingEntity.
func (h *Handler) pair(ctx context.Context, id string) (*domain.Pair, error) {
	p, err := h.stores.Pairs.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("pair %s: %w", id, ErrMissingEntity)
	}
	if err != nil {
		return nil, fmt.Errorf("get pair %s: %w", id, err)
	}
	return p, nil
}

// savePairWithSnapshot persists the pair, mirrors it onto the market and snapshots the pair.
func (h *Handler) savePairWithSnapshot(ctx context.Context, pair *domain.Pair, meta event.Meta) error {
	if err := h.stores.Pairs.Update(ctx, pair); err != nil {
		return fmt.Errorf("update pair %s: %w", pair.ID, err)
	}
	if _, err := h.market(ctx, pair, meta); err != nil {
		return err
	}
	_, err := h.snapshots.SnapshotPair(ctx, pair, meta)
	return err
}

// market mirrors pair onto its market and returns the updated market.
func (h *Handler) market(ctx context.Context, pair *domain.Pair, meta event.Meta) (*domain.Market, error) {
	m, err := h.stores.Markets.Get(ctx, pair.ID)
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", pair.ID, err)
	}
	m.MirrorPair(pair)
	m.BlockNumber = meta.BlockNumber
	m.Timestamp = meta.BlockTimestamp
	if err := h.stores.Markets.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update market %s: %w", m.ID, err)
	}
	return m, nil
}

// ensureToken creates the token on first reference, reading metadata when a reader is set.
func (h *Handler) ensureToken(ctx context.Context, id string, meta event.Meta, mintedBy *string) error {
	if _, err := h.stores.Tokens.Get(ctx, id); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get token %s: %w", id, err)
	}

	t := &domain.Token{
		ID:             id,
		Name:           domain.UnknownTokenField,
		Symbol:         domain.UnknownTokenField,
		TokenStandard:  domain.TokenStandardERC20,
		MintedByMarket: mintedBy,
		BlockNumber:    meta.BlockNumber,
		Timestamp:      meta.BlockTimestamp,
	}
	if h.metadata != nil {
		md := h.metadata.ReadMetadata(ctx, id)
		if md.Name != nil {
			t.Name = *md.Name
		}
		if md.Symbol != nil {
			t.Symbol = *md.Symbol
		}
		t.Decimals = md.Decimals
		t.TotalSupply = md.TotalSupply
	}

	if err := h.stores.Tokens.Insert(ctx, t); err != nil {
		return fmt.Errorf("insert token %s: %w", id, err)
	}
	return nil
}

// isHolder reports whether account is an external share holder of pair.
func isHolder(pair *domain.Pair, account string) bool {
	return account != domain.AddressZero && account != pair.ID
}

func amounts(pair *domain.Pair, account string, amount0, amount1 *big.Int) domain.Balances {
	return domain.NewBalances(
		domain.NewTokenBalance(pair.Token0, account, amount0),
		domain.NewTokenBalance(pair.Token1, account, amount1),
	)
}
