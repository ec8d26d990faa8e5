// Package correlation merges the sub-events of a mint or burn into one composite record.
//
// A mint is complete once its share-mint transfer, reserve sync and Mint log have all
// been applied; a burn once its share transfer into the pool, reserve sync and Burn log
// have. Sub-events may arrive in any order. Each record completes at most once.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/observability"
	"amm-position-ledger/internal/storage"
)

// Kind names the composite record type.
type Kind string

const (
	KindMint Kind = "mint"
	KindBurn Kind = "burn"
)

// Completion is returned the single time a record becomes complete.
// Exactly one of Mint and Burn is set.
type Completion struct {
	Kind Kind
	Mint *domain.Mint
	Burn *domain.Burn
}

// Correlator updates mint and burn records.
type Correlator struct {
	store   storage.CorrelationStore
	log     zerolog.Logger
	metrics *observability.Metrics
}

// New creates a Correlator over store. metrics may be nil.
func New(store storage.CorrelationStore, log zerolog.Logger, metrics *observability.Metrics) *Correlator {
	return &Correlator{store: store, log: log, metrics: metrics}
}

// OnTransferMint applies a share-mint transfer (null address to `to`).
func (c *Correlator) OnTransferMint(ctx context.Context, meta event.Meta, to string, value *big.Int) (*Completion, error) {
	m, err := c.mint(ctx, meta)
	if err != nil || m == nil {
		return nil, err
	}

	if m.Reconciled {
		if m.To != to || !sameAmount(m.LiquidityAmount, value) {
			c.conflict(KindMint, meta, "share mint after reconciliation")
		}
		return nil, c.putMint(ctx, m)
	}

	// The last share mint of a transaction is the user's; earlier ones (protocol fee) are replaced.
	m.To = to
	m.LiquidityAmount = new(big.Int).Set(value)
	m.TransferEventApplied = true
	return c.completeMint(ctx, m)
}

// OnMint applies a Mint amounts log.
func (c *Correlator) OnMint(ctx context.Context, meta event.Meta, sender string, amount0, amount1 *big.Int) (*Completion, error) {
	m, err := c.mint(ctx, meta)
	if err != nil || m == nil {
		return nil, err
	}

	if m.MintEventApplied {
		if !sameAmount(m.Amount0, amount0) || !sameAmount(m.Amount1, amount1) {
			c.conflict(KindMint, meta, "second Mint log in transaction")
		}
		if m.Reconciled {
			return nil, c.putMint(ctx, m)
		}
	}

	m.Sender = sender
	m.Amount0 = new(big.Int).Set(amount0)
	m.Amount1 = new(big.Int).Set(amount1)
	m.MintEventApplied = true
	return c.completeMint(ctx, m)
}

// OnTransferBurn applies a share transfer from `from` into the pool.
func (c *Correlator) OnTransferBurn(ctx context.Context, meta event.Meta, from string, value *big.Int) (*Completion, error) {
	b, err := c.burn(ctx, meta)
	if err != nil || b == nil {
		return nil, err
	}

	if b.Reconciled {
		if b.To != from || !sameAmount(b.LiquidityAmount, value) {
			c.conflict(KindBurn, meta, "share transfer after reconciliation")
		}
		return nil, c.putBurn(ctx, b)
	}

	b.To = from
	b.LiquidityAmount = new(big.Int).Set(value)
	b.TransferEventApplied = true
	return c.completeBurn(ctx, b)
}

// OnBurnSupply applies the pool's own share burn (pool to null address).
// It records the burned amount but sets no flag.
func (c *Correlator) OnBurnSupply(ctx context.Context, meta event.Meta, value *big.Int) (*Completion, error) {
	b, err := c.burn(ctx, meta)
	if err != nil || b == nil {
		return nil, err
	}

	if b.Reconciled {
		if !sameAmount(b.LiquidityAmount, value) {
			c.conflict(KindBurn, meta, "supply burn differs from reconciled amount")
		}
		return nil, c.putBurn(ctx, b)
	}

	b.LiquidityAmount = new(big.Int).Set(value)
	return c.completeBurn(ctx, b)
}

// OnBurn applies a Burn amounts log.
func (c *Correlator) OnBurn(ctx context.Context, meta event.Meta, sender, recipient string, amount0, amount1 *big.Int) (*Completion, error) {
	b, err := c.burn(ctx, meta)
	if err != nil || b == nil {
		return nil, err
	}

	if b.BurnEventApplied {
		if !sameAmount(b.Amount0, amount0) || !sameAmount(b.Amount1, amount1) {
			c.conflict(KindBurn, meta, "second Burn log in transaction")
		}
		if b.Reconciled {
			return nil, c.putBurn(ctx, b)
		}
	}

	b.Sender = sender
	b.Recipient = recipient
	b.Amount0 = new(big.Int).Set(amount0)
	b.Amount1 = new(big.Int).Set(amount1)
	b.BurnEventApplied = true
	return c.completeBurn(ctx, b)
}

// OnSync applies a reserve sync to whichever records exist for the transaction,
// and leaves a marker so records created later start with the sync applied.
// At most one completion per record kind is returned.
func (c *Correlator) OnSync(ctx context.Context, meta event.Meta) ([]*Completion, error) {
	pair := meta.Address
	if err := c.store.PutSyncMarker(ctx, &domain.SyncMarker{Pair: pair, TxHash: meta.TxHash}); err != nil {
		return nil, fmt.Errorf("put sync marker: %w", err)
	}

	var completions []*Completion

	m, err := c.store.GetMint(ctx, meta.TxHash)
	switch {
	case err == nil && m.Pair == pair:
		m.SyncEventApplied = true
		done, err := c.completeMint(ctx, m)
		if err != nil {
			return nil, err
		}
		if done != nil {
			completions = append(completions, done)
		}
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("get mint %s: %w", meta.TxHash, err)
	}

	b, err := c.store.GetBurn(ctx, meta.TxHash)
	switch {
	case err == nil && b.Pair == pair:
		b.SyncEventApplied = true
		done, err := c.completeBurn(ctx, b)
		if err != nil {
			return nil, err
		}
		if done != nil {
			completions = append(completions, done)
		}
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("get burn %s: %w", meta.TxHash, err)
	}

	return completions, nil
}

// mint loads or creates the mint record for the transaction.
// Returns nil if the hash is already used by a record of another pair.
func (c *Correlator) mint(ctx context.Context, meta event.Meta) (*domain.Mint, error) {
	m, err := c.store.GetMint(ctx, meta.TxHash)
	if err == nil {
		if m.Pair != meta.Address {
			c.conflict(KindMint, meta, "transaction already holds a mint of another pair")
			return nil, nil
		}
		return m, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get mint %s: %w", meta.TxHash, err)
	}

	synced, err := c.store.HasSyncMarker(ctx, meta.Address, meta.TxHash)
	if err != nil {
		return nil, fmt.Errorf("get sync marker: %w", err)
	}
	return &domain.Mint{ID: meta.TxHash, Pair: meta.Address, SyncEventApplied: synced}, nil
}

// burn loads or creates the burn record for the transaction.
// Returns nil if the hash is already used by a record of another pair.
func (c *Correlator) burn(ctx context.Context, meta event.Meta) (*domain.Burn, error) {
	b, err := c.store.GetBurn(ctx, meta.TxHash)
	if err == nil {
		if b.Pair != meta.Address {
			c.conflict(KindBurn, meta, "transaction already holds a burn of another pair")
			return nil, nil
		}
		return b, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get burn %s: %w", meta.TxHash, err)
	}

	synced, err := c.store.HasSyncMarker(ctx, meta.Address, meta.TxHash)
	if err != nil {
		return nil, fmt.Errorf("get sync marker: %w", err)
	}
	return &domain.Burn{ID: meta.TxHash, Pair: meta.Address, SyncEventApplied: synced}, nil
}

func (c *Correlator) completeMint(ctx context.Context, m *domain.Mint) (*Completion, error) {
	var done *Completion
	if m.IsComplete() && !m.Reconciled {
		m.Reconciled = true
		done = &Completion{Kind: KindMint, Mint: m.Clone()}
	}
	if err := c.putMint(ctx, m); err != nil {
		return nil, err
	}
	return done, nil
}

func (c *Correlator) completeBurn(ctx context.Context, b *domain.Burn) (*Completion, error) {
	var done *Completion
	if b.IsComplete() && !b.Reconciled {
		b.Reconciled = true
		done = &Completion{Kind: KindBurn, Burn: b.Clone()}
	}
	if err := c.putBurn(ctx, b); err != nil {
		return nil, err
	}
	return done, nil
}

func (c *Correlator) putMint(ctx context.Context, m *domain.Mint) error {
	if err := c.store.PutMint(ctx, m); err != nil {
		return fmt.Errorf("put mint %s: %w", m.ID, err)
	}
	return nil
}

func (c *Correlator) putBurn(ctx context.Context, b *domain.Burn) error {
	if err := c.store.PutBurn(ctx, b); err != nil {
		return fmt.Errorf("put burn %s: %w", b.ID, err)
	}
	return nil
}

func (c *Correlator) conflict(kind Kind, meta event.Meta, reason string) {
	c.metrics.RecordConflict(string(kind))
	c.log.Warn().
		Str("kind", string(kind)).
		Str("pair", meta.Address).
		Str("tx", meta.TxHash).
		Uint("log_index", meta.LogIndex).
		Msg(reason)
}

func sameAmount(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
}
