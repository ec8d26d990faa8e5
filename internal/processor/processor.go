// Package processor applies decoded pool events to the ledger, one unit of work per event.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/ledger"
	"amm-position-ledger/internal/observability"
	"amm-position-ledger/internal/snapshot"
	"amm-position-ledger/internal/storage"
	"amm-position-ledger/internal/txledger"
)

var (
	// ErrMissingEntity is returned when an event references a pair that was never created.
	ErrMissingEntity = errors.New("missing entity")

	// ErrInvariantViolation wraps any failure that left the ledger inconsistent.
	// The unit of work has been rolled back.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNegativeSupply is returned when a burn exceeds the pair's total supply.
	ErrNegativeSupply = errors.New("total supply would become negative")
)

// MetadataReader reads ERC20 metadata for newly seen tokens.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, token string) domain.TokenMetadata
}

// SnapshotSink receives the snapshots of every committed unit of work.
type SnapshotSink interface {
	WriteSnapshots(ctx context.Context, created snapshot.Created) error
}

// Processor applies events through a storage.UnitOfWork.
type Processor struct {
	uow             storage.UnitOfWork
	metadata        MetadataReader
	sink            SnapshotSink
	log             zerolog.Logger
	metrics         *observability.Metrics
	haltOnInvariant bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

// WithMetrics sets the metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithMetadataReader sets the token metadata source. Without one, metadata stays "unknown".
func WithMetadataReader(r MetadataReader) Option {
	return func(p *Processor) { p.metadata = r }
}

// WithSnapshotSink forwards committed snapshots to s.
func WithSnapshotSink(s SnapshotSink) Option {
	return func(p *Processor) { p.sink = s }
}

// WithHaltOnInvariant controls whether ProcessAll stops at the first invariant violation.
func WithHaltOnInvariant(halt bool) Option {
	return func(p *Processor) { p.haltOnInvariant = halt }
}

// New creates a Processor. By default it halts on invariant violations and logs nothing.
func New(uow storage.UnitOfWork, opts ...Option) *Processor {
	p := &Processor{
		uow:             uow,
		log:             zerolog.Nop(),
		haltOnInvariant: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessAll applies events, which must be in canonical chain order.
// Invariant violations stop processing unless the processor was built WithHaltOnInvariant(false).
func (p *Processor) ProcessAll(ctx context.Context, events []event.Event) error {
	if err := event.ValidateOrdering(events); err != nil {
		return err
	}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.Process(ctx, ev)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrInvariantViolation) && !p.haltOnInvariant {
			continue
		}
		return err
	}
	return nil
}

// Process applies one event atomically. Already-applied logs are no-ops.
// Events for unknown pairs are skipped and marked processed.
func (p *Processor) Process(ctx context.Context, ev event.Event) error {
	start := time.Now()
	meta := ev.EventMeta()
	kind := string(ev.Kind())
	key := entityid.ProcessedLogKey{TxHash: meta.TxHash, LogIndex: meta.LogIndex}.String()

	var (
		duplicate bool
		skipped   error
		created   snapshot.Created
	)

	err := p.uow.RunInTx(ctx, func(ctx context.Context, s *storage.Stores) error {
		done, err := s.ProcessedLogs.IsProcessed(ctx, key)
		if err != nil {
			return fmt.Errorf("check processed %s: %w", key, err)
		}
		if done {
			duplicate = true
			return nil
		}

		h := p.newHandler(s)
		if err := h.Handle(ctx, ev); err != nil {
			if !errors.Is(err, ErrMissingEntity) {
				return err
			}
			skipped = err
		}

		if err := s.ProcessedLogs.MarkProcessed(ctx, key); err != nil {
			return fmt.Errorf("mark processed %s: %w", key, err)
		}
		created = h.snapshots.Created()
		return nil
	})

	if err != nil {
		if isInvariant(err) {
			p.metrics.RecordInvariantViolation(kind)
			p.log.Error().
				Err(err).
				Bool("invariant", true).
				Str("kind", kind).
				Str("pair", meta.Address).
				Str("tx", meta.TxHash).
				Uint("log_index", meta.LogIndex).
				Uint64("block", meta.BlockNumber).
				Msg("unit of work rolled back")
			return fmt.Errorf("%w: %s %s: %w", ErrInvariantViolation, kind, key, err)
		}
		return fmt.Errorf("process %s %s: %w", kind, key, err)
	}

	switch {
	case duplicate:
		p.metrics.RecordDuplicate(kind)
		p.log.Debug().Str("kind", kind).Str("key", key).Msg("event already applied")
		return nil
	case skipped != nil:
		p.metrics.RecordSkipped(kind, "missing_entity")
		p.log.Warn().
			Err(skipped).
			Str("kind", kind).
			Str("pair", meta.Address).
			Str("tx", meta.TxHash).
			Uint("log_index", meta.LogIndex).
			Msg("event skipped")
		return nil
	}

	p.metrics.RecordProcessed(kind, time.Since(start).Seconds(), meta.BlockNumber)
	p.export(ctx, created)
	return nil
}

func (p *Processor) newHandler(s *storage.Stores) *Handler {
	recorder := snapshot.NewRecorder(s.Snapshots)
	return NewHandler(s, recorder, p.metadata, p.log, p.metrics)
}

// export forwards committed snapshots. Failures are logged; the ledger itself is already committed.
func (p *Processor) export(ctx context.Context, created snapshot.Created) {
	if p.sink == nil || created.Len() == 0 {
		return
	}
	if err := p.sink.WriteSnapshots(ctx, created); err != nil {
		p.metrics.RecordSinkError()
		p.log.Error().Err(err).Int("snapshots", created.Len()).Msg("snapshot sink write failed")
		return
	}
	p.metrics.RecordExported("position", len(created.Positions))
	p.metrics.RecordExported("market", len(created.Markets))
	p.metrics.RecordExported("pair", len(created.Pairs))
}

func isInvariant(err error) bool {
	return errors.Is(err, ledger.ErrNegativeBalance) ||
		errors.Is(err, ledger.ErrInvalidAmount) ||
		errors.Is(err, ErrNegativeSupply) ||
		errors.Is(err, storage.ErrDuplicateKey) ||
		errors.Is(err, txledger.ErrInconsistentEntry)
}
