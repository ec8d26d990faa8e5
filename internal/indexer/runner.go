// Package indexer walks block ranges, feeds decoded logs to the processor and saves progress.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/processor"
	"amm-position-ledger/internal/storage"
)

// Source provides decoded logs for block ranges.
type Source interface {
	Head(ctx context.Context) (uint64, error)
	FactoryEvents(ctx context.Context, from, to uint64) ([]event.Event, error)
	PairEvents(ctx context.Context, pairs []string, from, to uint64) ([]event.Event, error)
}

// DefaultProgressName is the cursor name used when none is configured.
const DefaultProgressName = "uniswap-v2"

// Runner indexes [StartBlock, EndBlock] in fixed-size windows.
type Runner struct {
	source       Source
	processor    *processor.Processor
	pairs        storage.PairStore
	progress     storage.ProgressStore
	name         string
	startBlock   uint64
	endBlock     uint64
	batchSize    uint64
	follow       bool
	pollInterval time.Duration
	log          zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source    Source
	Processor *processor.Processor
	Pairs     storage.PairStore
	Progress  storage.ProgressStore
	Name      string // progress cursor name; default DefaultProgressName

	StartBlock uint64
	EndBlock   uint64 // 0 = chain head
	BatchSize  uint64 // Default: 2000 blocks per window

	// Follow keeps polling the head after catching up. Ignored when EndBlock is set.
	Follow       bool
	PollInterval time.Duration // Default: 12s
	Logger       *zerolog.Logger
}

// Result contains statistics from a run.
type Result struct {
	FromBlock uint64
	ToBlock   uint64
	Windows   int
	Events    int
	Duration  time.Duration
}

// NewRunner creates a new indexer runner.
func NewRunner(opts RunnerOptions) *Runner {
	name := opts.Name
	if name == "" {
		name = DefaultProgressName
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = 2000
	}

	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 12 * time.Second
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Runner{
		source:       opts.Source,
		processor:    opts.Processor,
		pairs:        opts.Pairs,
		progress:     opts.Progress,
		name:         name,
		startBlock:   opts.StartBlock,
		endBlock:     opts.EndBlock,
		batchSize:    batchSize,
		follow:       opts.Follow && opts.EndBlock == 0,
		pollInterval: pollInterval,
		log:          log,
	}
}

// Run indexes until the end block (or head) is reached.
// In follow mode it blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	from, err := r.resumeBlock(ctx)
	if err != nil {
		return result, err
	}
	result.FromBlock = from

	r.log.Info().
		Uint64("from", from).
		Uint64("end", r.endBlock).
		Uint64("batch_size", r.batchSize).
		Bool("follow", r.follow).
		Msg("indexer starting")

	for {
		to, err := r.targetBlock(ctx)
		if err != nil {
			return result, err
		}

		for lo := from; lo <= to; lo += r.batchSize {
			hi := min(lo+r.batchSize-1, to)
			n, err := r.indexWindow(ctx, lo, hi)
			if err != nil {
				result.Duration = time.Since(start)
				return result, err
			}
			result.Windows++
			result.Events += n
			result.ToBlock = hi
			from = hi + 1
		}

		if !r.follow {
			break
		}
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}

	result.Duration = time.Since(start)
	r.log.Info().
		Uint64("from", result.FromBlock).
		Uint64("to", result.ToBlock).
		Int("windows", result.Windows).
		Int("events", result.Events).
		Dur("duration", result.Duration).
		Msg("indexer finished")
	return result, nil
}

// resumeBlock returns the first block to index: one past saved progress, or StartBlock.
func (r *Runner) resumeBlock(ctx context.Context) (uint64, error) {
	p, err := r.progress.GetProgress(ctx, r.name)
	if errors.Is(err, storage.ErrNotFound) {
		return r.startBlock, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get progress %s: %w", r.name, err)
	}
	return max(p.LastBlock+1, r.startBlock), nil
}

func (r *Runner) targetBlock(ctx context.Context) (uint64, error) {
	if r.endBlock != 0 {
		return r.endBlock, nil
	}
	head, err := r.source.Head(ctx)
	if err != nil {
		return 0, err
	}
	return head, nil
}

// indexWindow processes [from, to] in chain order and saves progress.
func (r *Runner) indexWindow(ctx context.Context, from, to uint64) (int, error) {
	created, err := r.source.FactoryEvents(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("factory events [%d, %d]: %w", from, to, err)
	}

	addrs, err := r.pairAddresses(ctx, created)
	if err != nil {
		return 0, err
	}

	events := created
	if len(addrs) > 0 {
		pairEvents, err := r.source.PairEvents(ctx, addrs, from, to)
		if err != nil {
			return 0, fmt.Errorf("pair events [%d, %d]: %w", from, to, err)
		}
		events = append(events, pairEvents...)
	}
	event.Sort(events)

	if err := r.processor.ProcessAll(ctx, events); err != nil {
		return 0, fmt.Errorf("process [%d, %d]: %w", from, to, err)
	}

	if err := r.progress.SetProgress(ctx, &storage.Progress{Name: r.name, LastBlock: to}); err != nil {
		return 0, fmt.Errorf("set progress %s: %w", r.name, err)
	}

	r.log.Debug().
		Uint64("from", from).
		Uint64("to", to).
		Int("pairs", len(addrs)).
		Int("events", len(events)).
		Msg("window indexed")
	return len(events), nil
}

// pairAddresses returns every known pair plus those created in the current window.
func (r *Runner) pairAddresses(ctx context.Context, created []event.Event) ([]string, error) {
	known, err := r.pairs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}

	seen := make(map[string]struct{}, len(known)+len(created))
	addrs := make([]string, 0, len(known)+len(created))
	add := func(a string) {
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		addrs = append(addrs, a)
	}
	for _, p := range known {
		add(p.ID)
	}
	for _, ev := range created {
		if pc, ok := ev.(*event.PairCreated); ok {
			add(pc.Pair)
		}
	}
	return addrs, nil
}
