package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/observability"
)

// Client is the subset of ethclient.Client the log source uses.
type Client interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// maxAddressesPerQuery bounds the address list of a single eth_getLogs call.
const maxAddressesPerQuery = 500

// LogSource fetches and decodes factory and pair logs for block ranges.
type LogSource struct {
	client         Client
	decoder        *Decoder
	factory        common.Address
	resolveSenders bool
	log            zerolog.Logger
	metrics        *observability.Metrics

	chainID    *big.Int
	blockTimes map[uint64]uint64
	parties    map[common.Hash]txParties
}

type txParties struct {
	from *string
	to   *string
}

// LogSourceOptions configures a LogSource.
type LogSourceOptions struct {
	Client  Client
	Factory string
	// ResolveSenders fills Meta.TxFrom and Meta.TxTo, one extra RPC call per transaction.
	ResolveSenders bool
	Logger         *zerolog.Logger
	Metrics        *observability.Metrics
}

// NewLogSource creates a LogSource.
func NewLogSource(opts LogSourceOptions) *LogSource {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &LogSource{
		client:         opts.Client,
		decoder:        NewDecoder(),
		factory:        common.HexToAddress(opts.Factory),
		resolveSenders: opts.ResolveSenders,
		log:            log,
		metrics:        opts.Metrics,
		blockTimes:     make(map[uint64]uint64),
		parties:        make(map[common.Hash]txParties),
	}
}

// Head returns the latest block number.
func (s *LogSource) Head(ctx context.Context) (uint64, error) {
	start := time.Now()
	n, err := s.client.BlockNumber(ctx)
	s.metrics.RecordRPCLatency("eth_blockNumber", time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}

// FactoryEvents returns the PairCreated events in [from, to].
func (s *LogSource) FactoryEvents(ctx context.Context, from, to uint64) ([]event.Event, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.factory},
		Topics:    [][]common.Hash{{PairCreatedTopic}},
	}
	return s.fetch(ctx, q)
}

// PairEvents returns the Transfer, Mint, Burn and Sync events of pairs in [from, to].
func (s *LogSource) PairEvents(ctx context.Context, pairs []string, from, to uint64) ([]event.Event, error) {
	var out []event.Event
	for lo := 0; lo < len(pairs); lo += maxAddressesPerQuery {
		hi := min(lo+maxAddressesPerQuery, len(pairs))
		addrs := make([]common.Address, 0, hi-lo)
		for _, p := range pairs[lo:hi] {
			addrs = append(addrs, common.HexToAddress(p))
		}
		q := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: addrs,
			Topics:    [][]common.Hash{PairTopics()},
		}
		events, err := s.fetch(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
	}
	return out, nil
}

func (s *LogSource) fetch(ctx context.Context, q ethereum.FilterQuery) ([]event.Event, error) {
	start := time.Now()
	logs, err := s.client.FilterLogs(ctx, q)
	s.metrics.RecordRPCLatency("eth_getLogs", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("filter logs [%s, %s]: %w", q.FromBlock, q.ToBlock, err)
	}

	events := make([]event.Event, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := s.decode(ctx, lg)
		if errors.Is(err, ErrUnknownEvent) {
			s.log.Debug().Str("address", Address(lg.Address)).Str("tx", lg.TxHash.Hex()).Msg("unknown log skipped")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("decode log %s/%d: %w", lg.TxHash.Hex(), lg.Index, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *LogSource) decode(ctx context.Context, lg types.Log) (event.Event, error) {
	ts, err := s.blockTime(ctx, lg.BlockNumber)
	if err != nil {
		return nil, err
	}
	meta := LogMeta(lg, ts)

	if s.resolveSenders {
		p, err := s.txParties(ctx, lg.TxHash)
		if err != nil {
			return nil, err
		}
		meta.TxFrom, meta.TxTo = p.from, p.to
	}
	return s.decoder.Decode(lg, meta)
}

func (s *LogSource) blockTime(ctx context.Context, number uint64) (uint64, error) {
	if ts, ok := s.blockTimes[number]; ok {
		return ts, nil
	}
	start := time.Now()
	h, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	s.metrics.RecordRPCLatency("eth_getBlockByNumber", time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}
	s.blockTimes[number] = h.Time
	return h.Time, nil
}

func (s *LogSource) txParties(ctx context.Context, hash common.Hash) (txParties, error) {
	if p, ok := s.parties[hash]; ok {
		return p, nil
	}
	if s.chainID == nil {
		id, err := s.client.ChainID(ctx)
		if err != nil {
			return txParties{}, fmt.Errorf("chain id: %w", err)
		}
		s.chainID = id
	}

	start := time.Now()
	tx, _, err := s.client.TransactionByHash(ctx, hash)
	s.metrics.RecordRPCLatency("eth_getTransactionByHash", time.Since(start).Seconds())
	if err != nil {
		return txParties{}, fmt.Errorf("transaction %s: %w", hash.Hex(), err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(s.chainID), tx)
	if err != nil {
		return txParties{}, fmt.Errorf("sender of %s: %w", hash.Hex(), err)
	}
	f := Address(from)
	p := txParties{from: &f}
	if tx.To() != nil {
		t := Address(*tx.To())
		p.to = &t
	}
	s.parties[hash] = p
	return p, nil
}

// ResetCache drops cached block times and transaction parties.
func (s *LogSource) ResetCache() {
	clear(s.blockTimes)
	clear(s.parties)
}
