package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"amm-position-ledger/internal/event"
)

var (
	// ErrUnknownEvent is returned for logs whose first topic is not a known event signature.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrMalformedLog is returned when a known event has the wrong topic count or payload.
	ErrMalformedLog = errors.New("malformed log")
)

var (
	PairCreatedTopic = factoryABI.Events["PairCreated"].ID
	TransferTopic    = pairABI.Events["Transfer"].ID
	MintTopic        = pairABI.Events["Mint"].ID
	BurnTopic        = pairABI.Events["Burn"].ID
	SyncTopic        = pairABI.Events["Sync"].ID
)

// PairTopics lists the pair event signatures, for use as topic 0 of a filter query.
func PairTopics() []common.Hash {
	return []common.Hash{TransferTopic, MintTopic, BurnTopic, SyncTopic}
}

// Decoder turns raw logs into ledger events.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// LogMeta builds the event metadata of lg. Sender fields are left unresolved.
func LogMeta(lg types.Log, blockTime uint64) event.Meta {
	return event.Meta{
		Address:        Address(lg.Address),
		BlockNumber:    lg.BlockNumber,
		BlockTimestamp: blockTime,
		TxHash:         lg.TxHash.Hex(),
		TxIndex:        lg.TxIndex,
		LogIndex:       lg.Index,
	}
}

// Decode decodes lg with the given metadata.
// Returns ErrUnknownEvent for unrecognized signatures and ErrMalformedLog for bad payloads.
func (d *Decoder) Decode(lg types.Log, meta event.Meta) (event.Event, error) {
	if len(lg.Topics) == 0 {
		return nil, ErrUnknownEvent
	}

	switch lg.Topics[0] {
	case PairCreatedTopic:
		return decodePairCreated(lg, meta)
	case TransferTopic:
		return decodeTransfer(lg, meta)
	case MintTopic:
		return decodeMint(lg, meta)
	case BurnTopic:
		return decodeBurn(lg, meta)
	case SyncTopic:
		return decodeSync(lg, meta)
	default:
		return nil, fmt.Errorf("topic %s: %w", lg.Topics[0].Hex(), ErrUnknownEvent)
	}
}

func decodePairCreated(lg types.Log, meta event.Meta) (event.Event, error) {
	if len(lg.Topics) != 3 {
		return nil, malformed("PairCreated", "topic count %d", len(lg.Topics))
	}
	values, err := factoryABI.Unpack("PairCreated", lg.Data)
	if err != nil {
		return nil, malformed("PairCreated", "%v", err)
	}
	pair, ok := values[0].(common.Address)
	if !ok {
		return nil, malformed("PairCreated", "pair is %T", values[0])
	}
	return &event.PairCreated{
		Meta:   meta,
		Token0: topicAddress(lg.Topics[1]),
		Token1: topicAddress(lg.Topics[2]),
		Pair:   Address(pair),
	}, nil
}

func decodeTransfer(lg types.Log, meta event.Meta) (event.Event, error) {
	if len(lg.Topics) != 3 {
		return nil, malformed("Transfer", "topic count %d", len(lg.Topics))
	}
	values, err := unpackInts("Transfer", lg.Data, 1)
	if err != nil {
		return nil, err
	}
	return &event.Transfer{
		Meta:  meta,
		From:  topicAddress(lg.Topics[1]),
		To:    topicAddress(lg.Topics[2]),
		Value: values[0],
	}, nil
}

func decodeMint(lg types.Log, meta event.Meta) (event.Event, error) {
	if len(lg.Topics) != 2 {
		return nil, malformed("Mint", "topic count %d", len(lg.Topics))
	}
	values, err := unpackInts("Mint", lg.Data, 2)
	if err != nil {
		return nil, err
	}
	return &event.Mint{
		Meta:    meta,
		Sender:  topicAddress(lg.Topics[1]),
		Amount0: values[0],
		Amount1: values[1],
	}, nil
}

func decodeBurn(lg types.Log, meta event.Meta) (event.Event, error) {
	if len(lg.Topics) != 3 {
		return nil, malformed("Burn", "topic count %d", len(lg.Topics))
	}
	values, err := unpackInts("Burn", lg.Data, 2)
	if err != nil {
		return nil, err
	}
	return &event.Burn{
		Meta:    meta,
		Sender:  topicAddress(lg.Topics[1]),
		Amount0: values[0],
		Amount1: values[1],
		To:      topicAddress(lg.Topics[2]),
	}, nil
}

func decodeSync(lg types.Log, meta event.Meta) (event.Event, error) {
	values, err := unpackInts("Sync", lg.Data, 2)
	if err != nil {
		return nil, err
	}
	return &event.Sync{
		Meta:     meta,
		Reserve0: values[0],
		Reserve1: values[1],
	}, nil
}

// unpackInts decodes the non-indexed integer fields of a pair event.
func unpackInts(name string, data []byte, want int) ([]*big.Int, error) {
	values, err := pairABI.Unpack(name, data)
	if err != nil {
		return nil, malformed(name, "%v", err)
	}
	if len(values) != want {
		return nil, malformed(name, "%d values, want %d", len(values), want)
	}
	out := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return nil, malformed(name, "value %d is %T", i, v)
		}
		out[i] = n
	}
	return out, nil
}

func malformed(name, format string, args ...any) error {
	return fmt.Errorf("%s: %s: %w", name, fmt.Sprintf(format, args...), ErrMalformedLog)
}

// Address renders a as lowercase 0x hex, the form every ledger id uses.
func Address(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func topicAddress(h common.Hash) string {
	return Address(common.BytesToAddress(h.Bytes()))
}
