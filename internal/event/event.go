// Package event defines the decoded log records the ledger consumes.
package event

import "math/big"

// Kind names a decoded event type.
type Kind string

const (
	KindPairCreated Kind = "pair_created"
	KindTransfer    Kind = "transfer"
	KindMint        Kind = "mint"
	KindBurn        Kind = "burn"
	KindSync        Kind = "sync"
)

// Meta carries the host fields attached to every log.
// Addresses and hashes are lowercase 0x-prefixed hex.
type Meta struct {
	Address        string  // emitting contract
	BlockNumber    uint64  // block number
	BlockTimestamp uint64  // block timestamp (seconds)
	TxHash         string  // transaction hash
	TxIndex        uint    // transaction index within the block
	LogIndex       uint    // log index within the block
	TxFrom         *string // transaction sender (nil if unresolved)
	TxTo           *string // transaction recipient (nil if unresolved or contract creation)
}

// Event is a decoded log.
type Event interface {
	EventMeta() Meta
	Kind() Kind
}

// PairCreated is emitted by the factory when a pool is deployed.
// Meta.Address is the factory.
type PairCreated struct {
	Meta
	Token0 string
	Token1 string
	Pair   string
}

func (e *PairCreated) EventMeta() Meta { return e.Meta }
func (e *PairCreated) Kind() Kind      { return KindPairCreated }

// Transfer moves pool shares. Minting is From == null, burning is To == null.
type Transfer struct {
	Meta
	From  string
	To    string
	Value *big.Int
}

func (e *Transfer) EventMeta() Meta { return e.Meta }
func (e *Transfer) Kind() Kind      { return KindTransfer }

// Mint reports the token amounts deposited for newly minted shares.
type Mint struct {
	Meta
	Sender  string
	Amount0 *big.Int
	Amount1 *big.Int
}

func (e *Mint) EventMeta() Meta { return e.Meta }
func (e *Mint) Kind() Kind      { return KindMint }

// Burn reports the token amounts withdrawn for burned shares.
type Burn struct {
	Meta
	Sender  string
	Amount0 *big.Int
	Amount1 *big.Int
	To      string
}

func (e *Burn) EventMeta() Meta { return e.Meta }
func (e *Burn) Kind() Kind      { return KindBurn }

// Sync reports the pool reserves after an update.
type Sync struct {
	Meta
	Reserve0 *big.Int
	Reserve1 *big.Int
}

func (e *Sync) EventMeta() Meta { return e.Meta }
func (e *Sync) Kind() Kind      { return KindSync }
