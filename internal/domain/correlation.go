package domain

import "math/big"

// Mint is the in-progress or completed reconciliation of a share-mint transfer,
// a reserve sync and a Mint amounts log within one transaction.
type Mint struct {
	ID                   string   // transaction hash
	Pair                 string   // pool address
	To                   string   // account receiving the minted shares
	Sender               string   // Mint log sender (router or caller)
	LiquidityAmount      *big.Int // shares minted
	Amount0              *big.Int // token0 supplied
	Amount1              *big.Int // token1 supplied
	TransferEventApplied bool
	SyncEventApplied     bool
	MintEventApplied     bool
	Reconciled           bool // downstream position update has run
}

// IsComplete reports whether all three sub-events have been applied.
func (m *Mint) IsComplete() bool {
	return m.TransferEventApplied && m.SyncEventApplied && m.MintEventApplied
}

// Clone returns a deep copy.
func (m *Mint) Clone() *Mint {
	c := *m
	c.LiquidityAmount = cloneInt(m.LiquidityAmount)
	c.Amount0 = cloneInt(m.Amount0)
	c.Amount1 = cloneInt(m.Amount1)
	return &c
}

// Burn is the in-progress or completed reconciliation of a share transfer into the pool,
// a reserve sync and a Burn amounts log within one transaction.
type Burn struct {
	ID                   string   // transaction hash
	Pair                 string   // pool address
	To                   string   // account whose shares were burned
	Recipient            string   // Burn log `to`: receiver of the withdrawn tokens
	Sender               string   // Burn log sender
	LiquidityAmount      *big.Int // shares burned
	Amount0              *big.Int // token0 withdrawn
	Amount1              *big.Int // token1 withdrawn
	TransferEventApplied bool
	SyncEventApplied     bool
	BurnEventApplied     bool
	Reconciled           bool // downstream position update has run
}

// IsComplete reports whether all three sub-events have been applied.
func (b *Burn) IsComplete() bool {
	return b.TransferEventApplied && b.SyncEventApplied && b.BurnEventApplied
}

// Clone returns a deep copy.
func (b *Burn) Clone() *Burn {
	c := *b
	c.LiquidityAmount = cloneInt(b.LiquidityAmount)
	c.Amount0 = cloneInt(b.Amount0)
	c.Amount1 = cloneInt(b.Amount1)
	return &c
}

// SyncMarker records that a reserve sync was seen for a transaction before any
// mint or burn record existed for it.
type SyncMarker struct {
	Pair   string // pool address
	TxHash string // transaction hash
}
