package domain

import "math/big"

// Token represents a fungible asset: a pair input, the pool share token, or a reward.
// Metadata fields are best effort; a reverted read leaves them at their defaults.
type Token struct {
	ID             string   // lowercase hex address
	Name           string   // "unknown" if the name read reverted
	Symbol         string   // "unknown" if the symbol read reverted
	Decimals       *uint8   // nil if the decimals read reverted
	TotalSupply    *big.Int // nil unless fetched
	TokenStandard  string   // "ERC20"
	MintedByMarket *string  // market that mints this token (pool share tokens only)
	BlockNumber    uint64   // block of first reference
	Timestamp      uint64   // block timestamp of first reference (seconds)
}

// Clone returns a deep copy of the token.
func (t *Token) Clone() *Token {
	c := *t
	if t.Decimals != nil {
		d := *t.Decimals
		c.Decimals = &d
	}
	c.TotalSupply = cloneInt(t.TotalSupply)
	if t.MintedByMarket != nil {
		m := *t.MintedByMarket
		c.MintedByMarket = &m
	}
	return &c
}

// TokenMetadata is the result of best-effort ERC20 reads. A nil field means the call reverted.
type TokenMetadata struct {
	Name        *string
	Symbol      *string
	Decimals    *uint8
	TotalSupply *big.Int
}
