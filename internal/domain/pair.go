package domain

import "math/big"

// Pair is an AMM pool created by the factory.
// Reserves change on sync; total supply changes on share mint and burn.
type Pair struct {
	ID          string   // pool address
	Factory     string   // factory account that created the pool
	Token0      string   // first input token
	Token1      string   // second input token
	Reserve0    *big.Int // pooled token0
	Reserve1    *big.Int // pooled token1
	TotalSupply *big.Int // outstanding pool shares
	BlockNumber uint64   // creation block
	Timestamp   uint64   // creation block timestamp (seconds)
}

// Reserve returns the reserve held for token, or nil if token is not an input of the pair.
func (p *Pair) Reserve(token string) *big.Int {
	switch token {
	case p.Token0:
		return p.Reserve0
	case p.Token1:
		return p.Reserve1
	}
	return nil
}

// Clone returns a deep copy of the pair.
func (p *Pair) Clone() *Pair {
	c := *p
	c.Reserve0 = cloneInt(p.Reserve0)
	c.Reserve1 = cloneInt(p.Reserve1)
	c.TotalSupply = cloneInt(p.TotalSupply)
	return &c
}
