package domain

import "math/big"

// Market is the protocol-agnostic projection of a pool.
type Market struct {
	ID                      string   // pool address
	Account                 string   // account of the pool contract
	ProtocolName            string   // e.g. "UNISWAP_V2"
	ProtocolType            string   // e.g. "EXCHANGE"
	InputTokens             []string // pooled tokens, in pair order
	OutputToken             string   // pool share token
	RewardTokens            []string // reward tokens (none for Uniswap V2)
	InputTokenTotalBalances Balances // pooled amount per input token
	OutputTokenTotalSupply  *big.Int // outstanding pool shares (nil if unknown)
	BlockNumber             uint64   // block of last update
	Timestamp               uint64   // block timestamp of last update (seconds)
}

// MirrorPair copies the pool's reserves and total supply onto the market.
func (m *Market) MirrorPair(p *Pair) {
	m.InputTokenTotalBalances = NewBalances(
		NewTokenBalance(p.Token0, m.ID, p.Reserve0),
		NewTokenBalance(p.Token1, m.ID, p.Reserve1),
	)
	m.OutputTokenTotalSupply = cloneInt(p.TotalSupply)
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	c := *m
	c.InputTokens = append([]string(nil), m.InputTokens...)
	c.RewardTokens = append([]string(nil), m.RewardTokens...)
	c.InputTokenTotalBalances = m.InputTokenTotalBalances.Clone()
	c.OutputTokenTotalSupply = cloneInt(m.OutputTokenTotalSupply)
	return &c
}
