package domain

import "math/big"

// AccountPosition counts the position versions an (account, market, type) tuple has had.
// PositionCounter only ever increases.
type AccountPosition struct {
	ID              string // account + "-" + market + "-" + type
	PositionCounter uint64 // counter of the latest position version
}

// Position is one version of an account's stake in a market.
// It is mutated in place while open and closed once the output balance reaches zero.
type Position struct {
	ID                  string       // accountPosition + "-" + counter
	AccountPosition     string       // owning counter record
	Account             string       // holder
	Market              string       // market id
	PositionType        PositionType // INVESTMENT or DEBT
	OutputTokenBalance  *big.Int     // pool shares held
	InputTokenBalances  Balances     // implied share of each pooled token
	RewardTokenBalances Balances     // accrued rewards
	TransferredTo       []string     // accounts shares were sent to while this version was open
	Closed              bool         // true once OutputTokenBalance reached zero
	BlockNumber         uint64       // block of last update
	Timestamp           uint64       // block timestamp of last update (seconds)
	HistoryCounter      uint64       // number of snapshots taken
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	c := *p
	c.OutputTokenBalance = cloneInt(p.OutputTokenBalance)
	c.InputTokenBalances = p.InputTokenBalances.Clone()
	c.RewardTokenBalances = p.RewardTokenBalances.Clone()
	c.TransferredTo = append([]string(nil), p.TransferredTo...)
	return &c
}

// HasTransferredTo reports whether account is already recorded in TransferredTo.
func (p *Position) HasTransferredTo(account string) bool {
	for _, a := range p.TransferredTo {
		if a == account {
			return true
		}
	}
	return false
}
