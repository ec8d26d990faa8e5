package domain

import "math/big"

// AccountLiquidity is an account's running pool-share balance in one pair.
type AccountLiquidity struct {
	ID      string   // pair + "-" + account
	Pair    string   // pool address
	Account string   // holder
	Balance *big.Int // pool shares held
}

// Clone returns a deep copy.
func (l *AccountLiquidity) Clone() *AccountLiquidity {
	c := *l
	c.Balance = cloneInt(l.Balance)
	return &c
}
