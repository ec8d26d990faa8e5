package domain

import "math/big"

// PositionSnapshot is an immutable copy of a position taken before a balance change.
type PositionSnapshot struct {
	ID                  string   // position + "-" + historyCounter
	Position            string   // source position
	Transaction         string   // transaction that triggered the snapshot
	OutputTokenBalance  *big.Int // copied balances
	InputTokenBalances  Balances
	RewardTokenBalances Balances
	TransferredTo       []string
	BlockNumber         uint64
	Timestamp           uint64
}

// Clone returns a deep copy.
func (s *PositionSnapshot) Clone() *PositionSnapshot {
	c := *s
	c.OutputTokenBalance = cloneInt(s.OutputTokenBalance)
	c.InputTokenBalances = s.InputTokenBalances.Clone()
	c.RewardTokenBalances = s.RewardTokenBalances.Clone()
	c.TransferredTo = append([]string(nil), s.TransferredTo...)
	return &c
}

// MarketSnapshot is an immutable copy of market totals as of one log.
type MarketSnapshot struct {
	ID                      string // txHash + logIndex
	Market                  string
	InputTokenBalances      Balances
	OutputTokenTotalSupply  *big.Int
	BlockNumber             uint64
	Timestamp               uint64
	TransactionHash         string
	TransactionIndexInBlock uint
	LogIndex                uint
}

// Clone returns a deep copy.
func (s *MarketSnapshot) Clone() *MarketSnapshot {
	c := *s
	c.InputTokenBalances = s.InputTokenBalances.Clone()
	c.OutputTokenTotalSupply = cloneInt(s.OutputTokenTotalSupply)
	return &c
}

// PairSnapshot is an immutable copy of pool reserves and supply as of one log.
type PairSnapshot struct {
	ID                      string // txHash + logIndex
	Pair                    string
	Reserve0                *big.Int
	Reserve1                *big.Int
	TotalSupply             *big.Int
	BlockNumber             uint64
	Timestamp               uint64
	TransactionHash         string
	TransactionIndexInBlock uint
	LogIndex                uint
}

// Clone returns a deep copy.
func (s *PairSnapshot) Clone() *PairSnapshot {
	c := *s
	c.Reserve0 = cloneInt(s.Reserve0)
	c.Reserve1 = cloneInt(s.Reserve1)
	c.TotalSupply = cloneInt(s.TotalSupply)
	return &c
}
