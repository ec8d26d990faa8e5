package domain

import "math/big"

// Transaction is one logical user action. Immutable once stored.
type Transaction struct {
	ID                      string          // account + "-" + txHash + "-" + logIndexHex
	Account                 string          // acting account
	TransactionHash         string          // chain transaction hash
	Market                  string          // market acted on
	From                    *string         // chain transaction sender (nil if unresolved)
	To                      *string         // chain transaction recipient (nil if unresolved)
	TransactionType         TransactionType // classification
	TransferredFrom         *string         // peer sender for TRANSFER_IN
	TransferredTo           *string         // peer receiver for TRANSFER_OUT
	InputTokenAmounts       Balances        // pooled tokens moved by the action
	OutputTokenAmount       *big.Int        // pool shares moved by the action
	RewardTokenAmounts      Balances        // rewards moved by the action
	BlockNumber             uint64
	Timestamp               uint64
	TransactionIndexInBlock uint
	LogIndex                uint
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.From = cloneString(t.From)
	c.To = cloneString(t.To)
	c.TransferredFrom = cloneString(t.TransferredFrom)
	c.TransferredTo = cloneString(t.TransferredTo)
	c.InputTokenAmounts = t.InputTokenAmounts.Clone()
	c.OutputTokenAmount = cloneInt(t.OutputTokenAmount)
	c.RewardTokenAmounts = t.RewardTokenAmounts.Clone()
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
