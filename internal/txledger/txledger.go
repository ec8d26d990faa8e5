// Package txledger records the append-only history of user actions.
package txledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/storage"
)

// ErrInconsistentEntry is returned when an entry's type and peer fields disagree.
var ErrInconsistentEntry = errors.New("inconsistent transaction entry")

// Entry describes one action to record.
type Entry struct {
	Account            string
	Market             string
	Type               domain.TransactionType
	Meta               event.Meta // host transaction and log the action came from
	TransferredFrom    *string    // set for TRANSFER_IN only
	TransferredTo      *string    // set for TRANSFER_OUT only
	InputTokenAmounts  domain.Balances
	OutputTokenAmount  *big.Int
	RewardTokenAmounts domain.Balances
}

// Ledger writes Transaction records.
type Ledger struct {
	store storage.TransactionStore
}

// New creates a Ledger over store.
func New(store storage.TransactionStore) *Ledger {
	return &Ledger{store: store}
}

// Classify returns the transaction type for a base action, taking peer transfers into account.
// An INVEST with a sender is a TRANSFER_IN; a REDEEM with a receiver is a TRANSFER_OUT.
func Classify(base domain.TransactionType, transferredFrom, transferredTo *string) domain.TransactionType {
	switch {
	case base == domain.TransactionTypeInvest && transferredFrom != nil:
		return domain.TransactionTypeTransferIn
	case base == domain.TransactionTypeRedeem && transferredTo != nil:
		return domain.TransactionTypeTransferOut
	}
	return base
}

// Record builds the transaction id from (account, tx hash, log index) and inserts it.
// Returns storage.ErrDuplicateKey if the id has been recorded before.
func (l *Ledger) Record(ctx context.Context, e Entry) (*domain.Transaction, error) {
	if err := validate(e); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID: entityid.TransactionKey{
			Account:  e.Account,
			TxHash:   e.Meta.TxHash,
			LogIndex: e.Meta.LogIndex,
		}.String(),
		Account:                 e.Account,
		TransactionHash:         e.Meta.TxHash,
		Market:                  e.Market,
		From:                    e.Meta.TxFrom,
		To:                      e.Meta.TxTo,
		TransactionType:         e.Type,
		TransferredFrom:         e.TransferredFrom,
		TransferredTo:           e.TransferredTo,
		InputTokenAmounts:       orEmpty(e.InputTokenAmounts),
		OutputTokenAmount:       e.OutputTokenAmount,
		RewardTokenAmounts:      orEmpty(e.RewardTokenAmounts),
		BlockNumber:             e.Meta.BlockNumber,
		Timestamp:               e.Meta.BlockTimestamp,
		TransactionIndexInBlock: e.Meta.TxIndex,
		LogIndex:                e.Meta.LogIndex,
	}
	if tx.OutputTokenAmount == nil {
		tx.OutputTokenAmount = new(big.Int)
	}

	if err := l.store.Insert(ctx, tx); err != nil {
		return nil, fmt.Errorf("record transaction %s: %w", tx.ID, err)
	}
	return tx, nil
}

func validate(e Entry) error {
	if e.Account == "" || e.Market == "" || e.Meta.TxHash == "" {
		return fmt.Errorf("transaction entry missing account, market or hash: %w", storage.ErrInvalidInput)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("transaction type %q: %w", e.Type, ErrInconsistentEntry)
	}
	switch e.Type {
	case domain.TransactionTypeTransferIn:
		if e.TransferredFrom == nil || e.TransferredTo != nil {
			return fmt.Errorf("%s needs transferredFrom only: %w", e.Type, ErrInconsistentEntry)
		}
	case domain.TransactionTypeTransferOut:
		if e.TransferredTo == nil || e.TransferredFrom != nil {
			return fmt.Errorf("%s needs transferredTo only: %w", e.Type, ErrInconsistentEntry)
		}
	default:
		if e.TransferredFrom != nil || e.TransferredTo != nil {
			return fmt.Errorf("%s takes no peer: %w", e.Type, ErrInconsistentEntry)
		}
	}
	return nil
}

func orEmpty(b domain.Balances) domain.Balances {
	if b == nil {
		return domain.Balances{}
	}
	return b
}
