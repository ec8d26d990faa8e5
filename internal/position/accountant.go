// Package position maintains versioned account positions in markets.
package position

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/event"
	"amm-position-ledger/internal/snapshot"
	"amm-position-ledger/internal/storage"
	"amm-position-ledger/internal/txledger"
)

// Action is one balance-changing action on an account's position.
// Balances are the resulting totals after the action, computed by the caller.
type Action struct {
	Meta    event.Meta
	Account string
	Market  string

	OutputTokenAmount  *big.Int
	InputTokenAmounts  domain.Balances
	RewardTokenAmounts domain.Balances

	OutputTokenBalance  *big.Int
	InputTokenBalances  domain.Balances
	RewardTokenBalances domain.Balances

	TransferredFrom *string // peer sender; turns an invest into a transfer in
	TransferredTo   *string // peer receiver; turns a redeem into a transfer out
}

// Accountant applies actions to positions.
type Accountant struct {
	accounts         storage.AccountStore
	accountPositions storage.AccountPositionStore
	positions        storage.PositionStore
	transactions     *txledger.Ledger
	snapshots        *snapshot.Recorder
}

// New creates an Accountant writing through s.
func New(s *storage.Stores, transactions *txledger.Ledger, snapshots *snapshot.Recorder) *Accountant {
	return &Accountant{
		accounts:         s.Accounts,
		accountPositions: s.AccountPositions,
		positions:        s.Positions,
		transactions:     transactions,
		snapshots:        snapshots,
	}
}

// GetOrCreateOpenPosition returns the open position of (account, market, type).
// If none exists, or the latest one is closed, it opens a new version with the next counter.
func (a *Accountant) GetOrCreateOpenPosition(ctx context.Context, account, market string, typ domain.PositionType, meta event.Meta) (*domain.Position, error) {
	apKey := entityid.AccountPositionKey{Account: account, Market: market, PositionType: typ}
	apID := apKey.String()

	ap, err := a.accountPositions.Get(ctx, apID)
	if errors.Is(err, storage.ErrNotFound) {
		ap = &domain.AccountPosition{ID: apID}
	} else if err != nil {
		return nil, fmt.Errorf("get account position %s: %w", apID, err)
	}

	if ap.PositionCounter > 0 {
		id := entityid.PositionKey{AccountPosition: apKey, Counter: ap.PositionCounter}.String()
		last, err := a.positions.Get(ctx, id)
		if err == nil && !last.Closed {
			return last, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("get position %s: %w", id, err)
		}
	}

	ap.PositionCounter++
	p := &domain.Position{
		ID:                  entityid.PositionKey{AccountPosition: apKey, Counter: ap.PositionCounter}.String(),
		AccountPosition:     apID,
		Account:             account,
		Market:              market,
		PositionType:        typ,
		OutputTokenBalance:  new(big.Int),
		InputTokenBalances:  domain.Balances{},
		RewardTokenBalances: domain.Balances{},
		TransferredTo:       []string{},
		BlockNumber:         meta.BlockNumber,
		Timestamp:           meta.BlockTimestamp,
	}

	if err := a.positions.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("put position %s: %w", p.ID, err)
	}
	if err := a.accountPositions.Put(ctx, ap); err != nil {
		return nil, fmt.Errorf("put account position %s: %w", apID, err)
	}
	return p, nil
}

// ApplyBalances overwrites the position balances and closes it when output reaches zero.
func ApplyBalances(p *domain.Position, output *big.Int, inputs, rewards domain.Balances) {
	if output == nil {
		output = new(big.Int)
	}
	p.OutputTokenBalance = new(big.Int).Set(output)
	p.InputTokenBalances = inputs.Clone()
	if p.InputTokenBalances == nil {
		p.InputTokenBalances = domain.Balances{}
	}
	p.RewardTokenBalances = rewards.Clone()
	if p.RewardTokenBalances == nil {
		p.RewardTokenBalances = domain.Balances{}
	}
	if p.OutputTokenBalance.Sign() == 0 {
		p.Closed = true
	}
}

// Invest records an INVEST (or TRANSFER_IN) on the account's investment position.
func (a *Accountant) Invest(ctx context.Context, act Action) (*domain.Position, error) {
	if act.TransferredTo != nil {
		return nil, fmt.Errorf("invest with transferredTo: %w", txledger.ErrInconsistentEntry)
	}
	return a.apply(ctx, domain.TransactionTypeInvest, act)
}

// Redeem records a REDEEM (or TRANSFER_OUT) on the account's investment position.
func (a *Accountant) Redeem(ctx context.Context, act Action) (*domain.Position, error) {
	if act.TransferredFrom != nil {
		return nil, fmt.Errorf("redeem with transferredFrom: %w", txledger.ErrInconsistentEntry)
	}
	return a.apply(ctx, domain.TransactionTypeRedeem, act)
}

// Borrow records a BORROW on the account's debt position.
func (a *Accountant) Borrow(ctx context.Context, act Action) (*domain.Position, error) {
	return a.apply(ctx, domain.TransactionTypeBorrow, act)
}

// Repay records a REPAY on the account's debt position.
func (a *Accountant) Repay(ctx context.Context, act Action) (*domain.Position, error) {
	return a.apply(ctx, domain.TransactionTypeRepay, act)
}

func (a *Accountant) apply(ctx context.Context, base domain.TransactionType, act Action) (*domain.Position, error) {
	if err := a.ensureAccounts(ctx, act); err != nil {
		return nil, err
	}

	typ := txledger.Classify(base, act.TransferredFrom, act.TransferredTo)
	tx, err := a.transactions.Record(ctx, txledger.Entry{
		Account:            act.Account,
		Market:             act.Market,
		Type:               typ,
		Meta:               act.Meta,
		TransferredFrom:    act.TransferredFrom,
		TransferredTo:      act.TransferredTo,
		InputTokenAmounts:  act.InputTokenAmounts,
		OutputTokenAmount:  act.OutputTokenAmount,
		RewardTokenAmounts: act.RewardTokenAmounts,
	})
	if err != nil {
		return nil, err
	}

	p, err := a.GetOrCreateOpenPosition(ctx, act.Account, act.Market, typ.PositionType(), act.Meta)
	if err != nil {
		return nil, err
	}

	if _, err := a.snapshots.SnapshotPosition(ctx, p, tx); err != nil {
		return nil, err
	}

	ApplyBalances(p, act.OutputTokenBalance, act.InputTokenBalances, act.RewardTokenBalances)
	if act.TransferredTo != nil && !p.HasTransferredTo(*act.TransferredTo) {
		p.TransferredTo = append(p.TransferredTo, *act.TransferredTo)
	}

	if err := a.positions.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("put position %s: %w", p.ID, err)
	}
	return p, nil
}

func (a *Accountant) ensureAccounts(ctx context.Context, act Action) error {
	ids := []string{act.Account}
	if act.Meta.TxFrom != nil {
		ids = append(ids, *act.Meta.TxFrom)
	}
	if act.Meta.TxTo != nil {
		ids = append(ids, *act.Meta.TxTo)
	}
	for _, id := range ids {
		if err := a.accounts.Ensure(ctx, &domain.Account{ID: id}); err != nil {
			return fmt.Errorf("ensure account %s: %w", id, err)
		}
	}
	return nil
}
