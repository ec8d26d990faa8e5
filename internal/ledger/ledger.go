// Package ledger tracks per-account pool share balances.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/storage"
)

var (
	// ErrNegativeBalance is returned when a debit exceeds the current balance.
	ErrNegativeBalance = errors.New("balance would become negative")

	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("amount must be non-negative")
)

// Ledger reads and writes AccountLiquidity balances.
type Ledger struct {
	store storage.LiquidityStore
}

// New creates a Ledger over store.
func New(store storage.LiquidityStore) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the share balance of account in pair. Unknown balances are zero.
func (l *Ledger) Balance(ctx context.Context, pair, account string) (*big.Int, error) {
	rec, err := l.store.Get(ctx, pair, account)
	if errors.Is(err, storage.ErrNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance %s/%s: %w", pair, account, err)
	}
	return new(big.Int).Set(rec.Balance), nil
}

// Credit adds amount to the balance and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, pair, account string, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	current, err := l.Balance(ctx, pair, account)
	if err != nil {
		return nil, err
	}
	next := current.Add(current, amount)
	return next, l.put(ctx, pair, account, next)
}

// Debit subtracts amount from the balance and returns the new balance.
// Returns ErrNegativeBalance, leaving the balance untouched, if amount exceeds it.
func (l *Ledger) Debit(ctx context.Context, pair, account string, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	current, err := l.Balance(ctx, pair, account)
	if err != nil {
		return nil, err
	}
	if current.Cmp(amount) < 0 {
		return nil, fmt.Errorf("debit %s from %s in %s holding %s: %w", amount, account, pair, current, ErrNegativeBalance)
	}
	next := current.Sub(current, amount)
	return next, l.put(ctx, pair, account, next)
}

func (l *Ledger) put(ctx context.Context, pair, account string, balance *big.Int) error {
	err := l.store.Put(ctx, &domain.AccountLiquidity{
		ID:      entityid.LiquidityKey{Pair: pair, Account: account}.String(),
		Pair:    pair,
		Account: account,
		Balance: balance,
	})
	if err != nil {
		return fmt.Errorf("put balance %s/%s: %w", pair, account, err)
	}
	return nil
}

// ReserveShare returns floor(balance * reserve / supply), or zero when supply is zero.
func ReserveShare(balance, reserve, supply *big.Int) *big.Int {
	if balance == nil || reserve == nil || supply == nil || supply.Sign() == 0 {
		return new(big.Int)
	}
	share := new(big.Int).Mul(balance, reserve)
	return share.Quo(share, supply)
}

// InputBalances returns the implied token0/token1 holdings of balance shares in p.
func InputBalances(p *domain.Pair, account string, balance *big.Int) domain.Balances {
	return domain.NewBalances(
		domain.NewTokenBalance(p.Token0, account, ReserveShare(balance, p.Reserve0, p.TotalSupply)),
		domain.NewTokenBalance(p.Token1, account, ReserveShare(balance, p.Reserve1, p.TotalSupply)),
	)
}
