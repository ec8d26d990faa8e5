package domain

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// TokenBalance is an immutable (token, account, amount) triple.
type TokenBalance struct {
	Token   string
	Account string
	Amount  *big.Int
}

// NewTokenBalance creates a balance holding its own copy of amount.
func NewTokenBalance(token, account string, amount *big.Int) TokenBalance {
	return TokenBalance{Token: token, Account: account, Amount: new(big.Int).Set(zeroIfNil(amount))}
}

// Add returns a new balance with the summed amount when b is for the same token.
// For a different token the receiver is returned unchanged.
func (tb TokenBalance) Add(b TokenBalance) TokenBalance {
	if tb.Token != b.Token {
		return tb
	}
	sum := new(big.Int).Add(zeroIfNil(tb.Amount), zeroIfNil(b.Amount))
	return TokenBalance{Token: tb.Token, Account: tb.Account, Amount: sum}
}

// String encodes the balance as "token|account|amount".
func (tb TokenBalance) String() string {
	return tb.Token + "|" + tb.Account + "|" + zeroIfNil(tb.Amount).String()
}

// ParseTokenBalance decodes the "token|account|amount" form produced by String.
func ParseTokenBalance(s string) (TokenBalance, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return TokenBalance{}, fmt.Errorf("token balance %q: want 3 fields, got %d", s, len(parts))
	}
	amount, ok := new(big.Int).SetString(parts[2], 10)
	if !ok {
		return TokenBalance{}, fmt.Errorf("token balance %q: invalid amount", s)
	}
	return TokenBalance{Token: parts[0], Account: parts[1], Amount: amount}, nil
}

// Balances is a set of token balances keyed by token address.
// Persisted as an ordered list; see List and Strings.
type Balances map[string]TokenBalance

// NewBalances builds a set from tbs, summing entries for the same token.
func NewBalances(tbs ...TokenBalance) Balances {
	b := make(Balances, len(tbs))
	for _, tb := range tbs {
		b.add(tb)
	}
	return b
}

func (b Balances) add(tb TokenBalance) {
	if cur, ok := b[tb.Token]; ok {
		b[tb.Token] = cur.Add(tb)
		return
	}
	b[tb.Token] = NewTokenBalance(tb.Token, tb.Account, tb.Amount)
}

// Merge returns the union of b and other. Amounts for a token present in both are summed.
// Neither input is modified.
func (b Balances) Merge(other Balances) Balances {
	out := make(Balances, len(b)+len(other))
	for _, tb := range b.List() {
		out.add(tb)
	}
	for _, tb := range other.List() {
		out.add(tb)
	}
	return out
}

// Get returns the amount held for token, or zero.
func (b Balances) Get(token string) *big.Int {
	if tb, ok := b[token]; ok && tb.Amount != nil {
		return new(big.Int).Set(tb.Amount)
	}
	return new(big.Int)
}

// List returns the balances ordered by token address.
func (b Balances) List() []TokenBalance {
	out := make([]TokenBalance, 0, len(b))
	for _, tb := range b {
		out = append(out, tb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// Strings encodes the ordered list for persistence.
func (b Balances) Strings() []string {
	list := b.List()
	out := make([]string, len(list))
	for i, tb := range list {
		out[i] = tb.String()
	}
	return out
}

// Equal reports whether both sets hold the same tokens, accounts and amounts.
func (b Balances) Equal(other Balances) bool {
	if len(b) != len(other) {
		return false
	}
	for token, tb := range b {
		ob, ok := other[token]
		if !ok || ob.Account != tb.Account || zeroIfNil(ob.Amount).Cmp(zeroIfNil(tb.Amount)) != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (b Balances) Clone() Balances {
	if b == nil {
		return nil
	}
	out := make(Balances, len(b))
	for token, tb := range b {
		out[token] = NewTokenBalance(tb.Token, tb.Account, tb.Amount)
	}
	return out
}

// ParseBalances decodes a persisted list produced by Strings.
func ParseBalances(list []string) (Balances, error) {
	b := make(Balances, len(list))
	for _, s := range list {
		tb, err := ParseTokenBalance(s)
		if err != nil {
			return nil, err
		}
		b.add(tb)
	}
	return b, nil
}
