// Package units converts raw integer token amounts into human units.
package units

import (
	"math/big"

	"github.com/shopspring/decimal"

	"amm-position-ledger/internal/domain"
)

// ToDecimal scales amount down by 10^decimals. Zero decimals returns the raw value.
// A nil amount is zero.
func ToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// TokenAmount converts amount using the token's decimals.
// Tokens whose decimals read reverted are shown raw.
func TokenAmount(t *domain.Token, amount *big.Int) decimal.Decimal {
	if t == nil || t.Decimals == nil {
		return ToDecimal(amount, 0)
	}
	return ToDecimal(amount, *t.Decimals)
}

// Format renders amount in human units with at most places fractional digits.
func Format(amount *big.Int, decimals uint8, places int32) string {
	return ToDecimal(amount, decimals).Truncate(places).String()
}
