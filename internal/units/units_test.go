package units

import (
	"math/big"
	"testing"

	"amm-position-ledger/internal/domain"
)

func TestToDecimal(t *testing.T) {
	wei, _ := new(big.Int).SetString("1500000000000000000", 10)

	tests := []struct {
		name     string
		amount   *big.Int
		decimals uint8
		want     string
	}{
		{"eighteen decimals", wei, 18, "1.5"},
		{"six decimals", big.NewInt(2_500_000), 6, "2.5"},
		{"zero decimals is raw", big.NewInt(42), 0, "42"},
		{"below one unit", big.NewInt(1), 18, "0.000000000000000001"},
		{"nil", nil, 18, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToDecimal(tt.amount, tt.decimals).String(); got != tt.want {
				t.Errorf("ToDecimal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTokenAmount(t *testing.T) {
	six := uint8(6)
	usdc := &domain.Token{ID: "0xa0", Decimals: &six}
	broken := &domain.Token{ID: "0xb0"}

	if got := TokenAmount(usdc, big.NewInt(1_000_000)).String(); got != "1" {
		t.Errorf("usdc = %s, want 1", got)
	}
	if got := TokenAmount(broken, big.NewInt(1_000_000)).String(); got != "1000000" {
		t.Errorf("unknown decimals = %s, want raw 1000000", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(big.NewInt(123456789), 6, 2); got != "123.45" {
		t.Errorf("Format() = %s, want 123.45", got)
	}
}
