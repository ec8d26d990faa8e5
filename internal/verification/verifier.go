// Package verification cross-checks the stored ledger. It reports where two views of the
// same quantity disagree: pair supply against holder balances, markets against their pair,
// and position closure against the position balance.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"amm-position-ledger/internal/domain"
	"amm-position-ledger/internal/entityid"
	"amm-position-ledger/internal/storage"
)

// ErrPairNotFound is returned when the pair id doesn't exist.
var ErrPairNotFound = errors.New("pair not found")

// FieldDivergence represents a mismatch between stored and derived values.
type FieldDivergence struct {
	Entity   string `json:"entity"`   // id of the record that disagrees
	Field    string `json:"field"`    // field name
	Expected string `json:"expected"` // value derived from the source of truth
	Actual   string `json:"actual"`   // stored value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s.%s: expected %s, got %s", d.Entity, d.Field, d.Expected, d.Actual)
}

// PairResult contains the result of verifying a single pair.
type PairResult struct {
	Pair        string            `json:"pair"`
	Holders     int               `json:"holders"`   // balance records checked
	Positions   int               `json:"positions"` // positions checked
	Divergences []FieldDivergence `json:"divergences,omitempty"`
}

// Match reports whether no divergence was found.
func (r *PairResult) Match() bool {
	return len(r.Divergences) == 0
}

// Report contains results for batch verification.
type Report struct {
	TotalPairs     int          `json:"total_pairs"`
	MatchedPairs   int          `json:"matched_pairs"`
	DivergentPairs int          `json:"divergent_pairs"`
	Results        []PairResult `json:"results"`
}

// Verifier checks stored entities against each other.
type Verifier struct {
	stores *storage.Stores
	log    zerolog.Logger
}

// NewVerifier creates a Verifier reading from s.
func NewVerifier(s *storage.Stores, log zerolog.Logger) *Verifier {
	return &Verifier{stores: s, log: log}
}

// VerifyAll verifies every pair in creation order.
func (v *Verifier) VerifyAll(ctx context.Context) (*Report, error) {
	pairs, err := v.stores.Pairs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pairs: %w", err)
	}

	report := &Report{Results: make([]PairResult, 0, len(pairs))}
	for _, p := range pairs {
		result, err := v.verify(ctx, p)
		if err != nil {
			return nil, err
		}
		report.TotalPairs++
		if result.Match() {
			report.MatchedPairs++
		} else {
			report.DivergentPairs++
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

// VerifyPair verifies a single pair by address.
func (v *Verifier) VerifyPair(ctx context.Context, id string) (*PairResult, error) {
	p, err := v.stores.Pairs.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get pair %s: %w", id, err)
	}
	return v.verify(ctx, p)
}

func (v *Verifier) verify(ctx context.Context, p *domain.Pair) (*PairResult, error) {
	result := &PairResult{Pair: p.ID}

	if err := v.checkMarket(ctx, p, result); err != nil {
		return nil, err
	}

	holders, err := v.stores.Liquidity.ListByPair(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list holders of %s: %w", p.ID, err)
	}
	result.Holders = len(holders)

	sum := new(big.Int)
	for _, h := range holders {
		sum.Add(sum, h.Balance)
		if h.Balance.Sign() < 0 {
			result.add(h.ID, "Balance", ">= 0", h.Balance.String())
		}
		if h.Account == domain.AddressZero || h.Account == p.ID {
			continue
		}
		if err := v.checkPosition(ctx, p, h, result); err != nil {
			return nil, err
		}
	}
	// The minimum liquidity lock is minted to the null address without a balance record.
	if p.TotalSupply.Sign() > 0 {
		sum.Add(sum, big.NewInt(domain.MinimumLiquidity))
	}
	if sum.Cmp(p.TotalSupply) != 0 {
		result.add(p.ID, "TotalSupply", sum.String(), p.TotalSupply.String())
	}

	if !result.Match() {
		v.log.Warn().
			Str("pair", p.ID).
			Int("divergences", len(result.Divergences)).
			Msg("ledger divergence")
	}
	return result, nil
}

func (v *Verifier) checkMarket(ctx context.Context, p *domain.Pair, result *PairResult) error {
	m, err := v.stores.Markets.Get(ctx, p.ID)
	if errors.Is(err, storage.ErrNotFound) {
		result.add(p.ID, "Market", "present", "missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get market %s: %w", p.ID, err)
	}

	if got := m.InputTokenTotalBalances.Get(p.Token0); got.Cmp(p.Reserve0) != 0 {
		result.add(m.ID, "InputTokenTotalBalances["+p.Token0+"]", p.Reserve0.String(), got.String())
	}
	if got := m.InputTokenTotalBalances.Get(p.Token1); got.Cmp(p.Reserve1) != 0 {
		result.add(m.ID, "InputTokenTotalBalances["+p.Token1+"]", p.Reserve1.String(), got.String())
	}
	if m.OutputTokenTotalSupply == nil || m.OutputTokenTotalSupply.Cmp(p.TotalSupply) != 0 {
		result.add(m.ID, "OutputTokenTotalSupply", p.TotalSupply.String(), intString(m.OutputTokenTotalSupply))
	}
	return nil
}

// checkPosition verifies the holder's latest investment position, if it has one.
// Holders that never invested through a completed mint or a transfer have no position.
func (v *Verifier) checkPosition(ctx context.Context, p *domain.Pair, h *domain.AccountLiquidity, result *PairResult) error {
	apKey := entityid.AccountPositionKey{
		Account:      h.Account,
		Market:       p.ID,
		PositionType: domain.PositionTypeInvestment,
	}
	ap, err := v.stores.AccountPositions.Get(ctx, apKey.String())
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get account position %s: %w", apKey, err)
	}

	posKey := entityid.PositionKey{AccountPosition: apKey, Counter: ap.PositionCounter}
	pos, err := v.stores.Positions.Get(ctx, posKey.String())
	if errors.Is(err, storage.ErrNotFound) {
		result.add(ap.ID, "Position", posKey.String(), "missing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get position %s: %w", posKey, err)
	}
	result.Positions++

	zero := domain.IsZero(pos.OutputTokenBalance)
	if pos.Closed != zero {
		result.add(pos.ID, "Closed", fmt.Sprint(zero), fmt.Sprint(pos.Closed))
	}
	if pos.OutputTokenBalance != nil && pos.OutputTokenBalance.Sign() < 0 {
		result.add(pos.ID, "OutputTokenBalance", ">= 0", pos.OutputTokenBalance.String())
	}
	return nil
}

func (r *PairResult) add(entity, field, expected, actual string) {
	r.Divergences = append(r.Divergences, FieldDivergence{
		Entity:   entity,
		Field:    field,
		Expected: expected,
		Actual:   actual,
	})
}

func intString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
