// Package pricing implements the automated market maker used to quote bets.
//
// Prices are derived purely from per-option pool liquidity: the implied
// probability of an option is its inverse liquidity normalized over the sum
// of all inverse liquidities, so a thinner pool on one outcome means the
// market weighs the other outcomes more heavily. For a two-option market
// with positive liquidities this reduces to L_other / (L_this + L_other);
// the inverse-liquidity form is used because it generalizes to N options.
//
// The engine is pure and performs no I/O. Callers must read liquidity inside
// the ledger's transaction boundary when quoting a bet that will execute;
// a stale pool snapshot here is a financial-correctness bug, not a UX one.
package pricing

import (
	"fmt"
	"math"

	"github.com/predictarena/ledger/internal/domain"
)

// Quote is a fee-adjusted payout estimate for one option at the current pool
// state, before slippage from the bet itself.
type Quote struct {
	OptionID    string
	Amount      int64
	Fee         int64
	NetStake    int64
	Probability float64
	Payout      int64
}

// Probabilities returns the implied probability of every option:
// p_i = (1/L_i) / sum_j (1/L_j). The result sums to 1 up to float error.
// It fails when an option has non-positive liquidity or the inverse sum
// degenerates to zero.
func Probabilities(options []domain.Option) (map[string]float64, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("pricing: no options: %w", domain.ErrInvalidInput)
	}

	var invSum float64
	for _, o := range options {
		if o.Liquidity <= 0 {
			return nil, fmt.Errorf("pricing: option %s has liquidity %v: %w",
				o.ID, o.Liquidity, domain.ErrInvalidInput)
		}
		invSum += 1 / o.Liquidity
	}
	if invSum == 0 || math.IsInf(invSum, 0) || math.IsNaN(invSum) {
		return nil, fmt.Errorf("pricing: degenerate liquidity configuration: %w", domain.ErrInvalidInput)
	}

	probs := make(map[string]float64, len(options))
	for _, o := range options {
		probs[o.ID] = (1 / o.Liquidity) / invSum
	}
	return probs, nil
}

// NewQuote prices a prospective bet of amount points on optionID given the
// current pool state. fee = floor(amount * feePercent); the payout is what
// the bettor would receive if the option wins: floor(netStake / p).
func NewQuote(options []domain.Option, optionID string, amount int64, feePercent float64) (Quote, error) {
	if amount <= 0 {
		return Quote{}, fmt.Errorf("pricing: amount %d: %w", amount, domain.ErrInvalidInput)
	}
	if feePercent < 0 || feePercent >= 1 {
		return Quote{}, fmt.Errorf("pricing: fee percent %v: %w", feePercent, domain.ErrInvalidInput)
	}

	probs, err := Probabilities(options)
	if err != nil {
		return Quote{}, err
	}

	p, ok := probs[optionID]
	if !ok {
		return Quote{}, fmt.Errorf("pricing: unknown option %s: %w", optionID, domain.ErrInvalidOption)
	}
	if p <= 0 {
		return Quote{}, fmt.Errorf("pricing: option %s has zero probability: %w", optionID, domain.ErrInvalidInput)
	}

	fee := int64(math.Floor(float64(amount) * feePercent))
	net := amount - fee

	return Quote{
		OptionID:    optionID,
		Amount:      amount,
		Fee:         fee,
		NetStake:    net,
		Probability: p,
		Payout:      int64(math.Floor(float64(net) / p)),
	}, nil
}
