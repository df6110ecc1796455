package pricing

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// Slippage tolerance limits. The UI offers the presets as one-tap buttons
// and accepts free-form values inside the min/max range.
const (
	DefaultSlippagePercent = 0.5
	MinSlippagePercent     = 0.1
	MaxSlippagePercent     = 50
)

// SlippagePresets are the one-tap tolerance choices, in percent.
var SlippagePresets = []float64{0.5, 1}

// ValidateSlippage rejects tolerances outside the accepted range.
func ValidateSlippage(pct float64) error {
	if pct < MinSlippagePercent || pct > MaxSlippagePercent {
		return fmt.Errorf("%w: slippage %.4g%% outside %.4g-%.4g%%",
			domain.ErrInvalidTrade, pct, float64(MinSlippagePercent), float64(MaxSlippagePercent))
	}
	return nil
}

// MaxCurrencySpend computes the buy-side bound amount × (1 + slippage/100),
// exactly. Both inputs are display-scale decimals.
//
// The bound is linear in the entered amount; for large trades the AMM's
// actual price impact can exceed it, in which case the contract rejects the
// trade. The quote's PriceImpactPercent is shown next to the slippage
// selector precisely so the user can see the two numbers diverge.
func MaxCurrencySpend(amount, slippagePct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return amount.Mul(one.Add(slippagePct.Div(hundred)))
}

// MinCurrencyOut computes the sell-side bound
// amount × currentPrice × (1 − slippage/100), exactly. The slippage applies
// to the spot-price notional, not the AMM effective price: that is the one
// canonical formula used everywhere.
func MinCurrencyOut(amount, currentPrice, slippagePct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)
	return amount.Mul(currentPrice).Mul(one.Sub(slippagePct.Div(hundred)))
}

// RawCurrencyCeil converts a display-scale currency amount to raw 6-decimal
// units, rounding up. Used for the buy bound so the on-chain allowance never
// falls one micro-unit short of the promised spend.
func RawCurrencyCeil(d decimal.Decimal) *big.Int {
	return d.Shift(domain.CurrencyDecimals).Ceil().BigInt()
}

// RawCurrencyFloor converts a display-scale currency amount to raw 6-decimal
// units, rounding down. Used for the sell bound: the contract must never be
// asked for more than the user was quoted.
func RawCurrencyFloor(d decimal.Decimal) *big.Int {
	return d.Shift(domain.CurrencyDecimals).Floor().BigInt()
}

// RawPlayerAmount converts a display-scale player-token quantity to raw
// 18-decimal units, rounding down.
func RawPlayerAmount(d decimal.Decimal) *big.Int {
	return d.Shift(domain.PlayerTokenDecimals).Floor().BigInt()
}
