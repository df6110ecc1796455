package domain

// TradeSide indicates whether the user spends currency to receive player
// tokens (buy) or spends player tokens to receive currency (sell).
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Valid reports whether the side is one of the two known values.
func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// TradeQuote is the AMM-implied preview of a trade against a player pool.
// It is derived fresh from cached reserves for every (player, amount, side)
// tuple and never persisted. All values are display-scale floats: the
// pricing engine guarantees they are finite and positive where required.
type TradeQuote struct {
	// CurrentPrice is the pre-trade spot price in currency units per player
	// token unit.
	CurrentPrice float64 `json:"current_price"`

	// NewPrice is the post-trade spot price implied by the constant-product
	// invariant.
	NewPrice float64 `json:"new_price"`

	// PriceImpactPercent is the signed percentage change from CurrentPrice
	// to NewPrice: positive on a buy, negative on a sell under normal
	// conditions.
	PriceImpactPercent float64 `json:"price_impact_percent"`

	// TokensTraded is what the user receives: player token units on a buy,
	// currency units on a sell.
	TokensTraded float64 `json:"tokens_traded"`

	// EffectivePrice is the all-in per-unit price actually paid or received,
	// including price impact.
	EffectivePrice float64 `json:"effective_price"`
}

// AbsPriceImpact returns the unsigned price impact for display.
func (q TradeQuote) AbsPriceImpact() float64 {
	if q.PriceImpactPercent < 0 {
		return -q.PriceImpactPercent
	}
	return q.PriceImpactPercent
}
