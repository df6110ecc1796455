// Package domain defines the core types shared across the RosterFi trading
// gateway: player pools, trade quotes, trade lifecycle state, and the
// interfaces implemented by the storage and messaging layers.
package domain

import "math/big"

// Fixed-point scales used by the on-chain contracts. The currency token
// (USDC-style) uses 6 decimals; player tokens use the ERC20 standard 18.
const (
	CurrencyDecimals    = 6
	PlayerTokenDecimals = 18
)

// PoolReserves holds the two-sided reserve balances of a player's AMM pool,
// as raw fixed-point integers read from the chain. A pool with either side
// at zero has no liquidity and cannot be quoted.
type PoolReserves struct {
	CurrencyReserve *big.Int // raw, 6 decimals
	PlayerReserve   *big.Int // raw, 18 decimals
}

// HasLiquidity reports whether both sides of the pool are funded.
func (r PoolReserves) HasLiquidity() bool {
	return r.CurrencyReserve != nil && r.PlayerReserve != nil &&
		r.CurrencyReserve.Sign() > 0 && r.PlayerReserve.Sign() > 0
}

// ZeroReserves returns a PoolReserves with both sides at zero. Used as the
// fallback entry when a reserve fetch fails, so dependent quote logic
// degrades to "no liquidity" instead of operating on stale or fabricated
// data.
func ZeroReserves() PoolReserves {
	return PoolReserves{
		CurrencyReserve: new(big.Int),
		PlayerReserve:   new(big.Int),
	}
}
