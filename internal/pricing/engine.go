// Package pricing implements the pool-reserve cache and the constant-product
// price-impact engine. Quotes are advisory: the on-chain contract enforces
// the actual execution bound, so quote math never needs to be trusted for
// safety, only for display and bound derivation.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// ReserveReader reads batched pool reserves from the chain. Implemented by
// the chain client.
type ReserveReader interface {
	// PlayerPools returns two parallel arrays (currency reserves, player
	// reserves) positionally matching playerIDs.
	PlayerPools(ctx context.Context, playerIDs []string) (currency, player []string, err error)
}

// Engine caches per-player pool reserves and computes AMM quotes from them.
// The reserve map is process-wide mutable state with single-writer
// discipline: FetchReserves replaces it wholesale, Reset clears it on wallet
// disconnect/switch.
type Engine struct {
	reader ReserveReader
	logger *slog.Logger

	mu       sync.RWMutex
	reserves map[string]domain.PoolReserves
	lastErr  string // surfaced to the UI when the last fetch failed
}

// NewEngine creates an Engine backed by the given reserve reader.
func NewEngine(reader ReserveReader, logger *slog.Logger) *Engine {
	return &Engine{
		reader:   reader,
		logger:   logger.With(slog.String("component", "pricing")),
		reserves: make(map[string]domain.PoolReserves),
	}
}

// FetchReserves refreshes the reserve cache for the given player ids. An
// empty id list is a no-op and preserves existing state. On success the
// whole map is replaced with one entry per requested id. On failure every
// requested id gets a zeroed entry (no liquidity, never fabricated data) and
// the error is returned for display.
func (e *Engine) FetchReserves(ctx context.Context, playerIDs []string) error {
	if len(playerIDs) == 0 {
		return nil
	}

	currency, player, err := e.reader.PlayerPools(ctx, playerIDs)
	if err == nil && (len(currency) != len(playerIDs) || len(player) != len(playerIDs)) {
		err = fmt.Errorf("%w: pool info arrays have %d/%d entries for %d ids",
			domain.ErrProtocolResponse, len(currency), len(player), len(playerIDs))
	}

	var fresh map[string]domain.PoolReserves
	if err == nil {
		fresh, err = buildReserveMap(playerIDs, currency, player)
	}

	if err != nil {
		// Every failure mode degrades identically: all requested ids get
		// zeroed entries so nothing keeps quoting on stale data.
		fallback := make(map[string]domain.PoolReserves, len(playerIDs))
		for _, id := range playerIDs {
			fallback[id] = domain.ZeroReserves()
		}
		e.mu.Lock()
		e.reserves = fallback
		e.lastErr = err.Error()
		e.mu.Unlock()

		e.logger.WarnContext(ctx, "reserve fetch failed, degrading to no-liquidity",
			slog.Int("players", len(playerIDs)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("pricing: fetch reserves: %w", err)
	}

	e.mu.Lock()
	e.reserves = fresh
	e.lastErr = ""
	e.mu.Unlock()

	return nil
}

func buildReserveMap(playerIDs, currency, player []string) (map[string]domain.PoolReserves, error) {
	m := make(map[string]domain.PoolReserves, len(playerIDs))
	for i, id := range playerIDs {
		cr, ok := parseReserve(currency[i])
		if !ok {
			return nil, fmt.Errorf("%w: currency reserve %q for player %s",
				domain.ErrProtocolResponse, currency[i], id)
		}
		pr, ok := parseReserve(player[i])
		if !ok {
			return nil, fmt.Errorf("%w: player reserve %q for player %s",
				domain.ErrProtocolResponse, player[i], id)
		}
		m[id] = domain.PoolReserves{CurrencyReserve: cr, PlayerReserve: pr}
	}
	return m, nil
}

// Reserves returns the cached reserves for a player id.
func (e *Engine) Reserves(playerID string) (domain.PoolReserves, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.reserves[playerID]
	return r, ok
}

// LastFetchError returns the message of the most recent failed fetch, or ""
// when the last fetch succeeded.
func (e *Engine) LastFetchError() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// Reset clears the reserve cache. Called when the set of tracked players
// changes or the wallet disconnects.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.reserves = make(map[string]domain.PoolReserves)
	e.lastErr = ""
	e.mu.Unlock()
}

// Quote computes the AMM-implied preview for trading amount (a decimal
// string, currency units on a buy, player token units on a sell) against the
// cached pool of playerID. It returns nil, never an error, when no quote can
// be derived: unknown player, missing/non-positive amount, or a pool with
// zero liquidity. The result is a pure function of the cached reserves and
// the inputs.
func (e *Engine) Quote(playerID, amount string, side domain.TradeSide) *domain.TradeQuote {
	reserves, ok := e.Reserves(playerID)
	if !ok || !reserves.HasLiquidity() {
		return nil
	}

	amt, err := strconv.ParseFloat(amount, 64)
	if err != nil || !isFinite(amt) || amt <= 0 {
		return nil
	}

	c := scaledFloat(reserves.CurrencyReserve, domain.CurrencyDecimals)
	a := scaledFloat(reserves.PlayerReserve, domain.PlayerTokenDecimals)

	currentPrice := c / a
	k := c * a

	var newC, newA, tokensTraded, effectivePrice float64
	switch side {
	case domain.TradeSideBuy:
		newC = c + amt
		newA = k / newC
		tokensTraded = a - newA
		effectivePrice = amt / tokensTraded
	case domain.TradeSideSell:
		newA = a + amt
		newC = k / newA
		tokensTraded = c - newC
		effectivePrice = tokensTraded / amt
	default:
		return nil
	}

	newPrice := newC / newA
	impact := (newPrice - currentPrice) / currentPrice * 100

	// A quote with a non-finite or non-positive price must never reach the
	// UI or the bound computation downstream.
	if !isFinite(currentPrice) || currentPrice <= 0 ||
		!isFinite(newPrice) || newPrice <= 0 ||
		!isFinite(tokensTraded) || tokensTraded <= 0 ||
		!isFinite(effectivePrice) || !isFinite(impact) {
		return nil
	}

	return &domain.TradeQuote{
		CurrentPrice:       currentPrice,
		NewPrice:           newPrice,
		PriceImpactPercent: impact,
		TokensTraded:       tokensTraded,
		EffectivePrice:     effectivePrice,
	}
}

func parseReserve(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}

// scaledFloat converts a raw fixed-point integer to its display-scale float.
func scaledFloat(raw *big.Int, decimals int32) float64 {
	return decimal.NewFromBigInt(raw, -decimals).InexactFloat64()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
