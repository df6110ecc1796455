package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rosterfi/rosterfi/internal/domain"
	"github.com/rosterfi/rosterfi/internal/pricing"
)

// QuoteService defines the methods the quote handler requires from the
// pricing engine.
type QuoteService interface {
	FetchReserves(ctx context.Context, playerIDs []string) error
	Quote(playerID, amount string, side domain.TradeSide) *domain.TradeQuote
	LastFetchError() string
}

// QuoteHandler serves quote and pricing endpoints.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler with the given service and logger.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		logger: logger,
	}
}

// quoteResponse wraps a quote with context the panel renders alongside it.
type quoteResponse struct {
	PlayerID string             `json:"player_id"`
	Side     domain.TradeSide   `json:"side"`
	Amount   string             `json:"amount"`
	Quote    *domain.TradeQuote `json:"quote"`

	// StaleReserves carries the last reserve fetch failure, if any, so the
	// panel can flag that the quote may be built on zeroed reserves.
	StaleReserves string `json:"stale_reserves,omitempty"`
}

// GetQuote computes a trade preview against the cached reserves, refreshing
// them first.
// GET /api/quote?player_id=...&amount=...&side=buy|sell
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	playerID := q.Get("player_id")
	amount := q.Get("amount")
	side := domain.TradeSide(q.Get("side"))

	if playerID == "" || amount == "" {
		writeError(w, http.StatusBadRequest, "player_id and amount query parameters required")
		return
	}
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, "side must be buy or sell")
		return
	}

	if err := h.quotes.FetchReserves(r.Context(), []string{playerID}); err != nil {
		// The engine has already degraded the pool to zeroed reserves; the
		// nil-quote path below surfaces the failure via stale_reserves.
		h.logger.WarnContext(r.Context(), "handler: reserve refresh failed",
			slog.String("player_id", playerID),
			slog.String("error", err.Error()),
		)
	}

	resp := quoteResponse{
		PlayerID:      playerID,
		Side:          side,
		Amount:        amount,
		Quote:         h.quotes.Quote(playerID, amount, side),
		StaleReserves: h.quotes.LastFetchError(),
	}
	if resp.Quote == nil {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// slippageResponse describes the slippage settings the panel offers.
type slippageResponse struct {
	DefaultPercent float64   `json:"default_percent"`
	Presets        []float64 `json:"presets"`
	MinPercent     float64   `json:"min_percent"`
	MaxPercent     float64   `json:"max_percent"`
}

// GetSlippageSettings returns the allowed slippage range and presets.
// GET /api/quote/slippage
func (h *QuoteHandler) GetSlippageSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, slippageResponse{
		DefaultPercent: pricing.DefaultSlippagePercent,
		Presets:        pricing.SlippagePresets,
		MinPercent:     pricing.MinSlippagePercent,
		MaxPercent:     pricing.MaxSlippagePercent,
	})
}
