package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rosterfi/rosterfi/internal/domain"
	"github.com/rosterfi/rosterfi/internal/trade"
)

// TradeService defines the methods the trade handler requires from the
// orchestrator.
type TradeService interface {
	Execute(ctx context.Context, in trade.Input) (domain.TradeRecord, error)
	Status() domain.StatusUpdate
}

// TradeHandler serves trade submission, status, and history endpoints.
type TradeHandler struct {
	trades TradeService
	store  domain.TradeStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler. store may be nil when history
// persistence is disabled; the history endpoints then return 503.
func NewTradeHandler(trades TradeService, store domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		store:  store,
		logger: logger,
	}
}

// submitTradeRequest is the JSON body for trade submission.
type submitTradeRequest struct {
	PlayerID        string  `json:"player_id"`
	Amount          string  `json:"amount"`
	Side            string  `json:"side"`
	SlippagePercent float64 `json:"slippage_percent"`
}

// SubmitTrade runs a trade through the orchestrator and returns its
// terminal record. The call blocks until the trade confirms or fails;
// intermediate progress flows over the WebSocket feed.
// POST /api/trades
func (h *TradeHandler) SubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req submitTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.trades.Execute(r.Context(), trade.Input{
		PlayerID:        req.PlayerID,
		Amount:          req.Amount,
		Side:            domain.TradeSide(req.Side),
		SlippagePercent: req.SlippagePercent,
	})
	if err != nil {
		switch {
		case errors.Is(err, trade.ErrTradeInFlight):
			writeError(w, http.StatusConflict, "another trade is already in flight")
		case errors.Is(err, domain.ErrInvalidTrade), errors.Is(err, domain.ErrNoLiquidity):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrWalletNotConnected):
			writeError(w, http.StatusPreconditionFailed, "wallet not connected")
		default:
			h.logger.ErrorContext(r.Context(), "handler: trade failed",
				slog.String("player_id", req.PlayerID),
				slog.String("category", string(rec.Category)),
				slog.String("error", err.Error()),
			)
			// A failed trade still has a record worth returning: the panel
			// shows the category and message from it.
			writeJSON(w, http.StatusUnprocessableEntity, rec)
		}
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// GetStatus returns the most recent trade status update.
// GET /api/trades/status
func (h *TradeHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.trades.Status())
}

// listTradesResponse wraps the trade history response.
type listTradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
}

// ListTrades returns a wallet's trade history, newest first.
// GET /api/trades?wallet=0x...&limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "trade history is not enabled")
		return
	}

	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet query parameter required")
		return
	}

	records, err := h.store.ListByWallet(r.Context(), wallet, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if records == nil {
		records = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: records})
}

// GetTrade returns a single trade record by ID.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "trade history is not enabled")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trade not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get trade failed",
			slog.String("trade_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get trade")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
