package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// SessionService defines the methods the session handler requires.
type SessionService interface {
	Ensure(ctx context.Context) error
	Disconnect(ctx context.Context)
	Authenticated() bool
	Address() string
}

// SessionHandler serves session inspection and control endpoints.
type SessionHandler struct {
	session SessionService
	logger  *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(session SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session: session,
		logger:  logger,
	}
}

// sessionResponse is the session state snapshot.
type sessionResponse struct {
	Address       string `json:"address"`
	Authenticated bool   `json:"authenticated"`
}

// GetSession returns the current session state.
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Address:       h.session.Address(),
		Authenticated: h.session.Authenticated(),
	})
}

// Login runs the backend challenge/login flow for the connected wallet.
// POST /api/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Ensure(r.Context()); err != nil {
		switch {
		case errors.Is(err, domain.ErrWalletNotConnected):
			writeError(w, http.StatusPreconditionFailed, "wallet not connected")
		case errors.Is(err, domain.ErrAuthInFlight):
			writeError(w, http.StatusConflict, "authentication already in progress")
		case errors.Is(err, domain.ErrAuthCooldown):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "handler: login failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusBadGateway, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Address:       h.session.Address(),
		Authenticated: true,
	})
}

// Logout disconnects the session and wipes the cached token.
// DELETE /api/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}
