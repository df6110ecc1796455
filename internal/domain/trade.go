package domain

import (
	"math/big"
	"time"
)

// TradePhase tracks where a single orchestrated attempt is in its state
// machine. Transitions are strictly forward; any failure jumps to
// PhaseFailed.
type TradePhase string

const (
	PhaseIdle                 TradePhase = "idle"
	PhaseValidating           TradePhase = "validating"
	PhaseApproving            TradePhase = "approving"
	PhaseAwaitingSignature    TradePhase = "awaiting_signature"
	PhaseSubmitting           TradePhase = "submitting"
	PhaseAwaitingConfirmation TradePhase = "awaiting_confirmation"
	PhaseSucceeded            TradePhase = "succeeded"
	PhaseFailed               TradePhase = "failed"
)

// TradeStatus is the UI-facing lifecycle of a trade attempt, shown in the
// persistent status panel. It is coarser than TradePhase: pending covers
// everything between submission start and the terminal outcome.
type TradeStatus string

const (
	TradeStatusIdle    TradeStatus = "idle"
	TradeStatusPending TradeStatus = "pending"
	TradeStatusSuccess TradeStatus = "success"
	TradeStatusError   TradeStatus = "error"
)

// ErrorCategory is the fixed taxonomy surfaced to the UI for failed trades.
// Unrecognized failures use CategoryUnknown and pass their raw message
// through.
type ErrorCategory string

const (
	CategoryInvalidSignature    ErrorCategory = "invalid_signature"
	CategoryStaleNonce          ErrorCategory = "stale_nonce"
	CategoryDeadlineExceeded    ErrorCategory = "deadline_exceeded"
	CategoryBoundExceeded       ErrorCategory = "bound_exceeded"
	CategoryNotSellable         ErrorCategory = "not_sellable"
	CategoryInsufficientBalance ErrorCategory = "insufficient_balance"
	CategoryInsufficientGas     ErrorCategory = "insufficient_gas"
	CategoryUserRejected        ErrorCategory = "user_rejected"
	CategoryUnknown             ErrorCategory = "unknown"
)

// SignedTradeRequest is the ephemeral per-submission value object handed to
// the contract writer. It is constructed once per attempt and never reused:
// the nonce must advance between attempts.
type SignedTradeRequest struct {
	Side      TradeSide
	PlayerIDs []*big.Int
	Amounts   []*big.Int // raw: currency (6 dec) on buy, player tokens (18 dec) on sell

	// Bound is the max currency spend on a buy or the min currency received
	// on a sell, raw 6-decimal units. Enforced by the contract, not by the
	// client-side quote.
	Bound *big.Int

	Deadline  int64 // unix seconds
	Nonce     uint64
	Signature []byte
	Recipient string // buy recipient or seller address, hex

	// TransactionID is set only when the signature came from the backend
	// signing service; it keys the post-confirmation callback.
	TransactionID string
}

// StatusUpdate is published on every status transition so the UI can show
// live progress and keep the explorer link visible once a hash exists.
type StatusUpdate struct {
	AttemptID string      `json:"attempt_id"`
	Phase     TradePhase  `json:"phase"`
	Status    TradeStatus `json:"status"`
	Message   string      `json:"message"`
	TxHash    string      `json:"tx_hash,omitempty"`
	Side      TradeSide   `json:"side"`
	PlayerID  string      `json:"player_id"`
}

// TradeRecord is the persisted terminal outcome of an attempt, backing the
// status panel's history view.
type TradeRecord struct {
	ID          string        `json:"id"`
	Wallet      string        `json:"wallet"`
	PlayerID    string        `json:"player_id"`
	Side        TradeSide     `json:"side"`
	Amount      string        `json:"amount"` // decimal string as entered
	Bound       string        `json:"bound"`  // raw bound passed on-chain
	Nonce       uint64        `json:"nonce"`
	TxHash      string        `json:"tx_hash,omitempty"`
	Status      TradeStatus   `json:"status"`
	Category    ErrorCategory `json:"category,omitempty"`
	Message     string        `json:"message,omitempty"`
	SignSource  string        `json:"sign_source"` // "backend" or "local"
	QuotedPrice float64       `json:"quoted_price"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
}
