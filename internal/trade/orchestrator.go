// Package trade orchestrates signed trade submission end to end: input
// validation, balance and approval checks, nonce sourcing, signature
// acquisition (backend-assisted with local fallback), transaction
// submission, and confirmation tracking. Every phase transition is
// published so the status panel can follow along live.
package trade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rosterfi/rosterfi/internal/backend"
	"github.com/rosterfi/rosterfi/internal/crypto"
	"github.com/rosterfi/rosterfi/internal/domain"
	"github.com/rosterfi/rosterfi/internal/pricing"
)

// deadlineWindow is how far in the future a trade's on-chain deadline is
// set from the moment it is signed.
const deadlineWindow = 5 * time.Minute

// tradeDeadline is taken at signature preparation, not at Execute entry: a
// buy that waits on approval mining must not spend its window waiting.
func tradeDeadline() int64 {
	return time.Now().UTC().Add(deadlineWindow).Unix()
}

// StatusChannel is the signal-bus channel carrying status updates.
const StatusChannel = "trade:status"

// ErrTradeInFlight is returned when a trade is requested while another is
// still being orchestrated for the same gateway.
var ErrTradeInFlight = errors.New("trade: another trade is already in flight")

// SignSource identifies where a trade signature came from.
type SignSource string

const (
	SignSourceBackend SignSource = "backend"
	SignSourceLocal   SignSource = "local"
)

// SelectSignSource decides which signing path a trade should take. It is a
// pure function of the three observable conditions so the decision is
// testable in isolation: the backend path is preferred whenever it can be
// used, and the wallet path is the fallback.
func SelectSignSource(authenticated, backendAvailable, walletCanSign bool) (SignSource, error) {
	if authenticated && backendAvailable {
		return SignSourceBackend, nil
	}
	if walletCanSign {
		return SignSourceLocal, nil
	}
	if !authenticated {
		return "", fmt.Errorf("trade: %w: no session and wallet cannot sign", domain.ErrUnauthorized)
	}
	return "", fmt.Errorf("trade: backend unavailable and wallet cannot sign: %w", domain.ErrSigningFailed)
}

// ChainClient is the contract read/write surface the orchestrator needs.
type ChainClient interface {
	CurrencyBalance(ctx context.Context, wallet common.Address) (*big.Int, error)
	PlayerBalance(ctx context.Context, wallet common.Address, playerID string) (*big.Int, error)
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
	TradeNonce(ctx context.Context, wallet common.Address, side domain.TradeSide) (uint64, error)
	IsSellable(ctx context.Context, playerID string) (bool, error)
	EncodeApprove(amount *big.Int) ([]byte, common.Address, error)
	EncodeTrade(req domain.SignedTradeRequest) ([]byte, common.Address, error)
	WaitMined(ctx context.Context, hash common.Hash) error
}

// Wallet is the signing and submission surface of the embedded wallet.
type Wallet interface {
	Address() common.Address
	SignTrade(ctx context.Context, p crypto.TradePayload) ([]byte, error)
	SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// SignatureBackend is the backend-assisted signing surface.
type SignatureBackend interface {
	Available() bool
	PrepareBuySignature(ctx context.Context, req backend.SignatureRequest) (backend.PreparedSignature, error)
	PrepareSellSignature(ctx context.Context, req backend.SignatureRequest) (backend.PreparedSignature, error)
	ConfirmTransaction(ctx context.Context, transactionID, txHash string, success bool) error
}

// SessionManager gates the backend path on an authenticated session.
type SessionManager interface {
	Ensure(ctx context.Context) error
	Reset(ctx context.Context)
	Authenticated() bool
}

// Quoter previews the trade against cached reserves.
type Quoter interface {
	FetchReserves(ctx context.Context, playerIDs []string) error
	Quote(playerID, amount string, side domain.TradeSide) *domain.TradeQuote
}

// Notifier delivers terminal trade outcomes to external channels. It is
// optional and always best effort.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event types emitted on terminal trade outcomes.
const (
	EventTradeSucceeded = "trade_succeeded"
	EventTradeFailed    = "trade_failed"
)

// Input is a trade request as entered in the UI: a single player, a
// display-scale amount, and a slippage tolerance (0 means the default).
type Input struct {
	PlayerID        string
	Amount          string
	Side            domain.TradeSide
	SlippagePercent float64
}

// Orchestrator drives the trade state machine. One trade runs at a time;
// concurrent requests are rejected rather than queued so the UI never has
// two panels fighting over the same nonce sequence.
type Orchestrator struct {
	chain   ChainClient
	wallet  Wallet
	backend SignatureBackend
	session SessionManager
	quoter  Quoter
	store   domain.TradeStore
	bus     domain.SignalBus
	notify  Notifier
	logger  *slog.Logger

	mu       sync.Mutex
	inFlight bool
	last     domain.StatusUpdate
}

// Config collects the orchestrator's collaborators. Store, Bus, and Notify
// may be nil; the corresponding side effects are skipped.
type Config struct {
	Chain   ChainClient
	Wallet  Wallet
	Backend SignatureBackend
	Session SessionManager
	Quoter  Quoter
	Store   domain.TradeStore
	Bus     domain.SignalBus
	Notify  Notifier
	Logger  *slog.Logger
}

// New creates a trade orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		chain:   cfg.Chain,
		wallet:  cfg.Wallet,
		backend: cfg.Backend,
		session: cfg.Session,
		quoter:  cfg.Quoter,
		store:   cfg.Store,
		bus:     cfg.Bus,
		notify:  cfg.Notify,
		logger:  cfg.Logger.With("component", "trade"),
		last:    domain.StatusUpdate{Phase: domain.PhaseIdle, Status: domain.TradeStatusIdle},
	}
}

// Status returns the most recent status update, for the status panel's
// initial render before the live feed attaches.
func (o *Orchestrator) Status() domain.StatusUpdate {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Execute runs one trade through the full state machine and returns its
// terminal record. The record is also persisted and published; the returned
// error is non-nil exactly when the record's status is error.
func (o *Orchestrator) Execute(ctx context.Context, in Input) (domain.TradeRecord, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return domain.TradeRecord{}, ErrTradeInFlight
	}
	o.inFlight = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	attempt := &attempt{
		id:     uuid.NewString(),
		input:  in,
		wallet: o.wallet.Address(),
		start:  time.Now().UTC(),
	}

	err := o.run(ctx, attempt)
	rec := attempt.record(err)

	if o.store != nil {
		if storeErr := o.store.Create(ctx, rec); storeErr != nil {
			o.logger.Error("trade record persist failed", "attempt", attempt.id, "error", storeErr)
		}
	}
	o.notifyOutcome(ctx, rec)

	if err != nil {
		o.publish(ctx, attempt, domain.PhaseFailed, domain.TradeStatusError, rec.Message)
		return rec, err
	}
	o.publish(ctx, attempt, domain.PhaseSucceeded, domain.TradeStatusSuccess, "trade confirmed")
	return rec, nil
}

// attempt carries the mutable state of one Execute call.
type attempt struct {
	id     string
	input  Input
	wallet common.Address
	start  time.Time

	quote      *domain.TradeQuote
	rawAmount  *big.Int
	bound      *big.Int
	nonce      uint64
	signSource SignSource
	txHash     common.Hash

	// transactionID keys the backend confirmation callback; empty on the
	// local signing path.
	transactionID string
}

func (a *attempt) record(err error) domain.TradeRecord {
	rec := domain.TradeRecord{
		ID:         a.id,
		Wallet:     a.wallet.Hex(),
		PlayerID:   a.input.PlayerID,
		Side:       a.input.Side,
		Amount:     a.input.Amount,
		Nonce:      a.nonce,
		SignSource: string(a.signSource),
		Status:     domain.TradeStatusSuccess,
		CreatedAt:  a.start,
	}
	if a.bound != nil {
		rec.Bound = a.bound.String()
	}
	if a.quote != nil {
		rec.QuotedPrice = a.quote.CurrentPrice
	}
	if (a.txHash != common.Hash{}) {
		rec.TxHash = a.txHash.Hex()
	}
	if err != nil {
		rec.Status = domain.TradeStatusError
		rec.Category, rec.Message = Categorize(err)
	} else {
		now := time.Now().UTC()
		rec.ConfirmedAt = &now
	}
	return rec
}

func (o *Orchestrator) run(ctx context.Context, a *attempt) error {
	o.publish(ctx, a, domain.PhaseValidating, domain.TradeStatusPending, "validating trade")
	if err := o.validate(ctx, a); err != nil {
		return err
	}

	if a.input.Side == domain.TradeSideBuy {
		if err := o.ensureAllowance(ctx, a); err != nil {
			return err
		}
	}

	o.publish(ctx, a, domain.PhaseAwaitingSignature, domain.TradeStatusPending, "acquiring signature")
	req, err := o.acquireSignature(ctx, a)
	if err != nil {
		return err
	}

	o.publish(ctx, a, domain.PhaseSubmitting, domain.TradeStatusPending, "submitting transaction")
	data, target, err := o.chain.EncodeTrade(req)
	if err != nil {
		return err
	}
	hash, err := o.wallet.SendTransaction(ctx, target, data)
	if err != nil {
		return err
	}
	a.txHash = hash
	o.logger.Info("trade submitted",
		"attempt", a.id,
		"side", a.input.Side,
		"player", a.input.PlayerID,
		"source", a.signSource,
		"tx", hash.Hex())

	o.publish(ctx, a, domain.PhaseAwaitingConfirmation, domain.TradeStatusPending, "awaiting confirmation")
	mineErr := o.chain.WaitMined(ctx, hash)

	// The backend is told about the outcome either way so its off-chain
	// bookkeeping converges; a confirmation failure never fails the trade.
	if a.transactionID != "" {
		if confirmErr := o.backend.ConfirmTransaction(ctx, a.transactionID, hash.Hex(), mineErr == nil); confirmErr != nil {
			o.logger.Warn("backend confirmation failed", "attempt", a.id, "error", confirmErr)
		}
	}

	return mineErr
}

// validate parses the input, refreshes the quote, and runs the pre-trade
// chain reads. Balance, allowance, and sellability are fetched in parallel;
// any failure aborts the trade before anything is signed.
func (o *Orchestrator) validate(ctx context.Context, a *attempt) error {
	in := a.input
	if !in.Side.Valid() {
		return fmt.Errorf("trade: %w: unknown side %q", domain.ErrInvalidTrade, in.Side)
	}
	if in.PlayerID == "" {
		return fmt.Errorf("trade: %w: missing player id", domain.ErrInvalidTrade)
	}

	amount, err := decimal.NewFromString(in.Amount)
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("trade: %w: invalid amount %q", domain.ErrInvalidTrade, in.Amount)
	}

	slippage := in.SlippagePercent
	if slippage == 0 {
		slippage = pricing.DefaultSlippagePercent
	}
	if err := pricing.ValidateSlippage(slippage); err != nil {
		return fmt.Errorf("trade: %w", err)
	}
	slippageDec := decimal.NewFromFloat(slippage)

	if err := o.quoter.FetchReserves(ctx, []string{in.PlayerID}); err != nil {
		return fmt.Errorf("trade: refresh reserves: %w", err)
	}
	a.quote = o.quoter.Quote(in.PlayerID, in.Amount, in.Side)
	if a.quote == nil {
		return fmt.Errorf("trade: %w: no quote for player %s", domain.ErrNoLiquidity, in.PlayerID)
	}

	switch in.Side {
	case domain.TradeSideBuy:
		a.rawAmount = pricing.RawCurrencyFloor(amount)
		a.bound = pricing.RawCurrencyCeil(pricing.MaxCurrencySpend(amount, slippageDec))
	case domain.TradeSideSell:
		a.rawAmount = pricing.RawPlayerAmount(amount)
		price := decimal.NewFromFloat(a.quote.CurrentPrice)
		a.bound = pricing.RawCurrencyFloor(pricing.MinCurrencyOut(amount, price, slippageDec))
	}
	if a.rawAmount.Sign() <= 0 {
		return fmt.Errorf("trade: %w: amount rounds to zero", domain.ErrInvalidTrade)
	}

	var balance *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if in.Side == domain.TradeSideBuy {
			balance, err = o.chain.CurrencyBalance(gctx, a.wallet)
		} else {
			balance, err = o.chain.PlayerBalance(gctx, a.wallet, in.PlayerID)
		}
		return err
	})
	if in.Side == domain.TradeSideSell {
		g.Go(func() error {
			sellable, err := o.chain.IsSellable(gctx, in.PlayerID)
			if err != nil {
				return err
			}
			if !sellable {
				return fmt.Errorf("trade: player %s not sellable: %w", in.PlayerID, domain.ErrInvalidTrade)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	required := a.rawAmount
	if in.Side == domain.TradeSideBuy {
		// The contract may pull up to the bound; require funds for the
		// worst case so slippage cannot turn into a mid-trade revert.
		required = a.bound
	}
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("trade: insufficient balance: have %s, need %s", balance, required)
	}
	return nil
}

// ensureAllowance runs the ERC-20 approval sub-protocol when the exchange's
// current allowance cannot cover the buy's worst-case spend.
func (o *Orchestrator) ensureAllowance(ctx context.Context, a *attempt) error {
	allowance, err := o.chain.Allowance(ctx, a.wallet)
	if err != nil {
		return err
	}
	if allowance.Cmp(a.bound) >= 0 {
		return nil
	}

	o.publish(ctx, a, domain.PhaseApproving, domain.TradeStatusPending, "approving currency spend")
	data, target, err := o.chain.EncodeApprove(a.bound)
	if err != nil {
		return err
	}
	hash, err := o.wallet.SendTransaction(ctx, target, data)
	if err != nil {
		return fmt.Errorf("trade: approve: %w", err)
	}
	if err := o.chain.WaitMined(ctx, hash); err != nil {
		return fmt.Errorf("trade: approve: %w", err)
	}
	o.logger.Info("currency approval confirmed", "attempt", a.id, "tx", hash.Hex())
	return nil
}

// acquireSignature resolves the signing path and produces the signed trade
// request. When the backend path is selected but fails, the wallet path is
// tried before giving up; an unauthorized answer additionally resets the
// session so the next trade re-authenticates.
func (o *Orchestrator) acquireSignature(ctx context.Context, a *attempt) (domain.SignedTradeRequest, error) {
	source, err := SelectSignSource(o.session.Authenticated(), o.backend.Available(), o.wallet != nil)
	if err != nil {
		return domain.SignedTradeRequest{}, err
	}

	if source == SignSourceBackend {
		req, backendErr := o.signViaBackend(ctx, a)
		if backendErr == nil {
			a.signSource = SignSourceBackend
			return req, nil
		}
		if errors.Is(backendErr, domain.ErrUnauthorized) {
			o.session.Reset(ctx)
		}
		o.logger.Warn("backend signing failed, falling back to wallet",
			"attempt", a.id, "error", backendErr)
	}

	req, err := o.signLocally(ctx, a)
	if err != nil {
		return domain.SignedTradeRequest{}, err
	}
	a.signSource = SignSourceLocal
	return req, nil
}

func (o *Orchestrator) signViaBackend(ctx context.Context, a *attempt) (domain.SignedTradeRequest, error) {
	if err := o.session.Ensure(ctx); err != nil {
		return domain.SignedTradeRequest{}, err
	}

	sigReq := backend.SignatureRequest{
		Trader:    a.wallet.Hex(),
		PlayerIDs: []string{a.input.PlayerID},
		Amounts:   []string{a.rawAmount.String()},
		Bound:     a.bound.String(),
		Deadline:  tradeDeadline(),
	}

	var prepared backend.PreparedSignature
	var err error
	if a.input.Side == domain.TradeSideBuy {
		prepared, err = o.backend.PrepareBuySignature(ctx, sigReq)
	} else {
		prepared, err = o.backend.PrepareSellSignature(ctx, sigReq)
	}
	if err != nil {
		return domain.SignedTradeRequest{}, err
	}

	a.nonce = prepared.Nonce
	a.transactionID = prepared.TransactionID
	return a.signedRequest(sigReq.Deadline, prepared.Signature), nil
}

func (o *Orchestrator) signLocally(ctx context.Context, a *attempt) (domain.SignedTradeRequest, error) {
	// Nonces are read from the chain on every attempt, never cached: a
	// trade submitted elsewhere between attempts must advance the sequence
	// here too.
	lastUsed, err := o.chain.TradeNonce(ctx, a.wallet, a.input.Side)
	if err != nil {
		return domain.SignedTradeRequest{}, err
	}
	a.nonce = lastUsed + 1
	a.transactionID = ""
	deadline := tradeDeadline()

	payload := crypto.TradePayload{
		Side:      a.input.Side,
		Trader:    a.wallet.Hex(),
		PlayerIDs: []string{a.input.PlayerID},
		Amounts:   []string{a.rawAmount.String()},
		Bound:     a.bound.String(),
		Deadline:  deadline,
		Nonce:     a.nonce,
	}
	if err := crypto.ValidatePayload(payload); err != nil {
		return domain.SignedTradeRequest{}, err
	}

	sig, err := o.wallet.SignTrade(ctx, payload)
	if err != nil {
		return domain.SignedTradeRequest{}, fmt.Errorf("trade: %w: %v", domain.ErrSigningFailed, err)
	}
	return a.signedRequest(deadline, sig), nil
}

func (a *attempt) signedRequest(deadline int64, sig []byte) domain.SignedTradeRequest {
	playerID := new(big.Int)
	playerID.SetString(a.input.PlayerID, 10)
	return domain.SignedTradeRequest{
		Side:          a.input.Side,
		PlayerIDs:     []*big.Int{playerID},
		Amounts:       []*big.Int{new(big.Int).Set(a.rawAmount)},
		Bound:         new(big.Int).Set(a.bound),
		Deadline:      deadline,
		Nonce:         a.nonce,
		Signature:     sig,
		Recipient:     a.wallet.Hex(),
		TransactionID: a.transactionID,
	}
}

func (o *Orchestrator) publish(ctx context.Context, a *attempt, phase domain.TradePhase, status domain.TradeStatus, msg string) {
	update := domain.StatusUpdate{
		AttemptID: a.id,
		Phase:     phase,
		Status:    status,
		Message:   msg,
		Side:      a.input.Side,
		PlayerID:  a.input.PlayerID,
	}
	if (a.txHash != common.Hash{}) {
		update.TxHash = a.txHash.Hex()
	}

	o.mu.Lock()
	o.last = update
	o.mu.Unlock()

	if o.bus == nil {
		return
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	if err := o.bus.Publish(ctx, StatusChannel, payload); err != nil {
		o.logger.Warn("status publish failed", "attempt", a.id, "error", err)
	}
}

func (o *Orchestrator) notifyOutcome(ctx context.Context, rec domain.TradeRecord) {
	if o.notify == nil {
		return
	}
	event := EventTradeSucceeded
	title := "Trade confirmed"
	msg := fmt.Sprintf("%s %s of player %s confirmed (tx %s)", rec.Side, rec.Amount, rec.PlayerID, rec.TxHash)
	if rec.Status == domain.TradeStatusError {
		event = EventTradeFailed
		title = "Trade failed"
		msg = fmt.Sprintf("%s %s of player %s failed: %s", rec.Side, rec.Amount, rec.PlayerID, rec.Message)
	}
	if err := o.notify.Notify(ctx, event, title, msg); err != nil {
		o.logger.Warn("outcome notification failed", "error", err)
	}
}
