package trade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterfi/rosterfi/internal/backend"
	"github.com/rosterfi/rosterfi/internal/crypto"
	"github.com/rosterfi/rosterfi/internal/domain"
)

const walletHex = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeChain struct {
	mu sync.Mutex

	currencyBalance *big.Int
	playerBalance   *big.Int
	allowance       *big.Int
	lastNonce       uint64
	sellable        bool

	approveCalls int
	tradeCalls   int
	mineErr      error
	mineBlock    chan struct{}

	lastTradeReq domain.SignedTradeRequest
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		currencyBalance: big.NewInt(100_000_000), // 100 currency
		playerBalance:   new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
		allowance:       big.NewInt(1_000_000_000),
		lastNonce:       4,
		sellable:        true,
	}
}

func (f *fakeChain) CurrencyBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	return f.currencyBalance, nil
}

func (f *fakeChain) PlayerBalance(_ context.Context, _ common.Address, _ string) (*big.Int, error) {
	return f.playerBalance, nil
}

func (f *fakeChain) Allowance(_ context.Context, _ common.Address) (*big.Int, error) {
	return f.allowance, nil
}

func (f *fakeChain) TradeNonce(_ context.Context, _ common.Address, _ domain.TradeSide) (uint64, error) {
	return f.lastNonce, nil
}

func (f *fakeChain) IsSellable(_ context.Context, _ string) (bool, error) {
	return f.sellable, nil
}

func (f *fakeChain) EncodeApprove(_ *big.Int) ([]byte, common.Address, error) {
	f.mu.Lock()
	f.approveCalls++
	f.mu.Unlock()
	return []byte{0x01}, common.HexToAddress("0x01"), nil
}

func (f *fakeChain) EncodeTrade(req domain.SignedTradeRequest) ([]byte, common.Address, error) {
	f.mu.Lock()
	f.tradeCalls++
	f.lastTradeReq = req
	f.mu.Unlock()
	return []byte{0x02}, common.HexToAddress("0x02"), nil
}

func (f *fakeChain) WaitMined(ctx context.Context, _ common.Hash) error {
	if f.mineBlock != nil {
		select {
		case <-f.mineBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.mineErr
}

type fakeWallet struct {
	signErr error
	sends   int
}

func (f *fakeWallet) Address() common.Address {
	return common.HexToAddress(walletHex)
}

func (f *fakeWallet) SignTrade(_ context.Context, p crypto.TradePayload) ([]byte, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	if err := crypto.ValidatePayload(p); err != nil {
		return nil, err
	}
	return make([]byte, 65), nil
}

func (f *fakeWallet) SendTransaction(_ context.Context, _ common.Address, data []byte) (common.Hash, error) {
	f.sends++
	var h common.Hash
	h[0] = byte(f.sends)
	h[31] = data[0]
	return h, nil
}

type fakeBackend struct {
	available  bool
	prepareErr error
	nonce      uint64

	confirmed   bool
	confirmedID string
	confirmedOK bool
}

func (f *fakeBackend) Available() bool { return f.available }

func (f *fakeBackend) PrepareBuySignature(_ context.Context, _ backend.SignatureRequest) (backend.PreparedSignature, error) {
	return f.prepare()
}

func (f *fakeBackend) PrepareSellSignature(_ context.Context, _ backend.SignatureRequest) (backend.PreparedSignature, error) {
	return f.prepare()
}

func (f *fakeBackend) prepare() (backend.PreparedSignature, error) {
	if f.prepareErr != nil {
		return backend.PreparedSignature{}, f.prepareErr
	}
	return backend.PreparedSignature{
		Signature:     make([]byte, 65),
		Nonce:         f.nonce,
		TransactionID: "tx-backend-1",
	}, nil
}

func (f *fakeBackend) ConfirmTransaction(_ context.Context, id, _ string, ok bool) error {
	f.confirmed = true
	f.confirmedID = id
	f.confirmedOK = ok
	return nil
}

type fakeSession struct {
	authenticated bool
	ensureErr     error
	resets        int
}

func (f *fakeSession) Ensure(_ context.Context) error { return f.ensureErr }
func (f *fakeSession) Reset(_ context.Context)        { f.resets++ }
func (f *fakeSession) Authenticated() bool            { return f.authenticated }

type fakeQuoter struct {
	quote *domain.TradeQuote
}

func (f *fakeQuoter) FetchReserves(_ context.Context, _ []string) error { return nil }

func (f *fakeQuoter) Quote(_, _ string, _ domain.TradeSide) *domain.TradeQuote {
	return f.quote
}

type memBus struct {
	mu       sync.Mutex
	messages [][]byte
}

func (m *memBus) Publish(_ context.Context, _ string, payload []byte) error {
	m.mu.Lock()
	m.messages = append(m.messages, payload)
	m.mu.Unlock()
	return nil
}

func (m *memBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

type memStore struct {
	mu      sync.Mutex
	records []domain.TradeRecord
}

func (m *memStore) Create(_ context.Context, rec domain.TradeRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

func (m *memStore) GetByID(_ context.Context, _ string) (domain.TradeRecord, error) {
	return domain.TradeRecord{}, domain.ErrNotFound
}

func (m *memStore) ListByWallet(_ context.Context, _ string, _ domain.ListOpts) ([]domain.TradeRecord, error) {
	return nil, nil
}

// ---------------------------------------------------------------------------

type fixture struct {
	chain   *fakeChain
	wallet  *fakeWallet
	backend *fakeBackend
	session *fakeSession
	store   *memStore
	bus     *memBus
	orch    *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		chain:   newFakeChain(),
		wallet:  &fakeWallet{},
		backend: &fakeBackend{available: true, nonce: 9},
		session: &fakeSession{authenticated: true},
		store:   &memStore{},
		bus:     &memBus{},
	}
	f.orch = New(Config{
		Chain:   f.chain,
		Wallet:  f.wallet,
		Backend: f.backend,
		Session: f.session,
		Quoter:  &fakeQuoter{quote: &domain.TradeQuote{CurrentPrice: 2.0, NewPrice: 2.1, TokensTraded: 4.9, EffectivePrice: 2.04, PriceImpactPercent: 5}},
		Store:   f.store,
		Bus:     f.bus,
		Logger:  slog.New(slog.NewTextHandler(discard{}, nil)),
	})
	return f
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func buyInput() Input {
	return Input{PlayerID: "42", Amount: "10", Side: domain.TradeSideBuy}
}

func sellInput() Input {
	return Input{PlayerID: "42", Amount: "5", Side: domain.TradeSideSell}
}

func TestExecuteBuyViaBackend(t *testing.T) {
	f := newFixture()

	rec, err := f.orch.Execute(context.Background(), buyInput())
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStatusSuccess, rec.Status)
	assert.Equal(t, string(SignSourceBackend), rec.SignSource)
	assert.Equal(t, uint64(9), rec.Nonce)
	assert.NotEmpty(t, rec.TxHash)
	assert.Equal(t, 2.0, rec.QuotedPrice)

	// Backend told about the mined outcome.
	assert.True(t, f.backend.confirmed)
	assert.Equal(t, "tx-backend-1", f.backend.confirmedID)
	assert.True(t, f.backend.confirmedOK)

	// Bound is amount * (1 + 0.5%) in raw 6-decimal units.
	require.NotNil(t, f.chain.lastTradeReq.Bound)
	assert.Equal(t, "10050000", f.chain.lastTradeReq.Bound.String())
	assert.Equal(t, "10000000", f.chain.lastTradeReq.Amounts[0].String())

	// Terminal record persisted.
	require.Len(t, f.store.records, 1)
	assert.Equal(t, rec.ID, f.store.records[0].ID)
}

func TestSignatureDeadlineAnchorsToSigningTime(t *testing.T) {
	f := newFixture()

	// An attempt that spent minutes waiting on approval mining must still
	// get the full window measured from when the signature is built.
	a := &attempt{
		id:        "deadline-check",
		input:     buyInput(),
		wallet:    f.wallet.Address(),
		start:     time.Now().UTC().Add(-10 * time.Minute),
		rawAmount: big.NewInt(10_000_000),
		bound:     big.NewInt(10_050_000),
	}

	req, err := f.orch.signLocally(context.Background(), a)
	require.NoError(t, err)

	earliest := time.Now().UTC().Add(deadlineWindow - time.Minute).Unix()
	assert.GreaterOrEqual(t, req.Deadline, earliest)
	assert.Greater(t, req.Deadline, time.Now().UTC().Unix())
}

func TestExecuteFallsBackWhenBreakerOpen(t *testing.T) {
	f := newFixture()
	f.backend.available = false

	rec, err := f.orch.Execute(context.Background(), buyInput())
	require.NoError(t, err)

	assert.Equal(t, string(SignSourceLocal), rec.SignSource)
	// Local path advances the freshly read on-chain sequence.
	assert.Equal(t, f.chain.lastNonce+1, rec.Nonce)
	// Nothing to confirm without a backend transaction ID.
	assert.False(t, f.backend.confirmed)
}

func TestExecuteFallsBackOnUnauthorized(t *testing.T) {
	f := newFixture()
	f.backend.prepareErr = domain.ErrUnauthorized

	rec, err := f.orch.Execute(context.Background(), buyInput())
	require.NoError(t, err)

	assert.Equal(t, string(SignSourceLocal), rec.SignSource)
	// A 401 resets the session so the next trade re-authenticates.
	assert.Equal(t, 1, f.session.resets)
}

func TestExecuteStaleNonceCategorized(t *testing.T) {
	f := newFixture()
	f.chain.mineErr = errors.New("execution reverted: InvalidNonce")

	rec, err := f.orch.Execute(context.Background(), buyInput())
	require.Error(t, err)

	assert.Equal(t, domain.TradeStatusError, rec.Status)
	assert.Equal(t, domain.CategoryStaleNonce, rec.Category)
	assert.NotEmpty(t, rec.TxHash)
	// The failed outcome is still confirmed to the backend and persisted.
	assert.True(t, f.backend.confirmed)
	assert.False(t, f.backend.confirmedOK)
	require.Len(t, f.store.records, 1)
	assert.Equal(t, domain.TradeStatusError, f.store.records[0].Status)
}

func TestExecuteBuyRunsApprovalWhenAllowanceLow(t *testing.T) {
	f := newFixture()
	f.chain.allowance = big.NewInt(0)

	_, err := f.orch.Execute(context.Background(), buyInput())
	require.NoError(t, err)

	assert.Equal(t, 1, f.chain.approveCalls)
	// One approval transaction plus the trade itself.
	assert.Equal(t, 2, f.wallet.sends)
}

func TestExecuteBuySkipsApprovalWhenAllowanceCovers(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Execute(context.Background(), buyInput())
	require.NoError(t, err)

	assert.Equal(t, 0, f.chain.approveCalls)
	assert.Equal(t, 1, f.wallet.sends)
}

func TestExecuteSellBound(t *testing.T) {
	f := newFixture()

	rec, err := f.orch.Execute(context.Background(), sellInput())
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusSuccess, rec.Status)

	// minCurrencyOut = 5 * 2.0 * (1 - 0.5%) = 9.95 in raw 6-decimal units.
	assert.Equal(t, "9950000", f.chain.lastTradeReq.Bound.String())
	// Sell amounts are raw 18-decimal player token units.
	assert.Equal(t, "5000000000000000000", f.chain.lastTradeReq.Amounts[0].String())
}

func TestExecuteSellRejectsUnsellable(t *testing.T) {
	f := newFixture()
	f.chain.sellable = false

	_, err := f.orch.Execute(context.Background(), sellInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTrade)
	// Nothing was signed or sent.
	assert.Equal(t, 0, f.wallet.sends)
}

func TestExecuteInsufficientBalance(t *testing.T) {
	f := newFixture()
	f.chain.currencyBalance = big.NewInt(1_000_000) // 1 currency, need ~10.05

	rec, err := f.orch.Execute(context.Background(), buyInput())
	require.Error(t, err)
	assert.Equal(t, domain.CategoryInsufficientBalance, rec.Category)
	assert.Equal(t, 0, f.wallet.sends)
}

func TestExecuteRejectsConcurrentTrade(t *testing.T) {
	f := newFixture()
	f.chain.mineBlock = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Execute(context.Background(), buyInput())
		done <- err
	}()

	// Wait for the first trade to reach confirmation.
	require.Eventually(t, func() bool {
		return f.orch.Status().Phase == domain.PhaseAwaitingConfirmation
	}, time.Second, 5*time.Millisecond)

	_, err := f.orch.Execute(context.Background(), buyInput())
	assert.ErrorIs(t, err, ErrTradeInFlight)

	close(f.chain.mineBlock)
	require.NoError(t, <-done)
}

func TestExecuteRejectsInvalidInput(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		in   Input
	}{
		{"bad side", Input{PlayerID: "42", Amount: "1", Side: "hold"}},
		{"missing player", Input{Amount: "1", Side: domain.TradeSideBuy}},
		{"zero amount", Input{PlayerID: "42", Amount: "0", Side: domain.TradeSideBuy}},
		{"garbage amount", Input{PlayerID: "42", Amount: "ten", Side: domain.TradeSideBuy}},
		{"slippage out of range", Input{PlayerID: "42", Amount: "1", Side: domain.TradeSideBuy, SlippagePercent: 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Execute(context.Background(), tt.in)
			require.Error(t, err)
		})
	}
}

func TestExecutePublishesPhaseSequence(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Execute(context.Background(), buyInput())
	require.NoError(t, err)

	var phases []domain.TradePhase
	for _, raw := range f.bus.messages {
		var update domain.StatusUpdate
		require.NoError(t, json.Unmarshal(raw, &update))
		phases = append(phases, update.Phase)
	}

	assert.Equal(t, []domain.TradePhase{
		domain.PhaseValidating,
		domain.PhaseAwaitingSignature,
		domain.PhaseSubmitting,
		domain.PhaseAwaitingConfirmation,
		domain.PhaseSucceeded,
	}, phases)

	assert.Equal(t, domain.PhaseSucceeded, f.orch.Status().Phase)
}
