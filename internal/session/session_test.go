package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterfi/rosterfi/internal/domain"
)

type stubAuth struct {
	mu         sync.Mutex
	challenges int
	logins     int
	loginErr   error
	block      chan struct{}
	token      string
}

func (a *stubAuth) Challenge(_ context.Context, _ string) (string, error) {
	a.mu.Lock()
	a.challenges++
	block := a.block
	a.mu.Unlock()
	if block != nil {
		<-block
	}
	return "login challenge", nil
}

func (a *stubAuth) Login(_ context.Context, _, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins++
	if a.loginErr != nil {
		return "", a.loginErr
	}
	return "token-abc", nil
}

func (a *stubAuth) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

type stubSigner struct{}

func (stubSigner) SignMessage(_ context.Context, _ []byte) ([]byte, error) {
	return make([]byte, 65), nil
}

type memTokens struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemTokens() *memTokens {
	return &memTokens{data: make(map[string]string)}
}

func (m *memTokens) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memTokens) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memTokens) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

const testAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func newTestSession(auth *stubAuth, tokens domain.TokenStore) *Session {
	return New(auth, stubSigner{}, tokens, slog.New(slog.NewTextHandler(testWriter{}, nil)))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestEnsureRequiresConnectedWallet(t *testing.T) {
	s := newTestSession(&stubAuth{}, nil)
	err := s.Ensure(context.Background())
	assert.ErrorIs(t, err, domain.ErrWalletNotConnected)
}

func TestEnsureAuthenticatesOnce(t *testing.T) {
	auth := &stubAuth{}
	tokens := newMemTokens()
	s := newTestSession(auth, tokens)
	s.Connect(context.Background(), testAddr)

	require.NoError(t, s.Ensure(context.Background()))
	assert.True(t, s.Authenticated())
	assert.Equal(t, 1, auth.logins)

	// Token held: repeated calls are no-ops.
	require.NoError(t, s.Ensure(context.Background()))
	assert.Equal(t, 1, auth.logins)

	// Token persisted for the next run.
	cached, err := tokens.Get(context.Background(), tokenKey(testAddr))
	require.NoError(t, err)
	assert.Equal(t, "token-abc", cached)
}

func TestConnectRestoresCachedToken(t *testing.T) {
	auth := &stubAuth{}
	tokens := newMemTokens()
	require.NoError(t, tokens.Set(context.Background(), tokenKey(testAddr), "cached-token", time.Hour))

	s := newTestSession(auth, tokens)
	s.Connect(context.Background(), testAddr)

	assert.True(t, s.Authenticated())
	assert.Equal(t, "cached-token", auth.token)
	assert.Equal(t, 0, auth.logins)
}

func TestEnsureConcurrentCallersRejected(t *testing.T) {
	auth := &stubAuth{block: make(chan struct{})}
	s := newTestSession(auth, nil)
	s.Connect(context.Background(), testAddr)

	done := make(chan error, 1)
	go func() { done <- s.Ensure(context.Background()) }()

	// Wait for the first attempt to reach the blocked challenge call.
	require.Eventually(t, func() bool {
		auth.mu.Lock()
		defer auth.mu.Unlock()
		return auth.challenges == 1
	}, time.Second, 5*time.Millisecond)

	err := s.Ensure(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthInFlight)

	close(auth.block)
	require.NoError(t, <-done)
}

func TestEnsureCooldownAfterFailure(t *testing.T) {
	auth := &stubAuth{loginErr: errors.New("backend said no")}
	s := newTestSession(auth, nil)
	s.Connect(context.Background(), testAddr)

	require.Error(t, s.Ensure(context.Background()))

	err := s.Ensure(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthCooldown)
	assert.Equal(t, 1, auth.logins)
}

func TestResetDropsToken(t *testing.T) {
	auth := &stubAuth{}
	tokens := newMemTokens()
	s := newTestSession(auth, tokens)
	s.Connect(context.Background(), testAddr)
	require.NoError(t, s.Ensure(context.Background()))

	s.Reset(context.Background())

	assert.False(t, s.Authenticated())
	assert.Equal(t, "", auth.token)
	_, err := tokens.Get(context.Background(), tokenKey(testAddr))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Reset is not a failure; re-auth is allowed immediately.
	require.NoError(t, s.Ensure(context.Background()))
	assert.True(t, s.Authenticated())
}
