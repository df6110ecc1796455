// Package session manages the wallet's authenticated session against the
// protocol backend: the challenge/login flow, token caching, and the
// single-flight/cooldown discipline that keeps a flapping backend from
// being hammered with auth attempts.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// authCooldown is the minimum wait after a failed authentication attempt
// before another is allowed.
const authCooldown = 10 * time.Second

// tokenTTL bounds how long a cached token is trusted before a fresh login
// is forced.
const tokenTTL = 12 * time.Hour

// Authenticator is the subset of the backend client the session needs.
type Authenticator interface {
	Challenge(ctx context.Context, address string) (string, error)
	Login(ctx context.Context, address, signature string) (string, error)
	SetToken(token string)
}

// MessageSigner signs the backend's login challenge.
type MessageSigner interface {
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Session tracks the authentication state for a single wallet address.
type Session struct {
	auth   Authenticator
	signer MessageSigner
	tokens domain.TokenStore
	logger *slog.Logger

	mu          sync.Mutex
	address     string
	token       string
	inFlight    bool
	lastFailure time.Time
}

// New creates a session manager. tokens may be nil, in which case tokens
// are held in memory only and every restart re-authenticates.
func New(auth Authenticator, signer MessageSigner, tokens domain.TokenStore, logger *slog.Logger) *Session {
	return &Session{
		auth:   auth,
		signer: signer,
		tokens: tokens,
		logger: logger.With("component", "session"),
	}
}

// Connect binds the session to a wallet address and attempts to restore a
// cached token. A missing cache entry is not an error; the first
// authenticated call will trigger a login.
func (s *Session) Connect(ctx context.Context, address string) {
	s.mu.Lock()
	s.address = address
	s.token = ""
	s.lastFailure = time.Time{}
	s.mu.Unlock()

	if s.tokens == nil {
		return
	}
	token, err := s.tokens.Get(ctx, tokenKey(address))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("token cache read failed", "error", err)
		}
		return
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.auth.SetToken(token)
	s.logger.Info("session restored from cache", "address", address)
}

// Authenticated reports whether the session currently holds a token.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Address returns the connected wallet address, empty if disconnected.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Ensure returns immediately when a token is already held, otherwise runs
// the challenge/login flow. Only one attempt runs at a time; while one is
// in flight concurrent callers get ErrAuthInFlight, and after a failure
// callers get ErrAuthCooldown until the cooldown elapses.
func (s *Session) Ensure(ctx context.Context) error {
	s.mu.Lock()
	if s.address == "" {
		s.mu.Unlock()
		return domain.ErrWalletNotConnected
	}
	if s.token != "" {
		s.mu.Unlock()
		return nil
	}
	if s.inFlight {
		s.mu.Unlock()
		return domain.ErrAuthInFlight
	}
	if wait := authCooldown - time.Since(s.lastFailure); !s.lastFailure.IsZero() && wait > 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: retry in %s", domain.ErrAuthCooldown, wait.Round(time.Second))
	}
	s.inFlight = true
	address := s.address
	s.mu.Unlock()

	err := s.login(ctx, address)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		s.lastFailure = time.Now()
	} else {
		s.lastFailure = time.Time{}
	}
	s.mu.Unlock()

	return err
}

// Reset drops the session token, e.g. after the backend answers 401 or the
// wallet disconnects. The next Ensure call re-authenticates.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	address := s.address
	s.token = ""
	s.mu.Unlock()

	s.auth.SetToken("")
	if s.tokens != nil && address != "" {
		if err := s.tokens.Delete(ctx, tokenKey(address)); err != nil {
			s.logger.Warn("token cache delete failed", "error", err)
		}
	}
	s.logger.Info("session reset", "address", address)
}

// Disconnect clears the session entirely.
func (s *Session) Disconnect(ctx context.Context) {
	s.Reset(ctx)
	s.mu.Lock()
	s.address = ""
	s.lastFailure = time.Time{}
	s.mu.Unlock()
}

func (s *Session) login(ctx context.Context, address string) error {
	message, err := s.auth.Challenge(ctx, address)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	sig, err := s.signer.SignMessage(ctx, []byte(message))
	if err != nil {
		return fmt.Errorf("session: sign challenge: %w: %v", domain.ErrSigningFailed, err)
	}

	token, err := s.auth.Login(ctx, address, "0x"+hex.EncodeToString(sig))
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if s.tokens != nil {
		if err := s.tokens.Set(ctx, tokenKey(address), token, tokenTTL); err != nil {
			s.logger.Warn("token cache write failed", "error", err)
		}
	}
	s.logger.Info("session authenticated", "address", address)
	return nil
}

func tokenKey(address string) string {
	return "session:token:" + address
}
