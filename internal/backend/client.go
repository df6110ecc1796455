// Package backend implements the REST client for the RosterFi protocol
// backend: challenge/login authentication, backend-assisted trade signature
// preparation, and post-trade confirmation. All calls run through a circuit
// breaker so the orchestrator can fall back to local signing while the
// backend is unreachable.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// SignatureRequest describes the trade the backend should co-sign. Bound is
// the slippage limit in raw on-chain units: maximum currency spend for buys,
// minimum currency out for sells.
type SignatureRequest struct {
	Trader    string   `json:"trader"`
	PlayerIDs []string `json:"playerIds"`
	Amounts   []string `json:"amounts"`
	Bound     string   `json:"bound"`
	Deadline  int64    `json:"deadline"`
}

// Client is the REST client for the protocol backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker

	mu    sync.RWMutex
	token string
}

// NewClient creates a backend client. baseURL is the API root, e.g.
// "https://api.rosterfi.xyz". The breaker opens after three consecutive
// failures and half-opens after 30 seconds.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "rosterfi-backend",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// SetToken installs the bearer token used on authenticated endpoints. Pass
// the empty string to clear it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Available reports whether the circuit breaker currently admits requests.
// The orchestrator uses this to choose between backend-assisted and local
// signing without paying for a doomed round trip.
func (c *Client) Available() bool {
	return c.breaker.State() != gobreaker.StateOpen
}

// Challenge requests a login challenge for the given wallet address. The
// returned message must be signed with the wallet key and presented to
// Login.
func (c *Client) Challenge(ctx context.Context, address string) (string, error) {
	body := map[string]any{"address": address}

	respBody, err := c.do(ctx, http.MethodPost, "/auth/challenge", body)
	if err != nil {
		return "", fmt.Errorf("backend: challenge: %w", err)
	}

	var challenge APIChallenge
	if err := json.Unmarshal(respBody, &challenge); err != nil {
		return "", fmt.Errorf("backend: decode challenge: %w", err)
	}
	if challenge.Message == "" {
		return "", fmt.Errorf("backend: challenge: %w: message missing", domain.ErrProtocolResponse)
	}

	return challenge.Message, nil
}

// Login exchanges a signed challenge for a session token and installs it on
// the client.
func (c *Client) Login(ctx context.Context, address, signature string) (string, error) {
	body := map[string]any{
		"address":   address,
		"signature": signature,
	}

	respBody, err := c.do(ctx, http.MethodPost, "/auth/login", body)
	if err != nil {
		return "", fmt.Errorf("backend: login: %w", err)
	}

	var login APILogin
	if err := json.Unmarshal(respBody, &login); err != nil {
		return "", fmt.Errorf("backend: decode login: %w", err)
	}
	if login.Token == "" {
		return "", fmt.Errorf("backend: login: %w: token missing", domain.ErrProtocolResponse)
	}

	c.SetToken(login.Token)
	return login.Token, nil
}

// PrepareBuySignature asks the backend to co-sign a buy order.
func (c *Client) PrepareBuySignature(ctx context.Context, req SignatureRequest) (PreparedSignature, error) {
	return c.prepareSignature(ctx, "/trades/buy/signature", req)
}

// PrepareSellSignature asks the backend to co-sign a sell order.
func (c *Client) PrepareSellSignature(ctx context.Context, req SignatureRequest) (PreparedSignature, error) {
	return c.prepareSignature(ctx, "/trades/sell/signature", req)
}

func (c *Client) prepareSignature(ctx context.Context, path string, req SignatureRequest) (PreparedSignature, error) {
	respBody, err := c.do(ctx, http.MethodPost, path, req)
	if err != nil {
		return PreparedSignature{}, fmt.Errorf("backend: prepare signature: %w", err)
	}

	var sig APISignature
	if err := json.Unmarshal(respBody, &sig); err != nil {
		return PreparedSignature{}, fmt.Errorf("backend: decode signature: %w", err)
	}

	prepared, err := sig.ToPrepared()
	if err != nil {
		return PreparedSignature{}, fmt.Errorf("backend: prepare signature: %w", err)
	}
	return prepared, nil
}

// ConfirmTransaction reports a submitted trade's on-chain outcome back to
// the backend so it can settle its own bookkeeping. Failures here do not
// affect the trade itself; callers treat this as best effort.
func (c *Client) ConfirmTransaction(ctx context.Context, transactionID, txHash string, success bool) error {
	body := map[string]any{
		"transactionId": transactionID,
		"txHash":        txHash,
		"success":       success,
	}

	if _, err := c.do(ctx, http.MethodPost, "/trades/confirm", body); err != nil {
		return fmt.Errorf("backend: confirm %s: %w", transactionID, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// do builds, sends, and reads an HTTP request against the backend API
// through the circuit breaker. It returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, method, path, body)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("backend unavailable: %w", err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors,
// preserving the backend's failure reason for later categorization.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	reason := string(body)
	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Reason() != "" {
		reason = apiErr.Reason()
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, reason)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, reason)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, reason)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, reason)
	}
}
