// Package chain is the read/write client for the RosterFi on-chain
// contracts. Reads are deduplicated, rate-limited per (contract, function)
// pair, TTL-cached, and wrapped in a bounded retry policy; writes are
// encoded here but signed and broadcast by the wallet provider, and are
// never auto-retried.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Read-cache TTLs. Pool reserves move with every trade so they age out
// quickly; sellability flags change only on admin action.
const (
	priceReadTTL  = time.Minute
	staticReadTTL = 10 * time.Minute
)

// readRateLimit bounds calls per (contract, function) pair so a busy UI
// cannot hammer the RPC endpoint.
var readRateLimit = rate.Limit(5)

const readRateBurst = 10

// Addresses holds the deployed contract addresses the gateway talks to.
type Addresses struct {
	Exchange    common.Address // AMM pools, buy path, buy nonces
	PlayerToken common.Address // player token balances, sell path, sell nonces
	Currency    common.Address // ERC20 currency token
}

// ClientConfig holds the RPC endpoint and contract addresses.
type ClientConfig struct {
	RPCURL      string
	Exchange    string
	PlayerToken string
	Currency    string
}

// Client wraps an ethclient connection with cached, rate-limited contract
// reads and calldata encoding for writes.
type Client struct {
	eth    *ethclient.Client
	addrs  Addresses
	logger *slog.Logger

	readPolicy RetryPolicy
	cache      *gocache.Cache
	flight     singleflight.Group

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New dials the RPC endpoint and returns a Client. The connection is
// verified with a ChainID call before returning.
func New(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	for name, addr := range map[string]string{
		"exchange": cfg.Exchange, "player_token": cfg.PlayerToken, "currency": cfg.Currency,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("chain: invalid %s contract address %q", name, addr)
		}
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}
	if _, err := eth.ChainID(ctx); err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id probe: %w", err)
	}

	return &Client{
		eth: eth,
		addrs: Addresses{
			Exchange:    common.HexToAddress(cfg.Exchange),
			PlayerToken: common.HexToAddress(cfg.PlayerToken),
			Currency:    common.HexToAddress(cfg.Currency),
		},
		logger:     logger.With(slog.String("component", "chain")),
		readPolicy: DefaultReadPolicy(),
		cache:      gocache.New(priceReadTTL, 5*time.Minute),
		limiters:   make(map[string]*rate.Limiter),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Addresses returns the configured contract addresses.
func (c *Client) Addresses() Addresses {
	return c.addrs
}

// Backend exposes the raw ethclient for the wallet provider, which needs
// account nonces, gas estimation, and transaction broadcast.
func (c *Client) Backend() *ethclient.Client {
	return c.eth
}

// limiter returns the rate limiter for a (contract, function) pair,
// creating it on first use.
func (c *Client) limiter(contract common.Address, method string) *rate.Limiter {
	key := contract.Hex() + ":" + method
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[key]
	if !ok {
		lim = rate.NewLimiter(readRateLimit, readRateBurst)
		c.limiters[key] = lim
	}
	return lim
}

// call executes a read-only contract call under the rate limiter and retry
// policy and returns the unpacked outputs.
func (c *Client) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &contract, Data: data}

	var raw []byte
	err = c.readPolicy.Do(ctx, func() error {
		if err := c.limiter(contract, method).Wait(ctx); err != nil {
			return err
		}
		out, callErr := c.eth.CallContract(ctx, msg, nil)
		if callErr != nil {
			return callErr
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, err)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	return out, nil
}

// cachedCall is call with a TTL cache and request deduplication: concurrent
// callers for the same key share one in-flight RPC.
func (c *Client) cachedCall(ctx context.Context, ttl time.Duration, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	key := fmt.Sprintf("%s:%s:%v", contract.Hex(), method, args)

	if cached, ok := c.cache.Get(key); ok {
		return cached.([]any), nil
	}

	out, err, _ := c.flight.Do(key, func() (any, error) {
		if cached, ok := c.cache.Get(key); ok {
			return cached.([]any), nil
		}
		res, callErr := c.call(ctx, contract, parsed, method, args...)
		if callErr != nil {
			return nil, callErr
		}
		c.cache.Set(key, res, ttl)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]any), nil
}

// parsePlayerID converts a decimal player id string to the uint256 the
// contracts expect.
func parsePlayerID(id string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(id, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("chain: invalid player id %q", id)
	}
	return n, nil
}
