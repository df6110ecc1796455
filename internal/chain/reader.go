package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// PlayerPools reads the batched two-sided reserves for the given player ids
// from the exchange contract. The result arrays positionally match the
// input; a length mismatch from the contract is a protocol error surfaced
// to the pricing engine. Results are cached for the price-read TTL.
func (c *Client) PlayerPools(ctx context.Context, playerIDs []string) ([]string, []string, error) {
	ids := make([]*big.Int, 0, len(playerIDs))
	for _, id := range playerIDs {
		n, err := parsePlayerID(id)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, n)
	}

	out, err := c.cachedCall(ctx, priceReadTTL, c.addrs.Exchange, exchangeABI, "getPlayerPools", ids)
	if err != nil {
		return nil, nil, err
	}
	if len(out) != 2 {
		return nil, nil, fmt.Errorf("chain: %w: getPlayerPools returned %d outputs", domain.ErrProtocolResponse, len(out))
	}

	currency, ok := out[0].([]*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("chain: %w: currency reserves have unexpected type", domain.ErrProtocolResponse)
	}
	player, ok := out[1].([]*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("chain: %w: player reserves have unexpected type", domain.ErrProtocolResponse)
	}

	currencyStr := make([]string, len(currency))
	for i, v := range currency {
		currencyStr[i] = v.String()
	}
	playerStr := make([]string, len(player))
	for i, v := range player {
		playerStr[i] = v.String()
	}
	return currencyStr, playerStr, nil
}

// CurrencyBalance returns the wallet's raw currency-token balance.
func (c *Client) CurrencyBalance(ctx context.Context, wallet common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.addrs.Currency, currencyABI, "balanceOf", wallet)
	if err != nil {
		return nil, err
	}
	return singleUint(out, "balanceOf")
}

// PlayerBalance returns the wallet's raw balance of one player token.
func (c *Client) PlayerBalance(ctx context.Context, wallet common.Address, playerID string) (*big.Int, error) {
	id, err := parsePlayerID(playerID)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, c.addrs.PlayerToken, playerTokenABI, "balanceOf", wallet, id)
	if err != nil {
		return nil, err
	}
	return singleUint(out, "balanceOf")
}

// Allowance returns the currency allowance granted by owner to the exchange
// contract. Never cached: the approval sub-protocol depends on reading the
// value it just changed.
func (c *Client) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := c.call(ctx, c.addrs.Currency, currencyABI, "allowance", owner, c.addrs.Exchange)
	if err != nil {
		return nil, err
	}
	return singleUint(out, "allowance")
}

// TradeNonce returns the last used nonce for the (wallet, direction)
// sequence; the next usable nonce is this value plus one. Never cached: a
// stale nonce is rejected by the contract.
func (c *Client) TradeNonce(ctx context.Context, wallet common.Address, side domain.TradeSide) (uint64, error) {
	var (
		out []any
		err error
	)
	switch side {
	case domain.TradeSideBuy:
		out, err = c.call(ctx, c.addrs.Exchange, exchangeABI, "buyNonces", wallet)
	case domain.TradeSideSell:
		out, err = c.call(ctx, c.addrs.PlayerToken, playerTokenABI, "sellNonces", wallet)
	default:
		return 0, fmt.Errorf("chain: %w: unknown side %q", domain.ErrInvalidTrade, side)
	}
	if err != nil {
		return 0, err
	}

	n, err := singleUint(out, "nonces")
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("chain: %w: nonce overflows uint64", domain.ErrProtocolResponse)
	}
	return n.Uint64(), nil
}

// IsSellable reports whether the player token is currently flagged sellable
// by the contract. Cached for the static-read TTL.
func (c *Client) IsSellable(ctx context.Context, playerID string) (bool, error) {
	id, err := parsePlayerID(playerID)
	if err != nil {
		return false, err
	}
	out, err := c.cachedCall(ctx, staticReadTTL, c.addrs.PlayerToken, playerTokenABI, "isSellable", id)
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("chain: %w: isSellable returned %d outputs", domain.ErrProtocolResponse, len(out))
	}
	flag, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("chain: %w: isSellable has unexpected type", domain.ErrProtocolResponse)
	}
	return flag, nil
}

func singleUint(out []any, method string) (*big.Int, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("chain: %w: %s returned %d outputs", domain.ErrProtocolResponse, method, len(out))
	}
	n, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %w: %s has unexpected type", domain.ErrProtocolResponse, method)
	}
	return n, nil
}
