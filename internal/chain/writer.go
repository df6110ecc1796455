package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// receiptPollInterval is how often WaitMined polls for a receipt.
const receiptPollInterval = 2 * time.Second

// ErrTransactionReverted is returned by WaitMined when the transaction was
// mined but its receipt reports failure.
var ErrTransactionReverted = errors.New("transaction reverted")

// EncodeApprove returns the calldata and target contract for an ERC20
// approve of the exchange as spender.
func (c *Client) EncodeApprove(amount *big.Int) ([]byte, common.Address, error) {
	data, err := currencyABI.Pack("approve", c.addrs.Exchange, amount)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("chain: pack approve: %w", err)
	}
	return data, c.addrs.Currency, nil
}

// EncodeTrade returns the calldata and target contract for a signed trade
// submission: buyPlayers on the exchange or sellPlayers on the player-token
// contract, depending on the request side.
func (c *Client) EncodeTrade(req domain.SignedTradeRequest) ([]byte, common.Address, error) {
	if len(req.Signature) == 0 {
		return nil, common.Address{}, fmt.Errorf("chain: %w: unsigned trade request", domain.ErrInvalidTrade)
	}
	nonce := new(big.Int).SetUint64(req.Nonce)
	deadline := big.NewInt(req.Deadline)

	switch req.Side {
	case domain.TradeSideBuy:
		if !common.IsHexAddress(req.Recipient) {
			return nil, common.Address{}, fmt.Errorf("chain: %w: invalid recipient %q", domain.ErrInvalidTrade, req.Recipient)
		}
		data, err := exchangeABI.Pack("buyPlayers",
			req.PlayerIDs, req.Amounts, req.Bound, deadline,
			common.HexToAddress(req.Recipient), req.Signature, nonce,
		)
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("chain: pack buyPlayers: %w", err)
		}
		return data, c.addrs.Exchange, nil

	case domain.TradeSideSell:
		data, err := playerTokenABI.Pack("sellPlayers",
			req.PlayerIDs, req.Amounts, req.Bound, deadline,
			req.Signature, nonce,
		)
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("chain: pack sellPlayers: %w", err)
		}
		return data, c.addrs.PlayerToken, nil

	default:
		return nil, common.Address{}, fmt.Errorf("chain: %w: unknown side %q", domain.ErrInvalidTrade, req.Side)
	}
}

// WaitMined blocks until the transaction with the given hash is mined,
// polling at a fixed interval. It returns ErrTransactionReverted when the
// receipt reports failure. Broadcast transactions cannot be cancelled, so
// the only exits are a receipt or context cancellation.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("chain: %w: %s", ErrTransactionReverted, hash.Hex())
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return fmt.Errorf("chain: receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("chain: wait mined %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
