// Package wallet implements the embedded-wallet provider: a locally held
// key (raw hex or encrypted keyfile) that signs typed data, plain messages,
// and transactions. Externally connected wallets present the same surface
// through whatever bridge hosts the gateway; the orchestrator only ever
// sees the Provider interface it defines.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rosterfi/rosterfi/internal/crypto"
)

// gasLimitHeadroom is the multiplier (in percent) applied to gas estimates
// so trades do not fail on minor estimation drift.
const gasLimitHeadroom = 120

// Local is a wallet provider backed by an in-process private key. It signs
// EIP-712 trade payloads via the crypto signer and broadcasts legacy
// transactions through the chain client's RPC backend.
type Local struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  *crypto.Signer
	eth     *ethclient.Client
}

// NewLocal resolves the private key from cfg (raw hex or encrypted keyfile),
// builds the EIP-712 signer against the exchange contract, and returns the
// provider.
func NewLocal(cfg crypto.KeyConfig, chainID int64, exchangeContract string, eth *ethclient.Client) (*Local, error) {
	keyHex, err := crypto.LoadKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}

	key, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}

	signer, err := crypto.NewSigner(keyHex, chainID, exchangeContract)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}

	return &Local{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
		signer:  signer,
		eth:     eth,
	}, nil
}

// Address returns the wallet's Ethereum address.
func (w *Local) Address() common.Address {
	return w.address
}

// SignTrade signs an EIP-712 trade payload.
func (w *Local) SignTrade(_ context.Context, p crypto.TradePayload) ([]byte, error) {
	return w.signer.SignTrade(p)
}

// SignMessage signs a plain message with the personal-sign prefix. Used for
// the backend authentication challenge.
func (w *Local) SignMessage(_ context.Context, msg []byte) ([]byte, error) {
	return w.signer.SignMessage(msg)
}

// SendTransaction builds, signs, and broadcasts a transaction carrying the
// given calldata and returns its hash immediately, before confirmation.
func (w *Local) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := w.eth.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: account nonce: %w", err)
	}

	gasPrice, err := w.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: gas price: %w", err)
	}

	gasLimit, err := w.eth.EstimateGas(ctx, ethereum.CallMsg{From: w.address, To: &to, Data: data})
	if err != nil {
		// Estimation runs the call, so contract-side rejections (stale
		// nonce, bound exceeded) surface here with their revert reason.
		return common.Hash{}, fmt.Errorf("wallet: gas estimate: %w", err)
	}
	gasLimit = gasLimit * gasLimitHeadroom / 100

	tx := types.NewTransaction(nonce, to, new(big.Int), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: sign transaction: %w", err)
	}

	if err := w.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("wallet: broadcast: %w", err)
	}
	return signed.Hash(), nil
}
