package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// EIP-712 domain parameters for the RosterFi exchange contracts.
const (
	eip712DomainName    = "RosterFi Exchange"
	eip712DomainVersion = "1"
)

// --------------------------------------------------------------------------
// EIP-712 type hashes (pre-computed keccak256 of the canonical type strings).
// These must match the structs the exchange contract verifies.
// --------------------------------------------------------------------------

var (
	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	eip712DomainTypeHash = ethcrypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	)

	// BuyOrder(address recipient,uint256[] playerIds,uint256[] amounts,uint256 maxCurrencySpend,uint256 deadline,uint256 nonce)
	buyOrderTypeHash = ethcrypto.Keccak256(
		[]byte("BuyOrder(address recipient,uint256[] playerIds,uint256[] amounts,uint256 maxCurrencySpend,uint256 deadline,uint256 nonce)"),
	)

	// SellOrder(address seller,uint256[] playerIds,uint256[] amounts,uint256 minCurrencyOut,uint256 deadline,uint256 nonce)
	sellOrderTypeHash = ethcrypto.Keccak256(
		[]byte("SellOrder(address seller,uint256[] playerIds,uint256[] amounts,uint256 minCurrencyOut,uint256 deadline,uint256 nonce)"),
	)
)

// TradePayload carries the fields of a buy or sell order to be signed via
// EIP-712. String types are used for the large numbers to preserve precision
// across JSON boundaries; ValidatePayload checks they all serialize
// losslessly before any hashing happens.
type TradePayload struct {
	Side      domain.TradeSide
	Trader    string   // recipient address on buy, seller address on sell
	PlayerIDs []string // decimal uint256 strings
	Amounts   []string // decimal uint256 strings, positionally matching PlayerIDs
	Bound     string   // maxCurrencySpend on buy, minCurrencyOut on sell
	Deadline  int64    // unix seconds
	Nonce     uint64
}

// ValidatePayload checks array-length parity between ids and amounts and
// that every numeric field parses as a valid unsigned integer. It is called
// by Signer.SignTrade and again by the orchestrator before the local
// fallback path, so a lossy field never reaches the wallet.
func ValidatePayload(p TradePayload) error {
	if !p.Side.Valid() {
		return fmt.Errorf("crypto: %w: unknown side %q", domain.ErrInvalidTrade, p.Side)
	}
	if !common.IsHexAddress(p.Trader) {
		return fmt.Errorf("crypto: %w: invalid trader address %q", domain.ErrInvalidTrade, p.Trader)
	}
	if len(p.PlayerIDs) == 0 {
		return fmt.Errorf("crypto: %w: empty player id list", domain.ErrInvalidTrade)
	}
	if len(p.PlayerIDs) != len(p.Amounts) {
		return fmt.Errorf("crypto: %w: %d player ids but %d amounts",
			domain.ErrInvalidTrade, len(p.PlayerIDs), len(p.Amounts))
	}
	for _, id := range p.PlayerIDs {
		if _, err := parseUint256(id); err != nil {
			return fmt.Errorf("crypto: %w: player id %q", domain.ErrInvalidTrade, id)
		}
	}
	for _, a := range p.Amounts {
		if _, err := parseUint256(a); err != nil {
			return fmt.Errorf("crypto: %w: amount %q", domain.ErrInvalidTrade, a)
		}
	}
	if _, err := parseUint256(p.Bound); err != nil {
		return fmt.Errorf("crypto: %w: bound %q", domain.ErrInvalidTrade, p.Bound)
	}
	if p.Deadline <= 0 {
		return fmt.Errorf("crypto: %w: deadline %d", domain.ErrInvalidTrade, p.Deadline)
	}
	return nil
}

// Signer provides local EIP-712 trade signing and plain-message signing for
// the embedded-wallet path.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    int64
	domainSep  []byte // cached EIP-712 domain separator hash
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key, the
// target chain ID, and the exchange contract address used as the EIP-712
// verifying contract.
func NewSigner(privateKeyHex string, chainID int64, verifyingContract string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	if !common.IsHexAddress(verifyingContract) {
		return nil, fmt.Errorf("crypto/signer: invalid verifying contract %q", verifyingContract)
	}

	s := &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
	}
	s.domainSep = buildDomainSeparator(chainID, common.HexToAddress(verifyingContract))

	return s, nil
}

// Address returns the Ethereum address derived from the signer's private key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTrade validates and signs a trade payload, returning the 65-byte
// r || s || v signature expected by the exchange contract.
func (s *Signer) SignTrade(p TradePayload) ([]byte, error) {
	digest, err := TradeDigest(s.domainSep, p)
	if err != nil {
		return nil, err
	}
	return s.signDigest(digest)
}

// SignMessage signs an arbitrary byte message with the EIP-191 personal-sign
// prefix. Used for the backend authentication challenge.
func (s *Signer) SignMessage(msg []byte) ([]byte, error) {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	return s.signDigest(ethcrypto.Keccak256([]byte(prefixed)))
}

// DomainSeparator exposes the cached separator for digest re-derivation in
// tests and verification helpers.
func (s *Signer) DomainSeparator() []byte {
	return s.domainSep
}

// TradeDigest computes the final EIP-712 digest for a trade payload against
// the given domain separator.
func TradeDigest(domainSep []byte, p TradePayload) ([]byte, error) {
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}

	typeHash := buyOrderTypeHash
	if p.Side == domain.TradeSideSell {
		typeHash = sellOrderTypeHash
	}

	ids, err := uint256ArrayHash(p.PlayerIDs)
	if err != nil {
		return nil, err
	}
	amounts, err := uint256ArrayHash(p.Amounts)
	if err != nil {
		return nil, err
	}
	bound, err := parseUint256(p.Bound)
	if err != nil {
		return nil, err
	}

	structHash := ethcrypto.Keccak256(
		concatBytes(
			typeHash,
			common.LeftPadBytes(common.HexToAddress(p.Trader).Bytes(), 32),
			ids,
			amounts,
			bigIntTo32Bytes(bound),
			bigIntTo32Bytes(big.NewInt(p.Deadline)),
			bigIntTo32Bytes(new(big.Int).SetUint64(p.Nonce)),
		),
	)

	return eip712Hash(domainSep, structHash), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// buildDomainSeparator returns
// keccak256(abi.encode(typeHash, nameHash, versionHash, chainId, verifyingContract)).
func buildDomainSeparator(chainID int64, verifyingContract common.Address) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			eip712DomainTypeHash,
			ethcrypto.Keccak256([]byte(eip712DomainName)),
			ethcrypto.Keccak256([]byte(eip712DomainVersion)),
			bigIntTo32Bytes(big.NewInt(chainID)),
			common.LeftPadBytes(verifyingContract.Bytes(), 32),
		),
	)
}

// eip712Hash computes the final EIP-712 digest:
//
//	keccak256("\x19\x01" || domainSeparator || structHash)
func eip712Hash(domainSep, structHash []byte) []byte {
	return ethcrypto.Keccak256(
		concatBytes(
			[]byte{0x19, 0x01},
			domainSep,
			structHash,
		),
	)
}

// signDigest signs a 32-byte digest using secp256k1 and returns the raw
// signature (r || s || v, 65 bytes).
func (s *Signer) signDigest(digest []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; the contract expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return sig, nil
}

// uint256ArrayHash encodes a uint256[] per EIP-712: keccak256 of the
// concatenated 32-byte encodings of the elements.
func uint256ArrayHash(values []string) ([]byte, error) {
	encoded := make([]byte, 0, len(values)*32)
	for _, v := range values {
		n, err := parseUint256(v)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, bigIntTo32Bytes(n)...)
	}
	return ethcrypto.Keccak256(encoded), nil
}

// parseUint256 parses a decimal string as a non-negative 256-bit integer.
func parseUint256(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 256 {
		return nil, fmt.Errorf("crypto: %w: not a uint256: %q", domain.ErrInvalidTrade, s)
	}
	return n, nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
