package crypto

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// Well-known throwaway key (hardhat account #0).
const (
	testKey      = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

func testPayload() TradePayload {
	return TradePayload{
		Side:      domain.TradeSideBuy,
		Trader:    "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		PlayerIDs: []string{"7", "13"},
		Amounts:   []string{"100000000", "250000000"},
		Bound:     "351750000",
		Deadline:  1700000300,
		Nonce:     4,
	}
}

func TestNewSigner(t *testing.T) {
	t.Parallel()

	s, err := NewSigner(testKey, 137, testContract)
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", s.Address().Hex())

	// 0x-prefixed keys are accepted too.
	s2, err := NewSigner("0x"+testKey, 137, testContract)
	require.NoError(t, err)
	require.Equal(t, s.Address(), s2.Address())
}

func TestNewSignerRejectsBadInputs(t *testing.T) {
	t.Parallel()

	_, err := NewSigner("not-hex", 137, testContract)
	require.Error(t, err)

	_, err = NewSigner(testKey, 137, "not-an-address")
	require.Error(t, err)
}

func TestSignTradeRecoversSigner(t *testing.T) {
	t.Parallel()

	s, err := NewSigner(testKey, 137, testContract)
	require.NoError(t, err)

	sig, err := s.SignTrade(testPayload())
	require.NoError(t, err)
	require.Len(t, sig, 65)
	require.GreaterOrEqual(t, sig[64], byte(27))

	digest, err := TradeDigest(s.DomainSeparator(), testPayload())
	require.NoError(t, err)

	recovery := make([]byte, 65)
	copy(recovery, sig)
	recovery[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, recovery)
	require.NoError(t, err)
	require.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}

func TestTradeDigestIsDeterministic(t *testing.T) {
	t.Parallel()

	s, err := NewSigner(testKey, 137, testContract)
	require.NoError(t, err)

	d1, err := TradeDigest(s.DomainSeparator(), testPayload())
	require.NoError(t, err)
	d2, err := TradeDigest(s.DomainSeparator(), testPayload())
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	// Buy and sell orders with identical fields hash differently.
	sell := testPayload()
	sell.Side = domain.TradeSideSell
	d3, err := TradeDigest(s.DomainSeparator(), sell)
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)

	// Nonce advance changes the digest.
	bumped := testPayload()
	bumped.Nonce++
	d4, err := TradeDigest(s.DomainSeparator(), bumped)
	require.NoError(t, err)
	require.NotEqual(t, d1, d4)
}

func TestValidatePayload(t *testing.T) {
	t.Parallel()

	mutate := func(fn func(*TradePayload)) TradePayload {
		p := testPayload()
		fn(&p)
		return p
	}

	tests := []struct {
		name    string
		payload TradePayload
		wantErr bool
	}{
		{"valid", testPayload(), false},
		{"bad_side", mutate(func(p *TradePayload) { p.Side = "short" }), true},
		{"bad_trader", mutate(func(p *TradePayload) { p.Trader = "0x123" }), true},
		{"empty_ids", mutate(func(p *TradePayload) { p.PlayerIDs = nil; p.Amounts = nil }), true},
		{"length_mismatch", mutate(func(p *TradePayload) { p.Amounts = p.Amounts[:1] }), true},
		{"non_numeric_id", mutate(func(p *TradePayload) { p.PlayerIDs[0] = "faker" }), true},
		{"negative_amount", mutate(func(p *TradePayload) { p.Amounts[0] = "-5" }), true},
		{"float_bound", mutate(func(p *TradePayload) { p.Bound = "1.5" }), true},
		{"zero_deadline", mutate(func(p *TradePayload) { p.Deadline = 0 }), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePayload(tt.payload)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidTrade)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSignMessageRecoversSigner(t *testing.T) {
	t.Parallel()

	s, err := NewSigner(testKey, 137, testContract)
	require.NoError(t, err)

	msg := []byte("rosterfi login challenge: 8f3a")
	sig, err := s.SignMessage(msg)
	require.NoError(t, err)
	require.Len(t, sig, 65)

	prefixed := append([]byte("\x19Ethereum Signed Message:\n30"), msg...)
	digest := ethcrypto.Keccak256(prefixed)

	recovery := make([]byte, 65)
	copy(recovery, sig)
	recovery[64] -= 27
	pub, err := ethcrypto.SigToPub(digest, recovery)
	require.NoError(t, err)
	require.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}
