package backend

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// APIChallenge is the wire shape of the authentication challenge response.
type APIChallenge struct {
	Message string `json:"message"`
}

// APILogin is the wire shape of the login response.
type APILogin struct {
	Token string `json:"token"`
}

// APISignature is the wire shape of a prepared trade signature. The backend
// co-signs the order and assigns the transaction a tracking ID.
type APISignature struct {
	Signature     string `json:"signature"`
	Nonce         uint64 `json:"nonce"`
	TransactionID string `json:"transactionId"`
}

// PreparedSignature is the domain form of a backend-prepared trade
// signature: decoded bytes plus the nonce the backend signed against.
type PreparedSignature struct {
	Signature     []byte
	Nonce         uint64
	TransactionID string
}

// ToPrepared validates the API payload and converts it to domain form. A
// response missing any field is a protocol violation: a trade must never be
// submitted with a partially understood signature.
func (a APISignature) ToPrepared() (PreparedSignature, error) {
	if a.Signature == "" {
		return PreparedSignature{}, fmt.Errorf("%w: signature missing", domain.ErrProtocolResponse)
	}
	if a.TransactionID == "" {
		return PreparedSignature{}, fmt.Errorf("%w: transactionId missing", domain.ErrProtocolResponse)
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(a.Signature, "0x"))
	if err != nil {
		return PreparedSignature{}, fmt.Errorf("%w: signature not hex: %v", domain.ErrProtocolResponse, err)
	}
	if len(raw) != 65 {
		return PreparedSignature{}, fmt.Errorf("%w: signature length %d, want 65", domain.ErrProtocolResponse, len(raw))
	}

	return PreparedSignature{
		Signature:     raw,
		Nonce:         a.Nonce,
		TransactionID: a.TransactionID,
	}, nil
}

// APIError is the backend's error envelope. Message carries the
// contract-level failure reason (e.g. "InvalidNonce") when present.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Reason returns the most specific failure text the envelope carries.
func (a APIError) Reason() string {
	if a.Message != "" {
		return a.Message
	}
	return a.Error
}
