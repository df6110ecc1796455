package trade

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rosterfi/rosterfi/internal/domain"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorCategory
	}{
		{"contract stale nonce", errors.New("execution reverted: InvalidNonce"), domain.CategoryStaleNonce},
		{"node nonce too low", errors.New("nonce too low"), domain.CategoryStaleNonce},
		{"contract bad signature", errors.New("execution reverted: InvalidSignature"), domain.CategoryInvalidSignature},
		{"contract deadline", errors.New("execution reverted: DeadlineExpired"), domain.CategoryDeadlineExceeded},
		{"bound on buy", errors.New("execution reverted: MaxCurrencySpend"), domain.CategoryBoundExceeded},
		{"bound on sell", errors.New("execution reverted: MinCurrencyOut"), domain.CategoryBoundExceeded},
		{"slippage phrasing", errors.New("slippage tolerance exceeded"), domain.CategoryBoundExceeded},
		{"not sellable", errors.New("execution reverted: NotSellable"), domain.CategoryNotSellable},
		{"erc20 balance", errors.New("ERC20: transfer amount exceeds balance"), domain.CategoryInsufficientBalance},
		{"gas funds", errors.New("insufficient funds for gas * price + value"), domain.CategoryInsufficientGas},
		{"wallet rejection", errors.New("user rejected the request"), domain.CategoryUserRejected},
		{"unknown", errors.New("something exploded"), domain.CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := Categorize(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestCategorizeUnknownKeepsRawText(t *testing.T) {
	_, msg := Categorize(errors.New("something exploded"))
	assert.Equal(t, "something exploded", msg)
}

func TestCategorizeWrappedError(t *testing.T) {
	err := fmt.Errorf("trade: submit: %w", errors.New("execution reverted: InvalidNonce"))
	got, _ := Categorize(err)
	assert.Equal(t, domain.CategoryStaleNonce, got)
}

func TestSelectSignSource(t *testing.T) {
	tests := []struct {
		name          string
		authenticated bool
		backendUp     bool
		walletSigns   bool
		want          SignSource
		wantErr       bool
	}{
		{"backend preferred", true, true, true, SignSourceBackend, false},
		{"backend without wallet", true, true, false, SignSourceBackend, false},
		{"breaker open falls back", true, false, true, SignSourceLocal, false},
		{"unauthenticated falls back", false, true, true, SignSourceLocal, false},
		{"nothing available", false, false, false, "", true},
		{"authenticated but no path", true, false, false, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectSignSource(tt.authenticated, tt.backendUp, tt.walletSigns)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
