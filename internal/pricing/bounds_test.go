package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterfi/rosterfi/internal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestValidateSlippage(t *testing.T) {
	assert.NoError(t, ValidateSlippage(0.1))
	assert.NoError(t, ValidateSlippage(0.5))
	assert.NoError(t, ValidateSlippage(50))

	for _, pct := range []float64{0, 0.05, -1, 50.01, 100} {
		err := ValidateSlippage(pct)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidTrade)
	}
}

func TestMaxCurrencySpend(t *testing.T) {
	tests := []struct {
		amount   string
		slippage string
		want     string
	}{
		{"10", "0.5", "10.05"},
		{"10", "1", "10.1"},
		{"10", "25", "12.5"},
		{"100", "0.5", "100.5"},
		{"0.000001", "0.5", "0.000001005"},
	}
	for _, tt := range tests {
		got := MaxCurrencySpend(dec(t, tt.amount), dec(t, tt.slippage))
		assert.True(t, got.Equal(dec(t, tt.want)),
			"MaxCurrencySpend(%s, %s) = %s, want %s", tt.amount, tt.slippage, got, tt.want)
	}
}

func TestMinCurrencyOut(t *testing.T) {
	tests := []struct {
		amount   string
		price    string
		slippage string
		want     string
	}{
		{"5", "2", "0.5", "9.95"},
		{"5", "2", "1", "9.9"},
		{"5", "2", "25", "7.5"},
		{"10", "0.5", "0.5", "4.975"},
	}
	for _, tt := range tests {
		got := MinCurrencyOut(dec(t, tt.amount), dec(t, tt.price), dec(t, tt.slippage))
		assert.True(t, got.Equal(dec(t, tt.want)),
			"MinCurrencyOut(%s, %s, %s) = %s, want %s", tt.amount, tt.price, tt.slippage, got, tt.want)
	}
}

func TestRawCurrencyRounding(t *testing.T) {
	// 10.05 display units is exactly 10_050_000 raw; no rounding involved.
	assert.Equal(t, "10050000", RawCurrencyCeil(dec(t, "10.05")).String())
	assert.Equal(t, "10050000", RawCurrencyFloor(dec(t, "10.05")).String())

	// A value with sub-micro precision rounds up for the spend cap and
	// down for the proceeds floor.
	frac := dec(t, "10.0000004")
	assert.Equal(t, "10000001", RawCurrencyCeil(frac).String())
	assert.Equal(t, "10000000", RawCurrencyFloor(frac).String())
}

func TestRawPlayerAmount(t *testing.T) {
	assert.Equal(t, "5000000000000000000", RawPlayerAmount(dec(t, "5")).String())
	assert.Equal(t, "1500000000000000000", RawPlayerAmount(dec(t, "1.5")).String())
	// Sub-wei precision is truncated, never rounded up.
	assert.Equal(t, "1", RawPlayerAmount(dec(t, "0.0000000000000000019")).String())
}

func TestBuyBoundEndToEnd(t *testing.T) {
	// The full buy path: display amount -> slippage cap -> raw units.
	bound := RawCurrencyCeil(MaxCurrencySpend(dec(t, "10"), dec(t, "0.5")))
	assert.Equal(t, "10050000", bound.String())
}

func TestSellBoundEndToEnd(t *testing.T) {
	// The full sell path: token quantity at spot price, floored.
	bound := RawCurrencyFloor(MinCurrencyOut(dec(t, "5"), dec(t, "2"), dec(t, "0.5")))
	assert.Equal(t, "9950000", bound.String())
}
