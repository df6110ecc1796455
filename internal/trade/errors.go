package trade

import (
	"strings"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// categoryPatterns maps lowercase substrings of failure text to the fixed
// error taxonomy shown in the status panel. Order matters: earlier entries
// win so the more specific contract revert names are matched before the
// generic node-level phrases.
var categoryPatterns = []struct {
	needle   string
	category domain.ErrorCategory
}{
	{"invalidnonce", domain.CategoryStaleNonce},
	{"nonce too low", domain.CategoryStaleNonce},
	{"invalidsignature", domain.CategoryInvalidSignature},
	{"signature verification", domain.CategoryInvalidSignature},
	{"ecdsa", domain.CategoryInvalidSignature},
	{"deadlineexpired", domain.CategoryDeadlineExceeded},
	{"deadline", domain.CategoryDeadlineExceeded},
	{"expired", domain.CategoryDeadlineExceeded},
	{"maxcurrencyspend", domain.CategoryBoundExceeded},
	{"mincurrencyout", domain.CategoryBoundExceeded},
	{"slippage", domain.CategoryBoundExceeded},
	{"notsellable", domain.CategoryNotSellable},
	{"not sellable", domain.CategoryNotSellable},
	{"transfer amount exceeds balance", domain.CategoryInsufficientBalance},
	{"insufficient balance", domain.CategoryInsufficientBalance},
	{"insufficient allowance", domain.CategoryInsufficientBalance},
	{"insufficient funds for gas", domain.CategoryInsufficientGas},
	{"intrinsic gas", domain.CategoryInsufficientGas},
	{"user rejected", domain.CategoryUserRejected},
	{"user denied", domain.CategoryUserRejected},
	{"request rejected", domain.CategoryUserRejected},
}

// friendlyMessages gives each category a short, stable message for the UI.
// CategoryUnknown passes the raw error text through instead.
var friendlyMessages = map[domain.ErrorCategory]string{
	domain.CategoryStaleNonce:          "trade nonce was stale, please retry",
	domain.CategoryInvalidSignature:    "trade signature was rejected",
	domain.CategoryDeadlineExceeded:    "trade deadline passed before confirmation",
	domain.CategoryBoundExceeded:       "price moved beyond your slippage limit",
	domain.CategoryNotSellable:         "this player token cannot be sold right now",
	domain.CategoryInsufficientBalance: "insufficient balance for this trade",
	domain.CategoryInsufficientGas:     "not enough gas funds in wallet",
	domain.CategoryUserRejected:        "signature request was rejected in the wallet",
}

// Categorize maps a failure to the fixed error taxonomy and a user-facing
// message. Unrecognized errors fall through to CategoryUnknown with the
// raw text preserved.
func Categorize(err error) (domain.ErrorCategory, string) {
	if err == nil {
		return domain.CategoryUnknown, ""
	}

	raw := err.Error()
	lower := strings.ToLower(raw)
	for _, p := range categoryPatterns {
		if strings.Contains(lower, p.needle) {
			return p.category, friendlyMessages[p.category]
		}
	}
	return domain.CategoryUnknown, raw
}
