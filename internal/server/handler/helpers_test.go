package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListOpts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		url    string
		limit  int
		offset int
	}{
		{"defaults", "/api/trades?wallet=0xabc", defaultListLimit, 0},
		{"explicit", "/api/trades?limit=20&offset=40", 20, 40},
		{"limit_clamped", "/api/trades?limit=9999", maxListLimit, 0},
		{"garbage_ignored", "/api/trades?limit=ten&offset=-3", defaultListLimit, 0},
		{"zero_limit_ignored", "/api/trades?limit=0", defaultListLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := parseListOpts(httptest.NewRequest("GET", tt.url, nil))
			assert.Equal(t, tt.limit, opts.Limit)
			assert.Equal(t, tt.offset, opts.Offset)
		})
	}
}
