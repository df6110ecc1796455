package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rosterfi/rosterfi/internal/domain"
)

// List pagination bounds applied to every history endpoint.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// writeJSON writes v as a JSON response body with the given status. Marshal
// happens before any header is written so an encoding failure can still
// produce a clean 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts reads limit/offset from the query string, clamping limit to
// [1, maxListLimit] and ignoring anything unparsable.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()
	opts := domain.ListOpts{Limit: defaultListLimit}

	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = min(n, maxListLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		opts.Offset = n
	}
	return opts
}
