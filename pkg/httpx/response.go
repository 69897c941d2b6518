package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 64 << 10

// ErrBadBody is returned by DecodeJSON for unreadable or oversized payloads.
var ErrBadBody = errors.New("httpx: malformed request body")

// WriteJSON writes v with status code. Responses are never cached, since
// most of them carry a token, a code or account state.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	encode(w, code, v)
}

// WriteCacheableJSON writes a 200 that shared caches may keep for maxAge.
func WriteCacheableJSON(w http.ResponseWriter, v any, maxAge time.Duration) {
	w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(maxAge.Seconds())))
	encode(w, http.StatusOK, v)
}

// NoCache marks a response no-store. Handlers that write without WriteJSON
// and carry a token or code must call it.
func NoCache(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
}

func encode(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads exactly one JSON object into v. Unknown fields and
// trailing data are rejected.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadBody)
	}
	return nil
}
