package bridgesdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	verifier, challenge, err := GeneratePKCE()
	require.NoError(t, err)
	require.NoError(t, cryptox.ValidateVerifier(verifier))
	require.NoError(t, cryptox.ValidateChallenge(challenge))
	require.True(t, cryptox.VerifyPKCE(verifier, challenge))
}

func TestParseErrorResponse(t *testing.T) {
	t.Run("typed body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusPaymentRequired}
		err := parseErrorResponse(resp, []byte(`{"error":"no_capacity","error_description":"full"}`))

		require.ErrorIs(t, err, ErrNoCapacity)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
		require.Equal(t, "full", apiErr.Description)
	})

	t.Run("untyped body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadGateway}
		err := parseErrorResponse(resp, []byte("<html>bad gateway</html>"))
		require.ErrorIs(t, err, ErrServerError)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, parseErrorResponse(&http.Response{StatusCode: http.StatusOK}, nil))
	})
}

func TestAPIError_WriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrInvalidToken.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ErrorCodeInvalidToken, body.Error)
}

// refreshServer rotates "rN" into "rN+1" and counts refreshes.
func refreshServer(refreshes *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/token/refresh" {
			http.NotFound(w, r)
			return
		}
		var body RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			ErrInvalidRequest.WriteError(w)
			return
		}
		n := refreshes.Add(1)
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "a" + string(rune('0'+n)),
			RefreshToken: "r" + string(rune('0'+n)),
			SessionID:    "sess1",
			ExpiresIn:    3600,
		})
	}))
}

func TestSession_RefreshesOnceWhenExpired(t *testing.T) {
	var refreshes atomic.Int32
	srv := refreshServer(&refreshes)
	defer srv.Close()

	client := NewClient(srv.URL)
	now := time.Now()
	session := client.NewSession(&TokenResponse{AccessToken: "a0", RefreshToken: "r0", ExpiresIn: 3600})
	session.now = func() time.Time { return now }

	token, err := session.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a0", token)
	require.Zero(t, refreshes.Load())

	// Inside the refresh margin every caller shares one rotation
	session.mu.Lock()
	session.now = func() time.Time { return now.Add(time.Hour - 10*time.Second) }
	session.mu.Unlock()

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = session.AccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), refreshes.Load())
	for _, tok := range tokens {
		require.Equal(t, "a1", tok)
	}
	require.Equal(t, "r1", session.Tokens().RefreshToken)
}

func TestSession_RevokeClearsTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a0" {
			ErrInvalidToken.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(OKResponse{OK: true})
	}))
	defer srv.Close()

	session := NewClient(srv.URL).NewSession(&TokenResponse{AccessToken: "a0", RefreshToken: "r0", ExpiresIn: 3600})
	require.NoError(t, session.Revoke(context.Background()))
	require.Empty(t, session.Tokens().RefreshToken)
	require.Error(t, session.Revoke(context.Background()))
}
