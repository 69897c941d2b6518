package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
)

// SystemHandler serves the probes and the JWKS document.
type SystemHandler struct {
	Started time.Time
	Version string
	Store   store.Store
	Codec   *jwtx.Codec
}

func (h *SystemHandler) health(status string, checks *bridgesdk.HealthChecks) bridgesdk.HealthResponse {
	return bridgesdk.HealthResponse{
		Status:  status,
		Uptime:  time.Since(h.Started).Round(time.Second).String(),
		Version: h.Version,
		Checks:  checks,
	}
}

// Livez godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	bridgesdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func (h *SystemHandler) Livez(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.health("ok", nil))
}

// Readyz godoc
//
//	@Summary		Readiness probe
//	@Description	503 until the store answers and a signing key is loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	bridgesdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	bridgesdk.HealthResponse	"status, uptime, version, checks"
//	@Router			/readyz [get].
func (h *SystemHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := &bridgesdk.HealthChecks{Database: "ok", Signer: "ok"}
	ready := true

	if err := h.Store.Ping(r.Context()); err != nil {
		checks.Database, ready = "error: "+err.Error(), false
	}
	if !h.Codec.Ready() {
		checks.Signer, ready = "error: no keys loaded", false
	}

	if !ready {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, h.health("degraded", checks))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.health("ok", checks))
}

// JWKS godoc
//
//	@Summary		Get JWKS
//	@Description	Public Ed25519 keys that verify bridge access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	bridgesdk.JWKSResponse
//	@Router			/.well-known/jwks.json [get].
func (h *SystemHandler) JWKS(w http.ResponseWriter, r *http.Request) {
	httpx.WriteCacheableJSON(w, h.Codec.PublicJWKS(), 5*time.Minute)
}
