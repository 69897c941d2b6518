package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/environment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/obs"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/pkg/httpx"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
	"github.com/rs/cors"

	_ "github.com/aussiebroadwan/seatbridge/api/bridge" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	env          environment.Environment
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Bridge       *service.BridgeService
	Accounts     *service.AccountService
	Entitlements *service.EntitlementService

	// WebhookSecret verifies payment processor events. Without it every
	// webhook is rejected.
	WebhookSecret []byte

	// CORSOrigins may call the browser-facing routes. Empty disables CORS.
	CORSOrigins []string
}

func NewRouter(
	codec *jwtx.Codec,
	env environment.Environment,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		env:          env,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}
}

func (r *Router) ApplyRoutes() {
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		obs.Instrument,
	}
	if len(r.CORSOrigins) > 0 {
		r.middlewares = append(r.middlewares, cors.New(cors.Options{
			AllowedOrigins:   r.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: true,
		}).Handler)
	}

	r.registerHandoff()
	r.registerTokens()
	r.registerAccounts()
	r.registerSeats()
	r.registerBilling()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Seatbridge API
//	@version		0.1.0
//	@description	Hands a browser sign-in over to editor extensions and manages organization seats.
//	@description
//	@description				Access and refresh tokens are EdDSA (Ed25519) JWTs, verifiable with the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/seatbridge
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bridge access token or identity provider token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) bridgeAuth() httpx.Authenticator {
	return bridgeAuthenticator(r.Bridge)
}

func (r *Router) browserAuth() httpx.Authenticator {
	return identityAuthenticator(r.env.Identity())
}

// eitherAuth accepts an extension token first, then a browser assertion.
func (r *Router) eitherAuth() httpx.Authenticator {
	return anyAuthenticator(r.bridgeAuth(), r.browserAuth())
}

func (r *Router) registerHandoff() {
	h := &HandoffHandler{Bridge: r.Bridge}

	// Initiate is unauthenticated; moderate limit by IP
	r.Mux.Handle("POST /auth/code/initiate",
		httpx.Chain(http.HandlerFunc(h.HandleInitiate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Confirm binds a subject to a code; strict limit per subject
	r.Mux.Handle("POST /auth/code/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.AuthnMiddleware(r.browserAuth()),
			httpx.RateLimitBySubject(httpx.StrictLimit),
		),
	)

	// Exchange is polled by the extension until confirmation. Codes are
	// 256-bit and burn on a bad verifier, so the limit only bounds load.
	r.Mux.Handle("POST /auth/code/exchange",
		httpx.Chain(http.HandlerFunc(h.HandleExchange),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerTokens() {
	h := &TokenHandler{Bridge: r.Bridge}

	r.Mux.Handle("POST /auth/token/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Session introspection verifies its own bearer token
	r.Mux.Handle("GET /auth/session",
		httpx.Chain(http.HandlerFunc(h.HandleSession),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("POST /auth/session/revoke",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.AuthnMiddleware(r.bridgeAuth()),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccounts() {
	h := &AccountsHandler{Accounts: r.Accounts}

	// Signup only from the browser
	r.Mux.Handle("POST /accounts/me",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.AuthnMiddleware(r.browserAuth()),
			httpx.RateLimitBySubject(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /accounts/me",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.eitherAuth()),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /accounts/me/credits",
		httpx.Chain(http.HandlerFunc(h.HandleCredits),
			httpx.AuthnMiddleware(r.eitherAuth()),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSeats() {
	h := &SeatsHandler{Entitlements: r.Entitlements}

	mutate := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.eitherAuth()),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /org/{orgId}/seats/assign", mutate(h.HandleAssign))
	r.Mux.Handle("POST /org/{orgId}/seats/revoke", mutate(h.HandleRevoke))
	r.Mux.Handle("POST /org/{orgId}/seats/purchase", mutate(h.HandlePurchase))
	r.Mux.Handle("POST /org/{orgId}/billing/portal", mutate(h.HandlePortal))

	r.Mux.Handle("GET /org/{orgId}/seats",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.AuthnMiddleware(r.eitherAuth()),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerBilling() {
	h := &WebhookHandler{Entitlements: r.Entitlements, Secret: r.WebhookSecret}

	// The processor retries on its own schedule; public limit by IP
	r.Mux.Handle("POST /billing/webhook",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	h := &SystemHandler{
		Started: r.startTime,
		Version: r.buildVersion,
		Store:   r.store,
		Codec:   r.codec,
	}

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(http.HandlerFunc(h.JWKS),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	// Monitoring systems poll these frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(http.HandlerFunc(h.Livez),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(http.HandlerFunc(h.Readyz),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", obs.Handler())
}
