package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/environment"
	bridgehttp "github.com/aussiebroadwan/seatbridge/internal/bridge/http"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/identity"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/obs"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/payment"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/plans"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/service"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/memory"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/postgres"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/store/drivers/sqlite"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
	"github.com/aussiebroadwan/seatbridge/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "dev"

// Application encapsulates the bridge service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	keyManager *jwtx.KeyManager
	codec      *jwtx.Codec
	env        environment.Environment
	catalog    *plans.Catalog

	bridgeService       *service.BridgeService
	accountService      *service.AccountService
	entitlementService  *service.EntitlementService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *bridgehttp.Router
}

// New creates an Application with every dependency initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "seatbridge",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	obs.Init(BuildVersion)

	catalog, err := plans.LoadFile(cfg.PlanCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan catalog: %w", err)
	}
	app.catalog = catalog

	db, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database migrations applied successfully", "store", cfg.Store)

	keyManager, err := InitSigningKeys(cfg, app.logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}
	app.keyManager = keyManager
	app.codec = jwtx.NewCodec(keyManager, cfg.Issuer, []string{cfg.Audience})

	if err := app.initServices(); err != nil {
		_ = db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// OpenStore connects the configured store driver. Migrations are not applied.
func OpenStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.Store {
	case StoreMemory:
		return memory.NewStore(), nil

	case StorePostgres:
		db, err := postgres.NewStore(ctx, &postgres.PoolConfig{
			ConnString: cfg.PostgresDSN,
			MaxConns:   int32(cfg.PostgresMaxConns), // #nosec G115 - operator supplied pool size
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return db, nil

	default:
		db, err := sqlite.NewStore(cfg.DatabaseFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return db, nil
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("seatbridge starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"environment", app.env.Name(),
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops housekeeping and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down seatbridge...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("seatbridge stopped")
	return nil
}

// Handler exposes the routed handler, used by tests that drive the
// application without a listener.
func (app *Application) Handler() http.Handler {
	return app.router
}

// initEnvironment selects the identity provider and payment processor.
// Development completes checkouts in process, so the completion hook is
// wired straight into the entitlement engine.
func (app *Application) initEnvironment() error {
	if !app.cfg.Production() {
		payments := payment.NewDevProcessor(app.cfg.BaseURL)
		payments.OnCompleted(app.entitlementService.ApplySeatPurchase)
		app.env = environment.NewDevelopment(payments)
		app.logger.Warn("development environment: dev assertions accepted and checkouts complete in memory")
		return nil
	}

	idp, err := identity.NewJWKSProvider(identity.JWKSConfig{
		JWKSURL:  app.cfg.IdPJWKSURL,
		Issuer:   app.cfg.IdPIssuer,
		Audience: app.cfg.IdPAudience,
		Leeway:   app.cfg.ClockSkew,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	payments, err := payment.NewHTTPProcessor(payment.HTTPConfig{
		BaseURL: app.cfg.PaymentAPIURL,
		APIKey:  app.cfg.PaymentAPIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize payment processor: %w", err)
	}

	env, err := environment.NewProduction(idp, payments)
	if err != nil {
		return err
	}
	app.env = env
	return nil
}

// initServices initializes the business logic services.
func (app *Application) initServices() error {
	app.entitlementService = &service.EntitlementService{
		Store:   app.db,
		Catalog: app.catalog,
		Prices: service.SeatPrices{
			"monthly": app.cfg.SeatPriceMonthly,
			"yearly":  app.cfg.SeatPriceYearly,
		},
		BaseURL: app.cfg.BaseURL,
	}

	if err := app.initEnvironment(); err != nil {
		return err
	}
	app.entitlementService.Payments = app.env.Payments()

	app.bridgeService = &service.BridgeService{
		Store: app.db,
		Sessions: &service.SessionStore{
			Store:   app.db,
			CodeTTL: app.cfg.CodeTTL,
		},
		Codec: app.codec,
		Env:   app.env,
	}
	app.accountService = &service.AccountService{
		Store:   app.db,
		Catalog: app.catalog,
		Seats:   app.entitlementService,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.entitlementService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the router and server.
func (app *Application) initHTTP() {
	router := bridgehttp.NewRouter(
		app.codec,
		app.env,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Bridge = app.bridgeService
	router.Accounts = app.accountService
	router.Entitlements = app.entitlementService
	router.WebhookSecret = []byte(app.cfg.PaymentWebhookSecret)
	router.CORSOrigins = app.cfg.CORSOrigins
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    8 * 1024,
	}
}
