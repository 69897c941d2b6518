package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/environment"
)

// Store drivers selectable with BRIDGE_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Issuer      string        // Issuer claim for bridge tokens (default: seatbridge)
	Audience    string        // Audience claim for bridge tokens (default: seatbridge-extension)
	Environment string        // production or development (default: development)
	BaseURL     string        // Public URL checkout and portal sessions return to
	ClockSkew   time.Duration // Leeway when verifying exp and nbf (default: 30s)
	CodeTTL     time.Duration // Authorization code lifetime (default: 10m)

	Store            string // sqlite, postgres or memory (default: sqlite)
	DatabaseFile     string // SQLite database path (default: ./seatbridge.db)
	PostgresDSN      string // Required when Store is postgres
	PostgresMaxConns int    // Pool size (default: 20)

	SigningKeyFile string // Sealed or plain Ed25519 PEM; required in production
	MasterKeyPath  string // Master key file, falls back to BRIDGE_MASTER_KEY

	PlanCatalog string // YAML catalog path, empty for the embedded catalog

	IdPJWKSURL  string // Identity provider JWKS endpoint
	IdPIssuer   string // Expected iss of identity provider tokens
	IdPAudience string // Expected aud of identity provider tokens

	PaymentAPIURL        string
	PaymentAPIKey        string
	PaymentWebhookSecret string
	SeatPriceMonthly     string // Processor price id for a monthly seat
	SeatPriceYearly      string // Processor price id for a yearly seat

	CORSOrigins []string // Browser origins allowed to call the bridge

	Env                  string        // Deployment label for logs (default: dev)
	LogLevel             string        // debug, info, warn, error (default: info)
	LogFormat            string        // json or text (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 10m)
}

func LoadConfig() Config {
	port := getEnvIntOrDefault("PORT", 8080)

	cfg := Config{
		Issuer:      getEnvOrDefault("BRIDGE_ISSUER", "seatbridge"),
		Audience:    getEnvOrDefault("BRIDGE_AUDIENCE", "seatbridge-extension"),
		Environment: getEnvOrDefault("BRIDGE_ENVIRONMENT", environment.NameDevelopment),
		BaseURL:     getEnvOrDefault("BRIDGE_BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		ClockSkew:   getEnvDurationOrDefault("BRIDGE_CLOCK_SKEW", 30*time.Second),
		CodeTTL:     getEnvDurationOrDefault("BRIDGE_CODE_TTL", 10*time.Minute),

		Store:            getEnvOrDefault("BRIDGE_STORE", StoreSQLite),
		DatabaseFile:     getEnvOrDefault("BRIDGE_DATABASE_FILE", "seatbridge.db"),
		PostgresDSN:      os.Getenv("BRIDGE_POSTGRES_DSN"),
		PostgresMaxConns: getEnvIntOrDefault("BRIDGE_POSTGRES_MAX_CONNS", 20),

		SigningKeyFile: os.Getenv("BRIDGE_SIGNING_KEY_FILE"),
		MasterKeyPath:  os.Getenv("BRIDGE_MASTER_KEY_PATH"),
		PlanCatalog:    os.Getenv("BRIDGE_PLAN_CATALOG"),

		IdPJWKSURL:  os.Getenv("BRIDGE_IDP_JWKS_URL"),
		IdPIssuer:   os.Getenv("BRIDGE_IDP_ISSUER"),
		IdPAudience: os.Getenv("BRIDGE_IDP_AUDIENCE"),

		PaymentAPIURL:        os.Getenv("BRIDGE_PAYMENT_API_URL"),
		PaymentAPIKey:        os.Getenv("BRIDGE_PAYMENT_API_KEY"),
		PaymentWebhookSecret: os.Getenv("BRIDGE_PAYMENT_WEBHOOK_SECRET"),
		SeatPriceMonthly:     os.Getenv("BRIDGE_SEAT_PRICE_MONTHLY"),
		SeatPriceYearly:      os.Getenv("BRIDGE_SEAT_PRICE_YEARLY"),

		CORSOrigins: getEnvListOrDefault("BRIDGE_CORS_ORIGINS", nil),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 port,
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 10*time.Minute),
	}

	return cfg
}

// Production reports whether the config selects the production environment.
func (c Config) Production() bool {
	return c.Environment == environment.NameProduction
}

// Validate rejects configs the service cannot start with. Production needs
// every external collaborator configured; development falls back to the
// in-process ones.
func (c Config) Validate() error {
	var errs []error

	switch c.Environment {
	case environment.NameProduction, environment.NameDevelopment:
	default:
		errs = append(errs, fmt.Errorf("BRIDGE_ENVIRONMENT must be %q or %q, got %q",
			environment.NameProduction, environment.NameDevelopment, c.Environment))
	}

	switch c.Store {
	case StoreSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("BRIDGE_DATABASE_FILE is required for the sqlite store"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("BRIDGE_POSTGRES_DSN is required for the postgres store"))
		}
	case StoreMemory:
		if c.Production() {
			errs = append(errs, errors.New("the memory store cannot be used in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BRIDGE_STORE %q", c.Store))
	}

	if c.Issuer == "" {
		errs = append(errs, errors.New("BRIDGE_ISSUER is required"))
	}
	if c.CodeTTL <= 0 {
		errs = append(errs, errors.New("BRIDGE_CODE_TTL must be positive"))
	}

	if c.Production() {
		required := []struct{ name, value string }{
			{"BRIDGE_SIGNING_KEY_FILE", c.SigningKeyFile},
			{"BRIDGE_IDP_JWKS_URL", c.IdPJWKSURL},
			{"BRIDGE_IDP_ISSUER", c.IdPIssuer},
			{"BRIDGE_PAYMENT_API_URL", c.PaymentAPIURL},
			{"BRIDGE_PAYMENT_API_KEY", c.PaymentAPIKey},
			{"BRIDGE_PAYMENT_WEBHOOK_SECRET", c.PaymentWebhookSecret},
		}
		for _, r := range required {
			if r.value == "" {
				errs = append(errs, fmt.Errorf("%s is required in production", r.name))
			}
		}
		if !strings.HasPrefix(c.BaseURL, "https://") {
			errs = append(errs, errors.New("BRIDGE_BASE_URL must be https in production"))
		}
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

// getEnvListOrDefault splits a comma separated variable, dropping blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
