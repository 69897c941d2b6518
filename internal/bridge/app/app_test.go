package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/seatbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"BRIDGE_ISSUER", "BRIDGE_STORE", "BRIDGE_ENVIRONMENT", "PORT", "BRIDGE_CODE_TTL", "BRIDGE_CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "seatbridge", cfg.Issuer)
	require.Equal(t, "seatbridge-extension", cfg.Audience)
	require.Equal(t, StoreSQLite, cfg.Store)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Equal(t, 10*time.Minute, cfg.CodeTTL)
	require.False(t, cfg.Production())
	require.Empty(t, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("BRIDGE_STORE", "memory")
	t.Setenv("BRIDGE_CODE_TTL", "90")
	t.Setenv("HOUSEKEEPING_INTERVAL", "2m")
	t.Setenv("BRIDGE_CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("PORT", "not-a-number")

	cfg := LoadConfig()
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, 90*time.Second, cfg.CodeTTL)
	require.Equal(t, 2*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	require.Equal(t, 8080, cfg.Port)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	base := Config{
		Issuer:       "seatbridge",
		Audience:     "seatbridge-extension",
		Environment:  "development",
		Store:        StoreSQLite,
		DatabaseFile: "seatbridge.db",
		CodeTTL:      10 * time.Minute,
		BaseURL:      "http://localhost:8080",
	}
	require.NoError(t, base.Validate())

	t.Run("unknown store", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Store = "redis"
		require.ErrorContains(t, cfg.Validate(), "unknown BRIDGE_STORE")
	})

	t.Run("postgres needs dsn", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Store = StorePostgres
		require.ErrorContains(t, cfg.Validate(), "BRIDGE_POSTGRES_DSN")
	})

	t.Run("production needs collaborators", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Environment = "production"
		err := cfg.Validate()
		require.Error(t, err)
		for _, name := range []string{
			"BRIDGE_SIGNING_KEY_FILE",
			"BRIDGE_IDP_JWKS_URL",
			"BRIDGE_PAYMENT_API_KEY",
			"BRIDGE_PAYMENT_WEBHOOK_SECRET",
			"BRIDGE_BASE_URL",
		} {
			require.ErrorContains(t, err, name)
		}
	})

	t.Run("production rejects memory store", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Environment = "production"
		cfg.Store = StoreMemory
		require.ErrorContains(t, cfg.Validate(), "memory store")
	})
}

func TestSigningKeyFile_SealedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	masterPath := filepath.Join(dir, "master.key")
	require.NoError(t, os.WriteFile(masterPath, []byte("correct horse battery staple\n"), 0o600))
	keyPath := filepath.Join(dir, "signing.key")

	kid, sealed, err := GenerateSigningKeyFile(keyPath, masterPath)
	require.NoError(t, err)
	require.True(t, sealed)

	data, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	require.True(t, cryptox.IsSealed(data))

	_, _, err = GenerateSigningKeyFile(keyPath, masterPath)
	require.Error(t, err, "existing key files are never replaced")

	cfg := Config{
		Issuer:         "seatbridge",
		Audience:       "seatbridge-extension",
		Environment:    "production",
		SigningKeyFile: keyPath,
		MasterKeyPath:  masterPath,
	}
	logger := slog.New(slog.DiscardHandler)

	km, err := InitSigningKeys(cfg, logger)
	require.NoError(t, err)
	require.True(t, km.IsReady())
	require.Equal(t, kid, km.Signer().KID())

	again, err := InitSigningKeys(cfg, logger)
	require.NoError(t, err)
	require.Equal(t, kid, again.Signer().KID(), "kid is stable across restarts")

	require.NoError(t, os.WriteFile(masterPath, []byte("wrong"), 0o600))
	_, err = InitSigningKeys(cfg, logger)
	require.Error(t, err)
}

func TestSigningKeyFile_PlainOnlyOutsideProduction(t *testing.T) {
	t.Setenv(masterKeyEnv, "")
	keyPath := filepath.Join(t.TempDir(), "signing.key")

	_, sealed, err := GenerateSigningKeyFile(keyPath, "")
	require.NoError(t, err)
	require.False(t, sealed)

	logger := slog.New(slog.DiscardHandler)
	cfg := Config{Issuer: "seatbridge", Audience: "seatbridge-extension", Environment: "development", SigningKeyFile: keyPath}
	_, err = InitSigningKeys(cfg, logger)
	require.NoError(t, err)

	cfg.Environment = "production"
	_, err = InitSigningKeys(cfg, logger)
	require.ErrorContains(t, err, "must be sealed")
}

func TestApplication_DevelopmentLogin(t *testing.T) {
	cfg := Config{
		Issuer:               "seatbridge",
		Audience:             "seatbridge-extension",
		Environment:          "development",
		BaseURL:              "http://localhost:8080",
		ClockSkew:            30 * time.Second,
		CodeTTL:              10 * time.Minute,
		Store:                StoreMemory,
		LogLevel:             "error",
		LogFormat:            "text",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}

	application, err := New(context.Background(), cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client := bridgesdk.NewClient(srv.URL)

	_, err = client.Register(ctx, "dev:alice")
	require.NoError(t, err)

	verifier, challenge, err := bridgesdk.GeneratePKCE()
	require.NoError(t, err)
	started, err := client.Initiate(ctx, bridgesdk.InitiateRequest{
		RedirectURI:   "vscode://seatbridge.extension/auth",
		PKCEChallenge: challenge,
	})
	require.NoError(t, err)

	_, err = client.Confirm(ctx, "dev:alice", bridgesdk.ConfirmRequest{State: started.State, SubjectID: "alice"})
	require.NoError(t, err)

	tokens, err := client.Exchange(ctx, bridgesdk.ExchangeRequest{
		Code:         started.Code,
		State:        started.State,
		PKCEVerifier: verifier,
	})
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)

	info, err := client.GetSession(ctx, tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", info.SubjectID)

	resp, err := http.Get(srv.URL + "/livez")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	application.housekeepingService.Start()
	require.NoError(t, application.Shutdown())
}
