package app

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
	"github.com/aussiebroadwan/seatbridge/pkg/jwtx"
)

// masterKeyEnv holds the master key when no key file is configured.
const masterKeyEnv = "BRIDGE_MASTER_KEY"

// InitSigningKeys builds the KeyManager the token codec signs with.
//
// Key sources:
//   - BRIDGE_SIGNING_KEY_FILE set: the file holds one Ed25519 PEM key, sealed
//     with the master key (see keygen). Tokens survive restarts.
//   - unset: a key is generated in memory. Every token becomes invalid when
//     the process restarts, which is only acceptable in development.
func InitSigningKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Issuer:   cfg.Issuer,
		Audience: []string{cfg.Audience},
		Leeway:   cfg.ClockSkew,
	}

	if cfg.SigningKeyFile == "" {
		km, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}
		logger.Warn("using an ephemeral signing key, tokens will not survive a restart",
			"algorithm", jwtx.AlgorithmEdDSA,
			"issuer", cfg.Issuer,
		)
		return km, nil
	}

	pemKey, err := readSigningKey(cfg)
	if err != nil {
		return nil, err
	}

	kid := keyID(pemKey)
	km, err := jwtx.NewKeyManagerFromPEM(kid, pemKey, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	logger.Info("signing key loaded",
		"algorithm", jwtx.AlgorithmEdDSA,
		"kid", kid,
		"issuer", cfg.Issuer,
	)
	return km, nil
}

// readSigningKey returns the plaintext PEM from the configured key file,
// opening it with the master key when it is sealed.
func readSigningKey(cfg Config) ([]byte, error) {
	data, err := os.ReadFile(cfg.SigningKeyFile) // #nosec G304 - operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file: %w", err)
	}

	if !cryptox.IsSealed(data) {
		if cfg.Production() {
			return nil, errors.New("signing key file must be sealed in production")
		}
		return data, nil
	}

	master, err := cryptox.LoadMasterKey(cfg.MasterKeyPath, masterKeyEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	pemKey, err := cryptox.OpenPrivateKey(master, data)
	if err != nil {
		return nil, fmt.Errorf("failed to open signing key: %w", err)
	}
	return pemKey, nil
}

// GenerateSigningKeyFile writes a fresh Ed25519 key to path. The key is
// sealed when a master key is available. Existing files are never replaced.
func GenerateSigningKeyFile(path, masterKeyPath string) (kid string, sealed bool, err error) {
	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return "", false, err
	}

	out := pemKey
	master, err := cryptox.LoadMasterKey(masterKeyPath, masterKeyEnv)
	switch {
	case err == nil:
		if out, err = cryptox.SealPrivateKey(master, pemKey); err != nil {
			return "", false, fmt.Errorf("failed to seal signing key: %w", err)
		}
		sealed = true
	case errors.Is(err, cryptox.ErrNoMasterKey):
	default:
		return "", false, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 - operator supplied path
	if err != nil {
		return "", false, fmt.Errorf("failed to create signing key file: %w", err)
	}
	if _, err := f.Write(out); err != nil {
		_ = f.Close()
		return "", false, fmt.Errorf("failed to write signing key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", false, err
	}

	return keyID(pemKey), sealed, nil
}

// keyID derives a stable kid from the key material so verifiers holding a
// cached JWKS keep matching across restarts.
func keyID(pemKey []byte) string {
	sum := sha256.Sum256(pemKey)
	return "seatbridge-" + hex.EncodeToString(sum[:8])
}
