package commands

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/app"
	"github.com/aussiebroadwan/seatbridge/pkg/cryptox"
)

// KeygenCmd writes a new signing key for BRIDGE_SIGNING_KEY_FILE. The key is
// sealed with the master key from --master-key-path or BRIDGE_MASTER_KEY.
type KeygenCmd struct {
	Out           string `help:"Where to write the key" default:"signing.key" env:"BRIDGE_SIGNING_KEY_FILE"`
	MasterKeyPath string `help:"Master key file used to seal the key" env:"BRIDGE_MASTER_KEY_PATH"`
	AllowPlain    bool   `help:"Write an unsealed key when no master key is configured (development only)"`
}

func (k *KeygenCmd) Run(ctx context.Context) error {
	if !k.AllowPlain {
		if _, err := cryptox.LoadMasterKey(k.MasterKeyPath, "BRIDGE_MASTER_KEY"); err != nil {
			return fmt.Errorf("a master key is required to seal the signing key (or pass --allow-plain): %w", err)
		}
	}

	kid, sealed, err := app.GenerateSigningKeyFile(k.Out, k.MasterKeyPath)
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s (kid %s, sealed %t)\n", k.Out, kid, sealed)
	return nil
}
