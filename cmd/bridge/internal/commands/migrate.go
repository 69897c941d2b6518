package commands

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/app"
)

// MigrateCmd applies the embedded migrations of the configured store.
type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx context.Context) error {
	cfg := app.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	fmt.Printf("migrations applied to %s store\n", cfg.Store)
	return nil
}
