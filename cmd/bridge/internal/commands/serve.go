package commands

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/seatbridge/internal/bridge/app"
)

// ServeCmd runs the bridge. All settings come from the environment, see
// app.LoadConfig.
type ServeCmd struct{}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	application, err := app.New(ctx, app.LoadConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run()
}
