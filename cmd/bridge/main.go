package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/aussiebroadwan/seatbridge/cmd/bridge/internal/commands"
	"github.com/aussiebroadwan/seatbridge/internal/bridge/app"
)

var (
	version = "dev"
	cli     struct {
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" default:"1" help:"Run the bridge HTTP service (default)"`
		Migrate commands.MigrateCmd `cmd:"" help:"Apply database migrations and exit"`
		Keygen  commands.KeygenCmd  `cmd:"" help:"Generate a sealed Ed25519 signing key file"`
	}
)

func main() {
	app.BuildVersion = version

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("seatbridge"),
		kong.Description("Cross-client authentication bridge with seat-based credit entitlements."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Version: version})
	cmd.FatalIfErrorf(err)
}
