package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/wolfeidau/assetmods/cmd/assetmods/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug    bool   `help:"Enable debug mode." env:"ASSETMODS_DEBUG"`
		Tracing  bool   `help:"Export metrics and traces over OTLP." env:"ASSETMODS_TRACING"`
		Config   string `help:"Path to the asset module config." default:"assetmods.yaml" env:"ASSETMODS_CONFIG" type:"path"`
		Version  kong.VersionFlag
		Build    commands.BuildCmd    `cmd:"" help:"Bundle entry points with esbuild, resolving asset modules"`
		Emit     commands.EmitCmd     `cmd:"" help:"Resolve asset files and write a manifest"`
		Classify commands.ClassifyCmd `cmd:"" help:"Show how files would be handled without writing anything"`
		Rewrite  commands.RewriteCmd  `cmd:"" help:"Rewrite new URL() asset references in a source file"`
		Watch    commands.WatchCmd    `cmd:"" help:"Rebuild when sources change"`
		Serve    commands.ServeCmd    `cmd:"" help:"Serve the build output, rebuilding on change"`
	}
)

func main() {
	// a missing .env is fine, flags and the environment still apply
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("assetmods"),
		kong.Description("Asset module resolution for esbuild bundles."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Tracing: cli.Tracing,
		Config:  cli.Config,
		Version: version,
	})
	cmd.FatalIfErrorf(err)
}
