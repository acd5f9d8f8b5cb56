package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/assetmods/internal/assets"
	"github.com/wolfeidau/assetmods/internal/processor"
	"github.com/wolfeidau/assetmods/internal/rewrite"
	"github.com/wolfeidau/assetmods/internal/rules"
)

// BuildCmd bundles entry points with esbuild and the asset module plugin.
type BuildCmd struct {
	Entry     string `help:"Entry point glob pattern" default:"ui/pages/*.tsx" env:"ASSETMODS_ENTRY"`
	OutDir    string `help:"Output directory for bundles" default:"public" env:"ASSETMODS_OUTDIR"`
	Metafile  string `help:"Where to write the esbuild metafile" default:"public/meta.json"`
	Manifest  string `help:"Where to write the asset manifest (empty to skip)" default:"public/assets-manifest.json"`
	Minify    bool   `help:"Minify output" default:"true" negatable:""`
	SourceMap bool   `help:"Write linked source maps" default:"true" negatable:""`
	Splitting bool   `help:"Split shared code into chunks" default:"true" negatable:""`
	Target    string `help:"Override the config target (web, webworker, node)" env:"ASSETMODS_TARGET"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := setup(ctx, globals)
	defer shutdown()

	pipeline, err := c.pipeline(globals)
	if err != nil {
		return err
	}

	log.Info().Str("version", globals.Version).Str("entry", c.Entry).Msg("Starting build")

	if err := pipeline.Build(ctx); err != nil {
		return fmt.Errorf("failed to build assets: %w", err)
	}
	return nil
}

func (c *BuildCmd) pipeline(globals *Globals) (*assets.Pipeline, error) {
	proc, err := newProcessor(globals, func(cfg *rules.Config) {
		if c.Target != "" {
			cfg.Target = c.Target
		}
	}, processor.WithModuleFormat(rewrite.FormatESM))
	if err != nil {
		return nil, err
	}

	return assets.New(assets.Config{
		EntryPointGlob: c.Entry,
		OutputDir:      c.OutDir,
		MetafilePath:   c.Metafile,
		ManifestPath:   c.Manifest,
		Minify:         c.Minify,
		SourceMap:      c.SourceMap,
		Splitting:      c.Splitting,
	}, proc), nil
}
