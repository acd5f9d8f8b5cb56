package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/processor"
	"github.com/wolfeidau/assetmods/internal/rules"
)

// EmitCmd resolves asset files directly, without bundling, and writes a
// manifest of their export values.
type EmitCmd struct {
	Paths       []string `arg:"" optional:"" help:"Files or directories to process (default: the config context)" type:"path"`
	OutDir      string   `help:"Override output.path from the config" env:"ASSETMODS_ASSET_DIR"`
	PublicPath  string   `help:"Override output.publicPath from the config"`
	Manifest    string   `help:"Manifest path (default: <output.path>/assets-manifest.json)"`
	Concurrency int      `help:"Maximum modules resolved at once (0 = GOMAXPROCS)" default:"0"`
}

func (c *EmitCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := setup(ctx, globals)
	defer shutdown()

	proc, err := newProcessor(globals, c.apply, processor.WithConcurrency(c.Concurrency))
	if err != nil {
		return err
	}

	files, err := collect(proc, c.Paths)
	if err != nil {
		return err
	}

	log.Info().Int("files", len(files)).Str("output", proc.Config().Output.Path).Msg("Resolving asset modules")

	manifest, err := proc.ProcessFiles(ctx, files)
	if err != nil {
		return fmt.Errorf("failed to resolve assets: %w", err)
	}

	manifestPath := c.Manifest
	if manifestPath == "" {
		manifestPath = filepath.Join(proc.Config().Output.Path, processor.DefaultManifestFile)
	}
	if err := manifest.Write(manifestPath); err != nil {
		return err
	}

	counts := manifest.Counts()
	log.Info().
		Str("manifest", manifestPath).
		Int(module.OutputURL.String(), counts[module.OutputURL]).
		Int(module.OutputDataURI.String(), counts[module.OutputDataURI]).
		Int(module.OutputSource.String(), counts[module.OutputSource]).
		Msg("Asset modules resolved")

	return nil
}

func (c *EmitCmd) apply(cfg *rules.Config) {
	if c.OutDir != "" {
		cfg.Output.Path = c.OutDir
	}
	if c.PublicPath != "" {
		cfg.Output.PublicPath = c.PublicPath
	}
}

// collect expands directories into the asset files they contain. Files named
// explicitly are kept even when they match no rule so the processor can
// report them as skipped.
func collect(proc *processor.Processor, paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{proc.Config().Context}
	}

	var files []string
	for _, p := range paths {
		if !isDir(p) {
			files = append(files, p)
			continue
		}
		found, err := proc.Discover(p)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}
