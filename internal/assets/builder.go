package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetmods/internal/logger"
	"github.com/wolfeidau/assetmods/internal/rewrite"
)

var (
	ErrNoEntryPoints  = errors.New("no entry points found")
	ErrBuildFailed    = errors.New("esbuild failed with errors")
	ErrNotBuilt       = errors.New("assets not built yet, call Build() first")
	ErrEntryPointGone = errors.New("entrypoint not found in metadata")
)

// Build runs esbuild with the configured settings and loads metadata
func (p *Pipeline) Build(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := logger.FromContext(ctx)

	entryPoints, err := filepath.Glob(p.config.EntryPointGlob)
	if err != nil {
		return err
	}

	if len(entryPoints) == 0 {
		return ErrNoEntryPoints
	}

	log.Info().Strs("entrypoints", entryPoints).Msg("Building assets")

	p.processor.Reset()

	// rewritten new URL() expressions must run in the format esbuild emits
	format := formatFor(p.processor.Rewriter().Format())
	if format != api.FormatESModule && p.config.Splitting {
		log.Warn().Msg("Code splitting needs ESM output, building without it")
	}

	result := api.Build(api.BuildOptions{
		EntryPoints:       entryPoints,
		Bundle:            true,
		Splitting:         p.config.Splitting && format == api.FormatESModule,
		Write:             true,
		JSX:               api.JSXAutomatic,
		Outdir:            p.config.OutputDir,
		Format:            format,
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:          true,
		Platform:          platformFor(p.processor.Config().Target),
		Plugins:           []api.Plugin{Plugin(ctx, p.processor)},
	})

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			ev := log.Error().Str("error", msg.Text)
			if msg.Location != nil {
				ev = ev.Str("file", msg.Location.File).Int("line", msg.Location.Line)
			}
			ev.Msg("Build error")
		}
		return ErrBuildFailed
	}

	for _, file := range result.OutputFiles {
		log.Info().Str("file", file.Path).Msg("Built file")
	}

	if p.config.MetafilePath != "" {
		if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
			return err
		}
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return err
	}
	p.metadata = &metadata

	manifest := p.processor.Manifest()
	if p.config.ManifestPath != "" {
		if err := manifest.Write(p.config.ManifestPath); err != nil {
			return fmt.Errorf("failed to write asset manifest: %w", err)
		}
	}

	counts := manifest.Counts()
	log.Info().
		Int("assets", len(manifest.Assets)).
		Str("build_id", manifest.BuildID).
		Interface("by_kind", counts).
		Msg("Asset modules resolved")

	return nil
}

// LoadScripts returns the ordered list of script paths needed for the given entrypoint
// and the main entrypoint file path
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", ErrNotBuilt
	}

	scripts := []string{}
	visited := make(map[string]bool)

	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint != entryPointPath || !strings.HasSuffix(outputPath, ".js") {
			continue
		}
		entrypoint := "/" + outputPath
		scripts = append(scripts, entrypoint)
		visited[outputPath] = true
		p.addDependencies(info, &scripts, visited)
		return scripts, entrypoint, nil
	}

	return nil, "", ErrEntryPointGone
}

func (p *Pipeline) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.Kind != "" && imp.Kind != "import-statement" {
			continue
		}
		if !visited[imp.Path] {
			visited[imp.Path] = true
			*scripts = append(*scripts, "/"+imp.Path)

			if chunkInfo, exists := p.metadata.Outputs[imp.Path]; exists {
				p.addDependencies(chunkInfo, scripts, visited)
			}
		}
	}
}

func platformFor(target string) api.Platform {
	if rewrite.Target(target) == rewrite.TargetNode {
		return api.PlatformNode
	}
	return api.PlatformBrowser
}

func formatFor(format rewrite.Format) api.Format {
	if format == rewrite.FormatCommonJS {
		return api.FormatCommonJS
	}
	return api.FormatESModule
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
