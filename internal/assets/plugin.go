package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/assetmods/internal/logger"
	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/processor"
)

const (
	pluginName = "asset-modules"
	namespace  = "asset-module"
)

// sourceLoaders are the code files scanned for new URL(..., import.meta.url).
var sourceLoaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".cts": api.LoaderTS,
	".tsx": api.LoaderTSX,
}

// Plugin routes imports that match an asset rule through proc. JS imports
// load a module whose default export is the asset's value; CSS url() tokens
// are replaced with the value directly. new URL() references in code files
// are rewritten for the configured target.
func Plugin(ctx context.Context, proc *processor.Processor) api.Plugin {
	return api.Plugin{
		Name: pluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^(\.{1,2})?/`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					return onResolve(ctx, proc, args)
				})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: namespace},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					return onLoadAsset(ctx, proc, args)
				})

			build.OnLoad(api.OnLoadOptions{Filter: `\.[cm]?[jt]sx?$`, Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					return onLoadSource(ctx, proc, args)
				})
		},
	}
}

func onResolve(ctx context.Context, proc *processor.Processor, args api.OnResolveArgs) (api.OnResolveResult, error) {
	if args.Kind == api.ResolveEntryPoint {
		return api.OnResolveResult{}, nil
	}

	dep := dependencyFor(args.Kind)
	request := absRequest(args.ResolveDir, args.Path)
	if proc.Match(request, dep) == nil {
		return api.OnResolveResult{}, nil
	}

	if dep == module.DependencyCSSURL {
		out, _, err := proc.Resolve(ctx, request, dep)
		if err != nil {
			return api.OnResolveResult{}, err
		}
		if out.Kind == module.OutputSource {
			return api.OnResolveResult{}, fmt.Errorf("%s: asset/source modules cannot be used in url()", args.Path)
		}
		return api.OnResolveResult{Path: out.Value, External: true}, nil
	}

	return api.OnResolveResult{
		Path:       request,
		Namespace:  namespace,
		PluginData: dep,
	}, nil
}

func onLoadAsset(ctx context.Context, proc *processor.Processor, args api.OnLoadArgs) (api.OnLoadResult, error) {
	dep, _ := args.PluginData.(module.Dependency)
	if dep == "" {
		dep = module.DependencyImport
	}

	out, ok, err := proc.Resolve(ctx, args.Path, dep)
	if err != nil {
		return api.OnLoadResult{}, err
	}
	if !ok {
		return api.OnLoadResult{}, fmt.Errorf("%s: %w", args.Path, processor.ErrNotAsset)
	}

	contents := out.ExportCode()
	path, _, _ := module.SplitRequest(args.Path)
	return api.OnLoadResult{
		Contents:   &contents,
		Loader:     api.LoaderJS,
		ResolveDir: filepath.Dir(path),
	}, nil
}

func onLoadSource(ctx context.Context, proc *processor.Processor, args api.OnLoadArgs) (api.OnLoadResult, error) {
	loader, ok := sourceLoaders[filepath.Ext(args.Path)]
	if !ok || strings.Contains(args.Path, string(filepath.Separator)+"node_modules"+string(filepath.Separator)) {
		return api.OnLoadResult{}, nil
	}

	src, err := os.ReadFile(args.Path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	rewritten, refs, err := proc.RewriteReferences(ctx, args.Path, string(src))
	if err != nil {
		return api.OnLoadResult{}, err
	}
	if len(refs) == 0 {
		// let esbuild load the file itself
		return api.OnLoadResult{}, nil
	}

	logger.FromContext(ctx).Debug().
		Str("file", args.Path).
		Int("references", len(refs)).
		Msg("Rewrote asset references")

	return api.OnLoadResult{
		Contents:   &rewritten,
		Loader:     loader,
		ResolveDir: filepath.Dir(args.Path),
	}, nil
}

func dependencyFor(kind api.ResolveKind) module.Dependency {
	switch kind {
	case api.ResolveJSRequireCall, api.ResolveJSRequireResolve:
		return module.DependencyRequire
	case api.ResolveCSSURLToken:
		return module.DependencyCSSURL
	default:
		return module.DependencyImport
	}
}

func absRequest(dir, request string) string {
	path, query, fragment := module.SplitRequest(request)
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return path + query + fragment
}
