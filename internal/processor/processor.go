package processor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetmods/internal/emitter"
	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/resolver"
	"github.com/wolfeidau/assetmods/internal/rewrite"
	"github.com/wolfeidau/assetmods/internal/rules"
	"github.com/wolfeidau/assetmods/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCacheSize = 1024
)

// ErrNotAsset indicates no asset rule applies to a request.
var ErrNotAsset = errors.New("not an asset module")

// Processor resolves asset modules according to a rules.Config. Modules are
// independent, so batches are resolved concurrently.
type Processor struct {
	cfg         *rules.Config
	emitter     *emitter.Emitter
	resolver    *resolver.Resolver
	rewriter    *rewrite.Rewriter
	cache       *lru.Cache[string, module.Output]
	concurrency int
	format      rewrite.Format
	metrics     *telemetry.Metrics

	mu      sync.Mutex
	outputs map[string]module.Output
}

// Option configures a Processor.
type Option func(*Processor)

// WithConcurrency bounds how many modules ProcessFiles resolves at once.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithModuleFormat sets the module format that rewritten references are
// emitted into. It decides the URL base used for the node target.
func WithModuleFormat(format rewrite.Format) Option {
	return func(p *Processor) {
		p.format = format
	}
}

// New validates cfg and builds the emitter, resolver and rewriter it describes.
func New(cfg *rules.Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	em, err := emitter.New(cfg.EmitterConfig())
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[string, module.Output](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create output cache: %w", err)
	}

	p := &Processor{
		cfg:         cfg,
		emitter:     em,
		resolver:    resolver.New(em, emitter.FilenameTemplate(cfg.Output.AssetModuleFilename)),
		cache:       cache,
		concurrency: runtime.GOMAXPROCS(0),
		format:      rewrite.FormatCommonJS,
		metrics:     telemetry.GetMetrics(),
		outputs:     make(map[string]module.Output),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.rewriter, err = rewrite.New(cfg.Target, rewrite.WithFormat(p.format))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Config returns the validated configuration.
func (p *Processor) Config() *rules.Config {
	return p.cfg
}

// Rewriter returns the reference rewriter for the configured target.
func (p *Processor) Rewriter() *rewrite.Rewriter {
	return p.rewriter
}

// Match returns the asset rule for a request, or nil when the request is not
// an asset module (no rule, or a javascript/auto rule).
func (p *Processor) Match(request string, dep module.Dependency) *rules.Rule {
	path, query, _ := module.SplitRequest(request)
	r := p.cfg.Match(path, query, dep)
	if r == nil || !r.Type.IsAsset() {
		return nil
	}
	return r
}

// Resolve reads the file named by request (which may carry a query and
// fragment) and resolves it. ok is false when no asset rule applies.
func (p *Processor) Resolve(ctx context.Context, request string, dep module.Dependency) (out module.Output, ok bool, err error) {
	path, query, _ := module.SplitRequest(request)

	idx, rule := p.cfg.MatchIndex(path, query, dep)
	if rule == nil || !rule.Type.IsAsset() {
		return module.Output{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return module.Output{}, false, fmt.Errorf("failed to read asset: %w", err)
	}

	mod := module.New(request, content, rule.Type)
	mod.Dependency = dep

	out, err = p.resolveCached(ctx, mod, idx, rule)
	if err != nil {
		return module.Output{}, false, err
	}

	p.mu.Lock()
	p.outputs[p.manifestKey(mod)] = out
	p.mu.Unlock()

	return out, true, nil
}

func (p *Processor) resolveCached(ctx context.Context, mod *module.AssetModule, ruleIndex int, rule *rules.Rule) (module.Output, error) {
	key := mod.Request() + "\x00" + strconv.Itoa(ruleIndex) + "\x00" + p.emitter.Hash(mod.Content)

	// Predicates are opaque so their decisions are not cached.
	cacheable := rule.Parser.DataURLCondition.Predicate == nil && rule.Generator.DataURL.Encode == nil

	if cacheable {
		// an emitted file may have been removed since it was cached
		if out, ok := p.cache.Get(key); ok && p.emitted(out, rule) {
			p.metrics.CacheHitsTotal.Add(ctx, 1)
			return out, nil
		}
		p.metrics.CacheMissesTotal.Add(ctx, 1)
	}

	out, err := p.resolver.Resolve(ctx, mod, resolver.OptionsFromRule(rule))
	if err != nil {
		return module.Output{}, err
	}

	if cacheable {
		p.cache.Add(key, out)
	}
	return out, nil
}

// emitted reports whether the file behind a cached output is still on disk.
// Outputs that never write a file always count as emitted.
func (p *Processor) emitted(out module.Output, rule *rules.Rule) bool {
	if out.Kind != module.OutputURL || !rule.ShouldEmit() || out.Filename == "" {
		return true
	}
	return p.emitter.Exists(out.Filename)
}

// ProcessFiles resolves every request with dependency kind import and
// returns a manifest of the results. Requests that match no asset rule are
// skipped.
func (p *Processor) ProcessFiles(ctx context.Context, requests []string) (*Manifest, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, req := range requests {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, ok, err := p.Resolve(ctx, req, module.DependencyImport)
			if err != nil {
				return fmt.Errorf("%s: %w", req, err)
			}
			if !ok {
				log.Debug().Str("request", req).Msg("Skipping non-asset file")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p.Manifest(), nil
}

// Discover walks root and returns the files that match an asset rule, in
// lexical order.
func (p *Processor) Discover(root string) ([]string, error) {
	var files []string
	outDir, _ := filepath.Abs(p.cfg.Output.Path)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if abs, _ := filepath.Abs(path); abs == outDir || (path != root && d.Name()[0] == '.') || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if p.Match(path, module.DependencyImport) != nil {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Manifest snapshots every output resolved so far.
func (p *Processor) Manifest() *Manifest {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := newManifest(p.cfg)
	for k, v := range p.outputs {
		m.Assets[k] = v
	}
	return m
}

// Reset forgets resolved outputs so the next manifest only holds what is
// resolved afterwards, and starts a new emit generation so rewriting a file
// from the previous build is not reported as a collision. The output cache
// is kept.
func (p *Processor) Reset() {
	p.mu.Lock()
	p.outputs = make(map[string]module.Output)
	p.mu.Unlock()

	p.emitter.Reset()
}

func (p *Processor) manifestKey(mod *module.AssetModule) string {
	return p.cfg.Rel(mod.Path) + mod.Query + mod.Fragment
}

// RewriteReferences rewrites the new URL("./asset", import.meta.url)
// expressions in src, the contents of the code file at path. Relative
// requests that match an asset rule for the url dependency are resolved;
// anything else is left as written.
func (p *Processor) RewriteReferences(ctx context.Context, path, src string) (string, []rewrite.Reference, error) {
	dir := filepath.Dir(path)
	out, refs, err := p.rewriter.Rewrite(src, func(request string) (module.Output, bool, error) {
		if !strings.HasPrefix(request, "./") && !strings.HasPrefix(request, "../") {
			return module.Output{}, false, nil
		}
		return p.Resolve(ctx, filepath.Join(dir, request), module.DependencyURL)
	})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(refs) > 0 {
		p.metrics.ReferencesRewrittenTotal.Add(ctx, int64(len(refs)))
	}
	return out, refs, nil
}
