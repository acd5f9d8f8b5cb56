package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfeidau/assetmods/internal/dataurl"
	"github.com/wolfeidau/assetmods/internal/emitter"
	"github.com/wolfeidau/assetmods/internal/logger"
	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/rules"
	"github.com/wolfeidau/assetmods/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options carries the generator and parser settings that apply to a module.
type Options struct {
	// Filename is the emit template; empty means the resolver default.
	Filename   emitter.FilenameTemplate
	PublicPath *string
	// NoEmit computes the URL of resource modules without writing the file.
	NoEmit    bool
	DataURL   dataurl.Options
	Condition module.DataURLCondition
}

// DefaultOptions inlines below module.DefaultMaxSize and base64 encodes.
func DefaultOptions() Options {
	return Options{Condition: module.DefaultDataURLCondition()}
}

// OptionsFromRule builds Options from a matched rule.
func OptionsFromRule(r *rules.Rule) Options {
	return Options{
		Filename:   emitter.FilenameTemplate(r.Generator.Filename),
		PublicPath: r.Generator.PublicPath,
		NoEmit:     !r.ShouldEmit(),
		DataURL: dataurl.Options{
			Encoding: r.Generator.DataURL.Encoding,
			MimeType: r.Generator.DataURL.MimeType,
			Encode:   r.Generator.DataURL.Encode,
		},
		Condition: r.Condition(),
	}
}

// Resolver classifies asset modules and produces their export value.
type Resolver struct {
	emitter         *emitter.Emitter
	defaultFilename emitter.FilenameTemplate
	metrics         *telemetry.Metrics
	tracer          trace.Tracer
}

// New creates a Resolver that emits resource modules through em.
// defaultFilename is used when a module's Options carry no template.
func New(em *emitter.Emitter, defaultFilename emitter.FilenameTemplate) *Resolver {
	if defaultFilename == "" {
		defaultFilename = emitter.DefaultFilenameTemplate
	}
	return &Resolver{
		emitter:         em,
		defaultFilename: defaultFilename,
		metrics:         telemetry.GetMetrics(),
		tracer:          telemetry.Tracer(),
	}
}

// Resolve dispatches on the module's declared type and returns exactly one
// Output. An unknown type fails with a *module.ConfigurationError.
func (r *Resolver) Resolve(ctx context.Context, mod *module.AssetModule, opts Options) (module.Output, error) {
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "asset.resolve", trace.WithAttributes(
		attribute.String("asset.path", mod.Path),
		attribute.String("asset.type", string(mod.Type)),
		attribute.Int("asset.size", mod.Size()),
	))
	defer span.End()

	ctx = logger.WithModule(ctx, mod.Request())

	out, err := r.dispatch(ctx, mod, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordResolveError(ctx, string(mod.Type))
		return module.Output{}, err
	}

	span.SetAttributes(attribute.String("asset.output", out.Kind.String()))
	r.metrics.RecordResolved(ctx, out.Kind.String(), out.Size, started)

	logger.FromContext(ctx).Debug().
		Str("type", string(out.Type)).
		Str("kind", out.Kind.String()).
		Int("bytes", out.Size).
		Msg("Resolved asset module")

	return out, nil
}

func (r *Resolver) dispatch(ctx context.Context, mod *module.AssetModule, opts Options) (module.Output, error) {
	switch mod.Type {
	case module.TypeResource:
		return r.emit(ctx, mod, opts)
	case module.TypeInline:
		return r.inline(mod, opts)
	case module.TypeSource:
		return module.Output{
			Kind:  module.OutputSource,
			Value: string(mod.Content),
			Type:  module.TypeSource,
			Size:  mod.Size(),
		}, nil
	case module.TypeAsset:
		if opts.Condition.ShouldInline(mod) {
			return r.inline(mod, opts)
		}
		return r.emit(ctx, mod, opts)
	}

	return module.Output{}, module.NewConfigurationError("type", string(mod.Type), "not an asset module type")
}

func (r *Resolver) inline(mod *module.AssetModule, opts Options) (module.Output, error) {
	enc, err := dataurl.New(opts.DataURL)
	if err != nil {
		return module.Output{}, err
	}
	uri, err := enc.Encode(mod.Path, mod.Content)
	if err != nil {
		return module.Output{}, err
	}
	return module.Output{
		Kind:  module.OutputDataURI,
		Value: uri,
		Type:  module.TypeInline,
		Size:  mod.Size(),
	}, nil
}

func (r *Resolver) emit(ctx context.Context, mod *module.AssetModule, opts Options) (module.Output, error) {
	if r.emitter == nil {
		return module.Output{}, module.NewConfigurationError("output.path", "", "resource modules need an emitter")
	}

	tmpl := opts.Filename
	if tmpl == "" {
		tmpl = r.defaultFilename
	}

	emitted, err := r.emitter.Emit(ctx, emitter.Request{
		Path:       mod.Path,
		Query:      mod.Query,
		Fragment:   mod.Fragment,
		Content:    mod.Content,
		Template:   tmpl,
		PublicPath: opts.PublicPath,
		SkipWrite:  opts.NoEmit,
	})
	if err != nil {
		return module.Output{}, fmt.Errorf("failed to emit %s: %w", mod.Path, err)
	}

	return module.Output{
		Kind:     module.OutputURL,
		Value:    emitted.URL,
		Filename: emitted.Filename,
		Type:     module.TypeResource,
		Size:     mod.Size(),
	}, nil
}
