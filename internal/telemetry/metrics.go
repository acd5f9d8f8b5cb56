package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/assetmods"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Resolution metrics
	ModulesResolvedTotal metric.Int64Counter
	ResolveErrorsTotal   metric.Int64Counter
	ResolveDuration      metric.Float64Histogram

	// Output metrics
	BytesEmittedTotal metric.Int64Counter
	BytesInlinedTotal metric.Int64Counter

	// Cache metrics
	CacheHitsTotal   metric.Int64Counter
	CacheMissesTotal metric.Int64Counter

	// Rewrite metrics
	ReferencesRewrittenTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ModulesResolvedTotal, _ = meter.Int64Counter(
		"assetmods.modules.resolved.total",
		metric.WithDescription("Total number of asset modules resolved, by output kind"),
		metric.WithUnit("{module}"),
	)

	m.ResolveErrorsTotal, _ = meter.Int64Counter(
		"assetmods.modules.resolve.errors.total",
		metric.WithDescription("Total number of asset modules that failed to resolve"),
		metric.WithUnit("{error}"),
	)

	m.ResolveDuration, _ = meter.Float64Histogram(
		"assetmods.modules.resolve.duration",
		metric.WithDescription("Duration of asset module resolution"),
		metric.WithUnit("ms"),
	)

	m.BytesEmittedTotal, _ = meter.Int64Counter(
		"assetmods.bytes.emitted.total",
		metric.WithDescription("Total bytes written as separate asset files"),
		metric.WithUnit("By"),
	)

	m.BytesInlinedTotal, _ = meter.Int64Counter(
		"assetmods.bytes.inlined.total",
		metric.WithDescription("Total asset bytes encoded into data URIs"),
		metric.WithUnit("By"),
	)

	m.CacheHitsTotal, _ = meter.Int64Counter(
		"assetmods.cache.hits.total",
		metric.WithDescription("Total number of resolved outputs served from cache"),
		metric.WithUnit("{hit}"),
	)

	m.CacheMissesTotal, _ = meter.Int64Counter(
		"assetmods.cache.misses.total",
		metric.WithDescription("Total number of resolved outputs not found in cache"),
		metric.WithUnit("{miss}"),
	)

	m.ReferencesRewrittenTotal, _ = meter.Int64Counter(
		"assetmods.references.rewritten.total",
		metric.WithDescription("Total number of new URL() references rewritten"),
		metric.WithUnit("{reference}"),
	)

	return m
}

// RecordResolved records a successful resolution of the given output kind.
func (m *Metrics) RecordResolved(ctx context.Context, kind string, size int, started time.Time) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.ModulesResolvedTotal.Add(ctx, 1, attrs)
	m.ResolveDuration.Record(ctx, float64(time.Since(started).Microseconds())/1000.0, attrs)

	switch kind {
	case "url":
		m.BytesEmittedTotal.Add(ctx, int64(size))
	case "data-uri":
		m.BytesInlinedTotal.Add(ctx, int64(size))
	}
}

// RecordResolveError records a failed resolution.
func (m *Metrics) RecordResolveError(ctx context.Context, moduleType string) {
	m.ResolveErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("type", moduleType)))
}
