package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetmods/internal/logger"
	"github.com/wolfeidau/assetmods/internal/processor"
	"github.com/wolfeidau/assetmods/internal/rules"
	"github.com/wolfeidau/assetmods/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Tracing bool
	Config  string
	Version string
}

// loadConfig reads the config file, falling back to the defaults when the
// file does not exist.
func loadConfig(path string) (*rules.Config, error) {
	if path == "" {
		return rules.DefaultConfig(), nil
	}
	cfg, err := rules.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return rules.DefaultConfig(), nil
	}
	return cfg, err
}

// setup configures logging and, when enabled, telemetry. The returned
// function flushes telemetry and must be deferred.
func setup(ctx context.Context, globals *Globals) (context.Context, zerolog.Logger, func()) {
	log := logger.Setup(globals.Debug)
	ctx = log.WithContext(ctx)

	if !globals.Tracing {
		return ctx, log, func() {}
	}

	log.Info().Msg("Tracing is enabled")
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "assetmods",
		Version:     globals.Version,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return ctx, log, func() {}
	}

	return ctx, log, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

// newProcessor loads the config and applies command level overrides.
func newProcessor(globals *Globals, overrides func(*rules.Config), opts ...processor.Option) (*processor.Processor, error) {
	cfg, err := loadConfig(globals.Config)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(cfg)
	}
	proc, err := processor.New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure asset modules: %w", err)
	}
	return proc, nil
}
