package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	assethttp "github.com/wolfeidau/assetmods/internal/http"
	"golang.org/x/sync/errgroup"
)

// ServeCmd builds, serves the output directory over HTTP and, unless
// disabled, rebuilds on change.
type ServeCmd struct {
	WatchCmd `embed:""`

	Listen      string   `help:"HTTP listen address" default:"127.0.0.1:8080" env:"ASSETMODS_LISTEN"`
	CORSOrigins []string `help:"Allowed CORS origins (empty allows any)" env:"ASSETMODS_CORS_ORIGINS"`
	NoWatch     bool     `help:"Serve the first build without watching for changes"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := setup(ctx, globals)
	defer shutdown()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := c.pipeline(globals)
	if err != nil {
		return err
	}

	rebuild := rebuilder(pipeline)
	rebuild(ctx)

	handler := c.handler(pipeline.Processor().Config().Output.Path)
	srv := assethttp.ConfigureServer(c.Listen, handler)
	srv.BaseContext = func(_ net.Listener) context.Context { return ctx }

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", c.Listen).Str("root", c.OutDir).Str("mount", mountPath(c.OutDir)).Msg("Serving build output")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if !c.NoWatch {
		w, err := newWatcher(c.Dirs, c.Debounce, []string{c.OutDir})
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return w.run(ctx, rebuild)
		})
	}

	return g.Wait()
}

// handler serves OutDir with access logging and CORS. OutDir is mounted at
// its path relative to the working directory, which is where script paths
// from the metafile and the default public path point. Files under the asset
// output path are content hashed and served as immutable.
func (c *ServeCmd) handler(assetDir string) http.Handler {
	static := assethttp.Static(assethttp.StaticConfig{
		Root:            c.OutDir,
		ImmutablePrefix: immutablePrefix(c.OutDir, assetDir),
	})

	mux := http.NewServeMux()
	if mount := mountPath(c.OutDir); mount != "/" {
		mux.Handle(mount, http.StripPrefix(mount, static))
	} else {
		mux.Handle("/", static)
	}

	return assethttp.AccessLog()(assethttp.WithCORS(c.CORSOrigins, mux))
}

// mountPath returns the URL prefix for root, e.g. "/public/" for "public".
// Roots outside the working directory are served at "/".
func mountPath(root string) string {
	rel := filepath.Clean(root)
	if filepath.IsAbs(rel) {
		wd, err := os.Getwd()
		if err != nil {
			return "/"
		}
		if rel, err = filepath.Rel(wd, rel); err != nil {
			return "/"
		}
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "/"
	}
	return "/" + filepath.ToSlash(rel) + "/"
}

// immutablePrefix returns assetDir relative to root, or empty when assetDir is
// not inside root.
func immutablePrefix(root, assetDir string) string {
	rel, err := filepath.Rel(root, assetDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel) + "/"
}
