package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wolfeidau/assetmods/internal/assets"
	"github.com/wolfeidau/assetmods/internal/logger"
)

// WatchCmd runs a build, then rebuilds whenever a file under the watched
// directories changes.
type WatchCmd struct {
	BuildCmd `embed:""`

	Dirs     []string      `help:"Directories to watch" default:"ui" type:"path"`
	Debounce time.Duration `help:"Quiet period before rebuilding" default:"200ms"`
}

func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
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

	w, err := newWatcher(c.Dirs, c.Debounce, []string{c.OutDir})
	if err != nil {
		return err
	}
	log.Info().Strs("dirs", c.Dirs).Msg("Watching for changes")

	return w.run(ctx, rebuild)
}

// rebuilder logs build failures instead of returning them so a broken edit
// does not stop the watch loop.
func rebuilder(pipeline *assets.Pipeline) func(context.Context) {
	return func(ctx context.Context) {
		log := logger.FromContext(ctx)
		started := time.Now()
		if err := pipeline.Build(ctx); err != nil {
			log.Error().Err(err).Msg("Build failed")
			return
		}
		log.Info().Dur("duration", time.Since(started)).Msg("Build complete")
	}
}

type watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	ignore   []string
}

// newWatcher registers every directory below dirs, skipping ignored paths.
func newWatcher(dirs []string, debounce time.Duration, ignore []string) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &watcher{fs: fw, debounce: debounce}
	for _, p := range ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if w.ignored(path) || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return fw.Add(path)
		})
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	return w, nil
}

func (w *watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, ig := range w.ignore {
		if abs == ig || strings.HasPrefix(abs, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// run calls rebuild once per burst of changes until ctx is done.
func (w *watcher) run(ctx context.Context, rebuild func(context.Context)) error {
	defer w.fs.Close()

	log := logger.FromContext(ctx)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}

			// new directories need their own watch
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.fs.Add(event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
				}
			}

			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Change detected")

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			rebuild(ctx)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}
