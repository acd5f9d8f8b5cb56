package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/assetmods/internal/rules"
)

// RewriteCmd rewrites new URL("./asset", import.meta.url) expressions in a
// single source file, emitting referenced assets as a side effect.
type RewriteCmd struct {
	File   string `arg:"" help:"JavaScript or TypeScript file to rewrite" type:"existingfile"`
	Target string `help:"Override the config target (web, webworker, node)" env:"ASSETMODS_TARGET"`
	Output string `short:"o" help:"Write the result here instead of stdout" type:"path"`

	out io.Writer
}

func (c *RewriteCmd) Run(ctx context.Context, globals *Globals) error {
	ctx, log, shutdown := setup(ctx, globals)
	defer shutdown()

	proc, err := newProcessor(globals, func(cfg *rules.Config) {
		if c.Target != "" {
			cfg.Target = c.Target
		}
	})
	if err != nil {
		return err
	}

	src, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	rewritten, refs, err := proc.RewriteReferences(ctx, c.File, string(src))
	if err != nil {
		return err
	}

	for _, ref := range refs {
		log.Debug().
			Str("request", ref.Request).
			Str("kind", ref.Output.Kind.String()).
			Msg("Rewrote reference")
	}

	if c.Output != "" {
		return os.WriteFile(c.Output, []byte(rewritten), 0644)
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	_, err = io.WriteString(out, rewritten)
	return err
}
