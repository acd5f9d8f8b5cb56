package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/processor"
)

// ClassifyCmd prints the handling each file would receive.
type ClassifyCmd struct {
	Paths      []string `arg:"" optional:"" help:"Files or directories to classify (default: the config context)" type:"path"`
	Dependency string   `help:"Dependency kind to classify for (import, require, url, css-url)" default:"import" enum:"import,require,url,css-url"`

	out io.Writer
}

func (c *ClassifyCmd) Run(ctx context.Context, globals *Globals) error {
	_, _, shutdown := setup(ctx, globals)
	defer shutdown()

	proc, err := newProcessor(globals, nil)
	if err != nil {
		return err
	}

	files, err := collect(proc, c.Paths)
	if err != nil {
		return err
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tTYPE\tSIZE\tRESULT")
	for _, f := range files {
		typ, size, result, err := classify(proc, f, module.Dependency(c.Dependency))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f, typ, size, result)
	}
	return w.Flush()
}

// classify decides the output kind for a file without resolving it.
func classify(proc *processor.Processor, request string, dep module.Dependency) (module.Type, int, string, error) {
	path, query, _ := module.SplitRequest(request)
	rule := proc.Config().Match(path, query, dep)
	if rule == nil {
		return "-", 0, "not an asset", nil
	}
	if !rule.Type.IsAsset() {
		return rule.Type, 0, "code", nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, "", err
	}
	size := int(info.Size())

	switch rule.Type {
	case module.TypeResource:
		return rule.Type, size, module.OutputURL.String(), nil
	case module.TypeInline:
		return rule.Type, size, module.OutputDataURI.String(), nil
	case module.TypeSource:
		return rule.Type, size, module.OutputSource.String(), nil
	}

	// the predicate may inspect content, so give it the real module
	content, err := os.ReadFile(path)
	if err != nil {
		return "", 0, "", err
	}
	if rule.Condition().ShouldInline(module.New(request, content, rule.Type)) {
		return rule.Type, size, module.OutputDataURI.String(), nil
	}
	return rule.Type, size, module.OutputURL.String(), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
