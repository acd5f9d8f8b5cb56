package rewrite

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/wolfeidau/assetmods/internal/module"
)

// Target is the deployment environment the bundle runs in.
type Target string

const (
	TargetWeb       Target = "web"
	TargetWebWorker Target = "webworker"
	TargetNode      Target = "node"
)

// Format is the module format of the code the rewritten expressions end up
// in. It only changes the node target, whose base needs either CommonJS
// globals or import.meta.
type Format string

const (
	FormatCommonJS Format = "cjs"
	FormatESM      Format = "esm"
)

// ErrSourceReference indicates an asset/source module was referenced through
// new URL(), which needs a URL or data URI.
var ErrSourceReference = errors.New("asset/source module cannot be referenced with new URL()")

// ParseTarget validates a target name.
func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetWeb, TargetWebWorker, TargetNode:
		return t, nil
	}
	return "", module.NewConfigurationError("target", s, "must be web, webworker or node")
}

// baseExpr is the runtime expression each target uses as the URL base.
func (t Target) baseExpr(format Format) string {
	switch t {
	case TargetWebWorker:
		return "self.location.href"
	case TargetNode:
		if format == FormatESM {
			return "import.meta.url"
		}
		return `require("url").pathToFileURL(__filename)`
	default:
		return "document.baseURI || self.location.href"
	}
}

// urlPattern matches new URL(<string literal>, import.meta.url) with double,
// single or backtick quotes. Template literals with substitutions are left
// alone since their value is only known at runtime.
var urlPattern = regexp.MustCompile(
	`new\s+URL\(\s*(?:"((?:[^"\\\n]|\\.)*)"|'((?:[^'\\\n]|\\.)*)'|` + "`([^`$\\\\]*)`" + `)\s*,\s*import\.meta\.url\s*\)`,
)

// Reference records one rewritten expression.
type Reference struct {
	Request     string
	Start       int
	End         int
	Output      module.Output
	Replacement string
}

// ResolveFunc resolves the request of a new URL() expression. Returning false
// leaves the expression untouched.
type ResolveFunc func(request string) (module.Output, bool, error)

// Rewriter replaces asset references built from import.meta.url with
// expressions that resolve the asset's public path for one target.
type Rewriter struct {
	target Target
	format Format
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithFormat sets the module format of the output, FormatCommonJS by default.
func WithFormat(format Format) Option {
	return func(r *Rewriter) {
		r.format = format
	}
}

func New(target string, opts ...Option) (*Rewriter, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	r := &Rewriter{target: t, format: FormatCommonJS}
	for _, opt := range opts {
		opt(r)
	}
	switch r.format {
	case FormatCommonJS, FormatESM:
	default:
		return nil, module.NewConfigurationError("format", string(r.format), "must be cjs or esm")
	}
	return r, nil
}

func (r *Rewriter) Target() Target {
	return r.target
}

func (r *Rewriter) Format() Format {
	return r.format
}

// Expression renders the runtime expression for a resolved asset.
func (r *Rewriter) Expression(out module.Output) (string, error) {
	switch out.Kind {
	case module.OutputURL:
		return fmt.Sprintf("new URL(%s, %s)", jsString(out.Value), r.target.baseExpr(r.format)), nil
	case module.OutputDataURI:
		return fmt.Sprintf("new URL(%s)", jsString(out.Value)), nil
	case module.OutputSource:
		return "", ErrSourceReference
	}
	return "", fmt.Errorf("unknown output kind %d", out.Kind)
}

// Rewrite returns source with every resolvable new URL(..., import.meta.url)
// replaced, plus the references that were rewritten in source order.
func (r *Rewriter) Rewrite(source string, resolve ResolveFunc) (string, []Reference, error) {
	if !strings.Contains(source, "import.meta.url") {
		return source, nil, nil
	}

	matches := urlPattern.FindAllStringSubmatchIndex(source, -1)
	if len(matches) == 0 {
		return source, nil, nil
	}

	var (
		sb   strings.Builder
		refs []Reference
		last int
	)
	sb.Grow(len(source))

	for _, m := range matches {
		request := ""
		for g := 1; g <= 3; g++ {
			if m[2*g] >= 0 {
				request = unescape(source[m[2*g]:m[2*g+1]])
				break
			}
		}

		out, ok, err := resolve(request)
		if err != nil {
			return "", nil, fmt.Errorf("failed to resolve %q: %w", request, err)
		}
		if !ok {
			continue
		}

		expr, err := r.Expression(out)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", request, err)
		}

		sb.WriteString(source[last:m[0]])
		sb.WriteString(expr)
		last = m[1]

		refs = append(refs, Reference{
			Request:     request,
			Start:       m[0],
			End:         m[1],
			Output:      out,
			Replacement: expr,
		})
	}

	if len(refs) == 0 {
		return source, nil, nil
	}

	sb.WriteString(source[last:])
	return sb.String(), refs, nil
}

var unescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`, `\'`, `'`, "\\`", "`")

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return unescaper.Replace(s)
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\u2028", `\u2028`, "\u2029", `\u2029`)

func jsString(s string) string {
	return `"` + escaper.Replace(s) + `"`
}
