package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Type is the declared module type of a rule or module.
type Type string

const (
	// TypeAsset picks between resource and inline based on a DataURLCondition.
	TypeAsset Type = "asset"
	// TypeResource emits a separate file and exports its URL.
	TypeResource Type = "asset/resource"
	// TypeInline exports the content as a data URI.
	TypeInline Type = "asset/inline"
	// TypeSource exports the raw content as a string.
	TypeSource Type = "asset/source"
	// TypeJavaScriptAuto marks a file as ordinary code rather than an asset.
	TypeJavaScriptAuto Type = "javascript/auto"
)

// ParseType validates a declared module type.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeAsset, TypeResource, TypeInline, TypeSource, TypeJavaScriptAuto:
		return t, nil
	}
	return "", NewConfigurationError("type", s, "must be one of asset, asset/resource, asset/inline, asset/source, javascript/auto")
}

// IsAsset reports whether the type is one of the four asset module types.
func (t Type) IsAsset() bool {
	switch t {
	case TypeAsset, TypeResource, TypeInline, TypeSource:
		return true
	}
	return false
}

// Dependency is the kind of reference through which a module was requested.
type Dependency string

const (
	DependencyImport  Dependency = "import"
	DependencyRequire Dependency = "require"
	// DependencyURL is a new URL("./file", import.meta.url) expression.
	DependencyURL Dependency = "url"
	// DependencyCSSURL is a url() token inside a stylesheet.
	DependencyCSSURL Dependency = "css-url"
)

// ParseDependency validates a dependency kind name.
func ParseDependency(s string) (Dependency, error) {
	switch d := Dependency(s); d {
	case DependencyImport, DependencyRequire, DependencyURL, DependencyCSSURL:
		return d, nil
	}
	return "", NewConfigurationError("dependency", s, "must be one of import, require, url, css-url")
}

// AssetModule is a non-code file requested by the bundle. It must not be
// modified once Content has been read.
type AssetModule struct {
	// Path is the source file path, without query or fragment.
	Path string
	// Query includes the leading "?" when present.
	Query string
	// Fragment includes the leading "#" when present.
	Fragment   string
	Content    []byte
	Type       Type
	Dependency Dependency
}

// New creates an AssetModule from a request that may carry a query string and
// fragment, e.g. "./logo.svg?raw#icon".
func New(request string, content []byte, typ Type) *AssetModule {
	path, query, fragment := SplitRequest(request)
	return &AssetModule{
		Path:       path,
		Query:      query,
		Fragment:   fragment,
		Content:    content,
		Type:       typ,
		Dependency: DependencyImport,
	}
}

// Size is the content length in bytes.
func (m *AssetModule) Size() int {
	return len(m.Content)
}

// Ext returns the file extension including the leading dot.
func (m *AssetModule) Ext() string {
	return filepath.Ext(m.Path)
}

// Request reassembles the original request string.
func (m *AssetModule) Request() string {
	return m.Path + m.Query + m.Fragment
}

// SplitRequest separates a request into path, query and fragment. The query
// and fragment keep their leading "?" and "#".
func SplitRequest(request string) (path, query, fragment string) {
	path = request
	if i := strings.IndexByte(path, '#'); i >= 0 {
		path, fragment = path[:i], path[i:]
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, query = path[:i], path[i:]
	}
	return path, query, fragment
}

// OutputKind identifies which of the three export forms a module produced.
type OutputKind int

const (
	OutputURL OutputKind = iota + 1
	OutputDataURI
	OutputSource
)

func (k OutputKind) String() string {
	switch k {
	case OutputURL:
		return "url"
	case OutputDataURI:
		return "data-uri"
	case OutputSource:
		return "source"
	default:
		return "unknown"
	}
}

func (k OutputKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutputKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "url":
		*k = OutputURL
	case "data-uri":
		*k = OutputDataURI
	case "source":
		*k = OutputSource
	default:
		return fmt.Errorf("unknown output kind %q", text)
	}
	return nil
}

// Output is the export value bound to the importing module.
type Output struct {
	Kind  OutputKind `json:"kind"`
	Value string     `json:"value"`
	// Filename is set for OutputURL when a file was (or would have been) emitted.
	Filename string `json:"filename,omitempty"`
	// Type is the module type that produced this output, after auto selection.
	Type Type `json:"type"`
	Size int  `json:"size"`
}

// ExportCode renders the output as an ES module with a single default export.
func (o Output) ExportCode() string {
	return "export default " + quoteJS(o.Value) + ";\n"
}

// quoteJS produces a JavaScript string literal. JSON string syntax is a
// subset of JS, apart from U+2028/U+2029 which encoding/json already escapes.
func quoteJS(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
