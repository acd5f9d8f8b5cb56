package rules

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/wolfeidau/assetmods/internal/dataurl"
	"github.com/wolfeidau/assetmods/internal/emitter"
	"github.com/wolfeidau/assetmods/internal/module"
	"gopkg.in/yaml.v3"
)

// Rule selects files and declares how they are handled.
type Rule struct {
	// Test is a regular expression matched against the slash-separated path.
	Test string `yaml:"test"`
	// Include and Exclude are globs relative to the config context.
	Include StringList `yaml:"include"`
	Exclude StringList `yaml:"exclude"`
	// ResourceQuery is matched against the query including its "?".
	ResourceQuery string              `yaml:"resourceQuery"`
	Type          module.Type         `yaml:"type"`
	Dependency    DependencyCondition `yaml:"dependency"`
	Generator     Generator           `yaml:"generator"`
	Parser        Parser              `yaml:"parser"`

	test          *regexp.Regexp
	resourceQuery *regexp.Regexp
}

type DependencyCondition struct {
	Not []module.Dependency `yaml:"not"`
}

type Generator struct {
	Filename   string         `yaml:"filename"`
	PublicPath *string        `yaml:"publicPath"`
	Emit       *bool          `yaml:"emit"`
	DataURL    DataURLOptions `yaml:"dataUrl"`
}

type DataURLOptions struct {
	Encoding string `yaml:"encoding"`
	MimeType string `yaml:"mimetype"`
	// Encode can only be set from Go.
	Encode dataurl.EncodeFunc `yaml:"-"`
}

type Parser struct {
	DataURLCondition DataURLCondition `yaml:"dataUrlCondition"`
}

type DataURLCondition struct {
	MaxSize *int `yaml:"maxSize"`
	// Predicate can only be set from Go and takes precedence over MaxSize.
	Predicate module.Predicate `yaml:"-"`
}

// StringList accepts either a single YAML string or a sequence of strings.
type StringList []string

func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*s = StringList{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*s = list
	return nil
}

func (r *Rule) compile(field string) error {
	if r.Type == "" {
		return module.NewConfigurationError(field+".type", "", "is required")
	}
	if _, err := module.ParseType(string(r.Type)); err != nil {
		return module.NewConfigurationError(field+".type", string(r.Type), "must be one of asset, asset/resource, asset/inline, asset/source, javascript/auto")
	}

	if r.Test != "" {
		re, err := regexp.Compile(r.Test)
		if err != nil {
			return module.NewConfigurationError(field+".test", r.Test, err.Error())
		}
		r.test = re
	}
	if r.ResourceQuery != "" {
		re, err := regexp.Compile(r.ResourceQuery)
		if err != nil {
			return module.NewConfigurationError(field+".resourceQuery", r.ResourceQuery, err.Error())
		}
		r.resourceQuery = re
	}

	if err := validateGlobs(field+".include", r.Include); err != nil {
		return err
	}
	if err := validateGlobs(field+".exclude", r.Exclude); err != nil {
		return err
	}

	for _, d := range r.Dependency.Not {
		if _, err := module.ParseDependency(string(d)); err != nil {
			return module.NewConfigurationError(field+".dependency.not", string(d), "must be one of import, require, url, css-url")
		}
	}

	if r.Generator.Filename != "" {
		if err := emitter.FilenameTemplate(r.Generator.Filename).Validate(); err != nil {
			return fmt.Errorf("%s.generator: %w", field, err)
		}
	}
	if _, err := dataurl.New(dataurl.Options{Encoding: r.Generator.DataURL.Encoding}); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if ms := r.Parser.DataURLCondition.MaxSize; ms != nil && *ms < 0 {
		return module.NewConfigurationError(field+".parser.dataUrlCondition.maxSize", fmt.Sprint(*ms), "must not be negative")
	}

	return nil
}

func validateGlobs(field string, globs []string) error {
	for _, g := range globs {
		if !doublestar.ValidatePattern(g) {
			return module.NewConfigurationError(field, g, "invalid glob pattern")
		}
	}
	return nil
}

// Matches reports whether the rule applies. path is the request path as
// given, rel is the same path relative to the config context.
func (r *Rule) Matches(path, rel, query string, dep module.Dependency) bool {
	if r.test != nil && !r.test.MatchString(filepath.ToSlash(path)) {
		return false
	}
	if r.resourceQuery != nil && !r.resourceQuery.MatchString(query) {
		return false
	}
	if len(r.Include) > 0 && !matchAny(r.Include, rel) {
		return false
	}
	if len(r.Exclude) > 0 && matchAny(r.Exclude, rel) {
		return false
	}
	if dep != "" && slices.Contains(r.Dependency.Not, dep) {
		return false
	}
	return true
}

// Condition returns the auto-selection policy for asset rules.
func (r *Rule) Condition() module.DataURLCondition {
	c := module.DefaultDataURLCondition()
	if r.Parser.DataURLCondition.MaxSize != nil {
		c.MaxSize = *r.Parser.DataURLCondition.MaxSize
	}
	c.Predicate = r.Parser.DataURLCondition.Predicate
	return c
}

// ShouldEmit is false only when the generator explicitly disables emission.
func (r *Rule) ShouldEmit() bool {
	return r.Generator.Emit == nil || *r.Generator.Emit
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func relativeTo(base, path string) string {
	if base == "" {
		base = "."
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return filepath.ToSlash(path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
