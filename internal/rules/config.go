package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/assetmods/internal/emitter"
	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/rewrite"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no config
// path is given.
const DefaultConfigFile = "assetmods.yaml"

// Config is the asset module configuration, loaded from YAML.
type Config struct {
	// Target selects the runtime base used for new URL() references.
	Target string `yaml:"target"`
	// Context is the directory [path] and include/exclude globs are relative to.
	Context string       `yaml:"context"`
	Output  OutputConfig `yaml:"output"`
	Module  ModuleConfig `yaml:"module"`
}

type OutputConfig struct {
	Path                string   `yaml:"path"`
	PublicPath          string   `yaml:"publicPath"`
	AssetModuleFilename string   `yaml:"assetModuleFilename"`
	HashFunction        string   `yaml:"hashFunction"`
	HashDigest          string   `yaml:"hashDigest"`
	HashDigestLength    int      `yaml:"hashDigestLength"`
	Precompress         []string `yaml:"precompress"`
}

type ModuleConfig struct {
	Rules []*Rule `yaml:"rules"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Target:  string(rewrite.TargetWeb),
		Context: ".",
		Output: OutputConfig{
			Path:                "public/assets",
			PublicPath:          "/public/assets/",
			AssetModuleFilename: string(emitter.DefaultFilenameTemplate),
			HashFunction:        emitter.HashBlake3,
			HashDigest:          emitter.DigestHex,
			HashDigestLength:    emitter.DefaultHashDigestLength,
		},
		Module: ModuleConfig{
			Rules: []*Rule{
				{
					ResourceQuery: `^\?raw$`,
					Type:          module.TypeSource,
				},
				{
					Test: `\.(png|jpe?g|gif|webp|avif|ico|bmp)$`,
					Type: module.TypeAsset,
				},
				{
					Test: `\.svg$`,
					Type: module.TypeInline,
				},
				{
					Test: `\.(woff2?|ttf|otf|eot|mp3|mp4|webm|wav|ogg|wasm)$`,
					Type: module.TypeResource,
				},
				{
					Test: `\.(txt|md|glsl|frag|vert)$`,
					Type: module.TypeSource,
				},
			},
		},
	}
}

// Load reads and validates the YAML config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults for target and output, then validates.
// Rules are taken verbatim from the document when it defines any.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	defaultRules := cfg.Module.Rules
	cfg.Module.Rules = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if len(cfg.Module.Rules) == 0 {
		cfg.Module.Rules = defaultRules
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and compiles rule patterns. It must be called
// before Match on a Config built in code.
func (c *Config) Validate() error {
	if _, err := rewrite.ParseTarget(c.Target); err != nil {
		return err
	}
	if _, err := emitter.NewHasher(c.Output.HashFunction, c.Output.HashDigest); err != nil {
		return err
	}
	if c.Output.HashDigestLength < 0 {
		return module.NewConfigurationError("output.hashDigestLength", fmt.Sprint(c.Output.HashDigestLength), "must not be negative")
	}
	if err := emitter.FilenameTemplate(c.Output.AssetModuleFilename).Validate(); err != nil {
		return err
	}
	for _, enc := range c.Output.Precompress {
		if enc != emitter.PrecompressZstd && enc != emitter.PrecompressGzip {
			return module.NewConfigurationError("output.precompress", enc, "must be zstd or gzip")
		}
	}

	for i, r := range c.Module.Rules {
		if r == nil {
			return module.NewConfigurationError(fmt.Sprintf("module.rules[%d]", i), "", "rule is empty")
		}
		if err := r.compile(fmt.Sprintf("module.rules[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// EmitterConfig maps the output section onto emitter settings.
func (c *Config) EmitterConfig() emitter.Config {
	return emitter.Config{
		OutputDir:        c.Output.Path,
		ContextDir:       c.Context,
		PublicPath:       c.Output.PublicPath,
		HashFunction:     c.Output.HashFunction,
		HashDigest:       c.Output.HashDigest,
		HashDigestLength: c.Output.HashDigestLength,
		Precompress:      c.Output.Precompress,
	}
}

// Match returns the first rule that applies to the request, or nil.
func (c *Config) Match(path, query string, dep module.Dependency) *Rule {
	_, r := c.MatchIndex(path, query, dep)
	return r
}

// Rel returns path relative to the config context, slash separated.
func (c *Config) Rel(path string) string {
	return relativeTo(c.Context, path)
}

// MatchIndex is Match plus the rule's position, or -1 when nothing matches.
func (c *Config) MatchIndex(path, query string, dep module.Dependency) (int, *Rule) {
	rel := relativeTo(c.Context, path)
	for i, r := range c.Module.Rules {
		if r.Matches(path, rel, query, dep) {
			return i, r
		}
	}
	return -1, nil
}
