package assets

type Config struct {
	// Entry point glob pattern (e.g., "ui/pages/*.tsx")
	EntryPointGlob string
	// Output directory for built files
	OutputDir string
	// Path to metafile
	MetafilePath string
	// Path to the asset module manifest, empty to skip writing it
	ManifestPath string
	// Whether to minify output
	Minify bool
	// Whether to enable source maps
	SourceMap bool
	// Whether to split shared code into chunks
	Splitting bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		EntryPointGlob: "ui/pages/*.tsx",
		OutputDir:      "public",
		MetafilePath:   "public/meta.json",
		ManifestPath:   "public/assets-manifest.json",
		Minify:         true,
		SourceMap:      true,
		Splitting:      true,
	}
}
