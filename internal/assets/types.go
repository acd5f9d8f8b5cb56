package assets

import (
	"sync"

	"github.com/wolfeidau/assetmods/internal/processor"
)

type BuildMetadata struct {
	Inputs  map[string]InputInfo  `json:"inputs"`
	Outputs map[string]OutputInfo `json:"outputs"`
}

type InputInfo struct {
	Bytes int `json:"bytes"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// Pipeline bundles entry points with esbuild, routing asset imports through
// the asset module processor.
type Pipeline struct {
	config    Config
	processor *processor.Processor
	metadata  *BuildMetadata
	mu        sync.RWMutex
}

// New creates a new asset pipeline with the given configuration
func New(config Config, proc *processor.Processor) *Pipeline {
	return &Pipeline{
		config:    config,
		processor: proc,
	}
}

// Metadata returns the metafile of the last successful build, or nil.
func (p *Pipeline) Metadata() *BuildMetadata {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metadata
}

// Processor returns the asset module processor the pipeline resolves with.
func (p *Pipeline) Processor() *processor.Processor {
	return p.processor
}
