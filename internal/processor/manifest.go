package processor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/rules"
)

// DefaultManifestFile is written into the output directory.
const DefaultManifestFile = "assets-manifest.json"

// Manifest maps each resolved request, relative to the config context, to
// its export value.
type Manifest struct {
	BuildID     string                   `json:"buildId"`
	GeneratedAt time.Time                `json:"generatedAt"`
	Target      string                   `json:"target"`
	PublicPath  string                   `json:"publicPath"`
	Assets      map[string]module.Output `json:"assets"`
}

func newManifest(cfg *rules.Config) *Manifest {
	return &Manifest{
		BuildID:     uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Target:      cfg.Target,
		PublicPath:  cfg.Output.PublicPath,
		Assets:      make(map[string]module.Output),
	}
}

// Counts tallies assets by output kind.
func (m *Manifest) Counts() map[module.OutputKind]int {
	counts := make(map[module.OutputKind]int)
	for _, out := range m.Assets {
		counts[out.Kind]++
	}
	return counts
}

// Write stores the manifest as indented JSON, replacing any previous file
// atomically.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
