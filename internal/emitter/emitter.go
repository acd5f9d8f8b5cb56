package emitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
	applog "github.com/wolfeidau/assetmods/internal/logger"
)

var (
	// ErrPathEscapesOutput indicates a resolved filename points outside the output directory
	ErrPathEscapesOutput = errors.New("emitted path escapes output directory")
	// ErrNoOutputDir indicates the emitter was asked to write without an output directory
	ErrNoOutputDir = errors.New("output directory not configured")
)

// Config configures an Emitter.
type Config struct {
	// OutputDir receives emitted files.
	OutputDir string
	// ContextDir is the base for the [path] placeholder.
	ContextDir string
	// PublicPath is prefixed to every filename to form the exported URL.
	PublicPath       string
	HashFunction     string
	HashDigest       string
	HashDigestLength int
	// Precompress lists sidecar encodings (zstd, gzip) written next to each file.
	Precompress []string
}

// Request describes one asset to emit.
type Request struct {
	Path     string
	Query    string
	Fragment string
	Content  []byte
	// Template defaults to DefaultFilenameTemplate when empty.
	Template FilenameTemplate
	// PublicPath overrides Config.PublicPath when non-nil.
	PublicPath *string
	// SkipWrite computes the filename and URL without touching disk.
	SkipWrite bool
}

// Emitted is the result of emitting one asset.
type Emitted struct {
	// Filename is the resolved template, relative to the output directory. It
	// keeps any query or fragment.
	Filename string
	// DiskPath is where the bytes were written.
	DiskPath string
	URL      string
	Written  bool
}

// Emitter writes asset bytes into the output directory under names derived
// from a FilenameTemplate. Concurrent use is safe; when two assets resolve to
// the same path the last write wins.
type Emitter struct {
	cfg    Config
	hasher *Hasher

	mu      sync.Mutex
	written map[string]string
}

func New(cfg Config) (*Emitter, error) {
	hasher, err := NewHasher(cfg.HashFunction, cfg.HashDigest)
	if err != nil {
		return nil, err
	}
	if cfg.HashDigestLength == 0 {
		cfg.HashDigestLength = DefaultHashDigestLength
	}
	for _, enc := range cfg.Precompress {
		if _, err := sidecarFor(enc); err != nil {
			return nil, err
		}
	}

	return &Emitter{
		cfg:     cfg,
		hasher:  hasher,
		written: make(map[string]string),
	}, nil
}

// Hash returns the full content digest used for [hash].
func (e *Emitter) Hash(content []byte) string {
	return e.hasher.Sum(content)
}

// Reset forgets which files were written, so the next build starts with no
// collisions.
func (e *Emitter) Reset() {
	e.mu.Lock()
	e.written = make(map[string]string)
	e.mu.Unlock()
}

// Exists reports whether filename, as returned in Emitted.Filename, is
// present in the output directory.
func (e *Emitter) Exists(filename string) bool {
	if e.cfg.OutputDir == "" {
		return false
	}
	diskPath, err := e.diskPath(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(diskPath)
	return err == nil && info.Mode().IsRegular()
}

// Filename resolves the request's template without writing anything.
func (e *Emitter) Filename(req Request) (string, error) {
	return e.filename(req, e.hasher.Sum(req.Content))
}

func (e *Emitter) filename(req Request, digest string) (string, error) {
	tmpl := req.Template
	if tmpl == "" {
		tmpl = DefaultFilenameTemplate
	}

	ext := filepath.Ext(req.Path)
	data := TemplateData{
		Hash:     digest,
		Name:     strings.TrimSuffix(filepath.Base(req.Path), ext),
		Ext:      ext,
		Path:     e.relativeDir(req.Path),
		Query:    req.Query,
		Fragment: req.Fragment,
	}

	return tmpl.Resolve(data, e.cfg.HashDigestLength)
}

// relativeDir renders the [path] value; parent directory segments are
// replaced so the result stays inside the output directory.
func (e *Emitter) relativeDir(path string) string {
	dir := filepath.Dir(path)
	if e.cfg.ContextDir != "" {
		if rel, err := filepath.Rel(e.cfg.ContextDir, dir); err == nil {
			dir = rel
		}
	}
	dir = filepath.ToSlash(dir)
	if dir == "." || dir == "" {
		return ""
	}

	parts := strings.Split(strings.TrimPrefix(dir, "/"), "/")
	for i, p := range parts {
		if p == ".." {
			parts[i] = "_"
		}
	}
	return strings.Join(parts, "/") + "/"
}

// Emit resolves the filename for req and writes its content.
func (e *Emitter) Emit(ctx context.Context, req Request) (Emitted, error) {
	logger := applog.FromContext(ctx)

	digest := e.hasher.Sum(req.Content)
	filename, err := e.filename(req, digest)
	if err != nil {
		return Emitted{}, err
	}

	publicPath := e.cfg.PublicPath
	if req.PublicPath != nil {
		publicPath = *req.PublicPath
	}

	out := Emitted{
		Filename: filename,
		URL:      publicPath + filename,
	}

	if req.SkipWrite {
		return out, nil
	}
	if e.cfg.OutputDir == "" {
		return Emitted{}, ErrNoOutputDir
	}

	diskPath, err := e.diskPath(filename)
	if err != nil {
		return Emitted{}, err
	}
	out.DiskPath = diskPath

	e.mu.Lock()
	previous, seen := e.written[diskPath]
	e.written[diskPath] = digest
	e.mu.Unlock()

	if seen && previous != digest {
		logger.Warn().
			Str("path", diskPath).
			Str("source", req.Path).
			Msg("Asset filename collision, overwriting previous content")
	}

	if err := os.MkdirAll(filepath.Dir(diskPath), 0755); err != nil {
		return Emitted{}, fmt.Errorf("failed to create asset directory: %w", err)
	}

	// renameio handles: temp file creation, fsync, atomic rename, cleanup on error
	if err := renameio.WriteFile(diskPath, req.Content, 0644); err != nil {
		return Emitted{}, fmt.Errorf("failed to write asset %s: %w", filename, err)
	}
	out.Written = true

	for _, enc := range e.cfg.Precompress {
		if err := writeSidecar(diskPath, req.Content, enc); err != nil {
			return Emitted{}, err
		}
	}

	logger.Debug().
		Str("source", req.Path).
		Str("file", diskPath).
		Int("bytes", len(req.Content)).
		Msg("Emitted asset")

	return out, nil
}

// diskPath strips the query and fragment from filename and joins it onto the
// output directory.
func (e *Emitter) diskPath(filename string) (string, error) {
	name := filename
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" || strings.HasSuffix(name, "/") {
		return "", fmt.Errorf("%w: empty filename resolved from template", ErrPathEscapesOutput)
	}

	outDir, err := filepath.Abs(e.cfg.OutputDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(outDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(outDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesOutput, filename)
	}
	return full, nil
}
