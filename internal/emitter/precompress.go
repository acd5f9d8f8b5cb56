package emitter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/google/renameio/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assetmods/internal/module"
)

const (
	PrecompressZstd = "zstd"
	PrecompressGzip = "gzip"
)

type sidecar struct {
	suffix    string
	newWriter func(w io.Writer) (io.WriteCloser, error)
}

func sidecarFor(encoding string) (sidecar, error) {
	switch encoding {
	case PrecompressZstd:
		return sidecar{
			suffix: ".zst",
			newWriter: func(w io.Writer) (io.WriteCloser, error) {
				return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
			},
		}, nil
	case PrecompressGzip:
		return sidecar{
			suffix: ".gz",
			newWriter: func(w io.Writer) (io.WriteCloser, error) {
				return gzip.NewWriterLevel(w, gzip.BestCompression)
			},
		}, nil
	}
	return sidecar{}, module.NewConfigurationError("output.precompress", encoding, "must be zstd or gzip")
}

// writeSidecar stores a compressed copy of content at path plus the encoding
// suffix. When compression does not shrink the content no sidecar is kept.
func writeSidecar(path string, content []byte, encoding string) error {
	sc, err := sidecarFor(encoding)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w, err := sc.newWriter(&buf)
	if err != nil {
		return fmt.Errorf("failed to create %s encoder: %w", encoding, err)
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}

	if buf.Len() >= len(content) {
		log.Debug().
			Str("path", path).
			Str("encoding", encoding).
			Msg("Skipping sidecar, compression did not reduce size")
		// a sidecar left from earlier content would be served in place of this file
		if err := os.Remove(path + sc.suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale %s sidecar: %w", encoding, err)
		}
		return nil
	}

	if err := renameio.WriteFile(path+sc.suffix, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s sidecar: %w", encoding, err)
	}
	return nil
}
