package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaticRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0755))

	js := bytes.Repeat([]byte("console.log('asset');\n"), 100)
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js"), js, 0600))

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(js, nil)
	require.NoError(t, enc.Close())
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.js.zst"), compressed, 0600))

	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "abc123.png"), []byte("png"), 0600))
	return root
}

func TestStatic_ServesSidecar(t *testing.T) {
	root := newStaticRoot(t)
	handler := Static(StaticConfig{Root: root, ImmutablePrefix: "assets/"})

	r := httptest.NewRequest(http.MethodGet, "/index.js", nil)
	r.Header.Set("Accept-Encoding", "gzip, zstd")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zstd", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "text/javascript", w.Header().Get("Content-Type"))
	assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	dec, err := zstd.NewReader(w.Body)
	require.NoError(t, err)
	defer dec.Close()
	plain, err := io.ReadAll(dec)
	require.NoError(t, err)

	original, err := os.ReadFile(filepath.Join(root, "index.js"))
	require.NoError(t, err)
	assert.Equal(t, original, plain)
}

func TestStatic_FallsBackToPlain(t *testing.T) {
	root := newStaticRoot(t)
	handler := Static(StaticConfig{Root: root, ImmutablePrefix: "assets/"})

	tests := []struct {
		name   string
		accept string
	}{
		{name: "no accept encoding"},
		{name: "only gzip without sidecar", accept: "gzip"},
		{name: "zstd refused", accept: "zstd;q=0, gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/index.js", nil)
			if tt.accept != "" {
				r.Header.Set("Accept-Encoding", tt.accept)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get("Content-Encoding"))
			assert.Contains(t, w.Body.String(), "console.log")
		})
	}
}

func TestStatic_ImmutableAssets(t *testing.T) {
	root := newStaticRoot(t)
	handler := Static(StaticConfig{Root: root, ImmutablePrefix: "/assets/"})

	r := httptest.NewRequest(http.MethodGet, "/assets/abc123.png", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, immutableCacheControl, w.Header().Get("Cache-Control"))
	assert.Equal(t, "png", w.Body.String())

	r = httptest.NewRequest(http.MethodGet, "/assets/missing.png", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAcceptsEncoding(t *testing.T) {
	tests := []struct {
		header string
		name   string
		want   bool
	}{
		{header: "zstd", name: "zstd", want: true},
		{header: "gzip, deflate, br, zstd", name: "zstd", want: true},
		{header: "GZIP", name: "gzip", want: true},
		{header: "gzip;q=0.5", name: "gzip", want: true},
		{header: "gzip; q=0", name: "gzip"},
		{header: "gzip;q=0.000", name: "gzip"},
		{header: "deflate", name: "gzip"},
		{header: "", name: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.header+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, acceptsEncoding(tt.header, tt.name))
		})
	}
}
