package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/assetmods/internal/dataurl"
)

const immutableCacheControl = "public, max-age=31536000, immutable"

// encodings are tried in order against Accept-Encoding. The suffixes match
// the sidecars written by the emitter.
var encodings = []struct {
	name   string
	suffix string
}{
	{name: "zstd", suffix: ".zst"},
	{name: "gzip", suffix: ".gz"},
}

// StaticConfig configures Static.
type StaticConfig struct {
	// Root is the directory served at "/".
	Root string
	// ImmutablePrefix marks content-hashed files, e.g. "assets/". Responses
	// under it are cached for a year; everything else must be revalidated.
	ImmutablePrefix string
}

// Static serves files from cfg.Root, preferring a precompressed sidecar when
// the client accepts its encoding.
func Static(cfg StaticConfig) http.Handler {
	files := http.FileServer(http.Dir(cfg.Root))
	prefix := strings.Trim(cfg.ImmutablePrefix, "/")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)

		if prefix != "" && strings.HasPrefix(name, "/"+prefix+"/") {
			w.Header().Set("Cache-Control", immutableCacheControl)
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}

		if enc, suffix, ok := negotiate(cfg.Root, name, r.Header.Get("Accept-Encoding")); ok {
			w.Header().Add("Vary", "Accept-Encoding")
			serveEncoded(w, r, filepath.Join(cfg.Root, filepath.FromSlash(name)), enc, suffix)
			return
		}

		files.ServeHTTP(w, r)
	})
}

// negotiate picks the first sidecar that both exists on disk and appears in
// accept.
func negotiate(root, name, accept string) (string, string, bool) {
	if accept == "" || strings.HasSuffix(name, "/") {
		return "", "", false
	}
	for _, enc := range encodings {
		if !acceptsEncoding(accept, enc.name) {
			continue
		}
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(name)) + enc.suffix)
		if err == nil && info.Mode().IsRegular() {
			return enc.name, enc.suffix, true
		}
	}
	return "", "", false
}

func acceptsEncoding(header, name string) bool {
	for _, part := range strings.Split(header, ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(token), name) {
			continue
		}
		if q, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q="); ok && strings.Trim(q, "0.") == "" {
			return false
		}
		return true
	}
	return false
}

func serveEncoded(w http.ResponseWriter, r *http.Request, file, encoding, suffix string) {
	f, err := os.Open(file + suffix)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// the content type comes from the uncompressed name, not the sidecar
	w.Header().Set("Content-Type", dataurl.MimeType(file, nil))
	w.Header().Set("Content-Encoding", encoding)
	http.ServeContent(w, r, filepath.Base(file), info.ModTime(), f)
}
