package resolver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/assetmods/internal/dataurl"
	"github.com/wolfeidau/assetmods/internal/emitter"
	"github.com/wolfeidau/assetmods/internal/module"
	"github.com/wolfeidau/assetmods/internal/rules"
)

func newTestResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	outDir := t.TempDir()
	em, err := emitter.New(emitter.Config{OutputDir: outDir, PublicPath: "/assets/"})
	require.NoError(t, err)
	return New(em, ""), outDir
}

func TestResolveAutoSelection(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name string
		size int
		want module.OutputKind
	}{
		{name: "empty inlines", size: 0, want: module.OutputDataURI},
		{name: "just under limit inlines", size: module.DefaultMaxSize - 1, want: module.OutputDataURI},
		{name: "at limit emits", size: module.DefaultMaxSize, want: module.OutputURL},
		{name: "large emits", size: 64 * 1024, want: module.OutputURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := module.New("img/photo.png", bytes.Repeat([]byte{0xAB}, tt.size), module.TypeAsset)
			out, err := r.Resolve(context.Background(), mod, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Kind)
			assert.Equal(t, tt.size, out.Size)
		})
	}
}

func TestResolveResource(t *testing.T) {
	r, outDir := newTestResolver(t)

	mod := module.New("src/main.png", []byte("small but forced to file"), module.TypeResource)
	out, err := r.Resolve(context.Background(), mod, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, module.OutputURL, out.Kind)
	assert.Equal(t, module.TypeResource, out.Type)
	assert.True(t, strings.HasSuffix(out.Filename, ".png"))
	assert.Equal(t, "/assets/"+out.Filename, out.Value)
	assert.FileExists(t, filepath.Join(outDir, out.Filename))
}

func TestResolveInlineRoundTrip(t *testing.T) {
	r, outDir := newTestResolver(t)
	content := bytes.Repeat([]byte("big svg "), 4096)

	mod := module.New("icons/big.svg", content, module.TypeInline)
	out, err := r.Resolve(context.Background(), mod, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, module.OutputDataURI, out.Kind)
	assert.True(t, strings.HasPrefix(out.Value, "data:image/svg+xml;base64,"))

	mime, decoded, err := dataurl.Decode(out.Value)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", mime)
	assert.Equal(t, content, decoded)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "inline modules never touch disk")
}

func TestResolveSource(t *testing.T) {
	r, _ := newTestResolver(t)

	mod := module.New("notes/hello.txt", []byte("Hello world"), module.TypeSource)
	out, err := r.Resolve(context.Background(), mod, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, module.OutputSource, out.Kind)
	assert.Equal(t, "Hello world", out.Value)
	assert.Equal(t, "export default \"Hello world\";\n", out.ExportCode())
}

func TestResolveMaxSizeOverride(t *testing.T) {
	r, _ := newTestResolver(t)
	mod := module.New("img/mid.png", make([]byte, 5000), module.TypeAsset)

	out, err := r.Resolve(context.Background(), mod, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, module.OutputDataURI, out.Kind)

	maxSize := 4096
	rule := &rules.Rule{Type: module.TypeAsset}
	rule.Parser.DataURLCondition.MaxSize = &maxSize

	out, err = r.Resolve(context.Background(), mod, OptionsFromRule(rule))
	require.NoError(t, err)
	assert.Equal(t, module.OutputURL, out.Kind)
	assert.Equal(t, module.TypeResource, out.Type)
}

func TestResolvePredicate(t *testing.T) {
	r, _ := newTestResolver(t)

	opts := DefaultOptions()
	opts.Condition.Predicate = func(m *module.AssetModule) bool { return m.Query == "?inline" }

	out, err := r.Resolve(context.Background(), module.New("a.png?inline", make([]byte, 100_000), module.TypeAsset), opts)
	require.NoError(t, err)
	assert.Equal(t, module.OutputDataURI, out.Kind)

	out, err = r.Resolve(context.Background(), module.New("a.png", []byte("x"), module.TypeAsset), opts)
	require.NoError(t, err)
	assert.Equal(t, module.OutputURL, out.Kind)
}

func TestResolveDeterministic(t *testing.T) {
	r, _ := newTestResolver(t)
	content := make([]byte, 10_000)

	first, err := r.Resolve(context.Background(), module.New("a/logo.png", content, module.TypeAsset), DefaultOptions())
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), module.New("a/logo.png", content, module.TypeAsset), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveGeneratorOptions(t *testing.T) {
	r, outDir := newTestResolver(t)

	cdn := "https://cdn.example.com/"
	no := false
	rule := &rules.Rule{Type: module.TypeResource}
	rule.Generator.Filename = "media/[name][ext]"
	rule.Generator.PublicPath = &cdn
	rule.Generator.Emit = &no

	out, err := r.Resolve(context.Background(), module.New("clip.mp4", []byte("video"), module.TypeResource), OptionsFromRule(rule))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/clip.mp4", out.Value)
	assert.NoFileExists(t, filepath.Join(outDir, "media", "clip.mp4"))

	rule = &rules.Rule{Type: module.TypeInline}
	rule.Generator.DataURL.Encoding = dataurl.EncodingNone
	rule.Generator.DataURL.MimeType = "text/x-custom"

	out, err = r.Resolve(context.Background(), module.New("a.txt", []byte("a b"), module.TypeInline), OptionsFromRule(rule))
	require.NoError(t, err)
	assert.Equal(t, "data:text/x-custom,a%20b", out.Value)
}

func TestResolveCustomEncoder(t *testing.T) {
	r, _ := newTestResolver(t)

	opts := DefaultOptions()
	opts.DataURL.Encode = func(content []byte, ctx dataurl.EncodeContext) (string, error) {
		return "data:" + ctx.MimeType + ";len," + string(rune('0'+len(content))), nil
	}

	out, err := r.Resolve(context.Background(), module.New("a.png", []byte("abc"), module.TypeInline), opts)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;len,3", out.Value)
}

func TestResolveErrors(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), module.New("a.js", []byte("x"), module.TypeJavaScriptAuto), DefaultOptions())
	assert.ErrorIs(t, err, module.ErrConfiguration)

	_, err = r.Resolve(context.Background(), module.New("a.bin", []byte("x"), module.Type("asset/url")), DefaultOptions())
	var cfgErr *module.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "type", cfgErr.Field)

	noEmitter := New(nil, "")
	_, err = noEmitter.Resolve(context.Background(), module.New("a.png", []byte("x"), module.TypeResource), DefaultOptions())
	assert.ErrorIs(t, err, module.ErrConfiguration)

	out, err := noEmitter.Resolve(context.Background(), module.New("a.txt", []byte("x"), module.TypeSource), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "x", out.Value)
}
