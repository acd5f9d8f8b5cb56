package commands

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_DebouncesRebuilds(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	outDir := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ui"), 0755))
	require.NoError(t, os.MkdirAll(outDir, 0755))

	w, err := newWatcher([]string{dir}, 50*time.Millisecond, []string{outDir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var builds atomic.Int32
	rebuilt := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.run(ctx, func(context.Context) {
			builds.Add(1)
			rebuilt <- struct{}{}
		})
	}()

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ui", "a.ts"), []byte{byte('a' + i)}, 0600))
	}

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}

	// let any trailing burst settle, then drain
	time.Sleep(200 * time.Millisecond)
	for len(rebuilt) > 0 {
		<-rebuilt
	}
	settled := builds.Load()
	assert.LessOrEqual(t, settled, int32(2), "a burst of writes should collapse into few rebuilds")

	// writes to the output directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "index.js"), []byte("x"), 0600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, settled, builds.Load())

	// directories created after start are watched too
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ui", "new"), 0755))
	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after directory creation")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ui", "new", "b.ts"), []byte("b"), 0600))
	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change in new directory")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_Ignored(t *testing.T) {
	dir := t.TempDir()
	w := &watcher{}
	abs, err := filepath.Abs(filepath.Join(dir, "public"))
	require.NoError(t, err)
	w.ignore = []string{abs}

	assert.True(t, w.ignored(filepath.Join(dir, "public")))
	assert.True(t, w.ignored(filepath.Join(dir, "public", "a.js")))
	assert.False(t, w.ignored(filepath.Join(dir, "publicity", "a.js")))
	assert.False(t, w.ignored(filepath.Join(dir, "ui", "a.ts")))
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := newWatcher([]string{filepath.Join(t.TempDir(), "missing")}, time.Millisecond, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
