package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuran001/GameLauncher-Go/launcher/logger"
)

type countingReloader struct {
	calls atomic.Int32
}

func (r *countingReloader) ReloadExternal(context.Context) error {
	r.calls.Add(1)
	return nil
}

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	r := &countingReloader{}
	w := New(r, Options{Dir: dir, Ext: ".zip", Debounce: 100 * time.Millisecond}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "snake.zip"), []byte{byte(i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.EqualValues(t, 1, r.calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestWatcherMissingDir(t *testing.T) {
	w := New(&countingReloader{}, Options{Dir: filepath.Join(t.TempDir(), "missing")}, logger.Discard())
	assert.Error(t, w.Run(context.Background()))
}

func TestRelevant(t *testing.T) {
	w := New(&countingReloader{}, Options{Ext: ".zip"}, logger.Discard())
	assert.True(t, w.relevant(fsnotify.Event{Name: "a/Snake.ZIP", Op: fsnotify.Create}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "a/snake.zip", Op: fsnotify.Remove}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "a/snake.zip", Op: fsnotify.Chmod}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "a/snake.txt", Op: fsnotify.Write}))
}
