package filewatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcherReportsDebouncedWrites(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	other := filepath.Join(dir, "other.html")
	require.NoError(t, os.WriteFile(page, []byte("<p>1</p>"), 0o644))

	w := New(Config{Paths: []string{page}, Debounce: 20 * time.Millisecond})
	var mu sync.Mutex
	var changes []Change
	w.OnChange(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	require.Eventually(t, w.IsRunning, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	for i := range 3 {
		require.NoError(t, os.WriteFile(page, []byte{byte('a' + i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) > 0
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	require.Len(t, changes, 1, "a burst of writes is reported once")
	abs, _ := filepath.Abs(page)
	assert.Equal(t, abs, changes[0].Path)
	mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherStop(t *testing.T) {
	dir := t.TempDir()
	w := New(Config{Paths: []string{filepath.Join(dir, "page.html")}})
	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()
	require.Eventually(t, w.IsRunning, time.Second, time.Millisecond)

	w.Stop()
	assert.NoError(t, <-done)
	assert.False(t, w.IsRunning())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ChangeWrite, classify(fsnotify.Write))
	assert.Equal(t, ChangeCreate, classify(fsnotify.Create))
	assert.Equal(t, ChangeRemove, classify(fsnotify.Remove))
	assert.Equal(t, ChangeRemove, classify(fsnotify.Rename))
	assert.Equal(t, "create", ChangeCreate.String())
}
