package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) handle(_ context.Context, paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, paths)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.batches...)
}

func startWatcher(t *testing.T, w *Watcher) *recorder {
	t.Helper()
	w.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, rec.handle) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	// Let the watcher register before writing.
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatcher_BatchesSettledWrites(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, &Watcher{Dir: dir, Debounce: 200 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_guide.md"), []byte("# B"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_circular.txt"), []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sheet.xls"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 3*time.Second, 20*time.Millisecond)
	batches := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_circular.txt"),
		filepath.Join(dir, "b_guide.md"),
	}, batches[0])
}

func TestWatcher_RecursivePicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := startWatcher(t, &Watcher{Dir: dir, Recursive: true, Debounce: 200 * time.Millisecond})

	sub := filepath.Join(dir, "gst")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher time to add the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "gst_guide.txt"), []byte("GST"), 0o644))

	require.Eventually(t, func() bool {
		for _, b := range rec.snapshot() {
			for _, p := range b {
				if p == filepath.Join(sub, "gst_guide.txt") {
					return true
				}
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := &Watcher{Dir: filepath.Join(t.TempDir(), "missing")}
	err := w.Run(context.Background(), func(context.Context, []string) {})
	assert.Error(t, err)
}
