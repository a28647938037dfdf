package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/regingest/internal/indexer"
	"github.com/dgallion1/regingest/internal/store/memory"
)

func TestRunner_ExecutesSubmittedRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gst_circular.txt"), []byte("1 INTRODUCTION\nGST registration guidance."), 0o644))
	reportDir := filepath.Join(t.TempDir(), "reports")

	st := memory.New()
	coord := newTestCoordinator(testConfig(), indexer.NewMemory(indexer.Limits{}), st, st)
	rn := NewRunner(coord, 4, 1, time.Hour, reportDir, testLogger())
	rn.Start(context.Background())
	defer rn.Stop()

	run := NewRun(RunRequest{Directory: dir})
	require.NoError(t, rn.Submit(run))
	assert.Same(t, run, rn.Get(run.ID))

	require.Eventually(t, func() bool {
		return run.Snapshot().State == RunCompleted
	}, 5*time.Second, 10*time.Millisecond)

	snap := run.Snapshot()
	assert.Equal(t, RunProgress{Total: 1, Done: 1}, snap.Progress)
	require.NotNil(t, snap.Report)
	assert.Equal(t, 1, snap.Report.Successful)
	assert.FileExists(t, snap.ReportPath)
}

func TestRunner_MissingDirectoryFailsRun(t *testing.T) {
	st := memory.New()
	coord := newTestCoordinator(testConfig(), indexer.NewMemory(indexer.Limits{}), st, st)
	rn := NewRunner(coord, 4, 1, time.Hour, "", testLogger())
	rn.Start(context.Background())
	defer rn.Stop()

	run := NewRun(RunRequest{Directory: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, rn.Submit(run))
	require.Eventually(t, func() bool {
		return run.Snapshot().State == RunFailed
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, run.Snapshot().Error, "input directory")
	_, ok := run.Report()
	assert.False(t, ok)
}

func TestRunner_QueueFull(t *testing.T) {
	st := memory.New()
	coord := newTestCoordinator(testConfig(), indexer.NewMemory(indexer.Limits{}), st, st)
	// Not started, so nothing drains the queue.
	rn := NewRunner(coord, 1, 1, time.Hour, "", testLogger())

	require.NoError(t, rn.Submit(NewRun(RunRequest{})))
	overflow := NewRun(RunRequest{})
	assert.Error(t, rn.Submit(overflow))
	assert.Equal(t, RunFailed, overflow.Snapshot().State)
	assert.Equal(t, 1, rn.QueueDepth())
}

func TestRunner_StopCancelsQueuedRuns(t *testing.T) {
	st := memory.New()
	coord := newTestCoordinator(testConfig(), indexer.NewMemory(indexer.Limits{}), st, st)
	rn := NewRunner(coord, 4, 1, time.Hour, "", testLogger())

	first := NewRun(RunRequest{Paths: []string{"a.txt"}})
	second := NewRun(RunRequest{Paths: []string{"b.txt"}})
	require.NoError(t, rn.Submit(first))
	require.NoError(t, rn.Submit(second))

	rn.Stop()
	assert.Equal(t, RunCancelled, first.Snapshot().State)
	assert.Equal(t, RunCancelled, second.Snapshot().State)
	assert.Equal(t, 0, rn.QueueDepth())
}

func TestRun_CancelQueued(t *testing.T) {
	r := NewRun(RunRequest{Paths: []string{"a.txt"}})
	assert.True(t, r.Cancel())
	assert.Equal(t, RunCancelled, r.Snapshot().State)
	assert.False(t, r.Cancel())
	assert.False(t, r.start(func() {}))
}

func TestRunStore_CleanupKeepsActiveRuns(t *testing.T) {
	s := NewRunStore(time.Millisecond)
	active := NewRun(RunRequest{})
	done := NewRun(RunRequest{})
	done.finish(BatchReport{}, "")
	s.Put(active)
	s.Put(done)

	time.Sleep(5 * time.Millisecond)
	s.Cleanup()
	assert.NotNil(t, s.Get(active.ID))
	assert.Nil(t, s.Get(done.ID))
}
