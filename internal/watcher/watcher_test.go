package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/poplog/internal/scheduler"
)

type recordHooks struct {
	mu     sync.Mutex
	events []string
	jobs   []scheduler.Job
}

func (r *recordHooks) OnJobStarted(_ context.Context, job scheduler.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "start "+string(job.Key()))
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recordHooks) OnJobCompleted(_ context.Context, key scheduler.JobKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "done "+string(key))
	return nil
}

func (r *recordHooks) OnShutdown(context.Context) error { return nil }

func (r *recordHooks) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func mkJob(t *testing.T, root, group, index string, rc bool) {
	t.Helper()
	dir := filepath.Join(root, group, index)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if rc {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "job.rc"), []byte("0"), 0o644))
	}
}

func TestScanStartsBeforeCompleting(t *testing.T) {
	root := t.TempDir()
	mkJob(t, root, "Align", "0", true)
	mkJob(t, root, "Align", "1", false)
	mkJob(t, root, "Align", "notes", false)
	require.NoError(t, os.WriteFile(filepath.Join(root, "Align", "proc.yaml"), nil, 0o644))

	hooks := &recordHooks{}
	w, err := New(root, hooks)
	require.NoError(t, err)

	require.NoError(t, w.Scan(context.Background()))
	assert.Equal(t, []string{"start Align/0", "start Align/1", "done Align/0"}, hooks.snapshot())

	// A second scan reports nothing new.
	require.NoError(t, w.Scan(context.Background()))
	assert.Len(t, hooks.snapshot(), 3)
	assert.Equal(t, 2, w.startedJobs())

	job := hooks.jobs[0]
	assert.Equal(t, filepath.Join(root, "Align", "0", "job.stdout"), job.Stdout.Path())
	assert.Equal(t, filepath.Join(root, "Align", "0", "job.stderr"), job.Stderr.Path())
}

func TestRunFollowsNewJobs(t *testing.T) {
	root := t.TempDir()
	hooks := &recordHooks{}
	w, err := New(root, hooks, WithRescan(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	mkJob(t, root, "Call", "2", false)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"start Call/2"}, hooks.snapshot())
	}, 2*time.Second, 10*time.Millisecond)

	mkJob(t, root, "Call", "2", true)
	require.Eventually(t, func() bool { return len(hooks.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "done Call/2", hooks.snapshot()[1])

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsFiles(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := New(f, &recordHooks{})
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing"), &recordHooks{})
	assert.Error(t, err)
}

func TestParseJobDir(t *testing.T) {
	group, index, ok := parseJobDir("Align/12")
	require.True(t, ok)
	assert.Equal(t, "Align", group)
	assert.Equal(t, 12, index)

	for _, bad := range []string{"Align/x", "12", "Align/-1", ""} {
		_, _, ok := parseJobDir(bad)
		assert.False(t, ok, bad)
	}
}
