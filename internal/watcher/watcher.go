// Package watcher discovers jobs in a pipeline working directory and
// reports their lifecycle to the scheduler.
//
// The directory is laid out as <workdir>/<group>/<index>/ with the job's
// job.stdout, job.stderr and job.rc files inside. A job starts when its
// index directory appears and completes when job.rc is written.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/atikulmunna/poplog/internal/logfile"
	"github.com/atikulmunna/poplog/internal/scheduler"
)

const (
	jobsGlob = "*/*"
	rcGlob   = "*/*/job.rc"

	// DefaultRescan is how often the tree is globbed again. Network mounts
	// often deliver no inotify events at all.
	DefaultRescan = 5 * time.Second
)

// Watcher monitors a workdir for job directories using OS-level
// notifications plus periodic rescans.
type Watcher struct {
	root   string
	fsys   fs.FS
	hooks  scheduler.Hooks
	rescan time.Duration
	logger *zap.Logger

	fsw     *fsnotify.Watcher
	watched map[string]struct{}

	mu        sync.Mutex
	started   map[scheduler.JobKey]struct{}
	completed map[scheduler.JobKey]struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithRescan sets the rescan interval.
func WithRescan(d time.Duration) Option {
	return func(w *Watcher) { w.rescan = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher for root that reports to hooks.
func New(root string, hooks scheduler.Hooks, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New(abs + " is not a directory")
	}

	w := &Watcher{
		root:      abs,
		fsys:      os.DirFS(abs),
		hooks:     hooks,
		rescan:    DefaultRescan,
		logger:    zap.NewNop(),
		watched:   make(map[string]struct{}),
		started:   make(map[scheduler.JobKey]struct{}),
		completed: make(map[scheduler.JobKey]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run scans the tree and then follows it until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	defer fsw.Close()
	w.watch(w.root)

	if err := w.Scan(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == 0 && ev.Op&fsnotify.Write == 0 {
				continue
			}
			if err := w.Scan(ctx); err != nil {
				return err
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-ticker.C:
			if err := w.Scan(ctx); err != nil {
				return err
			}
		}
	}
}

// Scan reports every job started or completed since the previous scan.
// A job is always started before it is completed, and each is reported
// once.
func (w *Watcher) Scan(ctx context.Context) error {
	dirs, err := doublestar.Glob(w.fsys, jobsGlob, doublestar.WithNoFollow())
	if err != nil {
		return err
	}
	for _, rel := range dirs {
		group, index, ok := parseJobDir(rel)
		if !ok {
			continue
		}
		dir := filepath.Join(w.root, filepath.FromSlash(rel))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		w.watch(filepath.Dir(dir))
		w.watch(dir)
		if err := w.start(ctx, group, index, dir); err != nil {
			return err
		}
	}

	rcs, err := doublestar.Glob(w.fsys, rcGlob, doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		return err
	}
	for _, rel := range rcs {
		group, index, ok := parseJobDir(path.Dir(rel))
		if !ok {
			continue
		}
		if err := w.complete(ctx, group, index); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) start(ctx context.Context, group string, index int, dir string) error {
	key := scheduler.Key(group, index)
	w.mu.Lock()
	_, seen := w.started[key]
	w.started[key] = struct{}{}
	w.mu.Unlock()
	if seen {
		return nil
	}

	job := scheduler.Job{
		Group:  group,
		Index:  index,
		Stdout: logfile.NewLocal(filepath.Join(dir, "job.stdout")),
		Stderr: logfile.NewLocal(filepath.Join(dir, "job.stderr")),
	}
	w.logger.Debug("job started", zap.String("job", string(key)))
	return w.hooks.OnJobStarted(ctx, job)
}

func (w *Watcher) complete(ctx context.Context, group string, index int) error {
	key := scheduler.Key(group, index)
	w.mu.Lock()
	_, started := w.started[key]
	_, seen := w.completed[key]
	if started && !seen {
		w.completed[key] = struct{}{}
	}
	w.mu.Unlock()
	if !started || seen {
		return nil
	}

	w.logger.Debug("job completed", zap.String("job", string(key)))
	return w.hooks.OnJobCompleted(ctx, key)
}

// watch adds dir to the notifier once. Failures only cost latency since
// the rescan still finds new jobs.
func (w *Watcher) watch(dir string) {
	if w.fsw == nil {
		return
	}
	if _, ok := w.watched[dir]; ok {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Debug("cannot watch directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	w.watched[dir] = struct{}{}
}

// startedJobs returns the number of jobs reported as started.
func (w *Watcher) startedJobs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.started)
}

// parseJobDir splits "<group>/<index>".
func parseJobDir(rel string) (string, int, bool) {
	group, idx := path.Split(rel)
	group = path.Clean(group)
	if group == "." || group == "/" || idx == "" {
		return "", 0, false
	}
	index, err := strconv.Atoi(idx)
	if err != nil || index < 0 {
		return "", 0, false
	}
	return group, index, true
}
