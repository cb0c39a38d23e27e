// Package scheduler polls the log files of running jobs, filters their
// lines by severity and forwards them to the host logger, one goroutine
// per job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atikulmunna/poplog/internal/config"
	"github.com/atikulmunna/poplog/internal/logfile"
	"github.com/atikulmunna/poplog/internal/metrics"
	"github.com/atikulmunna/poplog/internal/model"
	"github.com/atikulmunna/poplog/internal/mounts"
)

// ErrShutdown is returned by OnJobStarted once the scheduler is shut down.
var ErrShutdown = errors.New("scheduler is shut down")

// JobKey identifies a job as "group/index".
type JobKey string

// Key builds the JobKey for a group and index.
func Key(group string, index int) JobKey {
	return JobKey(fmt.Sprintf("%s/%d", group, index))
}

// Job is a job the host has started.
type Job struct {
	Group  string
	Index  int
	Stdout logfile.File
	Stderr logfile.File
}

// Key returns the job's key.
func (j Job) Key() JobKey { return Key(j.Group, j.Index) }

// Log returns the file for source.
func (j Job) Log(source logfile.Source) logfile.File {
	if source == logfile.Stderr {
		return j.Stderr
	}
	return j.Stdout
}

// Hooks are the lifecycle points the host calls.
type Hooks interface {
	OnJobStarted(ctx context.Context, job Job) error
	OnJobCompleted(ctx context.Context, key JobKey) error
	OnShutdown(ctx context.Context) error
}

// Sink receives forwarded entries. Implementations must be safe for
// concurrent use.
type Sink interface {
	Forward(e model.LogEntry)
}

// Tee forwards to every sink in order.
type Tee []Sink

func (t Tee) Forward(e model.LogEntry) {
	for _, s := range t {
		s.Forward(e)
	}
}

// Detector decides whether a path is on a networked filesystem.
type Detector interface {
	IsRemote(path string) bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDetector replaces the mount table detector.
func WithDetector(d Detector) Option {
	return func(s *Scheduler) { s.detector = d }
}

// WithMetrics records into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger for the scheduler's own diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithIntervals sets the poll cadence for local and remote files.
func WithIntervals(local, remote time.Duration) Option {
	return func(s *Scheduler) {
		s.local = local
		s.remote = remote
	}
}

// Scheduler implements Hooks.
type Scheduler struct {
	policies *Policies
	sink     Sink
	detector Detector
	metrics  *metrics.Metrics
	logger   *zap.Logger
	local    time.Duration
	remote   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[JobKey]*monitor
	closed bool
}

var _ Hooks = (*Scheduler)(nil)

// New creates a Scheduler forwarding accepted lines to sink.
func New(policies *Policies, sink Sink, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		policies: policies,
		sink:     sink,
		local:    config.DefaultLocalPoll,
		remote:   config.DefaultRemotePoll,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[JobKey]*monitor),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.detector == nil {
		s.detector = mounts.NewDetector()
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// OnJobStarted begins monitoring job unless its group's allow-list
// excludes it. Starting a job that is already monitored is a no-op, and so
// is starting one whose budget ran out. A job whose monitor retired for any
// other reason is monitored afresh (a retried job).
func (s *Scheduler) OnJobStarted(_ context.Context, job Job) error {
	policy := s.policies.For(job.Group)
	if !policy.Selects(job.Index) {
		s.logger.Debug("job not selected", zap.String("job", string(job.Key())))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrShutdown
	}
	key := job.Key()
	if m, ok := s.jobs[key]; ok && (!m.isRetired() || m.exhausted()) {
		return nil
	}

	file := job.Log(policy.Source)
	remote := s.isRemote(file)
	interval := s.local
	if remote {
		interval = s.remote
	}

	m := newMonitor(s, job, policy, file, interval, remote)
	s.jobs[key] = m
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		m.run(s.ctx)
	}()

	s.logger.Debug("monitoring job",
		zap.String("job", string(key)),
		zap.String("path", m.tailer.Path()),
		zap.Bool("remote", remote),
		zap.Duration("interval", interval),
	)
	return nil
}

// OnJobCompleted flushes the job's remaining output and retires its
// monitor. It returns once the monitor has retired or ctx is done. Unknown
// jobs are ignored.
func (s *Scheduler) OnJobCompleted(ctx context.Context, key JobKey) error {
	s.mu.Lock()
	m, ok := s.jobs[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	m.complete()
	select {
	case <-m.retired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnShutdown stops all polling and waits until every monitor has released
// its file, or ctx is done.
func (s *Scheduler) OnShutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the status of every job seen, ordered by group and index.
func (s *Scheduler) Snapshot() []JobStatus {
	s.mu.Lock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, m := range s.jobs {
		out = append(out, m.status())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Index < out[j].Index
	})
	return out
}

func (s *Scheduler) isRemote(f logfile.File) bool {
	if f == nil {
		return false
	}
	if r, ok := f.(logfile.RemoteFile); ok && r.Remote() {
		return true
	}
	return s.detector.IsRemote(f.Path())
}
