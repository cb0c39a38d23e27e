package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/atikulmunna/poplog/internal/logfile"
	"github.com/atikulmunna/poplog/internal/model"
	"github.com/atikulmunna/poplog/internal/parser"
	"github.com/atikulmunna/poplog/internal/tailer"
	"github.com/atikulmunna/poplog/internal/throttle"
)

// monitor drives one job through its states. Only run's goroutine touches
// the tailer and throttle; everything read by Snapshot is atomic.
type monitor struct {
	s        *Scheduler
	job      Job
	key      string
	policy   *Policy
	tailer   *tailer.Tailer
	throttle *throttle.Throttle
	interval time.Duration
	remote   bool
	logger   *zap.Logger

	state     atomic.Int32
	ended     atomic.Int32
	polls     atomic.Int64
	forwarded atomic.Int64

	completeOnce sync.Once
	completed    chan struct{}
	retired      chan struct{}
}

func newMonitor(s *Scheduler, job Job, policy *Policy, file logfile.File, interval time.Duration, remote bool) *monitor {
	key := string(job.Key())
	return &monitor{
		s:         s,
		job:       job,
		key:       key,
		policy:    policy,
		tailer:    tailer.New(file),
		throttle:  throttle.New(policy.Max),
		interval:  interval,
		remote:    remote,
		logger:    s.logger.With(zap.String("job", key)),
		completed: make(chan struct{}),
		retired:   make(chan struct{}),
	}
}

func (m *monitor) run(ctx context.Context) {
	m.setState(Active)
	m.s.metrics.JobsActive.Inc()
	defer func() {
		m.tailer.Destroy()
		m.setState(Retired)
		m.s.metrics.JobsActive.Dec()
		close(m.retired)
		m.logger.Debug("job retired", zap.Stringer("after", State(m.ended.Load())))
	}()

	if m.poll(ctx) {
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.completed:
			m.finish(ctx)
			return
		case <-ticker.C:
			if m.poll(ctx) {
				return
			}
		}
	}
}

// poll runs one cycle and reports whether the budget is exhausted.
func (m *monitor) poll(ctx context.Context) bool {
	lines, err := m.tailer.Populate(ctx)
	if err != nil {
		m.s.metrics.PollErrors.WithLabelValues(m.job.Group).Inc()
		m.logger.Warn("poll failed", zap.Error(err))
		return false
	}
	m.tailer.IncrementCounter()
	m.polls.Add(1)
	m.s.metrics.Polls.WithLabelValues(m.job.Group).Inc()
	m.s.metrics.LinesRead.WithLabelValues(m.job.Group).Add(float64(len(lines)))
	return m.handle(lines)
}

// finish drains what the job wrote before completing, including a last
// line that has no trailing newline.
func (m *monitor) finish(ctx context.Context) {
	if m.poll(ctx) {
		return
	}
	if rest := m.tailer.TakeResidue(); rest != "" {
		if m.handle([]string{rest}) {
			return
		}
	}
	m.end(Completed)
}

// handle filters and forwards lines in order. It stops at the line that
// exhausts the budget and reports whether that happened.
func (m *monitor) handle(lines []string) bool {
	for i, line := range lines {
		res := m.policy.Filter.Apply(line)
		if !res.Forward {
			m.s.metrics.LinesDropped.WithLabelValues(m.job.Group, res.Reason).Inc()
			continue
		}

		m.forward(res.Level, res.Message, line, res.Matched)
		if !m.throttle.Record() {
			continue
		}

		if rest := len(lines) - i - 1; rest > 0 {
			m.s.metrics.LinesDropped.WithLabelValues(m.job.Group, "budget").Add(float64(rest))
		}
		m.s.metrics.Exhausted.WithLabelValues(m.job.Group).Inc()
		notice := fmt.Sprintf("job %s reached its message budget (%d), further messages are suppressed", m.key, m.throttle.Max())
		// Not a pattern miss, so it is not reported as unmatched.
		m.s.sink.Forward(m.entry(parser.Warning, notice, "", true))
		m.end(BudgetExhausted)
		return true
	}
	return false
}

func (m *monitor) forward(level parser.Level, msg, raw string, matched bool) {
	m.s.sink.Forward(m.entry(level, msg, raw, matched))
	m.forwarded.Add(1)
	m.s.metrics.LinesForwarded.WithLabelValues(m.job.Group, level.String()).Inc()
}

func (m *monitor) entry(level parser.Level, msg, raw string, matched bool) model.LogEntry {
	return model.LogEntry{
		Timestamp: time.Now(),
		Job:       m.key,
		Group:     m.job.Group,
		Index:     m.job.Index,
		Level:     level.String(),
		Message:   msg,
		Raw:       raw,
		Matched:   matched,
	}
}

func (m *monitor) end(s State) {
	m.ended.Store(int32(s))
	m.setState(s)
	m.logger.Debug("job ended", zap.Stringer("state", s))
}

func (m *monitor) complete() {
	m.completeOnce.Do(func() { close(m.completed) })
}

func (m *monitor) setState(s State) { m.state.Store(int32(s)) }

// exhausted reports whether the job used up its budget. Such a job stays
// retired for good.
func (m *monitor) exhausted() bool {
	return State(m.ended.Load()) == BudgetExhausted
}

func (m *monitor) isRetired() bool {
	select {
	case <-m.retired:
		return true
	default:
		return false
	}
}

func (m *monitor) status() JobStatus {
	return JobStatus{
		Job:       m.key,
		Group:     m.job.Group,
		Index:     m.job.Index,
		State:     State(m.state.Load()),
		Path:      m.tailer.Path(),
		Remote:    m.remote,
		Interval:  m.interval.String(),
		Polls:     m.polls.Load(),
		Forwarded: m.forwarded.Load(),
		Max:       m.throttle.Max(),
		Ended:     State(m.ended.Load()),
	}
}
