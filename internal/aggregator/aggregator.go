// Package aggregator keeps running statistics over forwarded job log
// entries for the status API.
package aggregator

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/atikulmunna/poplog/internal/model"
)

const epsWindow = 5 * time.Second

// Stats holds a point-in-time snapshot of aggregated metrics.
type Stats struct {
	Uptime      string           `json:"uptime"`
	Forwarded   int64            `json:"forwarded"`
	EPS         float64          `json:"eps"`
	LevelCounts map[string]int64 `json:"level_counts"`
	GroupCounts map[string]int64 `json:"group_counts"`
	Unmatched   int64            `json:"unmatched"`
	Dropped     int64            `json:"dropped"`
	JobsWatched int              `json:"jobs_watched"`
	LastEntry   *time.Time       `json:"last_entry,omitempty"`
}

// Aggregator consumes a hub subscription and computes time-windowed metrics.
type Aggregator struct {
	mu          sync.RWMutex
	startTime   time.Time
	forwarded   int64
	unmatched   int64
	levelCounts map[string]int64
	groupCounts map[string]int64
	window      []time.Time // entry arrival times within epsWindow
	last        time.Time
	dropped     func() int64
	jobCount    func() int
	entries     <-chan model.LogEntry
}

// New creates an Aggregator reading from a hub subscriber channel.
// droppedFn and jobCountFn provide live values from the hub and the
// scheduler respectively.
func New(entries <-chan model.LogEntry, droppedFn func() int64, jobCountFn func() int) *Aggregator {
	return &Aggregator{
		startTime:   time.Now(),
		levelCounts: make(map[string]int64),
		groupCounts: make(map[string]int64),
		dropped:     droppedFn,
		jobCount:    jobCountFn,
		entries:     entries,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	cutoff := time.Now().Add(-epsWindow)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	s := Stats{
		Uptime:      time.Since(a.startTime).Truncate(time.Second).String(),
		Forwarded:   a.forwarded,
		EPS:         float64(recent) / epsWindow.Seconds(),
		LevelCounts: maps.Clone(a.levelCounts),
		GroupCounts: maps.Clone(a.groupCounts),
		Unmatched:   a.unmatched,
		Dropped:     a.dropped(),
		JobsWatched: a.jobCount(),
	}
	if !a.last.IsZero() {
		last := a.last
		s.LastEntry = &last
	}
	return s
}

// Start consumes entries until ctx is cancelled or the channel closes.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-a.entries:
			if !ok {
				return
			}
			a.record(entry)
		case <-ticker.C:
			a.prune()
		}
	}
}

func (a *Aggregator) record(entry model.LogEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	a.forwarded++
	a.levelCounts[entry.Level]++
	a.groupCounts[entry.Group]++
	if !entry.Matched {
		a.unmatched++
	}
	a.window = append(a.window, now)
	a.last = now
}

// prune removes arrival times older than the EPS window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-epsWindow)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
