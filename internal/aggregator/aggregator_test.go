package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/poplog/internal/model"
)

func TestEPSCalculation(t *testing.T) {
	ch := make(chan model.LogEntry, 100)
	agg := New(ch, func() int64 { return 0 }, func() int { return 2 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Start(ctx)

	for i := 0; i < 10; i++ {
		ch <- model.LogEntry{Level: "INFO", Message: "test", Matched: true}
	}

	require.Eventually(t, func() bool { return agg.Snapshot().Forwarded == 10 }, time.Second, 10*time.Millisecond)
	stats := agg.Snapshot()
	assert.Greater(t, stats.EPS, 0.0)
	assert.Equal(t, 2, stats.JobsWatched)
	assert.NotNil(t, stats.LastEntry)
}

func TestLevelAndGroupCounts(t *testing.T) {
	ch := make(chan model.LogEntry, 100)
	agg := New(ch, func() int64 { return 7 }, func() int { return 1 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agg.Start(ctx)

	ch <- model.LogEntry{Group: "Align", Level: "INFO", Message: "a", Matched: true}
	ch <- model.LogEntry{Group: "Align", Level: "INFO", Message: "b"}
	ch <- model.LogEntry{Group: "Call", Level: "ERROR", Message: "c", Matched: true}
	ch <- model.LogEntry{Group: "Call", Level: "WARNING", Message: "d", Matched: true}
	ch <- model.LogEntry{Group: "Call", Level: "ERROR", Message: "e", Matched: true}

	require.Eventually(t, func() bool { return agg.Snapshot().Forwarded == 5 }, time.Second, 10*time.Millisecond)
	stats := agg.Snapshot()
	assert.Equal(t, map[string]int64{"INFO": 2, "ERROR": 2, "WARNING": 1}, stats.LevelCounts)
	assert.Equal(t, map[string]int64{"Align": 2, "Call": 3}, stats.GroupCounts)
	assert.EqualValues(t, 1, stats.Unmatched)
	assert.EqualValues(t, 7, stats.Dropped)
}

func TestStopsWhenChannelCloses(t *testing.T) {
	ch := make(chan model.LogEntry)
	agg := New(ch, func() int64 { return 0 }, func() int { return 0 })

	done := make(chan struct{})
	go func() {
		agg.Start(context.Background())
		close(done)
	}()
	close(ch)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
	assert.Nil(t, agg.Snapshot().LastEntry)
}
