package hub

import (
	"fmt"
	"testing"

	"github.com/atikulmunna/poplog/internal/model"
)

// BenchmarkHubBroadcast measures the cost of broadcasting to N subscribers.
func BenchmarkHubBroadcast1(b *testing.B)  { benchHubBroadcast(b, 1) }
func BenchmarkHubBroadcast5(b *testing.B)  { benchHubBroadcast(b, 5) }
func BenchmarkHubBroadcast10(b *testing.B) { benchHubBroadcast(b, 10) }

func benchHubBroadcast(b *testing.B, numSubs int) {
	h := New(nil)
	defer h.Close()

	// Create subscribers and drain them.
	for i := 0; i < numSubs; i++ {
		ch := h.Subscribe()
		go func() {
			for range ch {
			}
		}()
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		h.Forward(model.LogEntry{
			Job:     "bench/0",
			Level:   "INFO",
			Message: fmt.Sprintf("benchmark event %d", i),
		})
	}
}
