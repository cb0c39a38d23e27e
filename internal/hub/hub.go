// Package hub fans forwarded job log entries out to live subscribers such
// as websocket clients and the stats aggregator.
package hub

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/atikulmunna/poplog/internal/model"
)

const subscriberBuffer = 1024

// Hub broadcasts LogEntry values to all subscribers. It is a scheduler
// sink and is safe for concurrent use.
type Hub struct {
	logger      *zap.Logger
	mu          sync.RWMutex
	subscribers map[chan model.LogEntry]struct{}
	closed      bool
	dropped     atomic.Int64
}

// New creates an empty Hub. A nil logger discards diagnostics.
func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:      logger,
		subscribers: make(map[chan model.LogEntry]struct{}),
	}
}

// Subscribe returns a buffered channel that will receive forwarded entries.
// Multiple consumers can subscribe; each gets a copy of every entry.
// The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() <-chan model.LogEntry {
	ch := make(chan model.LogEntry, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(sub <-chan model.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		if ch == sub {
			delete(h.subscribers, ch)
			close(ch)
			return
		}
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total number of entries dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Forward sends an entry to all subscribers.
// If a subscriber's channel is full, the entry is dropped for that subscriber.
func (h *Hub) Forward(entry model.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- entry:
		default:
			// Log the first drop and then every 1000th.
			if n := h.dropped.Add(1); n%1000 == 1 {
				h.logger.Warn("dropped entry for slow consumer", zap.Int64("total_dropped", n))
			}
		}
	}
}

// Close closes all subscriber channels. Later entries are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
