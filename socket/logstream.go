package socket

import (
	"context"
	"sync"
	"time"
)

// DefaultLogFlushInterval paces test_log_records pushes to operators.
const DefaultLogFlushInterval = 500 * time.Millisecond

// LogStream batches runner log lines and pushes them to main clients as
// test_log_records frames.
type LogStream struct {
	hub      *Hub
	interval time.Duration

	mu      sync.Mutex
	pending []TestLogRecord
}

// NewLogStream creates a stream bound to the hub. A zero interval selects
// the default flush cadence.
func NewLogStream(hub *Hub, interval time.Duration) *LogStream {
	if interval <= 0 {
		interval = DefaultLogFlushInterval
	}
	return &LogStream{hub: hub, interval: interval}
}

// Append queues one log line for the next flush.
func (s *LogStream) Append(level, message string) {
	record := TestLogRecord{
		Level:     level,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		Message:   message,
	}
	s.mu.Lock()
	s.pending = append(s.pending, record)
	s.mu.Unlock()
}

// Flush pushes all queued lines in one frame. Empty queues send nothing.
func (s *LogStream) Flush() {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	s.hub.Broadcast(MessageTestLogRecords, batch)
}

// Run flushes periodically until the context is cancelled, then drains the
// remaining queue.
func (s *LogStream) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-ctx.Done():
			s.Flush()
			return
		}
	}
}
