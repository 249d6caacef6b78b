package hooks

import "sync/atomic"

// DefaultChannelCapacity bounds the event backlog of one channel.
const DefaultChannelCapacity = 256

// Channel is the FIFO event queue between a runner and the engine. Posting
// never blocks the producer; polling never blocks the consumer.
type Channel struct {
	events   chan Event
	finished atomic.Bool
	dropped  atomic.Int64
}

// NewChannel creates a channel with the given backlog capacity. Non-positive
// capacities fall back to DefaultChannelCapacity.
func NewChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Channel{events: make(chan Event, capacity)}
}

// Post enqueues an event, dropping it when the backlog is full. A stop event
// marks the channel finished even when dropped.
func (c *Channel) Post(ev Event) {
	if ev.Type == EventStop {
		c.finished.Store(true)
	}
	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
	}
}

// Poll removes and returns the oldest pending event without blocking.
func (c *Channel) Poll() (Event, bool) {
	select {
	case ev := <-c.events:
		return ev, true
	default:
		return Event{}, false
	}
}

// Drain removes and returns every pending event.
func (c *Channel) Drain() []Event {
	var out []Event
	for {
		ev, ok := c.Poll()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

// Finished reports whether the runner posted its stop event.
func (c *Channel) Finished() bool {
	return c.finished.Load()
}

// Dropped returns the number of events lost to a full backlog.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// Reset discards pending events and clears the finished latch so the channel
// can carry the next test run. Only the consumer side may call it.
func (c *Channel) Reset() {
	c.Drain()
	c.finished.Store(false)
}
