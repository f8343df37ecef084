package events

import (
	"log/slog"
	"sync/atomic"
)

// Bus is a bounded event queue. Publish never blocks a producer thread:
// when the consumer falls behind, events are dropped and counted.
type Bus struct {
	logger  *slog.Logger
	ch      chan Event
	dropped atomic.Int64
}

// NewBus builds a bus with the given queue capacity.
func NewBus(logger *slog.Logger, capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{logger: logger, ch: make(chan Event, capacity)}
}

// Publish enqueues one event, reporting whether it was accepted.
func (b *Bus) Publish(ev Event) bool {
	select {
	case b.ch <- ev:
		return true
	default:
		b.dropped.Add(1)
		if b.logger != nil {
			b.logger.Warn("event dropped, queue full", "kind", string(ev.Kind()))
		}
		return false
	}
}

// C exposes the consumer side of the queue.
func (b *Bus) C() <-chan Event {
	return b.ch
}

// Dropped reports how many events were discarded since creation.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
