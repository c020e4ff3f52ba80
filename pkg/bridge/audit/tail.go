package audit

import (
	"context"
	"sort"
	"sync"
)

// TailBuffer decorates a Sink with an in-memory ring buffer of the most
// recent events, so the management API's events_tail(since, max) call
// (spec.md §6) can serve recent history without re-reading the rotated
// log file. Every Record call still reaches the wrapped Sink unchanged;
// the ring buffer is a side channel, not a replacement for durable
// storage.
//
// Grounded on the teacher's pkg/container/runtime log-tailing helpers,
// which keep a bounded in-process buffer of recent lines for the same
// reason: serving a "show me recent activity" query without re-opening
// the file on every call.
type TailBuffer struct {
	inner Sink
	limit int

	mu     sync.Mutex
	events []*Event
	next   int
	filled bool
}

// DefaultTailCapacity bounds the ring buffer when none is given.
const DefaultTailCapacity = 1000

// NewTailBuffer wraps inner with a ring buffer of the given capacity
// (DefaultTailCapacity if capacity <= 0).
func NewTailBuffer(inner Sink, capacity int) *TailBuffer {
	if capacity <= 0 {
		capacity = DefaultTailCapacity
	}
	return &TailBuffer{inner: inner, limit: capacity, events: make([]*Event, capacity)}
}

// Record forwards to the wrapped Sink and appends to the ring buffer.
func (t *TailBuffer) Record(ctx context.Context, event *Event) {
	t.inner.Record(ctx, event)
	t.mu.Lock()
	t.events[t.next] = event
	t.next = (t.next + 1) % t.limit
	if t.next == 0 {
		t.filled = true
	}
	t.mu.Unlock()
}

// Dropped forwards to the wrapped Sink.
func (t *TailBuffer) Dropped() uint64 { return t.inner.Dropped() }

// Close forwards to the wrapped Sink.
func (t *TailBuffer) Close() error { return t.inner.Close() }

// Tail returns every buffered event with Timestamp after since, oldest
// first, capped to max entries (the most recent max, if more match). A
// zero max returns every matching event.
func (t *TailBuffer) Tail(since int64, max int) []*Event {
	t.mu.Lock()
	var ordered []*Event
	if t.filled {
		ordered = append(ordered, t.events[t.next:]...)
	}
	ordered = append(ordered, t.events[:t.next]...)
	t.mu.Unlock()

	var out []*Event
	for _, e := range ordered {
		if e == nil {
			continue
		}
		if e.Timestamp.Unix() > since {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}
