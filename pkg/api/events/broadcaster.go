// Package events fans engine events out to in-process subscribers such as
// the websocket handler and the gRPC Watch stream.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/softreason/softreason/pkg/reasoning"
)

const defaultBuffer = 16

// Event is the wire form of an engine event.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Subscription is one subscriber's view of the broadcaster. Events that do
// not pass Filter are never queued, so they cannot crowd out matching ones.
type Subscription struct {
	ch     chan Event
	filter *Filter
}

// Events is closed on Unsubscribe or when the broadcaster closes.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Filter may be changed while the subscription is live.
func (s *Subscription) Filter() *Filter { return s.filter }

// Broadcaster implements reasoning.Observer. Delivery never blocks the
// engine: a subscriber whose buffer is full misses the event.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	dropped atomic.Uint64
}

var _ reasoning.Observer = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber for types, or for every type when none
// are given. After Close it returns a subscription whose channel is
// already closed.
func (b *Broadcaster) Subscribe(buffer int, types ...string) *Subscription {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &Subscription{ch: make(chan Event, buffer), filter: NewFilter(types...)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe is idempotent.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Broadcast stamps ev if needed and offers it to every matching
// subscriber.
func (b *Broadcaster) Broadcast(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	// Held for the sends so no channel is closed underneath them.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.filter.Match(ev.Type) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) OnEvent(e reasoning.Event) {
	b.Broadcast(Event{
		Type:      string(e.Type),
		Timestamp: e.Timestamp.UTC(),
		Payload:   payloadOf(e),
	})
}

func payloadOf(e reasoning.Event) map[string]any {
	p := make(map[string]any, 2)
	switch e.Type {
	case reasoning.EventPruned:
		p["count"] = e.Count
	default:
		if e.ID != "" {
			p["id"] = e.ID
		}
		if e.Reason != "" {
			p["reason"] = e.Reason
		}
	}
	return p
}

// Dropped counts deliveries skipped on full buffers.
func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close ends every subscription. Later Broadcast calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	clear(b.subs)
}
