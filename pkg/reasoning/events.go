package reasoning

import "time"

// EventType identifies an engine event.
type EventType string

const (
	EventIngested EventType = "memory.ingested"
	EventRejected EventType = "memory.rejected"
	EventPruned   EventType = "memory.pruned"
)

// Event describes a change made (or refused) by the engine.
type Event struct {
	Type EventType `json:"type"`

	// ID is set for ingested events.
	ID string `json:"id,omitempty"`

	// Reason is set for rejected events.
	Reason string `json:"reason,omitempty"`

	// Count is the number of records removed by a prune.
	Count int `json:"count,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Observer receives engine events. OnEvent is called synchronously on the
// calling goroutine and must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) {
	f(e)
}
