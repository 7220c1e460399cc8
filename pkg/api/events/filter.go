package events

import (
	"strings"
	"sync"
)

// Filter is a mutable set of event types. An empty Filter matches every
// event. It is safe for concurrent use.
type Filter struct {
	mu    sync.RWMutex
	types map[string]struct{}
}

func NewFilter(types ...string) *Filter {
	f := &Filter{types: make(map[string]struct{})}
	f.Add(types...)
	return f
}

// Add narrows the filter to also match types. Blank names are ignored.
func (f *Filter) Add(types ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			f.types[t] = struct{}{}
		}
	}
}

// Remove drops types. Calling it with no types clears the filter, which
// makes it match everything again.
func (f *Filter) Remove(types ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(types) == 0 {
		clear(f.types)
		return
	}
	for _, t := range types {
		delete(f.types, strings.TrimSpace(t))
	}
}

func (f *Filter) Match(eventType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.types) == 0 {
		return true
	}
	_, ok := f.types[eventType]
	return ok
}
