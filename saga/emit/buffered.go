package emit

import (
	"context"
	"sync"
)

// BufferedEmitter implements Emitter by storing events in memory, organized
// by instance id.
//
// It is meant for tests, debugging and small dashboards. Everything is kept
// until cleared, so long-running production workflows should prefer a
// persistent backend.
//
// Example:
//
//	emitter := emit.NewBufferedEmitter()
//	engine := saga.New(saga.WithEmitter(emitter))
//	// ... drive workflows ...
//	for _, ev := range emitter.History(instanceID) {
//	    fmt.Println(ev.Msg)
//	}
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // instance id -> events in emission order
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit appends the event to its instance's history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.InstanceID] = append(b.events[event.InstanceID], event)
}

// EmitBatch appends all events in order.
func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, event := range events {
		b.events[event.InstanceID] = append(b.events[event.InstanceID], event)
	}
	return nil
}

// Flush is a no-op; events are already in memory.
func (b *BufferedEmitter) Flush(_ context.Context) error { return nil }

// History returns a copy of the events recorded for an instance, in
// emission order.
func (b *BufferedEmitter) History(instanceID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.events[instanceID]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}

// Messages returns just the Msg field of an instance's events, in order.
// Convenient for test assertions.
func (b *BufferedEmitter) Messages(instanceID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.events[instanceID]
	out := make([]string, len(src))
	for i, ev := range src {
		out[i] = ev.Msg
	}
	return out
}

// Clear drops the recorded events for an instance.
func (b *BufferedEmitter) Clear(instanceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, instanceID)
}

// ClearAll drops every recorded event.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]Event)
}
