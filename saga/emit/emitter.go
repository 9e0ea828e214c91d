package emit

import "context"

// Emitter receives observability events from workflow execution.
//
// Implementations should be thread-safe (the engine may be driven from many
// goroutines), should not block workflow execution, and must not panic:
// emission failures are the emitter's problem, never the workflow's.
type Emitter interface {
	// Emit delivers a single event. Errors are handled internally.
	Emit(event Event)

	// EmitBatch delivers multiple events in order. Implementations may
	// amortize I/O across the batch. Individual event failures should be
	// logged, not returned; an error indicates the batch as a whole could
	// not be processed.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush forces delivery of any buffered events. Safe to call multiple
	// times. Call before shutdown to avoid losing trailing events.
	Flush(ctx context.Context) error
}
