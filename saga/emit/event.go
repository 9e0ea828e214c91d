// Package emit provides structured event emission for workflow execution.
package emit

// Event represents an observability event emitted during workflow execution.
//
// The engine emits events on instance start, state entry, action invocation
// and failure, each compensation step, and terminal transitions. Events are
// purely observational: dropping every event changes nothing about engine
// behavior.
//
// Events are delivered to an Emitter which can log them, turn them into
// OpenTelemetry spans, buffer them for inspection, or discard them.
type Event struct {
	// InstanceID identifies the workflow instance that emitted this event.
	InstanceID string

	// DefinitionID names the workflow definition the instance executes.
	// Empty for events emitted before the definition is resolved.
	DefinitionID string

	// State is the state the event relates to. Empty for instance-level
	// events (start, cancel, compensation start and finish).
	State string

	// Msg is a short machine-oriented event name, e.g. "action_failed".
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "action": action or compensation executor name
	//   - "error": failure details
	//   - "duration_ms": executor runtime in milliseconds
	//   - "event": the external event name that drove a transition
	//   - "status": the instance status after the event
	Meta map[string]any
}
