package saga

import "time"

// Status is the lifecycle status of a workflow instance.
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusRunning      Status = "RUNNING"
	StatusCompleted    Status = "COMPLETED"
	StatusFailed       Status = "FAILED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
	StatusTimedOut     Status = "TIMED_OUT"
)

// Active reports whether the status accepts further engine work.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusCompensating
}

// Terminal reports whether the status ends the instance's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCompensated, StatusTimedOut:
		return true
	}
	return false
}

// Instance is one execution of a workflow definition.
//
// Instances are exclusively owned by the engine's store; values returned to
// callers are snapshots with their own top-level context map, so adding,
// replacing or deleting context keys does not affect engine state. Nested
// reference values inside the context are not copied.
type Instance struct {
	// ID is the engine-generated unique instance id.
	ID string `json:"id"`

	// DefinitionID names the definition this instance executes.
	DefinitionID string `json:"definition_id"`

	// CurrentState is the name of the state the instance currently sits in.
	CurrentState string `json:"current_state"`

	// Status is the lifecycle status.
	Status Status `json:"status"`

	// Context is the instance's accumulated key/value data.
	Context Context `json:"context"`

	// CreatedAt is when the instance was started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the instance last changed. Always >= CreatedAt.
	UpdatedAt time.Time `json:"updated_at"`

	// CompletedAt is set once the instance reaches a terminal status.
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Error describes why the instance failed, when it did.
	Error string `json:"error,omitempty"`
}

// Active reports whether the instance still accepts engine work.
func (i *Instance) Active() bool { return i.Status.Active() }

// Terminal reports whether the instance has finished.
func (i *Instance) Terminal() bool { return i.Status.Terminal() }

// Snapshot returns a copy of the instance with a shallow clone of its context
// map (see Context.Clone): top-level keys are copied, nested reference values
// are shared with the engine-owned context.
func (i *Instance) Snapshot() Instance {
	out := *i
	out.Context = i.Context.Clone()
	return out
}

// Record pairs an instance with its execution history for storage. The pair
// is written as one unit so a status update and its history append are
// atomic, which durable stores must preserve.
type Record struct {
	Instance Instance `json:"instance"`

	// History is the ordered sequence of state names visited, in entry
	// order. The first entry is always the definition's initial state; the
	// sequence is append-only.
	History []string `json:"history"`
}

// snapshot copies the record: the instance via Snapshot and the history slice.
func (r Record) snapshot() Record {
	out := Record{Instance: r.Instance.Snapshot()}
	out.History = make([]string, len(r.History))
	copy(out.History, r.History)
	return out
}
