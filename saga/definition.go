package saga

import (
	"fmt"
	"time"
)

// StateKind classifies a state within a workflow definition.
//
// END and FAIL are terminal kinds: once an instance enters one, no outgoing
// transitions are executed. CHOICE and PARALLEL are declarable for forward
// compatibility but execute as plain task states.
type StateKind string

const (
	KindStart    StateKind = "START"
	KindTask     StateKind = "TASK"
	KindChoice   StateKind = "CHOICE"
	KindParallel StateKind = "PARALLEL"
	KindEnd      StateKind = "END"
	KindFail     StateKind = "FAIL"
)

// Terminal reports whether the kind ends instance execution on entry.
func (k StateKind) Terminal() bool {
	return k == KindEnd || k == KindFail
}

// State is one node of a workflow definition.
type State struct {
	// Name is unique within the definition.
	Name string

	// Kind classifies the state. Empty defaults to TASK at build time.
	Kind StateKind

	// Action optionally names an executor invoked when an instance enters
	// this state. The name is not validated against the executor registry:
	// registries are open and may grow after definitions are registered.
	Action string

	// Compensation optionally names an executor invoked when the saga is
	// compensated after this state was visited.
	Compensation string

	// Timeout optionally bounds how long an instance may sit in this state.
	// The engine declares but does not enforce it; an external scheduler may
	// realize it by calling Cancel.
	Timeout time.Duration
}

// Transition is an edge in the workflow's state graph, labeled by an event
// name and optionally guarded by a condition expression.
type Transition struct {
	From  string
	To    string
	Event string

	// Condition is an opaque guard expression handed to the engine's
	// ConditionEvaluator. Empty means "always allow".
	Condition string
}

// Definition is an immutable workflow definition: the states an instance can
// visit and the event-labeled transitions between them.
//
// Definitions are built once (via Build or ParseDefinition) and registered
// with an engine. The engine never mutates a registered definition.
type Definition struct {
	ID          string
	Name        string
	Description string

	// InitialState is the authoritative entry point. A state of kind START
	// is conventional but not required.
	InitialState string

	// States preserves declaration order.
	States []State

	// Transitions preserves declaration order; when several transitions
	// match an event the first declared one wins.
	Transitions []Transition

	// Timeout optionally bounds the whole workflow. Declared, not enforced.
	Timeout time.Duration
}

// StateByName returns the named state and whether it is declared.
func (d *Definition) StateByName(name string) (State, bool) {
	for _, s := range d.States {
		if s.Name == name {
			return s, true
		}
	}
	return State{}, false
}

// Validate checks the structural invariants of a definition: non-empty id,
// name and initial state; unique non-empty state names; initial state
// declared; every transition referencing declared states and carrying an
// event name.
//
// Action and compensation names are deliberately not validated against any
// registry. Overlapping transitions (same from+event) are not flagged; the
// engine picks the first declared match.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("definition id must not be empty")
	}
	if d.Name == "" {
		return fmt.Errorf("definition %q: name must not be empty", d.ID)
	}
	if d.InitialState == "" {
		return fmt.Errorf("definition %q: initial state must not be empty", d.ID)
	}
	if len(d.States) == 0 {
		return fmt.Errorf("definition %q: at least one state is required", d.ID)
	}

	seen := make(map[string]bool, len(d.States))
	for _, s := range d.States {
		if s.Name == "" {
			return fmt.Errorf("definition %q: state name must not be empty", d.ID)
		}
		if seen[s.Name] {
			return fmt.Errorf("definition %q: duplicate state %q", d.ID, s.Name)
		}
		seen[s.Name] = true
	}

	if !seen[d.InitialState] {
		return fmt.Errorf("definition %q: initial state %q is not declared", d.ID, d.InitialState)
	}

	for i, t := range d.Transitions {
		if t.Event == "" {
			return fmt.Errorf("definition %q: transition %d has no event", d.ID, i)
		}
		if !seen[t.From] {
			return fmt.Errorf("definition %q: transition %d references unknown state %q", d.ID, i, t.From)
		}
		if !seen[t.To] {
			return fmt.Errorf("definition %q: transition %d references unknown state %q", d.ID, i, t.To)
		}
	}

	return nil
}

// Builder assembles a Definition incrementally. It exists because
// definitions have many optional fields; plain struct literals remain fully
// supported and go through the same Validate.
//
// Example:
//
//	def, err := saga.NewDefinition("order", "Order processing").
//	    Description("Charge, reserve and ship an order").
//	    InitialState("validate").
//	    State(saga.State{Name: "validate", Kind: saga.KindTask, Action: "validateOrder"}).
//	    State(saga.State{Name: "done", Kind: saga.KindEnd}).
//	    Transition("validate", "done", "validated").
//	    Build()
type Builder struct {
	def Definition
}

// NewDefinition starts a builder for a definition with the given id and name.
func NewDefinition(id, name string) *Builder {
	return &Builder{def: Definition{ID: id, Name: name}}
}

// Description sets the human-readable description.
func (b *Builder) Description(desc string) *Builder {
	b.def.Description = desc
	return b
}

// InitialState sets the entry state name.
func (b *Builder) InitialState(name string) *Builder {
	b.def.InitialState = name
	return b
}

// State appends a state. An empty kind defaults to TASK.
func (b *Builder) State(s State) *Builder {
	if s.Kind == "" {
		s.Kind = KindTask
	}
	b.def.States = append(b.def.States, s)
	return b
}

// Transition appends an unguarded transition.
func (b *Builder) Transition(from, to, event string) *Builder {
	b.def.Transitions = append(b.def.Transitions, Transition{From: from, To: to, Event: event})
	return b
}

// ConditionalTransition appends a transition guarded by an opaque condition
// expression evaluated by the engine's ConditionEvaluator.
func (b *Builder) ConditionalTransition(from, to, event, condition string) *Builder {
	b.def.Transitions = append(b.def.Transitions, Transition{From: from, To: to, Event: event, Condition: condition})
	return b
}

// Timeout sets the workflow-level timeout.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.def.Timeout = d
	return b
}

// Build validates and returns the assembled definition.
func (b *Builder) Build() (Definition, error) {
	if b.def.InitialState == "" && len(b.def.States) > 0 {
		// Convention: first declared state is the entry unless set explicitly.
		b.def.InitialState = b.def.States[0].Name
	}
	if err := b.def.Validate(); err != nil {
		return Definition{}, err
	}
	return b.def, nil
}
