package saga

import (
	"testing"
	"time"
)

func TestDefinitionValidate(t *testing.T) {
	valid := func() Definition {
		return Definition{
			ID:           "d",
			Name:         "Demo",
			InitialState: "a",
			States: []State{
				{Name: "a", Kind: KindStart},
				{Name: "b", Kind: KindEnd},
			},
			Transitions: []Transition{{From: "a", To: "b", Event: "go"}},
		}
	}

	t.Run("valid definition passes", func(t *testing.T) {
		def := valid()
		if err := def.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"empty id", func(d *Definition) { d.ID = "" }},
		{"empty name", func(d *Definition) { d.Name = "" }},
		{"empty initial state", func(d *Definition) { d.InitialState = "" }},
		{"no states", func(d *Definition) { d.States = nil }},
		{"empty state name", func(d *Definition) { d.States[0].Name = "" }},
		{"duplicate state names", func(d *Definition) { d.States[1].Name = "a" }},
		{"undeclared initial state", func(d *Definition) { d.InitialState = "ghost" }},
		{"transition without event", func(d *Definition) { d.Transitions[0].Event = "" }},
		{"transition from unknown state", func(d *Definition) { d.Transitions[0].From = "ghost" }},
		{"transition to unknown state", func(d *Definition) { d.Transitions[0].To = "ghost" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := valid()
			tc.mutate(&def)
			if err := def.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	t.Run("self transition is allowed", func(t *testing.T) {
		def := valid()
		def.Transitions = append(def.Transitions, Transition{From: "a", To: "a", Event: "retry"})
		if err := def.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("overlapping transitions are not flagged", func(t *testing.T) {
		def := valid()
		def.Transitions = append(def.Transitions, Transition{From: "a", To: "b", Event: "go"})
		if err := def.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDefinitionBuilder(t *testing.T) {
	t.Run("builds a full definition", func(t *testing.T) {
		def, err := NewDefinition("order", "Order processing").
			Description("demo").
			InitialState("validate").
			State(State{Name: "validate", Action: "validateOrder", Compensation: "release", Timeout: 30 * time.Second}).
			State(State{Name: "done", Kind: KindEnd}).
			Transition("validate", "done", "validated").
			ConditionalTransition("validate", "done", "force", "is-admin").
			Timeout(5 * time.Minute).
			Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if def.ID != "order" || def.Description != "demo" {
			t.Errorf("unexpected identity fields: %+v", def)
		}
		if def.States[0].Kind != KindTask {
			t.Errorf("empty kind should default to TASK, got %s", def.States[0].Kind)
		}
		if def.Transitions[1].Condition != "is-admin" {
			t.Errorf("expected condition to be kept, got %+v", def.Transitions[1])
		}
		if def.Timeout != 5*time.Minute {
			t.Errorf("expected workflow timeout, got %v", def.Timeout)
		}
	})

	t.Run("first state becomes initial when unset", func(t *testing.T) {
		def, err := NewDefinition("d", "Demo").
			State(State{Name: "first"}).
			State(State{Name: "second", Kind: KindEnd}).
			Transition("first", "second", "go").
			Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if def.InitialState != "first" {
			t.Errorf("expected initial state 'first', got %q", def.InitialState)
		}
	})

	t.Run("invalid definition fails to build", func(t *testing.T) {
		_, err := NewDefinition("d", "Demo").
			InitialState("ghost").
			State(State{Name: "a"}).
			Build()
		if err == nil {
			t.Error("expected build error for undeclared initial state")
		}
	})
}

func TestStateKind(t *testing.T) {
	terminal := []StateKind{KindEnd, KindFail}
	nonTerminal := []StateKind{KindStart, KindTask, KindChoice, KindParallel}
	for _, k := range terminal {
		if !k.Terminal() {
			t.Errorf("%s: expected terminal", k)
		}
	}
	for _, k := range nonTerminal {
		if k.Terminal() {
			t.Errorf("%s: expected non-terminal", k)
		}
	}
}

func TestStateByName(t *testing.T) {
	def := Definition{States: []State{{Name: "a"}, {Name: "b", Action: "act"}}}
	s, ok := def.StateByName("b")
	if !ok || s.Action != "act" {
		t.Errorf("expected state b with action, got %+v ok=%v", s, ok)
	}
	if _, ok := def.StateByName("ghost"); ok {
		t.Error("expected miss for unknown state")
	}
}
