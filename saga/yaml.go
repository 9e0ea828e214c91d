package saga

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlDefinition is the on-disk shape of a declarative workflow definition.
// Durations use Go syntax ("30s", "5m").
type yamlDefinition struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	InitialState string           `yaml:"initialState"`
	Timeout      string           `yaml:"timeout"`
	States       []yamlState      `yaml:"states"`
	Transitions  []yamlTransition `yaml:"transitions"`
}

type yamlState struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"`
	Action       string `yaml:"action"`
	Compensation string `yaml:"compensation"`
	Timeout      string `yaml:"timeout"`
}

type yamlTransition struct {
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	Event     string `yaml:"event"`
	Condition string `yaml:"condition"`
}

// ParseDefinition decodes a YAML workflow definition and runs it through the
// same validation as the builder.
//
// Example document:
//
//	id: order
//	name: Order processing
//	initialState: validate
//	timeout: 5m
//	states:
//	  - name: validate
//	    kind: TASK
//	    action: validateOrder
//	    compensation: releaseValidation
//	  - name: done
//	    kind: END
//	transitions:
//	  - from: validate
//	    to: done
//	    event: validated
func ParseDefinition(data []byte) (Definition, error) {
	var raw yamlDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Definition{}, fmt.Errorf("failed to decode definition: %w", err)
	}

	def := Definition{
		ID:           raw.ID,
		Name:         raw.Name,
		Description:  raw.Description,
		InitialState: raw.InitialState,
	}

	var err error
	if def.Timeout, err = parseOptionalDuration(raw.Timeout); err != nil {
		return Definition{}, fmt.Errorf("definition %q: invalid timeout: %w", raw.ID, err)
	}

	for _, s := range raw.States {
		kind := StateKind(s.Kind)
		if kind == "" {
			kind = KindTask
		}
		timeout, err := parseOptionalDuration(s.Timeout)
		if err != nil {
			return Definition{}, fmt.Errorf("definition %q: state %q: invalid timeout: %w", raw.ID, s.Name, err)
		}
		def.States = append(def.States, State{
			Name:         s.Name,
			Kind:         kind,
			Action:       s.Action,
			Compensation: s.Compensation,
			Timeout:      timeout,
		})
	}

	for _, t := range raw.Transitions {
		def.Transitions = append(def.Transitions, Transition{
			From:      t.From,
			To:        t.To,
			Event:     t.Event,
			Condition: t.Condition,
		})
	}

	if def.InitialState == "" && len(def.States) > 0 {
		def.InitialState = def.States[0].Name
	}

	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
