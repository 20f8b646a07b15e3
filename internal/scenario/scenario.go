package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"aisim/internal/protocol"
)

// Trigger event types.
const (
	// EventPhaseTime fires once the simulation clock has advanced Value
	// seconds since the phase was entered.
	EventPhaseTime = "phase_time"
	// EventPhaseSteps fires once Value steps have run in the phase.
	EventPhaseSteps = "phase_steps"
)

// Scenario is a scripted sequence of actuator command phases.
type Scenario struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Phases      []Phase `yaml:"phases"`
}

// Phase describes a stage of the script: the commands issued on entry and the
// triggers that move to another phase.
type Phase struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Commands    []Command `yaml:"commands,omitempty"`
	Triggers    []Trigger `yaml:"triggers,omitempty"`
}

// Command sets one actuator input.
type Command struct {
	Actuator string  `yaml:"actuator"`
	Value    float64 `yaml:"value"`
}

// Protocol converts c to the command type the mailbox carries.
func (c Command) Protocol() protocol.Command {
	return protocol.Command{Name: c.Actuator, Value: c.Value}
}

// Trigger moves the scenario to another phase based on an event.
type Trigger struct {
	Event string  `yaml:"event"`
	Value float64 `yaml:"value"`
	Next  string  `yaml:"next"`
}

// Event represents a runtime occurrence that may advance the scenario.
type Event struct {
	Type  string
	Value float64
}

// Load reads a YAML scenario definition from disk.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve returns the built-in scenario called nameOrPath, or loads it from disk.
func Resolve(nameOrPath string) (*Scenario, error) {
	if s, ok := BuiltIn()[nameOrPath]; ok {
		return &s, nil
	}
	return Load(nameOrPath)
}

// Validate checks that the scenario has phases and that every trigger points
// at a known phase.
func (s *Scenario) Validate() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("scenario %q has no phases", s.Name)
	}
	names := make(map[string]bool, len(s.Phases))
	for _, p := range s.Phases {
		if names[p.Name] {
			return fmt.Errorf("scenario %q: duplicate phase %q", s.Name, p.Name)
		}
		names[p.Name] = true
	}
	for _, p := range s.Phases {
		for _, tr := range p.Triggers {
			switch tr.Event {
			case EventPhaseTime, EventPhaseSteps:
			default:
				return fmt.Errorf("scenario %q phase %q: unknown trigger event %q", s.Name, p.Name, tr.Event)
			}
			if !names[tr.Next] {
				return fmt.Errorf("scenario %q phase %q: unknown next phase %q", s.Name, p.Name, tr.Next)
			}
		}
	}
	return nil
}

// Phase returns the phase called name.
func (s *Scenario) Phase(name string) (Phase, bool) {
	for _, p := range s.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return Phase{}, false
}

// NextPhase returns the name of the next phase given the current phase and event.
// If no trigger matches, ok will be false.
func (s *Scenario) NextPhase(current string, ev Event) (next string, ok bool) {
	for _, p := range s.Phases {
		if p.Name != current {
			continue
		}
		for _, tr := range p.Triggers {
			if tr.Event == ev.Type && ev.Value >= tr.Value {
				return tr.Next, true
			}
		}
	}
	return "", false
}
