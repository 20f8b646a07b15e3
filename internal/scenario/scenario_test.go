package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"aisim/internal/protocol"
)

func TestScenarioTransition(t *testing.T) {
	s := Scenario{
		Phases: []Phase{{
			Name:     "swing",
			Triggers: []Trigger{{Event: EventPhaseTime, Value: 10, Next: "hold"}},
		}, {
			Name: "hold",
		}},
	}

	next, ok := s.NextPhase("swing", Event{Type: EventPhaseTime, Value: 10})
	if !ok || next != "hold" {
		t.Fatalf("expected transition to hold, got %s", next)
	}
	if _, ok := s.NextPhase("swing", Event{Type: EventPhaseSteps, Value: 100}); ok {
		t.Fatal("steps event must not match a time trigger")
	}
}

func TestLoadScenario(t *testing.T) {
	sc, err := Load("testdata/simple.yaml")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if sc.Name != "example" {
		t.Fatalf("unexpected name %s", sc.Name)
	}
	if sc.Description != "basic test scenario" {
		t.Fatalf("unexpected description %s", sc.Description)
	}
	if len(sc.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(sc.Phases))
	}
	if c := sc.Phases[0].Commands[0]; c.Actuator != "hip_x_right" || c.Value != 0.25 {
		t.Fatalf("unexpected command %+v", c)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":   "name: empty\n",
		"event":   "phases:\n  - name: a\n    triggers: [{event: target_reached, value: 1, next: a}]\n",
		"next":    "phases:\n  - name: a\n    triggers: [{event: phase_time, value: 1, next: b}]\n",
		"dupe":    "phases:\n  - name: a\n  - name: a\n",
		"garbage": "phases: [",
	}
	dir := t.TempDir()
	for name, body := range cases {
		path := filepath.Join(dir, name+".yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestBuiltInArcs(t *testing.T) {
	for name, arc := range BuiltIn() {
		if arc.Description == "" {
			t.Fatalf("arc %s missing description", name)
		}
		if err := arc.Validate(); err != nil {
			t.Fatalf("arc %s: %v", name, err)
		}
	}
	sc, err := Resolve("hip-swing")
	if err != nil || sc.Name != "Hip Swing" {
		t.Fatalf("resolve built-in: %v %+v", err, sc)
	}
	if _, err := Resolve("no-such-scenario"); err == nil {
		t.Fatal("expected error for unknown scenario")
	}
}

type recordSink struct{ cmds []protocol.Command }

func (s *recordSink) Put(cmd protocol.Command) (uint64, bool) {
	s.cmds = append(s.cmds, cmd)
	return uint64(len(s.cmds)), false
}

func TestRunnerOneCommandPerStep(t *testing.T) {
	sc := &Scenario{Name: "t", Phases: []Phase{{
		Name:     "a",
		Commands: []Command{{Actuator: "x", Value: 1}, {Actuator: "y", Value: 2}},
		Triggers: []Trigger{{Event: EventPhaseSteps, Value: 3, Next: "b"}},
	}, {
		Name:     "b",
		Commands: []Command{{Actuator: "x", Value: 0}},
	}}}
	sink := &recordSink{}
	r := NewRunner(sc, sink)

	r.Observe(1, 0.01)
	if len(sink.cmds) != 1 || sink.cmds[0].Name != "x" {
		t.Fatalf("first step should issue x, got %+v", sink.cmds)
	}
	r.Observe(2, 0.02)
	if len(sink.cmds) != 2 || sink.cmds[1].Name != "y" {
		t.Fatalf("second step should issue y, got %+v", sink.cmds)
	}
	r.Observe(3, 0.03)
	if r.Phase() != "a" || len(sink.cmds) != 2 {
		t.Fatalf("phase a should hold for 3 steps, phase=%s cmds=%d", r.Phase(), len(sink.cmds))
	}
	r.Observe(4, 0.04)
	if r.Phase() != "b" || sink.cmds[2] != (protocol.Command{Name: "x", Value: 0}) {
		t.Fatalf("expected phase b with x=0, phase=%s cmds=%+v", r.Phase(), sink.cmds)
	}
}

func TestRunnerTimeTriggerAndReset(t *testing.T) {
	sc, _ := Resolve("hip-swing")
	sink := &recordSink{}
	r := NewRunner(sc, sink)

	r.Observe(1, 0.1)
	r.Observe(2, 0.3)
	if r.Phase() != "forward" {
		t.Fatalf("phase = %s, want forward", r.Phase())
	}
	r.Observe(3, 0.7)
	if r.Phase() != "back" || sink.cmds[len(sink.cmds)-1].Value != -0.5 {
		t.Fatalf("expected back phase after 0.5s, got %s %+v", r.Phase(), sink.cmds)
	}

	// clock jumped backwards: simulation was reset
	r.Observe(1, 0.05)
	if r.Phase() != "forward" || r.Transitions() != 3 {
		t.Fatalf("expected restart at forward, phase=%s transitions=%d", r.Phase(), r.Transitions())
	}
}
