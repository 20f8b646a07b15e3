package engine

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func testSpec() Spec {
	zero := 0.0
	return Spec{
		Name:     "test",
		Timestep: 0.01,
		Gravity:  &zero,
		Joints: []JointSpec{
			{Name: "hip", Inertia: 1, Damping: 0.5},
			{Name: "knee", Inertia: 2, Stiffness: 4, Range: []float64{-1, 1}},
		},
		Actuators: []ActuatorSpec{
			{Name: "hip_x_right", Joint: "hip", Gear: 2, CtrlRange: []float64{-1, 1}},
			{Name: "knee_motor", Joint: "knee"},
		},
		Sensors: []SensorSpec{
			{Name: "clock", Type: SensorClock},
			{Name: "hip_state", Type: SensorJointState, Joint: "hip"},
			{Name: "knee_pos", Type: SensorJointPos, Joint: "knee"},
			{Name: "hip_frc", Type: SensorActuatorFrc, Actuator: "hip_x_right"},
		},
	}
}

func mustCompile(t *testing.T, spec Spec) *Model {
	t.Helper()
	m, err := Compile(spec)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return m
}

func TestCompileTables(t *testing.T) {
	m := mustCompile(t, testSpec())
	if m.NumActuators() != 2 {
		t.Fatalf("expected 2 actuators, got %d", m.NumActuators())
	}
	if i, ok := m.ActuatorIndex("knee_motor"); !ok || i != 1 {
		t.Fatalf("unexpected index for knee_motor: %d %v", i, ok)
	}
	if _, ok := m.ActuatorIndex("missing"); ok {
		t.Fatal("expected miss for unknown actuator")
	}
	sensors := m.Sensors()
	wantDims := []int{1, 2, 1, 1}
	if len(sensors) != len(wantDims) {
		t.Fatalf("expected %d sensors, got %d", len(wantDims), len(sensors))
	}
	for i, s := range sensors {
		if s.Dim() != wantDims[i] {
			t.Errorf("sensor %s: expected dim %d, got %d", s.Name, wantDims[i], s.Dim())
		}
	}
	if sensors[0].Name != "clock" || sensors[3].Name != "hip_frc" {
		t.Errorf("sensor order not preserved: %v", sensors)
	}
}

func TestCompileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"zero timestep", func(s *Spec) { s.Timestep = 0 }},
		{"duplicate joint", func(s *Spec) { s.Joints = append(s.Joints, JointSpec{Name: "hip"}) }},
		{"unknown actuator joint", func(s *Spec) { s.Actuators[0].Joint = "ankle" }},
		{"unknown sensor joint", func(s *Spec) { s.Sensors[1].Joint = "ankle" }},
		{"unknown sensor actuator", func(s *Spec) { s.Sensors[3].Actuator = "ankle" }},
		{"unknown sensor type", func(s *Spec) { s.Sensors[0].Type = "gyro" }},
		{"whitespace sensor name", func(s *Spec) { s.Sensors[0].Name = "my clock" }},
		{"inverted ctrlrange", func(s *Spec) { s.Actuators[0].CtrlRange = []float64{1, -1} }},
		{"duplicate sensor", func(s *Spec) { s.Sensors[1].Name = "clock" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testSpec()
			tt.mutate(&spec)
			_, err := Compile(spec)
			if !errors.Is(err, ErrInvalidModel) {
				t.Fatalf("expected ErrInvalidModel, got %v", err)
			}
		})
	}
}

func TestSetControlBitExact(t *testing.T) {
	m := mustCompile(t, testSpec())
	i, _ := m.ActuatorIndex("hip_x_right")
	v := 0.10
	if err := m.SetControl(i, v); err != nil {
		t.Fatalf("SetControl: %v", err)
	}
	if got := m.Control(i); math.Float64bits(got) != math.Float64bits(v) {
		t.Fatalf("expected %v, got %v", v, got)
	}
	if err := m.SetControl(5, 1); !errors.Is(err, ErrActuatorIndex) {
		t.Fatalf("expected ErrActuatorIndex, got %v", err)
	}
	if err := m.SetControlByName("nope", 1); !errors.Is(err, ErrUnknownActuator) {
		t.Fatalf("expected ErrUnknownActuator, got %v", err)
	}
}

func TestStepAdvancesTimeAndResponds(t *testing.T) {
	m := mustCompile(t, testSpec())
	if err := m.SetControlByName("hip_x_right", 0.5); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		m.Step()
	}
	if m.Steps() != 10 {
		t.Fatalf("expected 10 steps, got %d", m.Steps())
	}
	if math.Abs(m.Time()-0.1) > 1e-12 {
		t.Fatalf("expected t=0.1, got %v", m.Time())
	}
	if m.JointPos(0) <= 0 || m.JointVel(0) <= 0 {
		t.Fatalf("positive torque should move hip forward: q=%v qd=%v", m.JointPos(0), m.JointVel(0))
	}
	s := m.Sensors()
	if s[0].Values[0] != m.Time() {
		t.Errorf("clock sensor %v != time %v", s[0].Values[0], m.Time())
	}
	if s[1].Values[0] != m.JointPos(0) || s[1].Values[1] != m.JointVel(0) {
		t.Errorf("jointstate sensor out of date: %v", s[1].Values)
	}
	if s[3].Values[0] != 1.0 {
		t.Errorf("actuator force should be gear*ctrl = 1.0, got %v", s[3].Values[0])
	}
	if !m.IsValid() {
		t.Fatal("state should be valid")
	}
}

func TestControlClampedAtStepNotAtWrite(t *testing.T) {
	m := mustCompile(t, testSpec())
	i, _ := m.ActuatorIndex("hip_x_right")
	m.SetControl(i, 5)
	if m.Control(i) != 5 {
		t.Fatalf("input slot should hold raw value, got %v", m.Control(i))
	}
	m.Step()
	if f := m.Sensors()[3].Values[0]; f != 2 {
		t.Fatalf("expected clamped force 2, got %v", f)
	}
}

func TestJointRangeLimit(t *testing.T) {
	m := mustCompile(t, testSpec())
	m.SetControlByName("knee_motor", 1000)
	for i := 0; i < 200; i++ {
		m.Step()
	}
	if m.JointPos(1) > 1 {
		t.Fatalf("knee exceeded range: %v", m.JointPos(1))
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	spec := testSpec()
	spec.Joints[0].Qpos0 = 0.25
	m := mustCompile(t, spec)
	m.SetControlByName("hip_x_right", 1)
	for i := 0; i < 5; i++ {
		m.Step()
	}
	m.Reset()
	if m.Time() != 0 || m.Steps() != 0 {
		t.Fatalf("expected time and steps reset, got %v %d", m.Time(), m.Steps())
	}
	if m.JointPos(0) != 0.25 || m.JointVel(0) != 0 {
		t.Fatalf("expected qpos0, got q=%v qd=%v", m.JointPos(0), m.JointVel(0))
	}
	for _, c := range m.Controls() {
		if c != 0 {
			t.Fatalf("controls should be zeroed: %v", m.Controls())
		}
	}
	s := m.Sensors()
	if s[1].Values[0] != 0.25 || s[0].Values[0] != 0 {
		t.Fatalf("sensors should be recomputed after reset: %v", s)
	}
}

func TestLoadBundledModel(t *testing.T) {
	m, err := Load("../../models/humanoid.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := m.ActuatorIndex("hip_x_right"); !ok {
		t.Fatal("expected hip_x_right actuator")
	}
	if m.NumSensors() == 0 {
		t.Fatal("expected sensors")
	}
}

func TestLoadInvalidModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("name: bad\ntimestep: 0.01\nactuators:\n  - {name: a, joint: missing}\n"), 0644)
	if _, err := Load(path); !errors.Is(err, ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHaltonAndControlNoise(t *testing.T) {
	if got := Halton(1, 2); got != 0.5 {
		t.Fatalf("Halton(1,2) = %v", got)
	}
	if got := Halton(3, 2); got != 0.75 {
		t.Fatalf("Halton(3,2) = %v", got)
	}
	m := mustCompile(t, testSpec())
	noise, step := m.ControlNoise(0.01, 0)
	if step != 2 || len(noise) != 2 {
		t.Fatalf("unexpected noise output: %v step=%d", noise, step)
	}
	for i, v := range noise {
		if math.Abs(v) > 0.01 {
			t.Errorf("noise[%d]=%v exceeds scaled radius", i, v)
		}
	}
	again, _ := m.ControlNoise(0.01, 0)
	if again[0] != noise[0] || again[1] != noise[1] {
		t.Fatal("noise should be deterministic for a given step")
	}
}
