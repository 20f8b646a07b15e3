package engine

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"aisim/internal/config"
)

// DefaultGravity is used when a model file leaves gravity unset.
const DefaultGravity = 9.81

// Spec is the on-disk description of a joint-space model.
type Spec struct {
	Name      string         `yaml:"name"`
	Timestep  float64        `yaml:"timestep"`
	Gravity   *float64       `yaml:"gravity"`
	Joints    []JointSpec    `yaml:"joints"`
	Actuators []ActuatorSpec `yaml:"actuators"`
	Sensors   []SensorSpec   `yaml:"sensors"`
}

// JointSpec describes one hinge joint. Each joint is integrated as a damped,
// spring-loaded pendulum about its reference position.
type JointSpec struct {
	Name      string    `yaml:"name"`
	Inertia   float64   `yaml:"inertia"`
	Stiffness float64   `yaml:"stiffness"`
	Damping   float64   `yaml:"damping"`
	Mass      float64   `yaml:"mass"`
	Length    float64   `yaml:"length"`
	Qpos0     float64   `yaml:"qpos0"`
	Range     []float64 `yaml:"range"`
}

// ActuatorSpec describes a scalar motor driving one joint.
type ActuatorSpec struct {
	Name      string    `yaml:"name"`
	Joint     string    `yaml:"joint"`
	Gear      float64   `yaml:"gear"`
	CtrlRange []float64 `yaml:"ctrlrange"`
}

// SensorSpec describes one sensor. Joint or Actuator is required depending on Type.
type SensorSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Joint    string `yaml:"joint"`
	Actuator string `yaml:"actuator"`
}

// Sensor types understood by the engine.
const (
	SensorJointPos    = "jointpos"
	SensorJointVel    = "jointvel"
	SensorJointState  = "jointstate"
	SensorActuatorFrc = "actuatorfrc"
	SensorClock       = "clock"
)

var sensorDims = map[string]int{
	SensorJointPos:    1,
	SensorJointVel:    1,
	SensorJointState:  2,
	SensorActuatorFrc: 1,
	SensorClock:       1,
}

// Load reads, validates and compiles a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	if err := config.ValidateModel(path, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	return Compile(spec)
}

type joint struct {
	JointSpec
	lo, hi  float64
	limited bool
}

type actuator struct {
	name    string
	joint   int
	gear    float64
	lo, hi  float64
	limited bool
}

type sensor struct {
	name  string
	typ   string
	joint int
	act   int
	adr   int
	dim   int
}

// Model is a compiled joint-space simulation. It is not safe for concurrent use.
type Model struct {
	name     string
	timestep float64
	gravity  float64

	joints    []joint
	actuators []actuator
	sensors   []sensor
	actIndex  map[string]int

	qpos       []float64
	qvel       []float64
	ctrl       []float64
	sensordata []float64
	time       float64
	steps      int

	rk4 rk4
}

// Compile builds a Model from spec.
func Compile(spec Spec) (*Model, error) {
	if spec.Timestep <= 0 {
		return nil, fmt.Errorf("%w: timestep must be positive, got %g", ErrInvalidModel, spec.Timestep)
	}
	m := &Model{
		name:     spec.Name,
		timestep: spec.Timestep,
		gravity:  DefaultGravity,
		actIndex: make(map[string]int, len(spec.Actuators)),
	}
	if spec.Gravity != nil {
		m.gravity = *spec.Gravity
	}

	jointIndex := make(map[string]int, len(spec.Joints))
	for _, js := range spec.Joints {
		if err := checkName("joint", js.Name); err != nil {
			return nil, err
		}
		if _, dup := jointIndex[js.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate joint %q", ErrInvalidModel, js.Name)
		}
		j := joint{JointSpec: js}
		if j.Inertia == 0 {
			j.Inertia = 1
		}
		if j.Inertia < 0 {
			return nil, fmt.Errorf("%w: joint %q has negative inertia", ErrInvalidModel, js.Name)
		}
		if len(js.Range) > 0 {
			lo, hi, err := bounds("joint", js.Name, js.Range)
			if err != nil {
				return nil, err
			}
			j.lo, j.hi, j.limited = lo, hi, true
		}
		jointIndex[js.Name] = len(m.joints)
		m.joints = append(m.joints, j)
	}

	for _, as := range spec.Actuators {
		if err := checkName("actuator", as.Name); err != nil {
			return nil, err
		}
		if _, dup := m.actIndex[as.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate actuator %q", ErrInvalidModel, as.Name)
		}
		ji, ok := jointIndex[as.Joint]
		if !ok {
			return nil, fmt.Errorf("%w: actuator %q references unknown joint %q", ErrInvalidModel, as.Name, as.Joint)
		}
		a := actuator{name: as.Name, joint: ji, gear: as.Gear}
		if a.gear == 0 {
			a.gear = 1
		}
		if len(as.CtrlRange) > 0 {
			lo, hi, err := bounds("actuator", as.Name, as.CtrlRange)
			if err != nil {
				return nil, err
			}
			a.lo, a.hi, a.limited = lo, hi, true
		}
		m.actIndex[as.Name] = len(m.actuators)
		m.actuators = append(m.actuators, a)
	}

	seen := make(map[string]struct{}, len(spec.Sensors))
	adr := 0
	for _, ss := range spec.Sensors {
		if err := checkName("sensor", ss.Name); err != nil {
			return nil, err
		}
		if _, dup := seen[ss.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate sensor %q", ErrInvalidModel, ss.Name)
		}
		seen[ss.Name] = struct{}{}
		dim, ok := sensorDims[ss.Type]
		if !ok {
			return nil, fmt.Errorf("%w: sensor %q has unknown type %q", ErrInvalidModel, ss.Name, ss.Type)
		}
		s := sensor{name: ss.Name, typ: ss.Type, joint: -1, act: -1, adr: adr, dim: dim}
		switch ss.Type {
		case SensorJointPos, SensorJointVel, SensorJointState:
			ji, ok := jointIndex[ss.Joint]
			if !ok {
				return nil, fmt.Errorf("%w: sensor %q references unknown joint %q", ErrInvalidModel, ss.Name, ss.Joint)
			}
			s.joint = ji
		case SensorActuatorFrc:
			ai, ok := m.actIndex[ss.Actuator]
			if !ok {
				return nil, fmt.Errorf("%w: sensor %q references unknown actuator %q", ErrInvalidModel, ss.Name, ss.Actuator)
			}
			s.act = ai
		}
		m.sensors = append(m.sensors, s)
		adr += dim
	}

	m.qpos = make([]float64, len(m.joints))
	m.qvel = make([]float64, len(m.joints))
	m.ctrl = make([]float64, len(m.actuators))
	m.sensordata = make([]float64, adr)
	m.Reset()
	return m, nil
}

// checkName rejects names that would break the whitespace-delimited wire format.
func checkName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%w: %s with empty name", ErrInvalidModel, kind)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %s name %q contains whitespace", ErrInvalidModel, kind, name)
	}
	return nil
}

func bounds(kind, name string, r []float64) (float64, float64, error) {
	if len(r) != 2 || r[0] > r[1] {
		return 0, 0, fmt.Errorf("%w: %s %q has invalid range %v", ErrInvalidModel, kind, name, r)
	}
	return r[0], r[1], nil
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Timestep returns the integration step in simulated seconds.
func (m *Model) Timestep() float64 { return m.timestep }

// Time returns the current simulated time.
func (m *Model) Time() float64 { return m.time }

// Steps returns the number of steps taken since the last reset.
func (m *Model) Steps() int { return m.steps }

// NumActuators returns the size of the actuator table.
func (m *Model) NumActuators() int { return len(m.actuators) }

// Actuators returns actuator names in table order.
func (m *Model) Actuators() []string {
	names := make([]string, len(m.actuators))
	for i, a := range m.actuators {
		names[i] = a.name
	}
	return names
}

// ActuatorIndex resolves name against the actuator table.
func (m *Model) ActuatorIndex(name string) (int, bool) {
	i, ok := m.actIndex[name]
	return i, ok
}

// CtrlRange reports the control range of actuator i and whether it is enforced.
func (m *Model) CtrlRange(i int) (lo, hi float64, limited bool) {
	a := m.actuators[i]
	return a.lo, a.hi, a.limited
}

// SetControl writes v into the input slot of actuator i. The value is stored
// as given; range limiting happens when the step consumes it.
func (m *Model) SetControl(i int, v float64) error {
	if i < 0 || i >= len(m.ctrl) {
		return fmt.Errorf("%w: %d", ErrActuatorIndex, i)
	}
	m.ctrl[i] = v
	return nil
}

// SetControlByName resolves name and writes v into its input slot.
func (m *Model) SetControlByName(name string, v float64) error {
	i, ok := m.actIndex[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownActuator, name)
	}
	m.ctrl[i] = v
	return nil
}

// Control returns the raw input slot of actuator i.
func (m *Model) Control(i int) float64 { return m.ctrl[i] }

// Controls returns a copy of all actuator input slots.
func (m *Model) Controls() []float64 {
	out := make([]float64, len(m.ctrl))
	copy(out, m.ctrl)
	return out
}

// JointPos returns the position of joint i.
func (m *Model) JointPos(i int) float64 { return m.qpos[i] }

// JointVel returns the velocity of joint i.
func (m *Model) JointVel(i int) float64 { return m.qvel[i] }

// Reset restores the initial state and recomputes derived quantities so the
// sensors are consistent before the next step.
func (m *Model) Reset() {
	for i, j := range m.joints {
		m.qpos[i] = j.Qpos0
		m.qvel[i] = 0
	}
	for i := range m.ctrl {
		m.ctrl[i] = 0
	}
	m.time = 0
	m.steps = 0
	m.Forward()
}
