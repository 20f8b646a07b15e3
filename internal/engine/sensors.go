package engine

// Sensor is one sensor reading. Values has length equal to the sensor dimension.
type Sensor struct {
	Name   string
	Values []float64
}

// Dim returns the sensor dimension.
func (s Sensor) Dim() int { return len(s.Values) }

// Forward recomputes sensor data from the current state without advancing time.
func (m *Model) Forward() {
	for _, s := range m.sensors {
		out := m.sensordata[s.adr : s.adr+s.dim]
		switch s.typ {
		case SensorJointPos:
			out[0] = m.qpos[s.joint]
		case SensorJointVel:
			out[0] = m.qvel[s.joint]
		case SensorJointState:
			out[0] = m.qpos[s.joint]
			out[1] = m.qvel[s.joint]
		case SensorActuatorFrc:
			out[0] = m.actuatorForce(s.act)
		case SensorClock:
			out[0] = m.time
		}
	}
}

// NumSensors returns the number of sensors.
func (m *Model) NumSensors() int { return len(m.sensors) }

// Sensors returns a copy of every sensor reading in model order.
func (m *Model) Sensors() []Sensor {
	return m.AppendSensors(make([]Sensor, 0, len(m.sensors)))
}

// AppendSensors appends copies of every sensor reading to dst.
func (m *Model) AppendSensors(dst []Sensor) []Sensor {
	for _, s := range m.sensors {
		vals := make([]float64, s.dim)
		copy(vals, m.sensordata[s.adr:s.adr+s.dim])
		dst = append(dst, Sensor{Name: s.name, Values: vals})
	}
	return dst
}
