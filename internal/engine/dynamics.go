package engine

import "math"

// rk4 holds scratch buffers for the classic fourth-order Runge-Kutta step over
// the packed state [qpos..., qvel...].
type rk4 struct {
	k1, k2, k3, k4 []float64
	scratch        []float64
	x              []float64
}

func (r *rk4) ensure(n int) {
	if len(r.k1) != n {
		r.k1 = make([]float64, n)
		r.k2 = make([]float64, n)
		r.k3 = make([]float64, n)
		r.k4 = make([]float64, n)
		r.scratch = make([]float64, n)
		r.x = make([]float64, n)
	}
}

// Step advances the simulation by one timestep using the current controls.
func (m *Model) Step() {
	nq := len(m.joints)
	n := 2 * nq
	r := &m.rk4
	r.ensure(n)

	copy(r.x[:nq], m.qpos)
	copy(r.x[nq:], m.qvel)

	dt := m.timestep
	m.derive(r.x, r.k1)
	for i := 0; i < n; i++ {
		r.scratch[i] = r.x[i] + dt*0.5*r.k1[i]
	}
	m.derive(r.scratch, r.k2)
	for i := 0; i < n; i++ {
		r.scratch[i] = r.x[i] + dt*0.5*r.k2[i]
	}
	m.derive(r.scratch, r.k3)
	for i := 0; i < n; i++ {
		r.scratch[i] = r.x[i] + dt*r.k3[i]
	}
	m.derive(r.scratch, r.k4)

	dt6 := dt / 6.0
	for i := 0; i < nq; i++ {
		m.qpos[i] = r.x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
		m.qvel[i] = r.x[nq+i] + dt6*(r.k1[nq+i]+2*r.k2[nq+i]+2*r.k3[nq+i]+r.k4[nq+i])
	}
	m.enforceLimits()

	m.time += dt
	m.steps++
	m.Forward()
}

// derive writes d[qpos, qvel]/dt for state x into out.
func (m *Model) derive(x, out []float64) {
	nq := len(m.joints)
	for i, j := range m.joints {
		q := x[i]
		qd := x[nq+i]
		tau := m.jointTorque(i)
		tau -= j.Stiffness * (q - j.Qpos0)
		tau -= j.Damping * qd
		tau -= j.Mass * m.gravity * j.Length * math.Sin(q)
		out[i] = qd
		out[nq+i] = tau / j.Inertia
	}
}

// jointTorque sums actuator forces acting on joint ji.
func (m *Model) jointTorque(ji int) float64 {
	tau := 0.0
	for ai, a := range m.actuators {
		if a.joint == ji {
			tau += m.actuatorForce(ai)
		}
	}
	return tau
}

// actuatorForce is gear times the control, clamped to the control range when
// the actuator is limited.
func (m *Model) actuatorForce(ai int) float64 {
	a := m.actuators[ai]
	u := m.ctrl[ai]
	if a.limited {
		u = math.Max(a.lo, math.Min(a.hi, u))
	}
	return a.gear * u
}

func (m *Model) enforceLimits() {
	for i, j := range m.joints {
		if !j.limited {
			continue
		}
		if m.qpos[i] < j.lo {
			m.qpos[i] = j.lo
			if m.qvel[i] < 0 {
				m.qvel[i] = 0
			}
		} else if m.qpos[i] > j.hi {
			m.qpos[i] = j.hi
			if m.qvel[i] > 0 {
				m.qvel[i] = 0
			}
		}
	}
}

// IsValid reports whether the state is free of NaN and Inf.
func (m *Model) IsValid() bool {
	for i := range m.qpos {
		if math.IsNaN(m.qpos[i]) || math.IsInf(m.qpos[i], 0) ||
			math.IsNaN(m.qvel[i]) || math.IsInf(m.qvel[i], 0) {
			return false
		}
	}
	return true
}
