package engine

// Halton returns element index of the van der Corput sequence in the given base.
func Halton(index, base int) float64 {
	result := 0.0
	f := 1.0 / float64(base)
	for i := index; i > 0; i /= base {
		result += f * float64(i%base)
		f /= float64(base)
	}
	return result
}

// ControlNoise produces a deterministic pseudo-random control vector centred
// in each actuator's range. scale is a fraction of the range half-width;
// unlimited actuators use a half-width of one. step advances once per
// actuator, so consecutive calls must pass the returned step back in.
func (m *Model) ControlNoise(scale float64, step int) ([]float64, int) {
	out := make([]float64, len(m.actuators))
	for i, a := range m.actuators {
		center, radius := 0.0, 1.0
		if a.limited {
			center = (a.hi + a.lo) / 2
			radius = (a.hi - a.lo) / 2
		}
		radius *= scale
		step++
		out[i] = center + radius*(2*Halton(step, i+2)-1)
	}
	return out, step
}
