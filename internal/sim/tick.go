package sim

import (
	"context"
	"errors"
	"time"

	"aisim/internal/engine"
	"aisim/internal/logging"
	"aisim/internal/protocol"
)

// ErrPresenterClosed is returned by a Presenter whose surface was closed.
// Run treats it as a normal stop.
var ErrPresenterClosed = errors.New("sim: presenter closed")

// Presenter performs the per-frame presentation work and bounds the rate at
// which Run iterates.
type Presenter interface {
	Frame(ctx context.Context) error
}

// Run drives Tick until ctx is done, the mailbox is terminated or the
// presenter reports close.
func (l *Loop) Run(ctx context.Context, p Presenter) error {
	log := logging.FromContext(ctx)
	log.Info("starting stepping loop", "period", l.period)
	defer log.Info("stopping stepping loop")
	for {
		if ctx.Err() != nil || l.mailbox.Terminated() {
			return nil
		}
		l.Tick(l.now())
		if err := p.Frame(ctx); err != nil {
			if errors.Is(err, ErrPresenterClosed) {
				return nil
			}
			return err
		}
	}
}

// Tick steps the simulation once if at least one period has elapsed since the
// previous step. A step drains at most one command from the mailbox and
// applies it before integrating. Tick reports whether a step occurred.
func (l *Loop) Tick(now time.Time) bool {
	if l.mailbox.TakeReset() {
		l.Reset()
	}

	l.mu.Lock()
	if l.prev.IsZero() {
		l.prev = now
		l.mu.Unlock()
		return false
	}
	if now.Sub(l.prev) < l.period {
		l.mu.Unlock()
		return false
	}
	l.prev = now
	l.mu.Unlock()

	if cmd, seq, ok := l.mailbox.TryTake(); ok {
		l.apply(cmd, seq)
	}
	step, simTime, sensors := l.step()
	l.steps.Add(1)
	l.checkDiverged(step)
	l.emit(step, simTime, sensors)
	for _, o := range l.observers {
		o.Observe(step, simTime)
	}
	return true
}

func (l *Loop) apply(cmd protocol.Command, seq uint64) {
	err := l.sim.Apply(cmd)
	applied := err == nil
	if applied {
		l.applied.Add(1)
		l.log.Debug("command applied", "seq", seq, "actuator", cmd.Name, "value", cmd.Value)
	} else {
		l.dropped.Add(1)
		l.log.Warn("command dropped", "seq", seq, "actuator", cmd.Name, "err", err)
	}
	if cw, ok := l.writer.(CommandWriter); ok {
		if err := cw.WriteCommand(l.gen.CommandRow(seq, cmd.Name, cmd.Value, applied)); err != nil {
			l.log.Error("command write failed", "err", err)
		}
	}
}

// step integrates once. With control noise enabled the noise is added to the
// input slots for this step only; the commanded values are restored after.
func (l *Loop) step() (int, float64, []engine.Sensor) {
	if l.noise <= 0 {
		return l.sim.Step()
	}
	var (
		step    int
		simTime float64
		sensors []engine.Sensor
	)
	l.sim.Update(func(m *engine.Model) {
		base := m.Controls()
		var noise []float64
		noise, l.noiseStep = m.ControlNoise(l.noise, l.noiseStep)
		for i, v := range base {
			center := 0.0
			if lo, hi, limited := m.CtrlRange(i); limited {
				center = (lo + hi) / 2
			}
			_ = m.SetControl(i, v+noise[i]-center)
		}
		m.Step()
		for i, v := range base {
			_ = m.SetControl(i, v)
		}
		step, simTime, sensors = m.Steps(), m.Time(), m.Sensors()
	})
	return step, simTime, sensors
}

// checkDiverged warns once when the state turns non-finite. Stepping goes on;
// a reset recovers.
func (l *Loop) checkDiverged(step int) {
	valid := true
	l.sim.View(func(m *engine.Model) { valid = m.IsValid() })
	if !l.diverged.Swap(!valid) && !valid {
		l.log.Warn("simulation state diverged, reset to recover", "step", step)
	}
}

func (l *Loop) emit(step int, simTime float64, sensors []engine.Sensor) {
	if l.writer == nil {
		return
	}
	rows := l.gen.SensorRows(step, simTime, sensors)
	if err := writeRows(l.writer, rows); err != nil {
		l.log.Error("telemetry write failed", "step", step, "err", err)
	}
}
