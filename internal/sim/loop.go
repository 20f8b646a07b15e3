// Real-time stepping loop driving the simulation context
package sim

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"aisim/internal/logging"
	"aisim/internal/mailbox"
	"aisim/internal/telemetry"
)

// LoopStats counts loop activity.
type LoopStats struct {
	Steps    uint64 `json:"steps"`
	Applied  uint64 `json:"applied"`
	Dropped  uint64 `json:"dropped"`
	Resets   uint64 `json:"resets"`
	Diverged bool   `json:"diverged"` // state holds NaN or Inf
}

// Loop advances the simulation at a fixed wall-clock rate. Tick and Reset
// must be called from a single goroutine, the one hosting the presentation.
type Loop struct {
	sim     *Context
	mailbox *mailbox.Mailbox
	period  time.Duration
	writer  TelemetryWriter
	gen     *telemetry.Generator
	log     *slog.Logger
	now     func() time.Time

	noise     float64
	noiseStep int
	observers []StepObserver

	mu   sync.Mutex
	prev time.Time

	steps   atomic.Uint64
	applied atomic.Uint64
	dropped atomic.Uint64
	resets  atomic.Uint64

	diverged atomic.Bool
}

// NewLoop creates a loop stepping sim once per period. writer may be nil.
func NewLoop(sim *Context, mb *mailbox.Mailbox, period time.Duration, writer TelemetryWriter) *Loop {
	return &Loop{
		sim:     sim,
		mailbox: mb,
		period:  period,
		writer:  writer,
		gen:     telemetry.NewGenerator(),
		log:     logging.Discard(),
		now:     time.Now,
	}
}

// SetLogger replaces the loop logger.
func (l *Loop) SetLogger(log *slog.Logger) {
	if log != nil {
		l.log = log
	}
}

// SetControlNoise enables pseudo-random control noise. scale is a fraction of
// each actuator's range half-width; zero disables it.
func (l *Loop) SetControlNoise(scale float64) { l.noise = scale }

// StepObserver is notified after every step on the loop goroutine.
type StepObserver interface {
	Observe(step int, simTime float64)
}

// AddObserver registers o. It must be called before the loop starts.
func (l *Loop) AddObserver(o StepObserver) { l.observers = append(l.observers, o) }

// Context returns the simulation context the loop steps.
func (l *Loop) Context() *Context { return l.sim }

// Mailbox returns the command mailbox the loop drains.
func (l *Loop) Mailbox() *mailbox.Mailbox { return l.mailbox }

// Period returns the wall-clock step interval.
func (l *Loop) Period() time.Duration { return l.period }

// RunID identifies the telemetry rows of this run.
func (l *Loop) RunID() string { return l.gen.RunID }

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Steps:    l.steps.Load(),
		Applied:  l.applied.Load(),
		Dropped:  l.dropped.Load(),
		Resets:   l.resets.Load(),
		Diverged: l.diverged.Load(),
	}
}

// Reset restores the initial simulation state and recomputes the sensors.
func (l *Loop) Reset() {
	l.sim.Reset()
	l.resets.Add(1)
	l.diverged.Store(false)
	l.log.Info("simulation reset")
}
