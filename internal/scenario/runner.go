package scenario

import (
	"log/slog"

	"aisim/internal/logging"
	"aisim/internal/protocol"
)

// Sink accepts commands for the stepping loop. *mailbox.Mailbox satisfies it.
type Sink interface {
	Put(cmd protocol.Command) (seq uint64, overwritten bool)
}

// Runner plays a scenario into a Sink, one command per step, so that the
// single-slot mailbox never overwrites a scripted command with the next one.
// Observe is called from the stepping loop after every step.
type Runner struct {
	sc   *Scenario
	sink Sink
	log  *slog.Logger

	started     bool
	phase       string
	enteredAt   float64
	enteredStep int
	lastTime    float64
	pending     []Command
	transitions int
}

func NewRunner(sc *Scenario, sink Sink) *Runner {
	return &Runner{sc: sc, sink: sink, log: logging.Discard()}
}

func (r *Runner) SetLogger(log *slog.Logger) {
	if log != nil {
		r.log = log
	}
}

// Phase returns the current phase name.
func (r *Runner) Phase() string { return r.phase }

// Transitions counts phase entries, including the first.
func (r *Runner) Transitions() int { return r.transitions }

// Observe advances the script. A simulation clock that moved backwards means
// the simulation was reset, so the script restarts from its first phase.
func (r *Runner) Observe(step int, simTime float64) {
	if !r.started || simTime < r.lastTime {
		r.started = true
		r.enter(r.sc.Phases[0], step, simTime)
	}
	r.lastTime = simTime

	if len(r.pending) == 0 {
		ev := []Event{
			{Type: EventPhaseTime, Value: simTime - r.enteredAt},
			{Type: EventPhaseSteps, Value: float64(step - r.enteredStep)},
		}
		for _, e := range ev {
			if next, ok := r.sc.NextPhase(r.phase, e); ok {
				p, _ := r.sc.Phase(next)
				r.enter(p, step, simTime)
				break
			}
		}
	}

	if len(r.pending) > 0 {
		cmd := r.pending[0]
		r.pending = r.pending[1:]
		r.sink.Put(cmd.Protocol())
	}
}

func (r *Runner) enter(p Phase, step int, simTime float64) {
	r.phase = p.Name
	r.enteredAt = simTime
	r.enteredStep = step
	r.pending = append(r.pending[:0], p.Commands...)
	r.transitions++
	r.log.Info("scenario phase", "scenario", r.sc.Name, "phase", p.Name, "sim_time", simTime)
}
