package telemetry

import (
	"time"

	"github.com/google/uuid"

	"aisim/internal/engine"
)

// Generator turns engine sensor readings into telemetry rows for one run.
type Generator struct {
	RunID string
	now   func() time.Time
}

// NewGenerator creates a generator with a fresh run ID.
func NewGenerator() *Generator {
	return &Generator{RunID: uuid.NewString(), now: time.Now}
}

// NewGeneratorWithID creates a generator for a known run ID.
func NewGeneratorWithID(runID string, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{RunID: runID, now: now}
}

// SensorRows converts one post-step sensor readout into rows. All rows share
// a timestamp.
func (g *Generator) SensorRows(step int, simTime float64, sensors []engine.Sensor) []SensorRow {
	ts := g.now().UTC()
	rows := make([]SensorRow, len(sensors))
	for i, s := range sensors {
		rows[i] = SensorRow{
			RunID:     g.RunID,
			Sensor:    s.Name,
			Step:      step,
			SimTime:   simTime,
			Values:    s.Values,
			Timestamp: ts,
		}
	}
	return rows
}

// CommandRow records a drained command.
func (g *Generator) CommandRow(seq uint64, actuator string, value float64, applied bool) CommandRow {
	return CommandRow{
		RunID:     g.RunID,
		Seq:       seq,
		Actuator:  actuator,
		Value:     value,
		Applied:   applied,
		Timestamp: g.now().UTC(),
	}
}
