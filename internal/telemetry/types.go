// Telemetry rows emitted by the stepping loop
package telemetry

import (
	"os"
	"time"
)

// SensorRow is one sensor reading after one simulation step.
type SensorRow struct {
	RunID     string    `json:"run_id"`   // TAG
	Sensor    string    `json:"sensor"`   // TAG
	Step      int       `json:"step"`     // FIELD
	SimTime   float64   `json:"sim_time"` // FIELD
	Values    []float64 `json:"values"`   // FIELD, one column per component
	Timestamp time.Time `json:"ts"`       // TIME INDEX
}

// Dim returns the sensor dimension.
func (r SensorRow) Dim() int { return len(r.Values) }

// CommandRow records one command drained from the mailbox by the loop.
type CommandRow struct {
	RunID     string    `json:"run_id"`
	Seq       uint64    `json:"seq"`
	Actuator  string    `json:"actuator"`
	Value     float64   `json:"value"`
	Applied   bool      `json:"applied"`
	Timestamp time.Time `json:"ts"`
}

// SensorTableName holds the table name used when writing to GreptimeDB.
// It defaults to "aisim_sensors" but can be overridden via the
// GREPTIMEDB_TABLE environment variable.
var SensorTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "aisim_sensors"
}()

func (SensorRow) TableName() string {
	return SensorTableName
}
