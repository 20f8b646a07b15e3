package sim

import "aisim/internal/telemetry"

// TelemetryWriter is an interface to support different output writers.
type TelemetryWriter interface {
	Write(telemetry.SensorRow) error
}

// Optional: Writers can also support batch mode
type batchWriter interface {
	WriteBatch([]telemetry.SensorRow) error
}

// CommandWriter records commands drained from the mailbox. Telemetry writers
// may implement it to receive command rows alongside sensor rows.
type CommandWriter interface {
	WriteCommand(telemetry.CommandRow) error
}

// writeRows sends rows to w, using batch mode if supported.
func writeRows(w TelemetryWriter, rows []telemetry.SensorRow) error {
	if bw, ok := w.(batchWriter); ok {
		return bw.WriteBatch(rows)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}
