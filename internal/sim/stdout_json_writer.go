package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"aisim/internal/telemetry"
)

// JSONStdoutWriter prints sensor rows and commands as JSON to STDOUT.
type JSONStdoutWriter struct {
	out io.Writer
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
func NewJSONStdoutWriter() *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout}
}

// Write outputs a sensor row in JSON format.
func (w *JSONStdoutWriter) Write(row telemetry.SensorRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteBatch outputs multiple sensor rows in JSON format.
func (w *JSONStdoutWriter) WriteBatch(rows []telemetry.SensorRow) error {
	var errs []error
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteCommand outputs a drained command in JSON format.
func (w *JSONStdoutWriter) WriteCommand(row telemetry.CommandRow) error {
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}
