package sim

import (
	"errors"
	"io"

	"aisim/internal/telemetry"
)

// MultiWriter fan-outs sensor rows and command rows to multiple writers.
type MultiWriter struct {
	writers []TelemetryWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...TelemetryWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Writers returns the wrapped writers.
func (mw *MultiWriter) Writers() []TelemetryWriter { return mw.writers }

// Write sends a sensor row to all writers.
func (mw *MultiWriter) Write(row telemetry.SensorRow) error {
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple sensor rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.SensorRow) error {
	for _, w := range mw.writers {
		if err := writeRows(w, rows); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommand sends a command row to every writer that records commands.
func (mw *MultiWriter) WriteCommand(row telemetry.CommandRow) error {
	for _, w := range mw.writers {
		if cw, ok := w.(CommandWriter); ok {
			if err := cw.WriteCommand(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every writer that holds resources and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		if c, ok := w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
