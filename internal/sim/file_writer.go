package sim

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"aisim/internal/telemetry"
)

// FileWriter writes sensor rows and drained commands to JSONL files.
type FileWriter struct {
	mu         sync.Mutex
	sensorFile *os.File
	cmdFile    *os.File
	sensorEnc  *json.Encoder
	cmdEnc     *json.Encoder
}

// NewFileWriter creates a FileWriter. commandPath may be empty to skip the command log.
func NewFileWriter(sensorPath, commandPath string) (*FileWriter, error) {
	sf, err := os.Create(sensorPath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{sensorFile: sf, sensorEnc: json.NewEncoder(sf)}
	if commandPath != "" {
		cf, err := os.Create(commandPath)
		if err != nil {
			sf.Close()
			return nil, err
		}
		fw.cmdFile = cf
		fw.cmdEnc = json.NewEncoder(cf)
	}
	return fw, nil
}

// Write logs a single sensor row.
func (f *FileWriter) Write(row telemetry.SensorRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sensorEnc.Encode(row)
}

// WriteBatch logs multiple sensor rows. A row that fails to encode does not
// stop the rest of the batch.
func (f *FileWriter) WriteBatch(rows []telemetry.SensorRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, r := range rows {
		if err := f.sensorEnc.Encode(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteCommand logs a drained command, if enabled.
func (f *FileWriter) WriteCommand(row telemetry.CommandRow) error {
	if f.cmdEnc == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdEnc.Encode(row)
}

// Close closes any underlying files.
func (f *FileWriter) Close() error {
	var err error
	if f.sensorFile != nil {
		if e := f.sensorFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if f.cmdFile != nil {
		if e := f.cmdFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
