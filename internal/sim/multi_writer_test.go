package sim

import (
	"errors"
	"testing"

	"aisim/internal/telemetry"
)

type plainWriter struct{ n int }

func (p *plainWriter) Write(telemetry.SensorRow) error { p.n++; return nil }

type batchRecorder struct {
	batches int
	closed  bool
	err     error
}

func (b *batchRecorder) Write(telemetry.SensorRow) error { return nil }
func (b *batchRecorder) WriteBatch([]telemetry.SensorRow) error {
	b.batches++
	return nil
}
func (b *batchRecorder) Close() error {
	b.closed = true
	return b.err
}

func TestMultiWriterFanOut(t *testing.T) {
	plain := &plainWriter{}
	batch := &batchRecorder{}
	rec := &recordWriter{}
	mw := NewMultiWriter(plain, batch, rec)

	rows := []telemetry.SensorRow{{Sensor: "a"}, {Sensor: "b"}}
	if err := mw.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if plain.n != 2 {
		t.Fatalf("plain writer got %d rows, want 2", plain.n)
	}
	if batch.batches != 1 {
		t.Fatalf("batch writer got %d batches, want 1", batch.batches)
	}
	if len(rec.rows) != 2 {
		t.Fatalf("recorder got %d rows, want 2", len(rec.rows))
	}

	if err := mw.WriteCommand(telemetry.CommandRow{Actuator: "x"}); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if len(rec.cmds) != 1 {
		t.Fatalf("command not forwarded to command writer")
	}
}

func TestMultiWriterClose(t *testing.T) {
	boom := errors.New("boom")
	a := &batchRecorder{}
	b := &batchRecorder{err: boom}
	mw := NewMultiWriter(a, &plainWriter{}, b)
	if err := mw.Close(); !errors.Is(err, boom) {
		t.Fatalf("expected joined close error, got %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatal("every closer should be closed")
	}
}
