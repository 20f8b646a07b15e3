package sim

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"aisim/internal/protocol"
	"aisim/internal/telemetry"
)

// ReplayLog replays sensor rows from r to writer. A speed >0 accelerates playback.
// If speed <= 0, no artificial delay is inserted.
func ReplayLog(ctx context.Context, r io.Reader, writer TelemetryWriter, speed float64) error {
	dec := json.NewDecoder(r)
	var prev time.Time
	for {
		var row telemetry.SensorRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := pace(ctx, prev, row.Timestamp, speed); err != nil {
			return err
		}
		if err := writer.Write(row); err != nil {
			return err
		}
		prev = row.Timestamp
	}
}

// ReplayLogFile opens a file and replays its sensor rows.
func ReplayLogFile(ctx context.Context, path string, writer TelemetryWriter, speed float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReplayLog(ctx, f, writer, speed)
}

// ReplayCommands reads a recorded command log from r and passes every command
// to send, keeping the recorded spacing scaled by speed. Dropped commands are
// replayed too, so the target sees the same traffic.
func ReplayCommands(ctx context.Context, r io.Reader, send func(protocol.Command) error, speed float64) (int, error) {
	dec := json.NewDecoder(r)
	var prev time.Time
	n := 0
	for {
		var row telemetry.CommandRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if err := pace(ctx, prev, row.Timestamp, speed); err != nil {
			return n, err
		}
		if err := send(protocol.Command{Name: row.Actuator, Value: row.Value}); err != nil {
			return n, err
		}
		n++
		prev = row.Timestamp
	}
}

// ReplayCommandsFile opens a file and replays its command rows.
func ReplayCommandsFile(ctx context.Context, path string, send func(protocol.Command) error, speed float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ReplayCommands(ctx, f, send, speed)
}

func pace(ctx context.Context, prev, next time.Time, speed float64) error {
	if prev.IsZero() || speed <= 0 {
		return ctx.Err()
	}
	diff := next.Sub(prev)
	if speed != 1 {
		diff = time.Duration(float64(diff) / speed)
	}
	if diff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(diff)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
