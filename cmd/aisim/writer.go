package main

import (
	"log/slog"

	"aisim/internal/config"
	"aisim/internal/sim"
)

// newWriters builds the telemetry fan-out described by cfg.Telemetry. Stdout
// writers are skipped while the terminal UI owns the screen.
func newWriters(cfg *config.Config, log *slog.Logger, tuiActive bool) (*sim.MultiWriter, error) {
	var ws []sim.TelemetryWriter
	tc := cfg.Telemetry

	if tc.Stdout {
		switch {
		case tuiActive:
			log.Warn("stdout telemetry disabled while the terminal UI is active")
		case tc.Color:
			ws = append(ws, sim.NewColorStdoutWriter(cfg))
		default:
			ws = append(ws, sim.NewJSONStdoutWriter())
		}
	}

	if tc.File != "" {
		fw, err := sim.NewFileWriter(tc.File, tc.Commands)
		if err != nil {
			closeAll(ws)
			return nil, err
		}
		ws = append(ws, fw)
	}

	if tc.Greptime.Host != "" {
		gw, err := sim.NewGreptimeDBWriter(tc.Greptime.Host, tc.Greptime.Port, tc.Greptime.Database, tc.Greptime.Table)
		if err != nil {
			closeAll(ws)
			return nil, err
		}
		gw.SetLogger(log)
		ws = append(ws, gw)
		log.Info("greptime telemetry enabled", "host", tc.Greptime.Host, "table", tc.Greptime.Table)
	}

	return sim.NewMultiWriter(ws...), nil
}

func closeAll(ws []sim.TelemetryWriter) {
	sim.NewMultiWriter(ws...).Close()
}
