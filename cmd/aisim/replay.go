package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"aisim/internal/protocol"
	"aisim/internal/sim"
)

var (
	replaySpeed     float64
	replayPrintOnly bool
	replayAddr      string
	replayTimeout   time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded sensor or command logs",
}

var replaySensorsCmd = &cobra.Command{
	Use:   "sensors <file>",
	Short: "Replay a sensor log into the configured telemetry writers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("print-only") {
			cfg.Telemetry.Stdout = replayPrintOnly
		}
		log, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		writer, err := newWriters(cfg, log, false)
		if err != nil {
			return err
		}
		defer writer.Close()
		return sim.ReplayLogFile(cmd.Context(), args[0], writer, replaySpeed)
	},
}

var replayCommandsCmd = &cobra.Command{
	Use:   "commands <file>",
	Short: "Replay a command log against a running control server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		c, err := dialControl(ctx, replayAddr)
		if err != nil {
			return err
		}
		defer c.Close()
		send := func(pc protocol.Command) error {
			rctx, cancel := context.WithTimeout(ctx, replayTimeout)
			defer cancel()
			_, err := c.roundTrip(rctx, pc)
			return err
		}
		n, err := sim.ReplayCommandsFile(ctx, args[0], send, replaySpeed)
		log.Info("replayed commands", "count", n, "addr", replayAddr)
		return err
	},
}

func init() {
	replayCmd.PersistentFlags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 = as fast as possible)")
	replaySensorsCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print telemetry to STDOUT")
	replayCommandsCmd.Flags().StringVar(&replayAddr, "addr", "localhost:8080", "Control server address")
	replayCommandsCmd.Flags().DurationVar(&replayTimeout, "timeout", 5*time.Second, "Per-request reply timeout")
	replayCmd.AddCommand(replaySensorsCmd)
	replayCmd.AddCommand(replayCommandsCmd)
}
