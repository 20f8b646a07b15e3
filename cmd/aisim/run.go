package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"aisim/internal/admin"
	"aisim/internal/config"
	"aisim/internal/engine"
	"aisim/internal/logging"
	"aisim/internal/mailbox"
	"aisim/internal/scenario"
	"aisim/internal/server"
	"aisim/internal/sim"
	"aisim/internal/tui"
)

var (
	runListen    string
	runAdmin     string
	runStepRate  float64
	runFrameRate float64
	runReplyMode string
	runCtrlNoise float64
	runHeadless  bool
	runPrintOnly bool
	runLogFile   string
	runScenario  string
)

var runCmd = &cobra.Command{
	Use:   "run [model]",
	Short: "Run the simulation and the control server",
	Long:  "run loads a model, serves actuator commands on a TCP port and steps the simulation in real time under a terminal UI or headless.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHarness,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runListen, "listen", config.DefaultListenAddr, "Control server listen address")
	f.StringVar(&runAdmin, "admin", "", "Admin HTTP listen address (empty disables)")
	f.Float64Var(&runStepRate, "step-rate", config.DefaultStepRate, "Simulation steps per second")
	f.Float64Var(&runFrameRate, "frame-rate", config.DefaultFrameRate, "Presentation frames per second")
	f.StringVar(&runReplyMode, "reply-mode", config.ReplyImmediate, "Reply mode (immediate, after_apply)")
	f.Float64Var(&runCtrlNoise, "ctrl-noise", 0, "Control noise scale (0 disables)")
	f.BoolVar(&runHeadless, "headless", false, "Run without the terminal UI")
	f.BoolVar(&runPrintOnly, "print-only", false, "Print telemetry rows to STDOUT")
	f.StringVar(&runLogFile, "log-file", "", "Path to export sensor rows (JSONL)")
	f.StringVar(&runScenario, "scenario", "", "Built-in scenario name or scenario YAML to play into the mailbox")
}

// applyRunFlags overrides cfg with the run flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, args []string) error {
	fl := cmd.Flags()
	if fl.Changed("listen") {
		cfg.ListenAddr = runListen
	}
	if fl.Changed("admin") {
		cfg.AdminAddr = runAdmin
	}
	if fl.Changed("step-rate") {
		cfg.StepRate = runStepRate
	}
	if fl.Changed("frame-rate") {
		cfg.FrameRate = runFrameRate
	}
	if fl.Changed("reply-mode") {
		cfg.ReplyMode = runReplyMode
	}
	if fl.Changed("ctrl-noise") {
		cfg.CtrlNoise = runCtrlNoise
	}
	if fl.Changed("headless") {
		cfg.Headless = runHeadless
	}
	if fl.Changed("print-only") {
		cfg.Telemetry.Stdout = runPrintOnly
	}
	if fl.Changed("log-file") {
		cfg.Telemetry.File = runLogFile
	}
	if fl.Changed("scenario") {
		cfg.Scenario = runScenario
	}
	if len(args) == 1 {
		cfg.Model = args[0]
	}
	if cfg.Model == "" {
		return errors.New("no model given: pass a model file or set model in the config")
	}
	return cfg.Validate()
}

func runHarness(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg, args); err != nil {
		return err
	}

	useTUI := !cfg.Headless && term.IsTerminal(int(os.Stdout.Fd()))
	var logs *tui.LogBuffer
	var logOut io.Writer = os.Stderr
	if useTUI {
		logs = tui.NewLogBuffer(tui.DefaultLogLines)
		logOut = logs
	}
	log, err := newLogger(cfg, logOut)
	if err != nil {
		return err
	}
	if logs != nil {
		// whatever was logged after the last frame
		defer func() {
			for _, l := range logs.Drain() {
				fmt.Fprintln(os.Stderr, l)
			}
		}()
	}

	em, err := engine.Load(cfg.Model)
	if err != nil {
		return fmt.Errorf("load model %s: %w", cfg.Model, err)
	}
	log.Info("model loaded", "model", em.Name(), "actuators", em.NumActuators(), "timestep", em.Timestep())

	writer, err := newWriters(cfg, log, useTUI)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			log.Warn("closing telemetry writers", "err", err)
		}
	}()

	mb := mailbox.New()
	simCtx := sim.NewContext(em)
	loop := sim.NewLoop(simCtx, mb, cfg.StepPeriod(), writer)
	loop.SetLogger(log)
	loop.SetControlNoise(cfg.CtrlNoise)
	log = log.With("run_id", loop.RunID())

	if cfg.Scenario != "" {
		sc, err := scenario.Resolve(cfg.Scenario)
		if err != nil {
			return err
		}
		runner := scenario.NewRunner(sc, mb)
		runner.SetLogger(log)
		loop.AddObserver(runner)
		log.Info("scenario loaded", "scenario", sc.Name, "phases", len(sc.Phases))
	}

	srv := server.NewFromConfig(cfg, mb, simCtx)
	srv.Logger = log

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.NewContext(ctx, log)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		err := srv.Serve(runCtx)
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		if err != nil {
			// the loop keeps running without a control channel
			log.Error("control server failed", "err", err)
		}
		return err
	})
	if cfg.AdminAddr != "" {
		adm := admin.NewServer(loop)
		adm.Logger = log
		g.Go(func() error { return adm.Start(runCtx, cfg.AdminAddr) })
	}

	var presErr error
	if useTUI {
		ui := tui.New(runCtx, loop, tui.Options{
			FramePeriod: cfg.FramePeriod(),
			ListenAddr:  cfg.ListenAddr,
			Logs:        logs,
		})
		go func() {
			<-runCtx.Done()
			ui.Quit()
		}()
		presErr = ui.Run()
	} else {
		presErr = loop.Run(runCtx, sim.NewHeadlessPresenter(cfg.FrameRate))
	}

	mb.Terminate()
	srv.Shutdown()
	cancel()
	srvErr := g.Wait()

	st := loop.Stats()
	log.Info("simulation stopped", "steps", st.Steps, "applied", st.Applied, "dropped", st.Dropped, "resets", st.Resets)
	return errors.Join(presErr, srvErr)
}
