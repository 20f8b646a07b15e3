// ColorStdoutWriter prints human-friendly, colorized telemetry to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"aisim/internal/config"
	"aisim/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

var sensorPalette = []string{colorGreen, colorYellow, colorMagenta, colorCyan, colorBlue}

// ColorStdoutWriter prints one colorized line per sensor row.
type ColorStdoutWriter struct {
	cfg          *config.Config
	out          io.Writer
	once         sync.Once
	mu           sync.Mutex
	sensorColors map[string]string
	colorIdx     int
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(cfg *config.Config) *ColorStdoutWriter {
	return &ColorStdoutWriter{
		cfg:          cfg,
		out:          os.Stdout,
		sensorColors: make(map[string]string),
	}
}

func (w *ColorStdoutWriter) getSensorColor(name string) string {
	if c, ok := w.sensorColors[name]; ok {
		return c
	}
	c := sensorPalette[w.colorIdx%len(sensorPalette)]
	w.sensorColors[name] = c
	w.colorIdx++
	return c
}

func (w *ColorStdoutWriter) printOverview() {
	if w.cfg == nil {
		return
	}
	fmt.Fprintln(w.out, "Harness Configuration:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Model:\t%s\n", w.cfg.Model)
	fmt.Fprintf(tw, "Listen Address:\t%s\n", w.cfg.ListenAddr)
	fmt.Fprintf(tw, "Step Rate (Hz):\t%g\n", w.cfg.StepRate)
	fmt.Fprintf(tw, "Reply Mode:\t%s\n", w.cfg.ReplyMode)
	fmt.Fprintf(tw, "Control Noise:\t%.3f\n", w.cfg.CtrlNoise)
	tw.Flush()
	fmt.Fprintln(w.out)
}

// Write outputs a single sensor row in colorized format.
func (w *ColorStdoutWriter) Write(row telemetry.SensorRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()

	fmt.Fprintf(w.out, "%s[%s]%s ", colorGray, row.Timestamp.Format(time.RFC3339Nano), colorReset)
	fmt.Fprintf(w.out, "%sstep=%d%s ", colorBlue, row.Step, colorReset)
	fmt.Fprintf(w.out, "%st=%.3f%s ", colorGray, row.SimTime, colorReset)
	fmt.Fprintf(w.out, "%s%s%s", w.getSensorColor(row.Sensor), row.Sensor, colorReset)
	for _, v := range row.Values {
		fmt.Fprintf(w.out, " %s", strconv.FormatFloat(v, 'f', 6, 64))
	}
	_, err := fmt.Fprintln(w.out)
	return err
}

// WriteBatch outputs multiple sensor rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.SensorRow) error {
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommand prints a drained command. Dropped commands are shown in red.
func (w *ColorStdoutWriter) WriteCommand(row telemetry.CommandRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	col, label := colorGreen, "APPLIED"
	if !row.Applied {
		col, label = colorRed, "DROPPED"
	}
	_, err := fmt.Fprintf(w.out, "%s[%s]%s %s%s%s seq=%d actuator=%s value=%g\n",
		colorGray, row.Timestamp.Format(time.RFC3339Nano), colorReset,
		col, label, colorReset, row.Seq, row.Actuator, row.Value)
	return err
}
