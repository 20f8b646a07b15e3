// Harness configuration: YAML file, AISIM_* environment overrides, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Reply modes for the control server.
const (
	// ReplyImmediate renders the snapshot as soon as the command is queued.
	ReplyImmediate = "immediate"
	// ReplyAfterApply waits until the stepping loop has consumed the command.
	ReplyAfterApply = "after_apply"
)

// Defaults: port 8080, 20 Hz stepping, a 1000 byte
// read buffer and a 100 byte name buffer (99 usable bytes).
const (
	DefaultListenAddr   = ":8080"
	DefaultStepRate     = 20.0
	DefaultFrameRate    = 60.0
	DefaultReadBuffer   = 1000
	DefaultMaxNameLen   = 99
	DefaultReplyTimeout = time.Second
)

// LogConfig selects logger level and handler format.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// GreptimeConfig describes the optional GreptimeDB telemetry sink.
type GreptimeConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Database string `yaml:"database" env:"DATABASE"`
	Table    string `yaml:"table" env:"TABLE"`
}

// TelemetryConfig selects where per-step sensor rows and applied commands go.
type TelemetryConfig struct {
	File     string         `yaml:"file" env:"FILE"`
	Commands string         `yaml:"commands" env:"COMMANDS"`
	Stdout   bool           `yaml:"stdout" env:"STDOUT"`
	Color    bool           `yaml:"color" env:"COLOR"`
	Greptime GreptimeConfig `yaml:"greptime" envPrefix:"GREPTIME_"`
}

// Config is the root harness configuration.
type Config struct {
	Model        string          `yaml:"model" env:"AISIM_MODEL"`
	ListenAddr   string          `yaml:"listen_addr" env:"AISIM_LISTEN_ADDR"`
	AdminAddr    string          `yaml:"admin_addr" env:"AISIM_ADMIN_ADDR"`
	StepRate     float64         `yaml:"step_rate" env:"AISIM_STEP_RATE"`
	FrameRate    float64         `yaml:"frame_rate" env:"AISIM_FRAME_RATE"`
	ReplyMode    string          `yaml:"reply_mode" env:"AISIM_REPLY_MODE"`
	ReplyTimeout time.Duration   `yaml:"reply_timeout" env:"AISIM_REPLY_TIMEOUT"`
	ReadBuffer   int             `yaml:"read_buffer" env:"AISIM_READ_BUFFER"`
	MaxNameLen   int             `yaml:"max_name_len" env:"AISIM_MAX_NAME_LEN"`
	CtrlNoise    float64         `yaml:"ctrl_noise" env:"AISIM_CTRL_NOISE"`
	Headless     bool            `yaml:"headless" env:"AISIM_HEADLESS"`
	Scenario     string          `yaml:"scenario" env:"AISIM_SCENARIO"`
	Log          LogConfig       `yaml:"log" envPrefix:"AISIM_LOG_"`
	Telemetry    TelemetryConfig `yaml:"telemetry" envPrefix:"AISIM_TELEMETRY_"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   DefaultListenAddr,
		StepRate:     DefaultStepRate,
		FrameRate:    DefaultFrameRate,
		ReplyMode:    ReplyImmediate,
		ReplyTimeout: DefaultReplyTimeout,
		ReadBuffer:   DefaultReadBuffer,
		MaxNameLen:   DefaultMaxNameLen,
		Telemetry: TelemetryConfig{
			Greptime: GreptimeConfig{Port: 4001, Database: "public", Table: "aisim_sensors"},
		},
	}
}

// Load builds a Config from defaults, then the YAML file at path (if any),
// then AISIM_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.StepRate <= 0 {
		errs = append(errs, fmt.Errorf("step_rate must be positive, got %g", c.StepRate))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate must be positive, got %g", c.FrameRate))
	}
	switch c.ReplyMode {
	case ReplyImmediate, ReplyAfterApply:
	default:
		errs = append(errs, fmt.Errorf("unknown reply_mode %q", c.ReplyMode))
	}
	if c.ReplyMode == ReplyAfterApply && c.ReplyTimeout <= 0 {
		errs = append(errs, errors.New("reply_timeout must be positive in after_apply mode"))
	}
	if c.ReadBuffer < 2 {
		errs = append(errs, fmt.Errorf("read_buffer must be at least 2, got %d", c.ReadBuffer))
	}
	if c.MaxNameLen < 1 {
		errs = append(errs, fmt.Errorf("max_name_len must be positive, got %d", c.MaxNameLen))
	}
	if c.Telemetry.Commands != "" && c.Telemetry.File == "" {
		errs = append(errs, errors.New("telemetry.commands requires telemetry.file"))
	}
	if c.CtrlNoise < 0 {
		errs = append(errs, fmt.Errorf("ctrl_noise must not be negative, got %g", c.CtrlNoise))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// StepPeriod is the wall-clock interval between simulation steps.
func (c *Config) StepPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.StepRate)
}

// FramePeriod is the wall-clock interval between presentation frames.
func (c *Config) FramePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.FrameRate)
}
