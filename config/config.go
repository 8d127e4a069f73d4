// Package config holds the tunables of the dispatcher and loads them from a
// YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms"
type Duration time.Duration

// D converts back to a time.Duration
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML accepts either a duration string or a plain number of
// nanoseconds
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)

		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(n)

	return nil
}

// MarshalYAML renders the duration in the string form
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.D().String(), nil
}

// Config is the full configuration. The zero value is not usable, start
// from Default().
type Config struct {
	// Port is the default serial port, empty means auto-detect
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`

	// ReadTimeout bounds a single port read in the worker
	ReadTimeout Duration `yaml:"read_timeout"`
	// IdleSleep is how long the worker yields when there was no work
	IdleSleep Duration `yaml:"idle_sleep"`
	// DisconnectTimeout bounds the wait for the worker to stop before the
	// port is force-closed
	DisconnectTimeout Duration `yaml:"disconnect_timeout"`

	// PositionInterval is the period of automatic M114 requests, 0 disables
	// status polling entirely
	PositionInterval Duration `yaml:"position_interval"`
	// EndstopInterval is the period of automatic M119 requests
	EndstopInterval Duration `yaml:"endstop_interval"`
	// BlockingMinPause is the minimum polling pause after a blocking
	// command, even if the firmware acknowledges earlier
	BlockingMinPause Duration `yaml:"blocking_min_pause"`
	// BlockingMaxPause force-resumes polling after a blocking command that
	// never acknowledged
	BlockingMaxPause Duration `yaml:"blocking_max_pause"`

	// HistoryCapacity is the number of retained position snapshots
	HistoryCapacity int `yaml:"history_capacity"`
	// HistoryFile persists the position history between runs, empty
	// disables persistence
	HistoryFile string `yaml:"history_file"`
}

// Default returns the configuration matching the firmware's stock setup
func Default() Config {
	return Config{
		Baud:              115200,
		ReadTimeout:       Duration(50 * time.Millisecond),
		IdleSleep:         Duration(10 * time.Millisecond),
		DisconnectTimeout: Duration(2 * time.Second),
		PositionInterval:  Duration(time.Second),
		EndstopInterval:   Duration(5 * time.Second),
		BlockingMinPause:  Duration(2 * time.Second),
		BlockingMaxPause:  Duration(45 * time.Second),
		HistoryCapacity:   1000,
	}
}

// Load reads path and overlays it on Default()
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the dispatcher cannot run
// with
func (c Config) Validate() error {
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %v", c.ReadTimeout.D())
	}
	if c.DisconnectTimeout <= 0 {
		return fmt.Errorf("disconnect_timeout must be positive, got %v", c.DisconnectTimeout.D())
	}
	if c.BlockingMaxPause < c.BlockingMinPause {
		return fmt.Errorf("blocking_max_pause %v is below blocking_min_pause %v",
			c.BlockingMaxPause.D(), c.BlockingMinPause.D())
	}
	if c.HistoryCapacity < 0 {
		return fmt.Errorf("history_capacity must not be negative, got %d", c.HistoryCapacity)
	}

	return nil
}
