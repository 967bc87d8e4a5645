// Package config loads memtest settings from defaults, an optional config
// file, MEMTEST_* environment variables and command-line flags bound by the
// CLI, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/socratic-shell/socratic-shell/internal/harness"
	"github.com/socratic-shell/socratic-shell/internal/sanitize"
)

// EnvPrefix is prepended to every environment variable, e.g.
// MEMTEST_READY_TIMEOUT.
const EnvPrefix = "MEMTEST"

// Keys shared by viper, the config file and flag bindings.
const (
	KeyConfig               = "config"
	KeyCommand              = "command"
	KeyArgs                 = "args"
	KeyDir                  = "dir"
	KeyCols                 = "cols"
	KeyRows                 = "rows"
	KeyTerm                 = "term"
	KeyReadyMarkers         = "ready_markers"
	KeyReadyCaseInsensitive = "ready_case_insensitive"
	KeySettleDelay          = "settle_delay"
	KeyReadyTimeout         = "ready_timeout"
	KeySampleInterval       = "sample_interval"
	KeyIdleSamples          = "idle_samples"
	KeyResponseTimeout      = "response_timeout"
	KeySanitizer            = "sanitizer"
	KeyScenarios            = "scenarios"
	KeyLogLevel             = "log_level"
	KeyDebug                = "debug"
	KeyMirror               = "mirror"
)

// Config holds everything the CLI needs to build a harness and run a suite.
type Config struct {
	Command string
	Args    []string
	Dir     string
	Cols    int
	Rows    int
	Term    string

	ReadyMarkers         []string
	ReadyCaseInsensitive bool

	SettleDelay     time.Duration
	ReadyTimeout    time.Duration
	SampleInterval  time.Duration
	IdleSamples     int
	ResponseTimeout time.Duration

	Sanitizer sanitize.Mode

	// Scenarios is a YAML scenario file; empty runs the built-in suite.
	Scenarios string
	LogLevel  string
	// Debug is a file receiving a raw trace of terminal traffic.
	Debug  string
	Mirror bool
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	h := harness.DefaultConfig("claude")
	return &Config{
		Command:         h.Command,
		Cols:            int(h.Cols),
		Rows:            int(h.Rows),
		Term:            h.Term,
		ReadyMarkers:    h.ReadyMarkers,
		SettleDelay:     h.SettleDelay,
		ReadyTimeout:    h.ReadyTimeout,
		SampleInterval:  h.SampleInterval,
		IdleSamples:     h.IdleSamples,
		ResponseTimeout: h.ResponseTimeout,
		Sanitizer:       h.Sanitizer,
		LogLevel:        "info",
	}
}

// LoadConfig applies the config file named by the "config" key, then the
// environment and any bound flags on top of Defaults.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if path := viper.GetString(KeyConfig); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if viper.IsSet(KeyCommand) {
		cfg.Command = viper.GetString(KeyCommand)
	}
	if viper.IsSet(KeyArgs) {
		cfg.Args = viper.GetStringSlice(KeyArgs)
	}
	if viper.IsSet(KeyDir) {
		cfg.Dir = viper.GetString(KeyDir)
	}
	if viper.IsSet(KeyCols) {
		cfg.Cols = viper.GetInt(KeyCols)
	}
	if viper.IsSet(KeyRows) {
		cfg.Rows = viper.GetInt(KeyRows)
	}
	if viper.IsSet(KeyTerm) {
		cfg.Term = viper.GetString(KeyTerm)
	}
	if viper.IsSet(KeyReadyMarkers) {
		cfg.ReadyMarkers = viper.GetStringSlice(KeyReadyMarkers)
	}
	if viper.IsSet(KeyReadyCaseInsensitive) {
		cfg.ReadyCaseInsensitive = viper.GetBool(KeyReadyCaseInsensitive)
	}
	if viper.IsSet(KeySettleDelay) {
		cfg.SettleDelay = viper.GetDuration(KeySettleDelay)
	}
	if viper.IsSet(KeyReadyTimeout) {
		cfg.ReadyTimeout = viper.GetDuration(KeyReadyTimeout)
	}
	if viper.IsSet(KeySampleInterval) {
		cfg.SampleInterval = viper.GetDuration(KeySampleInterval)
	}
	if viper.IsSet(KeyIdleSamples) {
		cfg.IdleSamples = viper.GetInt(KeyIdleSamples)
	}
	if viper.IsSet(KeyResponseTimeout) {
		cfg.ResponseTimeout = viper.GetDuration(KeyResponseTimeout)
	}
	if viper.IsSet(KeySanitizer) {
		mode, ok := sanitize.ParseMode(viper.GetString(KeySanitizer))
		if !ok {
			return nil, fmt.Errorf("invalid sanitizer %q: want basic or full", viper.GetString(KeySanitizer))
		}
		cfg.Sanitizer = mode
	}
	if viper.IsSet(KeyScenarios) {
		cfg.Scenarios = viper.GetString(KeyScenarios)
	}
	if viper.IsSet(KeyLogLevel) {
		cfg.LogLevel = viper.GetString(KeyLogLevel)
	}
	if viper.IsSet(KeyDebug) {
		cfg.Debug = viper.GetString(KeyDebug)
	}
	if viper.IsSet(KeyMirror) {
		cfg.Mirror = viper.GetBool(KeyMirror)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the harness cannot run with.
func (c *Config) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("command must not be empty")
	}
	if c.Cols <= 0 || c.Cols > 0xffff || c.Rows <= 0 || c.Rows > 0xffff {
		return fmt.Errorf("invalid terminal size %dx%d", c.Cols, c.Rows)
	}
	if c.IdleSamples <= 0 {
		return fmt.Errorf("idle samples must be positive, got %d", c.IdleSamples)
	}
	for name, d := range map[string]time.Duration{
		KeySettleDelay:     c.SettleDelay,
		KeyReadyTimeout:    c.ReadyTimeout,
		KeySampleInterval:  c.SampleInterval,
		KeyResponseTimeout: c.ResponseTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	return nil
}

// Harness converts the settings into a harness configuration.
func (c *Config) Harness() harness.Config {
	return harness.Config{
		Command:              c.Command,
		Args:                 c.Args,
		Cols:                 uint16(c.Cols),
		Rows:                 uint16(c.Rows),
		Dir:                  c.Dir,
		Term:                 c.Term,
		ReadyMarkers:         c.ReadyMarkers,
		ReadyCaseInsensitive: c.ReadyCaseInsensitive,
		SettleDelay:          c.SettleDelay,
		ReadyTimeout:         c.ReadyTimeout,
		SampleInterval:       c.SampleInterval,
		IdleSamples:          c.IdleSamples,
		ResponseTimeout:      c.ResponseTimeout,
		Sanitizer:            c.Sanitizer,
	}
}
