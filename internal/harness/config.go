package harness

import (
	"time"

	"github.com/socratic-shell/socratic-shell/internal/quiesce"
	"github.com/socratic-shell/socratic-shell/internal/sanitize"
)

const (
	DefaultCols        = 120
	DefaultRows        = 40
	DefaultTerm        = "xterm-256color"
	DefaultSettleDelay = 100 * time.Millisecond
)

// DefaultReadyMarkers are the substrings whose appearance in startup output
// means the target accepts input.
var DefaultReadyMarkers = []string{">", "claude"}

// DefaultSubmit is written after the message text. The target needs two
// carriage returns before it acts on a message.
var DefaultSubmit = []string{"\r", "\r"}

// Config describes the target and the timings used to drive it. Zero
// values are replaced by defaults in New.
type Config struct {
	Command string
	Args    []string
	Cols    uint16
	Rows    uint16
	Dir     string
	// Env is the full child environment; nil inherits ours.
	Env  []string
	Term string

	ReadyMarkers         []string
	ReadyCaseInsensitive bool

	Submit      []string
	SettleDelay time.Duration

	ReadyInterval   time.Duration
	ReadyTimeout    time.Duration
	SampleInterval  time.Duration
	IdleSamples     int
	ResponseTimeout time.Duration

	Sanitizer sanitize.Mode
}

// DefaultConfig returns a Config for command with every default filled in.
func DefaultConfig(command string, args ...string) Config {
	return Config{
		Command:         command,
		Args:            args,
		Cols:            DefaultCols,
		Rows:            DefaultRows,
		Term:            DefaultTerm,
		ReadyMarkers:    append([]string(nil), DefaultReadyMarkers...),
		Submit:          append([]string(nil), DefaultSubmit...),
		SettleDelay:     DefaultSettleDelay,
		ReadyInterval:   quiesce.DefaultReadyInterval,
		ReadyTimeout:    quiesce.DefaultReadyTimeout,
		SampleInterval:  quiesce.DefaultSampleInterval,
		IdleSamples:     quiesce.DefaultIdleSamples,
		ResponseTimeout: quiesce.DefaultResponseTimeout,
		Sanitizer:       sanitize.ModeBasic,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Command, c.Args...)
	d.Dir = c.Dir
	d.Env = c.Env
	d.ReadyCaseInsensitive = c.ReadyCaseInsensitive

	if c.Cols != 0 {
		d.Cols = c.Cols
	}
	if c.Rows != 0 {
		d.Rows = c.Rows
	}
	if c.Term != "" {
		d.Term = c.Term
	}
	if len(c.ReadyMarkers) != 0 {
		d.ReadyMarkers = c.ReadyMarkers
	}
	if len(c.Submit) != 0 {
		d.Submit = c.Submit
	}
	if c.SettleDelay > 0 {
		d.SettleDelay = c.SettleDelay
	}
	if c.ReadyInterval > 0 {
		d.ReadyInterval = c.ReadyInterval
	}
	if c.ReadyTimeout > 0 {
		d.ReadyTimeout = c.ReadyTimeout
	}
	if c.SampleInterval > 0 {
		d.SampleInterval = c.SampleInterval
	}
	if c.IdleSamples > 0 {
		d.IdleSamples = c.IdleSamples
	}
	if c.ResponseTimeout > 0 {
		d.ResponseTimeout = c.ResponseTimeout
	}
	if c.Sanitizer != "" {
		d.Sanitizer = c.Sanitizer
	}
	return d
}
