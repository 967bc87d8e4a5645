package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/socratic-shell/socratic-shell/internal/config"
	"github.com/socratic-shell/socratic-shell/internal/debug"
	"github.com/socratic-shell/socratic-shell/internal/harness"
	"github.com/socratic-shell/socratic-shell/internal/logging"
	"github.com/socratic-shell/socratic-shell/internal/sanitize"
)

// errScenariosFailed makes the process exit 1 after the summary has
// already explained what failed.
var errScenariosFailed = errors.New("one or more scenarios failed")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "memtest",
		Short: "Drive an interactive CLI through a pseudo-terminal and check its replies",
		Long: `memtest starts a conversational command-line program inside a
pseudo-terminal, waits for its prompt, types scripted messages and checks
the cleaned replies for expected phrases.

Settings come from defaults, an optional --config file, MEMTEST_*
environment variables and flags, in increasing order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("command", "claude", "path of the program to drive")
	flags.StringSlice("arg", nil, "argument passed to the program (repeatable)")
	flags.String("dir", "", "working directory of the program")
	flags.String("sanitizer", "basic", "control sequence stripping: basic or full")
	flags.Duration("settle-delay", harness.DefaultSettleDelay, "pause before each submit keystroke")
	flags.Duration("ready-timeout", 0, "how long to wait for the prompt (default 30s)")
	flags.Duration("response-timeout", 0, "upper bound on one response (default 1m0s)")
	flags.Duration("sample-interval", 0, "output sampling interval (default 500ms)")
	flags.Int("idle-samples", 0, "unchanged samples that end a response (default 6)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("debug", "", "append a raw trace of terminal traffic to this file")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd.Flags(), map[string]string{
			config.KeyConfig:          "config",
			config.KeyCommand:         "command",
			config.KeyArgs:            "arg",
			config.KeyDir:             "dir",
			config.KeySanitizer:       "sanitizer",
			config.KeySettleDelay:     "settle-delay",
			config.KeyReadyTimeout:    "ready-timeout",
			config.KeyResponseTimeout: "response-timeout",
			config.KeySampleInterval:  "sample-interval",
			config.KeyIdleSamples:     "idle-samples",
			config.KeyLogLevel:        "log-level",
			config.KeyDebug:           "debug",
			config.KeyScenarios:       "scenarios",
			config.KeyMirror:          "mirror",
		})
	}

	root.AddCommand(newRunCmd(), newScenariosCmd(), newSendCmd())
	return root
}

// bindFlags binds flags that the user actually set, so unset flags do not
// mask values from the config file or environment.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := flags.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return nil
}

// session is what every command needs before talking to the target.
type session struct {
	cfg     *config.Config
	log     zerolog.Logger
	harness *harness.Harness
}

// newSession loads configuration, sets up logging and tracing and builds
// a harness. The caller must call close.
func newSession(stderr io.Writer) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg: cfg,
		log: logging.New(stderr, logging.ParseLevel(cfg.LogLevel)),
	}

	if cfg.Debug != "" {
		if err := debug.Enable(cfg.Debug); err != nil {
			return nil, fmt.Errorf("failed to open debug trace: %w", err)
		}
		s.log.Debug().Str("file", cfg.Debug).Msg("Tracing terminal traffic")
	}

	opts := []harness.Option{harness.WithLogger(s.log)}
	if cfg.Mirror {
		// Close flushes the writer.
		opts = append(opts, harness.WithMirror(sanitize.NewWriter(stderr, cfg.Sanitizer)))
	}
	s.harness = harness.New(cfg.Harness(), opts...)
	return s, nil
}

func (s *session) close() {
	if err := s.harness.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close target cleanly")
	}
	if debug.IsEnabled() {
		debug.Disable()
	}
}
