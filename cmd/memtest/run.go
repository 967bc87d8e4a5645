package main

import (
	"github.com/spf13/cobra"

	"github.com/socratic-shell/socratic-shell/internal/scenario"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario suite and print a summary",
		Long: `Run starts the program, waits until it is ready and runs every
scenario in order. Without --scenarios the built-in memory bank suite
is used. The exit status is 1 when any scenario fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			scenarios, err := loadScenarios(s.cfg.Scenarios)
			if err != nil {
				return err
			}

			if err := s.harness.Start(cmd.Context()); err != nil {
				return err
			}

			report := scenario.NewRunner(s.harness, s.log).RunSuite(cmd.Context(), scenarios)
			if err := report.WriteSummary(cmd.OutOrStdout()); err != nil {
				return err
			}
			if !report.Passed() {
				return errScenariosFailed
			}
			return nil
		},
	}

	cmd.Flags().String("scenarios", "", "YAML scenario file (default: built-in memory bank suite)")
	cmd.Flags().Bool("mirror", false, "echo the program's sanitized output to stderr")
	return cmd
}

func loadScenarios(path string) ([]scenario.Scenario, error) {
	if path == "" {
		return scenario.MemoryBank(), nil
	}
	return scenario.LoadFile(path)
}
