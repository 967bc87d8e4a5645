package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/socratic-shell/socratic-shell/internal/config"
)

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios that run would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			scenarios, err := loadScenarios(cfg.Scenarios)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range scenarios {
				fmt.Fprintf(out, "%s [%s]\n", s.Name, s.Policy)
				for _, setup := range s.Setup {
					fmt.Fprintf(out, "  setup:      %s\n", setup)
				}
				fmt.Fprintf(out, "  prompt:     %s\n", s.Prompt)
				fmt.Fprintf(out, "  indicators: %s\n", strings.Join(s.Indicators, ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("scenarios", "", "YAML scenario file (default: built-in memory bank suite)")
	return cmd
}
