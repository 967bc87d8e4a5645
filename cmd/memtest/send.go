package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the cleaned response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.harness.Start(cmd.Context()); err != nil {
				return err
			}
			response, err := s.harness.SendMessage(cmd.Context(), strings.Join(args, " "))
			if response != "" {
				fmt.Fprintln(cmd.OutOrStdout(), response)
			}
			return err
		},
	}
	cmd.Flags().Bool("mirror", false, "echo the program's sanitized output to stderr")
	return cmd
}
