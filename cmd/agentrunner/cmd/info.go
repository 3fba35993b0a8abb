package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errUnavailable = errors.New("backend not available")

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show agentrunner and agent CLI versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agentrunner %s\n", version)

			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			v, ok := r.Version(cmd.Context())
			if !ok {
				return fmt.Errorf("%s: %w", r.BackendName(), errUnavailable)
			}
			fmt.Fprintf(out, "%s %s\n", r.BackendName(), v)
			return nil
		},
	}
}

func newAvailableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "Check whether the configured agent CLI is installed",
		Long: `Probe the configured backend's CLI with --version.

Exits 0 when it answers and 1 otherwise, so it can gate scripts:

  agentrunner available -b codex && agentrunner run -b codex "..."`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			if !r.Available(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), styleError.Render("✗ "+r.BackendName()+" not available"))
				return fmt.Errorf("%s: %w", r.BackendName(), errUnavailable)
			}
			fmt.Fprintln(cmd.OutOrStdout(), styleOK.Render("✓ "+r.BackendName()+" available"))
			return nil
		},
	}
}
