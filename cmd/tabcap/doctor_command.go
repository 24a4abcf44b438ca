package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tabcap/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the local environment for recording problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			results := preflight.RunAll(cmd.Context(), ctx.configValue())
			for _, result := range results {
				kind := statusError
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if !preflight.Passed(results) {
				return errors.New("one or more checks failed")
			}
			fmt.Fprintln(stdout, "All checks passed")
			return nil
		},
	}
}
