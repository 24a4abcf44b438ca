package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabcap/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				resp, err := client.LogTail(ipc.LogTailRequest{Limit: lines})
				if err != nil {
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(stdout, line)
				}
				if !follow {
					return nil
				}

				offset := resp.Offset
				for {
					next, err := client.LogTail(ipc.LogTailRequest{
						Offset:     offset,
						Follow:     true,
						WaitMillis: 2000,
					})
					if err != nil {
						return err
					}
					for _, line := range next.Lines {
						fmt.Fprintln(stdout, line)
					}
					offset = next.Offset
					select {
					case <-cmd.Context().Done():
						return nil
					default:
					}
				}
			})
		},
	}
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	return logsCmd
}
