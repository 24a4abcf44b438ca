package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabcap/internal/ipc"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the local recording history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var listLimit int
	var listJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List finished recordings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JournalList(listLimit)
				if err != nil {
					return err
				}
				if listJSON {
					return writeJSON(cmd, resp)
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Journal is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					outcome := entry.Outcome
					if entry.UploadError != "" {
						outcome = fmt.Sprintf("%s (%s)", entry.Outcome, entry.UploadError)
					}
					rows = append(rows, []string{
						entry.CreatedAt.Local().Format("2006-01-02 15:04"),
						entry.Title,
						entry.Platform,
						formatDuration(entry.DurationSeconds),
						formatSize(entry.SizeBytes),
						outcome,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"When", "Title", "Platform", "Duration", "Size", "Outcome"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Maximum entries to show")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output entries as JSON")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.JournalClear()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", resp.Removed)
				return nil
			})
		},
	}

	journalCmd.AddCommand(listCmd, clearCmd)
	return journalCmd
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
