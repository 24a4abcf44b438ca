package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tabcap/internal/ipc"
)

func newMeetingCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	meetingCmd := &cobra.Command{
		Use:   "meeting <tab-id>",
		Short: "Show detected meeting info and popup view for a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MeetingInfo(tabID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				viewKind := statusInfo
				if resp.View == "recording" {
					viewKind = statusOK
				}
				fmt.Fprintln(stdout, renderStatusLine("View", viewKind, resp.View, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Platform", statusInfo, resp.Meta.Platform.DisplayName(), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Title", statusInfo, resp.Meta.Title, colorize))
				if resp.Meta.MeetingID != "" {
					fmt.Fprintln(stdout, renderStatusLine("Meeting ID", statusInfo, resp.Meta.MeetingID, colorize))
				}
				if resp.Meta.URL != "" {
					fmt.Fprintln(stdout, renderStatusLine("URL", statusInfo, resp.Meta.URL, colorize))
				}
				if resp.View == "recording" {
					fmt.Fprintln(stdout, renderStatusLine("Duration", statusInfo, formatDuration(resp.Duration), colorize))
					fmt.Fprintln(stdout, renderStatusLine("Level", statusInfo, fmt.Sprintf("%d/100", resp.Level), colorize))
				}
				return nil
			})
		},
	}
	meetingCmd.Flags().BoolVar(&jsonOut, "json", false, "Output meeting info as JSON")
	return meetingCmd
}
