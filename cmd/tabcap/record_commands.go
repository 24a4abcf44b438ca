package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tabcap/internal/ipc"
	"tabcap/internal/protocol"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Control recording for a browser tab",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	startCmd := &cobra.Command{
		Use:   "start <tab-id>",
		Short: "Start recording a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RecordStart(tabID)
				if err != nil {
					return describeRecordError(err, tabID)
				}
				if resp.Title != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Recording started: %s (%s)\n", resp.Title, resp.Platform)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Recording started")
				}
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop <tab-id>",
		Short: "Stop recording a tab and upload the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.RecordStop(tabID); err != nil {
					return describeRecordError(err, tabID)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording stopped")
				return nil
			})
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <tab-id>",
		Short: "Force-clear recording state for a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.RecordReset(tabID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording state cleared")
				return nil
			})
		},
	}

	recordCmd.AddCommand(startCmd, stopCmd, resetCmd)
	return recordCmd
}

func parseTabID(arg string) (int, error) {
	tabID, err := strconv.Atoi(arg)
	if err != nil || tabID < 0 {
		return 0, fmt.Errorf("invalid tab id %q", arg)
	}
	return tabID, nil
}

// describeRecordError maps wire error codes back to actionable messages.
func describeRecordError(err error, tabID int) error {
	decoded := protocol.FromCode(err.Error())
	switch {
	case errors.Is(decoded, protocol.ErrAlreadyRecording):
		return fmt.Errorf("tab %d is already recording; stop it first or run `tabcap record reset %d`", tabID, tabID)
	case errors.Is(decoded, protocol.ErrNoActiveRecording):
		return fmt.Errorf("tab %d is not recording", tabID)
	case errors.Is(decoded, protocol.ErrTabAudioUnavailable):
		return fmt.Errorf("tab %d has no capturable audio; is the meeting page connected?", tabID)
	case errors.Is(decoded, protocol.ErrNoAudioTracks):
		return fmt.Errorf("no audio tracks available for tab %d", tabID)
	case errors.Is(decoded, protocol.ErrNotAuthenticated):
		return errors.New("not signed in; write your dashboard token to the configured token file")
	case errors.Is(decoded, protocol.ErrRequestTimeout):
		return fmt.Errorf("the daemon did not answer in time for tab %d; try `tabcap record reset %d`", tabID, tabID)
	default:
		return err
	}
}
