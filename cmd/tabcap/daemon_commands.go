package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tabcap/internal/daemonctl"
	"tabcap/internal/ipc"
	"tabcap/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tabcap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.DaemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the tabcap daemon (active recordings are dropped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			_, err := daemonctl.Stop(ctx.socketPath())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the tabcap daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.DaemonExecutable()
			if err != nil {
				return err
			}
			result, wasRunning, err := daemonctl.Restart(
				ctx.socketPath(), exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if wasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			switch result.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			default:
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and recording status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status := fetchStatus(ctx)
			if statusJSON {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Running {
				fmt.Fprintln(stdout, renderStatusLine("Tabcap", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
				authKind := statusWarn
				authDetail := "Not signed in (uploads disabled)"
				if status.Authenticated {
					authKind = statusOK
					authDetail = "Signed in"
				}
				fmt.Fprintln(stdout, renderStatusLine("Authentication", authKind, authDetail, colorize))
				deviceKind := statusInfo
				deviceDetail := "Inactive"
				if status.DeviceMonitor {
					deviceKind = statusOK
					deviceDetail = "Watching audio devices"
				}
				fmt.Fprintln(stdout, renderStatusLine("Device Monitor", deviceKind, deviceDetail, colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Tabcap", statusWarn, "Not running (run `tabcap start`)", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range preflight.RunAll(cmd.Context(), ctx.configValue()) {
				kind := statusWarn
				if result.Passed {
					kind = statusOK
				}
				fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Active Recordings", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if len(status.Sessions) == 0 {
				fmt.Fprintln(stdout, "No active recordings")
			} else {
				rows := make([][]string, 0, len(status.Sessions))
				for _, sess := range status.Sessions {
					rows = append(rows, []string{
						fmt.Sprintf("%d", sess.TabID),
						sess.Title,
						sess.Platform,
						sess.State,
						formatDuration(sess.Duration),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Tab", "Title", "Platform", "State", "Duration"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight}))
			}

			if len(status.JournalStats) > 0 {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Journal", colorize) {
					fmt.Fprintln(stdout, line)
				}
				outcomes := make([]string, 0, len(status.JournalStats))
				for outcome := range status.JournalStats {
					outcomes = append(outcomes, outcome)
				}
				sort.Strings(outcomes)
				rows := make([][]string, 0, len(outcomes))
				for _, outcome := range outcomes {
					rows = append(rows, []string{outcome, fmt.Sprintf("%d", status.JournalStats[outcome])})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Outcome", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight}))
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

// fetchStatus returns daemon status, degrading to a not-running snapshot
// when IPC is unavailable.
func fetchStatus(ctx *commandContext) *ipc.StatusResponse {
	status := &ipc.StatusResponse{}
	client, err := ipc.Dial(ctx.socketPath())
	if err != nil {
		return status
	}
	defer client.Close()
	if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
		return resp
	}
	return status
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return d.String()
}
