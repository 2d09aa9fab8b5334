package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
)

var daemonStatusFlags struct {
	jsonOutput bool
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Show the status of the modlayer daemon.

Displays whether the daemon is running, its PID, socket path,
uptime, and how many outputs are stale.

Examples:
  modlayer daemon status        # Show status as text
  modlayer daemon status --json # Show status as JSON`,
	Args: cobra.NoArgs,
	RunE: runDaemonStatus,
}

func init() {
	daemonStatusCmd.Flags().BoolVar(&daemonStatusFlags.jsonOutput, "json", false,
		"Output as JSON")

	daemonCmd.AddCommand(daemonStatusCmd)
}

// DaemonStatusOutput is the JSON output format for daemon status.
type DaemonStatusOutput struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid,omitempty"`
	SocketPath   string   `json:"socket_path"`
	Version      string   `json:"version,omitempty"`
	Uptime       string   `json:"uptime,omitempty"`
	StartTime    string   `json:"start_time,omitempty"`
	Mounts       int      `json:"mounts,omitempty"`
	Targets      int      `json:"targets,omitempty"`
	StaleOutputs []string `json:"stale_outputs,omitempty"`
	Passes       int      `json:"passes,omitempty"`
	Error        string   `json:"error,omitempty"`
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	paths, err := getDaemonPaths()
	if err != nil {
		return err
	}

	status := daemon.GetStatus(paths)
	output := DaemonStatusOutput{
		Running:    status.Running,
		PID:        status.PID,
		SocketPath: paths.Socket,
	}

	if status.Running {
		if err := enrichStatusFromDaemon(paths, &output); err != nil {
			output.Error = err.Error()
		}
	} else if status.Stale {
		output.Error = "stale PID file (daemon crashed)"
	}

	if daemonStatusFlags.jsonOutput {
		return outputJSON(output)
	}
	return outputDaemonStatusText(output, status)
}

// enrichStatusFromDaemon connects to the daemon to get detailed status.
func enrichStatusFromDaemon(paths *daemon.Paths, output *DaemonStatusOutput) error {
	client, err := daemon.Connect(paths.Socket)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ping, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	output.Version = ping.Version
	output.Uptime = ping.Uptime
	output.StartTime = ping.StartTime

	st, err := client.StatusGet(ctx)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	output.Mounts = len(st.Mounts)
	output.Targets = len(st.Targets)
	output.Passes = st.Passes
	output.StaleOutputs = newStatusOutput(st).StaleOutputs
	return nil
}

// outputDaemonStatusText outputs status as human-readable text.
func outputDaemonStatusText(output DaemonStatusOutput, status *daemon.DaemonStatus) error {
	if !output.Running {
		fmt.Println("Daemon: not running")
		if status.Stale {
			fmt.Printf("  (stale PID file found for PID %d)\n", status.PID)
			fmt.Println("  Run 'modlayer daemon start' to start the daemon")
		}
		return nil
	}

	fmt.Printf("Daemon: running (PID: %d)\n", output.PID)
	fmt.Printf("Socket: %s\n", output.SocketPath)
	if output.Version != "" {
		fmt.Printf("Version: %s\n", output.Version)
	}
	if output.Uptime != "" {
		fmt.Printf("Uptime: %s\n", formatUptime(output.Uptime))
	}
	fmt.Printf("Mounts: %d, targets: %d, build passes: %d\n", output.Mounts, output.Targets, output.Passes)

	if len(output.StaleOutputs) > 0 {
		fmt.Println("Stale outputs:")
		for _, o := range output.StaleOutputs {
			fmt.Printf("  - %s\n", o)
		}
	} else {
		fmt.Println("Stale outputs: none")
	}

	if output.Error != "" {
		fmt.Printf("Warning: %s\n", output.Error)
	}
	return nil
}

// formatUptime formats the uptime string for display.
func formatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}

	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
