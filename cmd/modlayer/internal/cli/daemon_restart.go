package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var daemonRestartFlags struct {
	force bool
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon",
	Long: `Restart the modlayer daemon.

This is equivalent to running 'modlayer daemon stop' followed by
'modlayer daemon start'.

Examples:
  modlayer daemon restart         # Restart the daemon
  modlayer daemon restart --force # Force restart if graceful stop fails`,
	Args: cobra.NoArgs,
	RunE: runDaemonRestart,
}

func init() {
	daemonRestartCmd.Flags().BoolVar(&daemonRestartFlags.force, "force", false,
		"Force kill if graceful shutdown fails")

	daemonCmd.AddCommand(daemonRestartCmd)
}

func runDaemonRestart(cmd *cobra.Command, args []string) error {
	paths, err := getDaemonPaths()
	if err != nil {
		return err
	}
	if err := stopDaemon(paths, daemonRestartFlags.force); err != nil {
		return fmt.Errorf("graceful shutdown failed (use --force to kill): %w", err)
	}

	// Small delay before starting
	time.Sleep(200 * time.Millisecond)

	fmt.Println("Starting daemon...")
	daemonStartFlags.foreground = false
	return runDaemonStart(cmd, args)
}
