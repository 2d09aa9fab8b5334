package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
)

var daemonStopFlags struct {
	force bool
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Long: `Stop the modlayer daemon process.

By default, sends a graceful shutdown request via the socket.
If the daemon doesn't respond within 5 seconds, use --force to
send SIGKILL.

Examples:
  modlayer daemon stop         # Graceful shutdown
  modlayer daemon stop --force # Force kill if graceful fails`,
	Args: cobra.NoArgs,
	RunE: runDaemonStop,
}

func init() {
	daemonStopCmd.Flags().BoolVar(&daemonStopFlags.force, "force", false,
		"Force kill if graceful shutdown fails")

	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	paths, err := getDaemonPaths()
	if err != nil {
		return err
	}
	return stopDaemon(paths, daemonStopFlags.force)
}

// stopDaemon stops the daemon at paths, killing it when force is set and
// the graceful shutdown does not finish in time.
func stopDaemon(paths *daemon.Paths, force bool) error {
	status := daemon.GetStatus(paths)

	if status.Stale {
		fmt.Println("Daemon not running (cleaning up stale files)")
		_ = paths.Cleanup()
		return nil
	}
	if !status.Running {
		fmt.Println("Daemon not running")
		return nil
	}

	fmt.Printf("Stopping daemon (PID: %d)...\n", status.PID)

	if err := tryGracefulShutdown(paths); err == nil {
		if waitForExit(status.PID, 5*time.Second) {
			fmt.Println("Daemon stopped")
			return nil
		}
	} else if force {
		// No socket: fall back to a signal before killing.
		_ = daemon.StopProcess(status.PID)
		if waitForExit(status.PID, 2*time.Second) {
			fmt.Println("Daemon stopped")
			_ = paths.Cleanup()
			return nil
		}
	}

	if !force {
		fmt.Println("Graceful shutdown timed out. Use --force to kill.")
		return errors.New("shutdown timed out")
	}

	fmt.Println("Forcing shutdown...")
	if err := daemon.KillProcess(status.PID); err != nil {
		// Process might have exited between checks
		if !daemon.IsProcessRunning(status.PID) {
			fmt.Println("Daemon stopped")
			_ = paths.Cleanup()
			return nil
		}
		return fmt.Errorf("failed to kill daemon: %w", err)
	}

	if waitForExit(status.PID, 2*time.Second) {
		fmt.Println("Daemon stopped (forced)")
		_ = paths.Cleanup()
		return nil
	}
	return errors.New("failed to stop daemon")
}

// tryGracefulShutdown attempts to stop the daemon via RPC.
func tryGracefulShutdown(paths *daemon.Paths) error {
	client, err := daemon.Connect(paths.Socket)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = client.Shutdown(ctx)
	return err
}

// waitForExit waits for a process to exit.
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !daemon.IsProcessRunning(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
