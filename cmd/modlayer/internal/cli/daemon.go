package cli

import (
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
)

// daemonCmd is the parent command for daemon operations.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the modlayer daemon",
	Long: `Manage the modlayer background daemon process.

The daemon builds stale outputs, then watches the content roots and
rebuilds on change. Hosts (a game, an editor) connect over a Unix socket
to report changes, query staleness and receive reload notifications.

Commands:
  start   - Start the daemon process
  stop    - Stop the running daemon
  status  - Show daemon status
  restart - Restart the daemon
  notify  - Report changed content to the daemon
  events  - Stream reload notifications

Examples:
  modlayer daemon start              # Start daemon in background
  modlayer daemon start --foreground # Run daemon in foreground (for debugging)
  modlayer daemon status             # Check if daemon is running
  modlayer daemon stop               # Stop the daemon`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// daemonSocket is the --socket flag shared by the daemon subcommands.
var daemonSocket string

func init() {
	daemonCmd.PersistentFlags().StringVar(&daemonSocket, "socket", "",
		"Custom socket path (default: <state_dir>/daemon.sock)")

	rootCmd.AddCommand(daemonCmd)
}

// getDaemonPaths returns the daemon paths from --socket, or the project's
// state directory.
func getDaemonPaths() (*daemon.Paths, error) {
	if daemonSocket != "" {
		return daemon.PathsForSocket(daemonSocket), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.PathsIn(cfg.StateDir), nil
}
