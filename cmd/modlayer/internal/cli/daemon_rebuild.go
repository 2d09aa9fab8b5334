package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var daemonRebuildFlags struct {
	force bool
}

var daemonRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Run a build pass on the daemon",
	Long: `Asks a running daemon to rescan its content roots and rebuild stale
outputs now, without waiting for the debounce window.

Use --force to rebuild every output.`,
	Args: cobra.NoArgs,
	RunE: runDaemonRebuild,
}

func init() {
	daemonRebuildCmd.Flags().BoolVar(&daemonRebuildFlags.force, "force", false,
		"Rebuild every output")

	daemonCmd.AddCommand(daemonRebuildCmd)
}

func runDaemonRebuild(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := client.BuildRun(ctx, daemonRebuildFlags.force)
	if err != nil {
		return err
	}
	printReport(res.Report)
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}
