package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
)

var daemonNotifyFlags struct {
	deleted bool
}

var daemonNotifyCmd = &cobra.Command{
	Use:   "notify [logical-path...]",
	Short: "Report changed content to the daemon",
	Long: `Reports changed logical paths to a running daemon, for content the
daemon cannot watch itself (archives, generated files).

Changed paths go through the daemon's debounce queue. Deleted paths are
registered immediately and rebuilt on the next pass. With no paths the
daemon rescans every content root and rebuilds now.

Examples:
  modlayer daemon notify textures/blocks/stone.png
  modlayer daemon notify --deleted lang/extra.lang
  modlayer daemon notify                             # rescan everything`,
	RunE: runDaemonNotify,
}

func init() {
	daemonNotifyCmd.Flags().BoolVar(&daemonNotifyFlags.deleted, "deleted", false,
		"The paths were deleted")

	daemonCmd.AddCommand(daemonNotifyCmd)
}

// connectDaemon connects to the running daemon.
func connectDaemon() (*daemon.Client, error) {
	paths, err := getDaemonPaths()
	if err != nil {
		return nil, err
	}
	client, err := daemon.Connect(paths.Socket)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'modlayer daemon start')", err)
	}
	return client, nil
}

func runDaemonNotify(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	// A rescan builds before answering.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if daemonNotifyFlags.deleted {
		for _, p := range args {
			if err := client.SourceChanged(ctx, daemon.SourceChangedParams{Path: p, Deleted: true}); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
		}
		fmt.Printf("Reported %d deleted paths\n", len(args))
		return nil
	}

	ack, err := client.ContentChanged(ctx, args...)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Println("Rescanned content roots")
		return nil
	}
	fmt.Printf("Queued %d paths\n", ack.Accepted)
	return nil
}
