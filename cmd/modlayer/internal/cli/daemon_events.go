package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
)

var daemonEventsFlags struct {
	json bool
}

var daemonEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream reload notifications from the daemon",
	Long: `Subscribes to a running daemon and prints a line for every output it
rebuilds, until the daemon stops or Ctrl+C is pressed.

Hosts use the same subscription to reload assets as soon as they are
written.`,
	Args: cobra.NoArgs,
	RunE: runDaemonEvents,
}

func init() {
	daemonEventsCmd.Flags().BoolVar(&daemonEventsFlags.json, "json", false,
		"Print raw JSON-RPC notifications")

	daemonCmd.AddCommand(daemonEventsCmd)
}

func runDaemonEvents(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	events, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-events:
			if !ok {
				fmt.Println("daemon disconnected")
				return nil
			}
			if err := printNotification(os.Stdout, n, daemonEventsFlags.json); err != nil {
				return err
			}
		}
	}
}

// printNotification prints one daemon notification to w.
func printNotification(w io.Writer, n *daemon.Notification, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(n)
	}
	switch n.Method {
	case daemon.MethodTargetReloaded:
		var p daemon.TargetReloadedParams
		if err := json.Unmarshal(n.Params, &p); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s reloaded %s (%s)\n", p.Timestamp, p.Output, p.Path)
	case daemon.MethodDaemonEvent:
		var p daemon.DaemonEventParams
		if err := json.Unmarshal(n.Params, &p); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s daemon %s: %s\n", p.Timestamp, p.Type, p.Message)
	default:
		fmt.Fprintf(w, "%s %s\n", n.Method, n.Params)
	}
	return nil
}
