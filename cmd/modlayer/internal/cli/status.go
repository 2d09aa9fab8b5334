package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/app"
)

var statusFlags struct {
	verbose bool
	json    bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which outputs need rebuilding",
	Long: `Shows which outputs are stale, without building or saving state.

Compares the content roots against the state saved by the last
'modlayer build' and lists the outputs whose sources changed.

The --verbose flag also shows the changed source paths and mounts.
The --json flag outputs the result as JSON for scripting.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusFlags.verbose, "verbose", false,
		"Show changed sources and mounts")
	statusCmd.Flags().BoolVar(&statusFlags.json, "json", false,
		"Output as JSON")

	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the JSON output format for modlayer status.
type StatusOutput struct {
	Stale        bool              `json:"stale"`
	StaleOutputs []string          `json:"stale_outputs"`
	Changed      []string          `json:"changed,omitempty"`
	Deleted      []string          `json:"deleted,omitempty"`
	Mounts       []app.MountStatus `json:"mounts,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// newStatusOutput summarizes an application status.
func newStatusOutput(st *app.Status) StatusOutput {
	out := StatusOutput{StaleOutputs: []string{}, Mounts: st.Mounts}
	for _, t := range st.Targets {
		if t.Stale {
			out.StaleOutputs = append(out.StaleOutputs, t.Output)
		}
	}
	for _, ref := range st.Pending {
		if ref.Deleted {
			out.Deleted = append(out.Deleted, ref.Path)
		} else {
			out.Changed = append(out.Changed, ref.Path)
		}
	}
	out.Stale = len(out.StaleOutputs) > 0
	return out
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		if statusFlags.json {
			return outputJSON(StatusOutput{StaleOutputs: []string{}, Error: err.Error()})
		}
		return err
	}

	if err := a.Refresh(context.Background()); err != nil {
		return fmt.Errorf("failed to detect changes: %w", err)
	}
	out := newStatusOutput(a.Status())

	if statusFlags.json {
		return outputJSON(out)
	}

	if !out.Stale {
		fmt.Println("Outputs are up to date")
		return nil
	}

	fmt.Printf("Stale outputs (%d):\n", len(out.StaleOutputs))
	for _, o := range out.StaleOutputs {
		fmt.Printf("  %s\n", o)
	}

	if statusFlags.verbose {
		if len(out.Changed) > 0 {
			fmt.Printf("\nChanged sources (%d):\n", len(out.Changed))
			for _, p := range out.Changed {
				fmt.Printf("  ~ %s\n", p)
			}
		}
		if len(out.Deleted) > 0 {
			fmt.Printf("\nDeleted sources (%d):\n", len(out.Deleted))
			for _, p := range out.Deleted {
				fmt.Printf("  - %s\n", p)
			}
		}
		fmt.Println("\nMounts:")
		for _, m := range out.Mounts {
			state := "enabled"
			if !m.Enabled {
				state = "disabled"
			}
			fmt.Printf("  %-16s priority %-4d %s  %s\n", m.Name, m.Priority, state, m.Path)
			if cs := m.Changes; !cs.IsEmpty() {
				fmt.Printf("  %-16s +%d ~%d -%d\n", "", len(cs.Added), len(cs.Modified), len(cs.Deleted))
			}
		}
	}

	fmt.Println("\nRun 'modlayer build' to rebuild stale outputs")
	return nil
}
