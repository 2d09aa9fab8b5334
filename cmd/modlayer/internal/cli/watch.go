package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/app"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/watch"
)

var watchFlags struct {
	force   bool
	verbose bool
	json    bool
	noColor bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild outputs as content changes",
	Long: `Builds stale outputs, then watches every enabled content root and
rebuilds the affected outputs when files change.

Bursts of changes are debounced: a rebuild runs once the roots have been
quiet for [watch] debounce_ticks ticks of [watch] tick each.

Example output:

  $ modlayer watch

  modlayer: watching 2 mounts for 3 targets
  modlayer: ready

  [14:32:15] ~ textures/blocks/stone.png
  [14:32:15] rebuilding after textures/blocks/stone.png...
  [14:32:15] ✓ textures/terrain.png (12ms)

Press Ctrl+C to stop watching.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchFlags.force, "force", false,
		"Rebuild every output before watching")
	watchCmd.Flags().BoolVar(&watchFlags.verbose, "verbose", false,
		"Show file-level changes")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false,
		"Stream JSON events (for tooling integration)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}

	logger := watch.NewLogger(watch.LoggerConfig{
		Writer:  os.Stdout,
		Verbose: watchFlags.verbose,
		NoColor: watchFlags.noColor,
		JSON:    watchFlags.json,
	})

	// A failed startup target is reported and retried on the next change.
	report, err := a.Startup(ctx, watchFlags.force)
	app.LogReport(logger, report)
	if err != nil {
		if report == nil {
			return err
		}
		logger.Error(err)
	}

	pipe, err := a.NewPipeline(app.PipelineOptions{Logger: logger})
	if err != nil {
		return err
	}
	return pipe.Run(ctx)
}
