package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
)

var buildFlags struct {
	force bool
	json  bool
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild outputs whose sources changed",
	Long: `Scans every enabled content root, compares it with the state saved by
the previous build, and rebuilds only the outputs whose sources changed.

State is saved only when every target builds, so a failed change is picked
up again by the next run.

Use --force to treat every root as new and rebuild all outputs.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildFlags.force, "force", false,
		"Rebuild every output")
	buildCmd.Flags().BoolVar(&buildFlags.json, "json", false,
		"Output the build report as JSON")

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := openApp()
	if err != nil {
		return err
	}

	report, buildErr := a.Startup(ctx, buildFlags.force)
	if report == nil {
		return buildErr
	}
	if buildFlags.json {
		if err := outputJSON(report); err != nil {
			return err
		}
		return buildErr
	}

	printReport(report)
	return buildErr
}

// printReport writes a human-readable build report.
func printReport(report *artifact.BuildReport) {
	if report.IsEmpty() {
		fmt.Println("Outputs are up to date")
		return
	}
	for _, res := range report.Results {
		switch res.Status {
		case artifact.StatusBuilt:
			fmt.Printf("  built    %s (%d sources, %s)\n", res.Output, res.Applied, res.Duration.Round(time.Millisecond))
		case artifact.StatusSkipped:
			fmt.Printf("  skipped  %s: %s\n", res.Output, res.Error)
		case artifact.StatusFailed:
			fmt.Printf("  failed   %s: %s\n", res.Output, res.Error)
		}
		for _, m := range res.Missing {
			fmt.Printf("           missing %s\n", m)
		}
	}
	fmt.Printf("\n%d built, %d skipped, %d failed (%d decoded, %d cached) in %s\n",
		report.Count(artifact.StatusBuilt),
		report.Count(artifact.StatusSkipped),
		report.Count(artifact.StatusFailed),
		report.Decoded, report.CacheHits,
		report.Duration.Round(time.Millisecond))
}
