package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove saved state and built outputs",
	Long: `Removes every root's saved state, its derived data and the output
directory. The next 'modlayer build' rebuilds everything.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	if err := a.Clean(); err != nil {
		return err
	}
	fmt.Printf("Removed state in %s and outputs in %s\n", a.Config().StateDir, a.Config().OutputDir)
	return nil
}
