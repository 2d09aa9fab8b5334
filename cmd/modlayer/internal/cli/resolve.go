package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
)

var resolveFlags struct {
	all        bool
	alternate  bool
	extensions []string
	json       bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Show which content root provides a logical path",
	Long: `Resolves a logical path through the mounted content roots and prints
the concrete file that wins.

  --all        list every root that provides the path, highest priority first
  --alternate  skip the default root (find a mod's version of a base file)
  --ext        try the path with each extension in turn, e.g. --ext png,dds`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveFlags.all, "all", false,
		"List every provider")
	resolveCmd.Flags().BoolVar(&resolveFlags.alternate, "alternate", false,
		"Skip the default content root")
	resolveCmd.Flags().StringSliceVar(&resolveFlags.extensions, "ext", nil,
		"Allowed extensions, in order (comma-separated)")
	resolveCmd.Flags().BoolVar(&resolveFlags.json, "json", false,
		"Output as JSON")
	resolveCmd.MarkFlagsMutuallyExclusive("all", "alternate", "ext")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}

	res := daemon.ResolveWith(a.Resolver(), daemon.ResolveParams{
		Path:       args[0],
		All:        resolveFlags.all,
		Alternate:  resolveFlags.alternate,
		Extensions: resolveFlags.extensions,
	})
	if resolveFlags.json {
		return outputJSON(res)
	}

	if !res.Found {
		return errors.New(res.Path + ": not found in any content root")
	}
	if resolveFlags.all {
		for _, p := range res.All {
			fmt.Println(p)
		}
		return nil
	}
	fmt.Println(res.Concrete)
	return nil
}
