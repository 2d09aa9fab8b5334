// Package cli implements the modlayer command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/app"
	"github.com/albertocavalcante/modlayer/internal/log"
	"github.com/albertocavalcante/modlayer/pkg/config"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// globalFlags holds persistent flags that apply to all commands
var globalFlags struct {
	verbosity int
	logFormat string
	config    string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modlayer",
	Short: "Layered mod content builder with hot reload",
	Long: `Modlayer overlays prioritized content roots (base game, mods, packs)
into one logical file tree and builds composite artifacts such as sprite
sheets and string tables from it.

Only outputs whose sources changed since the last run are rebuilt. Use
'modlayer watch' to rebuild automatically while editing content.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("modlayer %s (%s)\n", Version, GitCommit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().IntVarP(&globalFlags.verbosity, "verbosity", "v", 1,
		"Verbosity level (0=error, 1=warn, 2=info, 3=debug, 4=trace)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.logFormat, "log-format", "text",
		"Log format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.config, "config", "c", "",
		"Project manifest (default: modlayer.toml found upward from the working directory)")

	cobra.OnInitialize(initLogging)
}

// initLogging applies CLI flags to the logger. Flags the user did not set
// leave the configured values from main.go in place.
func initLogging() {
	flags := rootCmd.PersistentFlags()
	if !flags.Changed("verbosity") && !flags.Changed("log-format") {
		return
	}
	v := log.Verbosity()
	if flags.Changed("verbosity") {
		v = globalFlags.verbosity
	}
	log.Init(v, globalFlags.logFormat)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}

// loadConfig loads the layered configuration, honouring --config.
func loadConfig() (*config.Config, error) {
	if globalFlags.config != "" {
		return config.LoadFile(globalFlags.config)
	}
	return config.Load()
}

// openApp loads the configuration and builds the application context.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Source == "" {
		log.Warn("no project manifest found, run 'modlayer init' to create one")
	}
	return app.New(app.Options{Config: cfg})
}

// signalContext is cancelled on interrupt, termination or terminal hangup.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
