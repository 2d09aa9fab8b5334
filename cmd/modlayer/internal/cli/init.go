package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/detect"
	"github.com/albertocavalcante/modlayer/pkg/config"
	"github.com/albertocavalcante/modlayer/pkg/registry"
)

var initFlags struct {
	output string
	check  bool
	dryRun bool
}

var initCmd = &cobra.Command{
	Use:   "init [root...]",
	Short: "Create a project manifest for the given content roots",
	Long: `Creates a modlayer.toml that mounts the given content roots.

The first root is the base content and gets the lowest priority; each
following root overrides the ones before it. Asset kinds found under each
root are reported so targets can be declared for them.

Use --check to verify an existing manifest without making changes (useful for CI).
Use --dry-run to preview the manifest without writing it.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initFlags.output, "output", "o", config.ConfigFileName,
		"Manifest path to write")
	initCmd.Flags().BoolVar(&initFlags.check, "check", false,
		"Check that the manifest loads and validates (exit 1 if not)")
	initCmd.Flags().BoolVar(&initFlags.dryRun, "dry-run", false,
		"Show the manifest without writing it")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	manifest, err := filepath.Abs(initFlags.output)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if initFlags.check {
		return runInitCheck(manifest)
	}

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}

	for _, root := range roots {
		found, err := detect.Kinds(root)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", root, err)
		}
		if len(found) == 0 {
			fmt.Printf("%s: no known asset kinds\n", root)
			continue
		}
		fmt.Printf("%s: %s\n", root, strings.Join(found, ", "))
	}

	cfg, err := skeletonConfig(filepath.Dir(manifest), roots)
	if err != nil {
		return err
	}

	if initFlags.dryRun {
		content, err := encodeConfig(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("\nWould create %s:\n\n%s", manifest, content)
		return nil
	}

	if fileExists(manifest) {
		fmt.Printf("%s already exists (skipping)\n", manifest)
		return nil
	}
	if err := cfg.Save(manifest); err != nil {
		return err
	}
	fmt.Printf("\nCreated %s\n", manifest)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Declare [[targets]] for the outputs to build")
	fmt.Println("  2. Run 'modlayer build'")
	return nil
}

// skeletonConfig mounts roots in increasing priority, the first one as the
// default content. Paths are stored relative to dir when possible.
func skeletonConfig(dir string, roots []string) (*config.Config, error) {
	cfg := config.NewConfig()
	for i, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		path := abs
		if rel, err := filepath.Rel(dir, abs); err == nil && !strings.HasPrefix(rel, "..") {
			path = filepath.ToSlash(rel)
		}
		cfg.Mounts = append(cfg.Mounts, config.Mount{
			Name:     filepath.Base(abs),
			Path:     path,
			Priority: i * 10,
			Default:  i == 0,
		})
	}
	return cfg, nil
}

func encodeConfig(cfg *config.Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}

func runInitCheck(manifest string) error {
	if !fileExists(manifest) {
		return fmt.Errorf("manifest not found at %s (run 'modlayer init' to create one)", manifest)
	}
	cfg, err := config.LoadFile(manifest)
	if err != nil {
		return err
	}

	var issues []error
	if err := cfg.Validate(registry.AvailableCodecs()); err != nil {
		issues = append(issues, err)
	}
	for _, m := range cfg.EnabledMounts() {
		if info, err := os.Stat(m.Path); err != nil || !info.IsDir() {
			issues = append(issues, fmt.Errorf("mount %s: %s is not a directory", m.DisplayName(), m.Path))
		}
	}
	if len(cfg.Targets) == 0 {
		issues = append(issues, errors.New("no targets declared"))
	}
	if len(issues) > 0 {
		return fmt.Errorf("manifest %s has problems:\n%w", manifest, errors.Join(issues...))
	}

	fmt.Println("Manifest is valid")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
