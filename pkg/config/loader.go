package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/albertocavalcante/modlayer/internal/log"
)

// ConfigFileName is the name of the project-level manifest.
const ConfigFileName = "modlayer.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".modlayer"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "modlayer"

// Load loads configuration from all layers in order of precedence:
//  1. Built-in defaults
//  2. Global user config (~/.config/modlayer/config.toml)
//  3. Project manifest (.modlayer/config.toml or modlayer.toml)
//  4. Environment variables (MODLAYER_*)
//
// CLI flags are applied separately after Load() returns.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration starting from a specific directory. Default
// directories resolve against the manifest's directory, or dir when there is
// no manifest.
func LoadFrom(dir string) (*Config, error) {
	cfg := NewConfig()

	// Layer 2: Global user config
	globalCfg, err := loadGlobalConfig()
	if err != nil {
		return nil, err
	}
	cfg.Merge(globalCfg)

	// Layer 3: Project config from specified directory
	projectCfg, err := loadProjectConfigFrom(dir)
	if err != nil {
		return nil, err
	}
	cfg.Merge(projectCfg)

	// Layer 4: Environment variables
	if err := applyEnvironmentVariables(cfg); err != nil {
		return nil, err
	}

	base := dir
	if cfg.Source != "" {
		base = ProjectDir(cfg.Source)
	}
	cfg.Finalize(base)
	return cfg, nil
}

// LoadFile loads defaults, the global config and the given manifest, skipping
// the upward search.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()

	globalCfg, err := loadGlobalConfig()
	if err != nil {
		return nil, err
	}
	cfg.Merge(globalCfg)

	projectCfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if projectCfg == nil {
		return nil, fmt.Errorf("config file %s not found", path)
	}
	cfg.Merge(projectCfg)

	if err := applyEnvironmentVariables(cfg); err != nil {
		return nil, err
	}
	cfg.Finalize(ProjectDir(cfg.Source))
	return cfg, nil
}

// ProjectDir returns the project directory a manifest belongs to: the
// manifest's directory, or its parent for .modlayer/config.toml.
func ProjectDir(manifest string) string {
	dir := filepath.Dir(manifest)
	if filepath.Base(dir) == ConfigDirName {
		return filepath.Dir(dir)
	}
	return dir
}

// loadGlobalConfig loads the global user configuration from ~/.config/modlayer/config.toml.
func loadGlobalConfig() (*Config, error) {
	path := GetGlobalConfigPath()
	if path == "" {
		return nil, nil
	}
	cfg, err := loadConfigFile(path)
	if cfg != nil {
		// The global config never names the project.
		cfg.Source = ""
	}
	return cfg, err
}

// loadProjectConfigFrom looks for project configuration starting from the given directory.
func loadProjectConfigFrom(dir string) (*Config, error) {
	// Search up the directory tree for config files
	current := dir
	for {
		for _, candidate := range GetProjectConfigPaths(current) {
			cfg, err := loadConfigFile(candidate)
			if err != nil || cfg != nil {
				return cfg, err
			}
		}

		// Stop at filesystem root or repository root
		if isProjectRoot(current) {
			break
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return nil, nil
}

// isProjectRoot checks if the directory is a repository root (has .git).
func isProjectRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// loadConfigFile loads a configuration from a TOML file. A missing file
// yields nil with no error. Relative paths resolve against the project
// directory the file belongs to.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.Warn("unknown config key", "file", path, "key", key.String())
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cfg.Source = abs
	cfg.resolvePaths(ProjectDir(abs))
	return &cfg, nil
}

// applyEnvironmentVariables applies MODLAYER_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) error {
	if v := os.Getenv("MODLAYER_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("MODLAYER_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}

	// Watch settings
	if err := applyIntEnv("MODLAYER_DEBOUNCE_TICKS", &cfg.Watch.DebounceTicks); err != nil {
		return err
	}
	if err := applyIntEnv("MODLAYER_QUEUE_SIZE", &cfg.Watch.QueueSize); err != nil {
		return err
	}
	if err := applyIntEnv("MODLAYER_MAX_ATTEMPTS", &cfg.Watch.MaxAttempts); err != nil {
		return err
	}
	if v := os.Getenv("MODLAYER_TICK"); v != "" {
		cfg.Watch.Tick = v
	}
	if v := os.Getenv("MODLAYER_WATCH_IGNORE"); v != "" {
		cfg.Watch.Ignore = append(cfg.Watch.Ignore, splitAndTrim(v)...)
	}

	// MODLAYER_RELOAD_COMMAND: whitespace-separated command and arguments
	if v := os.Getenv("MODLAYER_RELOAD_COMMAND"); v != "" {
		cfg.Reload.Command = strings.Fields(v)
	}

	// Log settings
	if v := os.Getenv("MODLAYER_VERBOSITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MODLAYER_VERBOSITY: %w", err)
		}
		cfg.Log.Verbosity = &n
	}
	if v := os.Getenv("MODLAYER_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyIntEnv applies an integer environment variable.
func applyIntEnv(envVar string, target *int) error {
	v := os.Getenv(envVar)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", envVar, err)
	}
	*target = n
	return nil
}

// Save writes the config as TOML to path, creating parent directories.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}
