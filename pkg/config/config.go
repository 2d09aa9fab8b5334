// Package config provides configuration management for modlayer.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/modlayer/config.toml)
//  3. Project manifest (.modlayer/config.toml or modlayer.toml)
//  4. Environment variables (MODLAYER_*)
//  5. CLI flags (highest priority)
//
// The project manifest declares the content roots (mounts), the fixed set of
// build targets, file groups, and the watch/reload/log settings.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Config is the main configuration struct for modlayer.
type Config struct {
	// StateDir holds per-root tracker state. Defaults to <project>/.modlayer.
	StateDir string `toml:"state_dir,omitempty"`

	// OutputDir receives built artifacts. Defaults to <project>/build.
	OutputDir string `toml:"output_dir,omitempty"`

	// Mounts are the content roots, searched by descending priority.
	Mounts []Mount `toml:"mounts,omitempty"`

	// Groups bind exact logical paths that must rebuild together.
	Groups []Group `toml:"groups,omitempty"`

	// Links bind paths by stem, matching any of the listed extensions.
	Links []Link `toml:"links,omitempty"`

	// Targets are the artifacts to build.
	Targets []Target `toml:"targets,omitempty"`

	// Watch configures hot reload.
	Watch WatchConfig `toml:"watch"`

	// Reload configures the command run after each rebuilt output.
	Reload ReloadConfig `toml:"reload"`

	// Log configures logging.
	Log LogConfig `toml:"log"`

	// Source is the project manifest the config was loaded from, if any.
	Source string `toml:"-"`
}

// Mount is one content root.
type Mount struct {
	// Name identifies the mount in logs and status output. Defaults to the
	// base name of Path.
	Name string `toml:"name,omitempty"`

	// Path is the root directory, relative to the manifest.
	Path string `toml:"path"`

	// Priority orders mounts; higher wins.
	Priority int `toml:"priority"`

	// Default marks the base content root, skipped by alternate resolution.
	Default bool `toml:"default,omitempty"`

	// Enabled toggles the mount. Defaults to true.
	Enabled *bool `toml:"enabled,omitempty"`

	// Track selects tracked item types: "files", "folders" or "both".
	Track string `toml:"track,omitempty"`

	// Recursive tracks nested items, not only top-level ones. Defaults to true.
	Recursive *bool `toml:"recursive,omitempty"`

	// Ignore lists doublestar patterns excluded from tracking.
	Ignore []string `toml:"ignore,omitempty"`
}

// IsEnabled reports whether the mount is enabled.
func (m Mount) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// IsRecursive reports whether nested items are tracked.
func (m Mount) IsRecursive() bool {
	return m.Recursive == nil || *m.Recursive
}

// DisplayName returns Name, or the base name of Path.
func (m Mount) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return filepath.Base(m.Path)
}

// Group is a set of exact logical paths.
type Group struct {
	Paths []string `toml:"paths"`
}

// Link is a set of stem-matched entries.
type Link struct {
	Entries []LinkEntry `toml:"entries"`
}

// LinkEntry matches a logical path stem with any of the given extensions.
type LinkEntry struct {
	Path       string   `toml:"path"`
	Extensions []string `toml:"extensions,omitempty"`
}

// Target is one output artifact.
type Target struct {
	// Output is the logical path of the artifact.
	Output string `toml:"output"`

	// Kind selects the codec, e.g. "image" or "table".
	Kind string `toml:"kind"`

	// Base is the logical path of the un-modded baseline. Defaults to the
	// previously built output.
	Base string `toml:"base,omitempty"`

	// Width and Height size a blank canvas when no base exists.
	Width  int `toml:"width,omitempty"`
	Height int `toml:"height,omitempty"`

	Sources []Source `toml:"sources,omitempty"`
}

// Source is one contributor to a target.
type Source struct {
	Path       string   `toml:"path"`
	Extensions []string `toml:"extensions,omitempty"`

	X  int `toml:"x,omitempty"`
	Y  int `toml:"y,omitempty"`
	W  int `toml:"w,omitempty"`
	H  int `toml:"h,omitempty"`
	SX int `toml:"sx,omitempty"`
	SY int `toml:"sy,omitempty"`

	Prefix    string `toml:"prefix,omitempty"`
	FirstLine int    `toml:"first_line,omitempty"`
	LineCount int    `toml:"line_count,omitempty"`
}

// WatchConfig holds hot-reload settings.
type WatchConfig struct {
	// DebounceTicks is how many quiet ticks must pass before a rebuild.
	DebounceTicks int `toml:"debounce_ticks,omitempty"`

	// Tick is the consumer tick interval, e.g. "50ms".
	Tick string `toml:"tick,omitempty"`

	// QueueSize bounds the number of buffered change events.
	QueueSize int `toml:"queue_size,omitempty"`

	// MaxAttempts bounds retries of a change whose source cannot be read yet.
	MaxAttempts int `toml:"max_attempts,omitempty"`

	// Ignore lists doublestar patterns the watcher drops.
	Ignore []string `toml:"ignore,omitempty"`
}

// TickInterval parses Tick.
func (w WatchConfig) TickInterval() (time.Duration, error) {
	d, err := time.ParseDuration(w.Tick)
	if err != nil {
		return 0, fmt.Errorf("invalid watch tick %q: %w", w.Tick, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid watch tick %q: must be positive", w.Tick)
	}
	return d, nil
}

// ReloadConfig holds the reload hook.
type ReloadConfig struct {
	// Command is run with the output's absolute path appended.
	Command []string `toml:"command,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Verbosity *int   `toml:"verbosity,omitempty"`
	Format    string `toml:"format,omitempty"`
}

// Defaults.
const (
	DefaultDebounceTicks = 6
	DefaultTick          = "50ms"
	DefaultQueueSize     = 1024
	DefaultMaxAttempts   = 5
	DefaultStateDirName  = ".modlayer"
	DefaultOutputDirName = "build"
)

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			DebounceTicks: DefaultDebounceTicks,
			Tick:          DefaultTick,
			QueueSize:     DefaultQueueSize,
			MaxAttempts:   DefaultMaxAttempts,
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Merge merges another config into this one (other takes precedence).
// Non-empty lists replace; scalars override when set.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.StateDir != "" {
		c.StateDir = other.StateDir
	}
	if other.OutputDir != "" {
		c.OutputDir = other.OutputDir
	}
	if len(other.Mounts) > 0 {
		c.Mounts = other.Mounts
	}
	if len(other.Groups) > 0 {
		c.Groups = other.Groups
	}
	if len(other.Links) > 0 {
		c.Links = other.Links
	}
	if len(other.Targets) > 0 {
		c.Targets = other.Targets
	}
	if other.Source != "" {
		c.Source = other.Source
	}

	// Merge watch config
	if other.Watch.DebounceTicks != 0 {
		c.Watch.DebounceTicks = other.Watch.DebounceTicks
	}
	if other.Watch.Tick != "" {
		c.Watch.Tick = other.Watch.Tick
	}
	if other.Watch.QueueSize != 0 {
		c.Watch.QueueSize = other.Watch.QueueSize
	}
	if other.Watch.MaxAttempts != 0 {
		c.Watch.MaxAttempts = other.Watch.MaxAttempts
	}
	if len(other.Watch.Ignore) > 0 {
		c.Watch.Ignore = append(c.Watch.Ignore, other.Watch.Ignore...)
	}

	// Merge reload config
	if len(other.Reload.Command) > 0 {
		c.Reload.Command = other.Reload.Command
	}

	// Merge log config
	if other.Log.Verbosity != nil {
		c.Log.Verbosity = other.Log.Verbosity
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}

// resolvePaths makes relative directories absolute against dir.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.StateDir = abs(c.StateDir)
	c.OutputDir = abs(c.OutputDir)
	for i := range c.Mounts {
		c.Mounts[i].Path = abs(c.Mounts[i].Path)
	}
}

// Finalize fills directory defaults relative to baseDir and makes every
// configured path absolute.
func (c *Config) Finalize(baseDir string) {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDirName
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDirName
	}
	c.resolvePaths(baseDir)
}

// EnabledMounts returns the enabled mounts in declaration order.
func (c *Config) EnabledMounts() []Mount {
	var out []Mount
	for _, m := range c.Mounts {
		if m.IsEnabled() {
			out = append(out, m)
		}
	}
	return out
}

var validTrack = []string{"", "files", "folders", "both"}

// Validate checks the config for problems. knownKinds lists the artifact
// kinds that have a codec; all problems are reported together.
func (c *Config) Validate(knownKinds []string) error {
	var errs []error
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	mountPaths := make(map[string]bool)
	defaults := 0
	for i, m := range c.Mounts {
		if m.Path == "" {
			addf("mounts[%d]: path is required", i)
			continue
		}
		if mountPaths[m.Path] {
			addf("mounts[%d]: duplicate path %q", i, m.Path)
		}
		mountPaths[m.Path] = true
		if !slices.Contains(validTrack, strings.ToLower(m.Track)) {
			addf("mounts[%d]: invalid track %q (want files, folders or both)", i, m.Track)
		}
		if m.Default {
			defaults++
		}
	}
	if defaults > 1 {
		addf("mounts: %d mounts marked default, at most one allowed", defaults)
	}

	for i, g := range c.Groups {
		if len(g.Paths) < 2 {
			addf("groups[%d]: needs at least two paths", i)
		}
	}
	for i, l := range c.Links {
		if len(l.Entries) < 2 {
			addf("links[%d]: needs at least two entries", i)
		}
	}

	outputs := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Output == "" {
			addf("targets[%d]: output is required", i)
		} else if outputs[t.Output] {
			addf("targets[%d]: duplicate output %q", i, t.Output)
		}
		outputs[t.Output] = true

		if !slices.Contains(knownKinds, t.Kind) {
			addf("targets[%d] %q: unknown kind %q (known: %s)", i, t.Output, t.Kind, strings.Join(knownKinds, ", "))
		}
		if t.Width < 0 || t.Height < 0 {
			addf("targets[%d] %q: negative size %dx%d", i, t.Output, t.Width, t.Height)
		}
		for j, s := range t.Sources {
			if s.Path == "" {
				addf("targets[%d].sources[%d]: path is required", i, j)
			}
			if s.FirstLine < 0 || s.LineCount < 0 {
				addf("targets[%d].sources[%d]: negative line range", i, j)
			}
		}
	}

	if c.Watch.DebounceTicks < 1 {
		addf("watch.debounce_ticks must be at least 1, got %d", c.Watch.DebounceTicks)
	}
	if c.Watch.QueueSize < 1 {
		addf("watch.queue_size must be at least 1, got %d", c.Watch.QueueSize)
	}
	if c.Watch.MaxAttempts < 1 {
		addf("watch.max_attempts must be at least 1, got %d", c.Watch.MaxAttempts)
	}
	if _, err := c.Watch.TickInterval(); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		addf("log.format must be text or json, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}
