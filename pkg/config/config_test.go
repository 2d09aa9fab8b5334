package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// isolate points the global config at an empty temp dir and clears MODLAYER_* vars.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "MODLAYER_") {
			t.Setenv(name, "")
		}
	}
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const sampleManifest = `
state_dir = "state"

[[mounts]]
path = "base"
priority = 0
default = true

[[mounts]]
name = "hd"
path = "mods/hd"
priority = 10
track = "files"
recursive = false
enabled = false

[[groups]]
paths = ["ui/a.png", "ui/b.png"]

[[links]]
[[links.entries]]
path = "lang/en"
extensions = [".txt", ".lang"]
[[links.entries]]
path = "lang/en_gb"

[[targets]]
output = "ui/atlas.png"
kind = "image"
width = 64
height = 32

[[targets.sources]]
path = "ui/sword"
extensions = ["png"]
x = 0
y = 0
w = 32
h = 32

[[targets.sources]]
path = "ui/shield.png"
x = 32

[[targets]]
output = "lang/en.txt"
kind = "table"

[[targets.sources]]
path = "lang/extra.txt"
prefix = "mod."
first_line = 2
line_count = 5

[watch]
debounce_ticks = 3
tick = "20ms"

[reload]
command = ["game-ctl", "reload"]
`

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Watch.DebounceTicks != DefaultDebounceTicks {
		t.Errorf("DebounceTicks = %d, want %d", cfg.Watch.DebounceTicks, DefaultDebounceTicks)
	}
	if d, err := cfg.Watch.TickInterval(); err != nil || d != 50*time.Millisecond {
		t.Errorf("TickInterval() = %v, %v; want 50ms", d, err)
	}
	if err := cfg.Validate([]string{"image"}); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadFrom_ProjectManifest(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ConfigFileName), sampleManifest)

	sub := filepath.Join(project, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(sub)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.Source != filepath.Join(project, ConfigFileName) {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.StateDir != filepath.Join(project, "state") {
		t.Errorf("StateDir = %q, want relative to manifest", cfg.StateDir)
	}
	if cfg.OutputDir != filepath.Join(project, DefaultOutputDirName) {
		t.Errorf("OutputDir = %q, want default under project", cfg.OutputDir)
	}

	if len(cfg.Mounts) != 2 {
		t.Fatalf("Mounts = %d, want 2", len(cfg.Mounts))
	}
	hd := cfg.Mounts[1]
	if hd.Path != filepath.Join(project, "mods", "hd") || hd.Priority != 10 || hd.DisplayName() != "hd" {
		t.Errorf("Mounts[1] = %+v", hd)
	}
	if hd.IsEnabled() || hd.IsRecursive() {
		t.Errorf("Mounts[1] enabled=%v recursive=%v, want false/false", hd.IsEnabled(), hd.IsRecursive())
	}
	if !cfg.Mounts[0].IsEnabled() || !cfg.Mounts[0].Default || cfg.Mounts[0].DisplayName() != "base" {
		t.Errorf("Mounts[0] = %+v", cfg.Mounts[0])
	}
	if got := cfg.EnabledMounts(); len(got) != 1 {
		t.Errorf("EnabledMounts() = %d, want 1", len(got))
	}

	if len(cfg.Targets) != 2 || len(cfg.Targets[0].Sources) != 2 {
		t.Fatalf("Targets = %+v", cfg.Targets)
	}
	src := cfg.Targets[1].Sources[0]
	if src.Prefix != "mod." || src.FirstLine != 2 || src.LineCount != 5 {
		t.Errorf("table source = %+v", src)
	}
	if cfg.Targets[0].Sources[0].W != 32 || cfg.Targets[0].Sources[1].X != 32 {
		t.Errorf("image sources = %+v", cfg.Targets[0].Sources)
	}

	if len(cfg.Links) != 1 || len(cfg.Links[0].Entries) != 2 {
		t.Errorf("Links = %+v", cfg.Links)
	}
	if cfg.Watch.DebounceTicks != 3 || cfg.Watch.QueueSize != DefaultQueueSize {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if !slices.Equal(cfg.Reload.Command, []string{"game-ctl", "reload"}) {
		t.Errorf("Reload.Command = %v", cfg.Reload.Command)
	}

	if err := cfg.Validate([]string{"image", "table"}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFrom_ConfigDir(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ConfigDirName, "config.toml"), `
[[mounts]]
path = "content"
`)

	cfg, err := LoadFrom(project)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mounts[0].Path != filepath.Join(project, "content") {
		t.Errorf("mount path = %q, want relative to project dir", cfg.Mounts[0].Path)
	}
	if cfg.StateDir != filepath.Join(project, DefaultStateDirName) {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
}

func TestLoadFrom_StopsAtGitRoot(t *testing.T) {
	isolate(t)
	outer := t.TempDir()
	writeConfig(t, filepath.Join(outer, ConfigFileName), sampleManifest)

	repo := filepath.Join(outer, "repo")
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(repo)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source != "" || len(cfg.Mounts) != 0 {
		t.Errorf("manifest above .git should not be loaded, got Source=%q", cfg.Source)
	}
	if cfg.StateDir != filepath.Join(repo, DefaultStateDirName) {
		t.Errorf("StateDir = %q, want default under start dir", cfg.StateDir)
	}
}

func TestLoadFrom_ParseError(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ConfigFileName), "[[mounts]\npath = ")

	if _, err := LoadFrom(project); err == nil {
		t.Error("LoadFrom() with invalid TOML should fail")
	}
}

func TestLoadFrom_GlobalThenProject(t *testing.T) {
	isolate(t)
	global := os.Getenv("XDG_CONFIG_HOME")
	writeConfig(t, filepath.Join(global, GlobalConfigDir, "config.toml"), `
[watch]
debounce_ticks = 9
queue_size = 16

[log]
format = "json"
`)
	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ConfigFileName), `
[watch]
debounce_ticks = 2
`)

	cfg, err := LoadFrom(project)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch.DebounceTicks != 2 {
		t.Errorf("DebounceTicks = %d, want project value 2", cfg.Watch.DebounceTicks)
	}
	if cfg.Watch.QueueSize != 16 || cfg.Log.Format != "json" {
		t.Errorf("global values lost: %+v %+v", cfg.Watch, cfg.Log)
	}
}

func TestEnvironmentVariables(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	t.Setenv("MODLAYER_DEBOUNCE_TICKS", "12")
	t.Setenv("MODLAYER_TICK", "10ms")
	t.Setenv("MODLAYER_RELOAD_COMMAND", "kill -HUP 42")
	t.Setenv("MODLAYER_VERBOSITY", "3")
	t.Setenv("MODLAYER_WATCH_IGNORE", "*.tmp, *.swp")
	t.Setenv("MODLAYER_STATE_DIR", "relstate")

	cfg, err := LoadFrom(project)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch.DebounceTicks != 12 || cfg.Watch.Tick != "10ms" {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if !slices.Equal(cfg.Reload.Command, []string{"kill", "-HUP", "42"}) {
		t.Errorf("Reload.Command = %v", cfg.Reload.Command)
	}
	if cfg.Log.Verbosity == nil || *cfg.Log.Verbosity != 3 {
		t.Errorf("Log.Verbosity = %v", cfg.Log.Verbosity)
	}
	if !slices.Equal(cfg.Watch.Ignore, []string{"*.tmp", "*.swp"}) {
		t.Errorf("Watch.Ignore = %v", cfg.Watch.Ignore)
	}
	if cfg.StateDir != filepath.Join(project, "relstate") {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}

	t.Setenv("MODLAYER_QUEUE_SIZE", "lots")
	if _, err := LoadFrom(project); err == nil {
		t.Error("LoadFrom() with non-numeric MODLAYER_QUEUE_SIZE should fail")
	}
}

func TestValidate(t *testing.T) {
	kinds := []string{"image", "table"}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown kind", func(c *Config) {
			c.Targets = []Target{{Output: "a.ogg", Kind: "audio"}}
		}, "unknown kind"},
		{"duplicate output", func(c *Config) {
			c.Targets = []Target{{Output: "a.png", Kind: "image"}, {Output: "a.png", Kind: "image"}}
		}, "duplicate output"},
		{"mount without path", func(c *Config) {
			c.Mounts = []Mount{{Priority: 1}}
		}, "path is required"},
		{"bad track", func(c *Config) {
			c.Mounts = []Mount{{Path: "/m", Track: "dirs"}}
		}, "invalid track"},
		{"two defaults", func(c *Config) {
			c.Mounts = []Mount{{Path: "/a", Default: true}, {Path: "/b", Default: true}}
		}, "marked default"},
		{"short group", func(c *Config) {
			c.Groups = []Group{{Paths: []string{"only"}}}
		}, "at least two paths"},
		{"zero debounce", func(c *Config) {
			c.Watch.DebounceTicks = 0
		}, "debounce_ticks"},
		{"bad tick", func(c *Config) {
			c.Watch.Tick = "soon"
		}, "invalid watch tick"},
		{"bad log format", func(c *Config) {
			c.Log.Format = "xml"
		}, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate(kinds)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	cfg := NewConfig()
	v := 2
	cfg.Merge(&Config{
		OutputDir: "/out",
		Mounts:    []Mount{{Path: "/m"}},
		Log:       LogConfig{Verbosity: &v},
	})
	if cfg.OutputDir != "/out" || len(cfg.Mounts) != 1 || *cfg.Log.Verbosity != 2 {
		t.Errorf("Merge() = %+v", cfg)
	}

	cfg.Merge(&Config{})
	if cfg.OutputDir != "/out" || len(cfg.Mounts) != 1 || cfg.Watch.Tick != DefaultTick {
		t.Error("Merge() with empty config should not clear values")
	}
	cfg.Merge(nil)
}

func TestSave_RoundTrip(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	cfg := NewConfig()
	cfg.Mounts = []Mount{{Path: "base", Default: true}}
	cfg.Targets = []Target{{Output: "ui/atlas.png", Kind: "image", Width: 16, Height: 16}}

	path := filepath.Join(project, ConfigFileName)
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(loaded.Targets) != 1 || loaded.Targets[0].Width != 16 {
		t.Errorf("Targets = %+v", loaded.Targets)
	}
	if loaded.Mounts[0].Path != filepath.Join(project, "base") {
		t.Errorf("Mount path = %q", loaded.Mounts[0].Path)
	}
}

func TestProjectDir(t *testing.T) {
	tests := []struct {
		manifest string
		want     string
	}{
		{filepath.Join("/p", ConfigFileName), "/p"},
		{filepath.Join("/p", ConfigDirName, "config.toml"), "/p"},
	}
	for _, tt := range tests {
		if got := ProjectDir(tt.manifest); got != filepath.FromSlash(tt.want) {
			t.Errorf("ProjectDir(%q) = %q, want %q", tt.manifest, got, tt.want)
		}
	}
}

func TestGetProjectConfigPaths(t *testing.T) {
	paths := GetProjectConfigPaths("/some/dir")
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != filepath.Join("/some/dir", ConfigDirName, "config.toml") {
		t.Errorf("paths[0] = %q", paths[0])
	}
}
