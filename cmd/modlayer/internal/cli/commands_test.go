package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/app"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/daemon"
)

// getCommand finds a command by its path below the root, e.g.
// "daemon start".
func getCommand(path string) *cobra.Command {
	cmd := RootCmd()
	for _, name := range strings.Fields(path) {
		var next *cobra.Command
		for _, c := range cmd.Commands() {
			if c.Name() == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cmd = next
	}
	return cmd
}

func TestGetCommand_Helper(t *testing.T) {
	if cmd := getCommand("daemon start"); cmd == nil || cmd.Name() != "start" {
		t.Errorf("getCommand(%q) = %v, want the start command", "daemon start", cmd)
	}
	if cmd := getCommand("nonexistent"); cmd != nil {
		t.Error("getCommand should return nil for non-existent command")
	}
}

func TestCommands_UseAndShort(t *testing.T) {
	tests := []struct {
		path  string
		use   string
		short string
	}{
		{"build", "build", "Rebuild outputs whose sources changed"},
		{"status", "status", "Show which outputs need rebuilding"},
		{"resolve", "resolve <path>", "Show which content root provides a logical path"},
		{"watch", "watch", "Rebuild outputs as content changes"},
		{"init", "init [root...]", "Create a project manifest for the given content roots"},
		{"clean", "clean", "Remove saved state and built outputs"},
		{"version", "version", "Print version information"},
		{"daemon", "daemon", "Manage the modlayer daemon"},
		{"daemon start", "start", "Start the daemon process"},
		{"daemon stop", "stop", "Stop the running daemon"},
		{"daemon status", "status", "Show daemon status"},
		{"daemon restart", "restart", "Restart the daemon"},
		{"daemon notify", "notify [logical-path...]", "Report changed content to the daemon"},
		{"daemon events", "events", "Stream reload notifications from the daemon"},
		{"daemon rebuild", "rebuild", "Run a build pass on the daemon"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cmd := getCommand(tt.path)
			if cmd == nil {
				t.Fatalf("command %q not found", tt.path)
			}
			if cmd.Use != tt.use {
				t.Errorf("%s Use = %q, want %q", tt.path, cmd.Use, tt.use)
			}
			if cmd.Short != tt.short {
				t.Errorf("%s Short = %q, want %q", tt.path, cmd.Short, tt.short)
			}
		})
	}
}

func TestCommands_FlagDefaults(t *testing.T) {
	tests := []struct {
		path         string
		flagName     string
		wantDefault  string
		wantShortcut string
	}{
		{"build", "force", "false", ""},
		{"build", "json", "false", ""},
		{"status", "verbose", "false", ""},
		{"status", "json", "false", ""},
		{"resolve", "all", "false", ""},
		{"resolve", "alternate", "false", ""},
		{"resolve", "ext", "[]", ""},
		{"watch", "force", "false", ""},
		{"watch", "json", "false", ""},
		{"watch", "no-color", "false", ""},
		{"init", "output", "modlayer.toml", "o"},
		{"init", "check", "false", ""},
		{"init", "dry-run", "false", ""},
		{"daemon start", "foreground", "false", ""},
		{"daemon start", "log", "", ""},
		{"daemon stop", "force", "false", ""},
		{"daemon status", "json", "false", ""},
		{"daemon notify", "deleted", "false", ""},
		{"daemon rebuild", "force", "false", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path+" --"+tt.flagName, func(t *testing.T) {
			cmd := getCommand(tt.path)
			if cmd == nil {
				t.Fatalf("command %q not found", tt.path)
			}
			flag := cmd.Flags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("flag %q not found on %s command", tt.flagName, tt.path)
			}
			if flag.DefValue != tt.wantDefault {
				t.Errorf("flag %q default = %q, want %q", tt.flagName, flag.DefValue, tt.wantDefault)
			}
			if flag.Shorthand != tt.wantShortcut {
				t.Errorf("flag %q shorthand = %q, want %q", tt.flagName, flag.Shorthand, tt.wantShortcut)
			}
		})
	}
}

func TestRootCmd_UseAndShort(t *testing.T) {
	root := RootCmd()

	if root.Use != "modlayer" {
		t.Errorf("root command Use = %q, want %q", root.Use, "modlayer")
	}
	expectedShort := "Layered mod content builder with hot reload"
	if root.Short != expectedShort {
		t.Errorf("root command Short = %q, want %q", root.Short, expectedShort)
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	root := RootCmd()

	tests := []struct {
		flagName     string
		wantDefault  string
		wantShortcut string
	}{
		{"verbosity", "1", "v"},
		{"log-format", "text", ""},
		{"config", "", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.flagName, func(t *testing.T) {
			flag := root.PersistentFlags().Lookup(tt.flagName)
			if flag == nil {
				t.Fatalf("flag %q not found on root command", tt.flagName)
			}
			if flag.DefValue != tt.wantDefault {
				t.Errorf("flag %q default = %q, want %q", tt.flagName, flag.DefValue, tt.wantDefault)
			}
			if flag.Shorthand != tt.wantShortcut {
				t.Errorf("flag %q shorthand = %q, want %q", tt.flagName, flag.Shorthand, tt.wantShortcut)
			}
		})
	}
}

func TestDaemonCmd_SocketFlagIsInherited(t *testing.T) {
	for _, name := range []string{"start", "stop", "status", "restart", "notify", "events", "rebuild"} {
		cmd := getCommand("daemon " + name)
		if cmd == nil {
			t.Fatalf("daemon %s not found", name)
		}
		if cmd.InheritedFlags().Lookup("socket") == nil {
			t.Errorf("daemon %s does not inherit --socket", name)
		}
	}
}

func TestResolveCmd_ExclusiveModes(t *testing.T) {
	root := RootCmd()
	root.SetArgs([]string{"resolve", "--all", "--alternate", "textures/a.png"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		root.SetArgs(nil)
		resolveFlags.all = false
		resolveFlags.alternate = false
	})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "none of the others can be") {
		t.Errorf("Execute() error = %v, want a mutually exclusive flags error", err)
	}
}

func TestCommands_HaveRunE(t *testing.T) {
	for _, path := range []string{"build", "status", "resolve", "watch", "init", "clean",
		"daemon start", "daemon stop", "daemon status", "daemon restart",
		"daemon notify", "daemon events", "daemon rebuild"} {
		cmd := getCommand(path)
		if cmd == nil {
			t.Fatalf("command %q not found", path)
		}
		if cmd.RunE == nil {
			t.Errorf("%s command should have RunE", path)
		}
	}
}

func TestNewStatusOutput(t *testing.T) {
	st := &app.Status{
		Mounts: []app.MountStatus{{Name: "base", Enabled: true}},
		Targets: []app.TargetStatus{
			{Output: "textures/terrain.png", Kind: "image", Stale: true},
			{Output: "lang/en.lang", Kind: "table"},
		},
		Pending: []artifact.SourceRef{
			{Path: "textures/blocks/stone.png", Outdated: true},
			{Path: "textures/blocks/old.png", Deleted: true},
		},
	}

	out := newStatusOutput(st)
	if !out.Stale {
		t.Error("Stale = false, want true")
	}
	if len(out.StaleOutputs) != 1 || out.StaleOutputs[0] != "textures/terrain.png" {
		t.Errorf("StaleOutputs = %v, want [textures/terrain.png]", out.StaleOutputs)
	}
	if len(out.Changed) != 1 || out.Changed[0] != "textures/blocks/stone.png" {
		t.Errorf("Changed = %v", out.Changed)
	}
	if len(out.Deleted) != 1 || out.Deleted[0] != "textures/blocks/old.png" {
		t.Errorf("Deleted = %v", out.Deleted)
	}
}

func TestNewStatusOutput_UpToDate(t *testing.T) {
	out := newStatusOutput(&app.Status{Targets: []app.TargetStatus{{Output: "a.png"}}})
	if out.Stale {
		t.Error("Stale = true, want false")
	}

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	// Scripts rely on an empty list rather than null.
	if !strings.Contains(string(data), `"stale_outputs":[]`) {
		t.Errorf("JSON = %s, want an empty stale_outputs list", data)
	}
	for _, key := range []string{"changed", "deleted", "error"} {
		if strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("JSON = %s, should omit empty %q", data, key)
		}
	}
}

func TestOutputJSON(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	err = outputJSON(StatusOutput{Stale: true, StaleOutputs: []string{"a.png", "b.png"}})

	_ = w.Close()
	os.Stdout = oldStdout
	if err != nil {
		t.Errorf("outputJSON() error = %v", err)
	}

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)

	var decoded StatusOutput
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Errorf("outputJSON produced invalid JSON: %v", err)
	}
	if !decoded.Stale {
		t.Error("decoded Stale should be true")
	}
	if len(decoded.StaleOutputs) != 2 {
		t.Errorf("decoded StaleOutputs length = %d, want 2", len(decoded.StaleOutputs))
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"42s", "42s"},
		{"3m7s", "3m 7s"},
		{"2h15m0s", "2h 15m"},
		{"50h0m0s", "2d 2h"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.in); got != tt.want {
			t.Errorf("formatUptime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrintNotification(t *testing.T) {
	reloaded, err := daemon.NewNotification(daemon.MethodTargetReloaded, daemon.TargetReloadedParams{
		Output:    "textures/terrain.png",
		Path:      "/game/build/textures/terrain.png",
		Timestamp: "2024-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	shutdown, err := daemon.NewNotification(daemon.MethodDaemonEvent, daemon.DaemonEventParams{
		Type:      "shutdown",
		Message:   "daemon is shutting down",
		Timestamp: "2024-01-01T00:00:01Z",
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		notif  *daemon.Notification
		asJSON bool
		want   string
	}{
		{"reloaded", reloaded, false, "2024-01-01T00:00:00Z reloaded textures/terrain.png (/game/build/textures/terrain.png)\n"},
		{"daemon event", shutdown, false, "2024-01-01T00:00:01Z daemon shutdown: daemon is shutting down\n"},
		{"json", reloaded, true, `"method":"target/reloaded"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printNotification(&buf, tt.notif, tt.asJSON); err != nil {
				t.Fatalf("printNotification() error = %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("printNotification() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestGetDaemonPaths_Socket(t *testing.T) {
	daemonSocket = "/tmp/ml-test.sock"
	t.Cleanup(func() { daemonSocket = "" })

	paths, err := getDaemonPaths()
	if err != nil {
		t.Fatalf("getDaemonPaths() error = %v", err)
	}
	if paths.Socket != "/tmp/ml-test.sock" || paths.PID != "/tmp/ml-test.sock.pid" {
		t.Errorf("getDaemonPaths() = %+v", paths)
	}
}
