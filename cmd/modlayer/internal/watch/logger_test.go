package watch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Ready(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf})

	logger.Ready([]string{"/game/base", "/game/mods/hd"}, 3)

	output := buf.String()
	for _, want := range []string{"2 mounts", "3 targets", "/game/mods/hd", "ready"} {
		if !strings.Contains(output, want) {
			t.Errorf("Ready() output missing %q: %s", want, output)
		}
	}
}

func TestLogger_FileChanged(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"verbose", true, "+ textures/stone.png"},
		{"quiet", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(LoggerConfig{Writer: &buf, Verbose: tt.verbose, NoColor: true})

			logger.FileChanged("textures/stone.png", ChangeAdded)

			got := buf.String()
			if tt.want == "" && got != "" {
				t.Errorf("FileChanged() output = %q, want none", got)
			}
			if tt.want != "" && !strings.Contains(got, tt.want) {
				t.Errorf("FileChanged() output = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestLogger_Rebuilding(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{nil, "rescanning"},
		{[]string{"textures/stone.png"}, "after textures/stone.png"},
		{[]string{"a.png", "b.png", "c.png"}, "after 3 changes"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := NewLogger(LoggerConfig{Writer: &buf})
		logger.Rebuilding(tt.paths)
		if got := buf.String(); !strings.Contains(got, tt.want) {
			t.Errorf("Rebuilding(%v) = %q, want it to contain %q", tt.paths, got, tt.want)
		}
	}
}

func TestLogger_RebuiltAndSkipped(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, NoColor: true})

	logger.Rebuilt("atlas/blocks.png", 12*time.Millisecond)
	logger.Skipped("lang/en.txt", "no base canvas")

	output := buf.String()
	if !strings.Contains(output, "✓ atlas/blocks.png (12ms)") {
		t.Errorf("Rebuilt() output = %q", output)
	}
	if !strings.Contains(output, "lang/en.txt skipped: no base canvas") {
		t.Errorf("Skipped() output = %q", output)
	}
	if got := logger.Stats().Outputs; got != 1 {
		t.Errorf("Stats().Outputs = %d, want 1", got)
	}
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, JSON: true})

	logger.FileChanged("a.png", ChangeModified)
	logger.Rebuilding([]string{"a.png"})
	logger.Rebuilt("out.png", time.Second)
	logger.Error(errors.New("boom"))
	logger.Shutdown()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	wantEvents := []string{"file_changed", "rebuilding", "rebuilt", "error", "shutdown"}
	if len(lines) != len(wantEvents) {
		t.Fatalf("got %d JSON lines, want %d: %s", len(lines), len(wantEvents), buf.String())
	}
	for i, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if obj["event"] != wantEvents[i] {
			t.Errorf("line %d event = %v, want %s", i, obj["event"], wantEvents[i])
		}
		if _, ok := obj["time"]; !ok {
			t.Errorf("line %d has no time field", i)
		}
	}
}

func TestLogger_Shutdown(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Writer: &buf, NoColor: true})

	logger.Rebuilding([]string{"a.png"})
	logger.Rebuilt("out.png", 0)
	logger.Rebuilt("out2.png", 0)
	logger.Error(errors.New("x"))
	buf.Reset()
	logger.Shutdown()

	if got := buf.String(); !strings.Contains(got, "1 rebuild, 2 outputs, 1 error") {
		t.Errorf("Shutdown() output = %q", got)
	}
}

func TestLogger_Colorize(t *testing.T) {
	logger := &Logger{isTTY: true}
	if got := logger.colorize("+", ChangeAdded); got != "\033[32m+\033[0m" {
		t.Errorf("colorize() = %q, want green", got)
	}
	logger.noColor = true
	if got := logger.colorize("+", ChangeAdded); got != "+" {
		t.Errorf("colorize() with NoColor = %q, want plain", got)
	}
}

func TestChangeFor(t *testing.T) {
	if got := ChangeFor(OpCreate); got != ChangeAdded {
		t.Errorf("ChangeFor(OpCreate) = %q, want %q", got, ChangeAdded)
	}
	if got := ChangeFor(OpWrite); got != ChangeModified {
		t.Errorf("ChangeFor(OpWrite) = %q, want %q", got, ChangeModified)
	}
}
