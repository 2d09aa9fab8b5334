package watch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ChangeType marks a change in human-readable output.
type ChangeType string

const (
	ChangeAdded    ChangeType = "+"
	ChangeModified ChangeType = "~"
	ChangeDeleted  ChangeType = "-"
)

// ChangeFor maps a queue op to its change marker.
func ChangeFor(op Op) ChangeType {
	if op == OpCreate {
		return ChangeAdded
	}
	return ChangeModified
}

// Logger prints watch session progress, either as text lines or as one
// JSON object per line.
type Logger struct {
	writer  io.Writer
	isTTY   bool
	verbose bool
	noColor bool
	jsonOut bool

	mu    sync.Mutex
	stats SessionStats
}

// SessionStats summarizes a watch session.
type SessionStats struct {
	Rebuilds  int
	Outputs   int
	Errors    int
	StartTime time.Time
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
	JSON    bool
}

// NewLogger creates a logger. A nil Writer means stdout.
func NewLogger(cfg LoggerConfig) *Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Logger{
		writer:  w,
		isTTY:   isTTY,
		verbose: cfg.Verbose,
		noColor: cfg.NoColor,
		jsonOut: cfg.JSON,
		stats:   SessionStats{StartTime: time.Now()},
	}
}

// Ready reports that the watcher is live.
func (l *Logger) Ready(roots []string, targets int) {
	if l.jsonOut {
		l.emit("ready", map[string]any{"roots": roots, "targets": targets})
		return
	}
	l.printf("modlayer: watching %d mounts for %d targets\n", len(roots), targets)
	for _, r := range roots {
		l.printf("modlayer:   %s\n", r)
	}
	l.printf("modlayer: ready\n\n")
}

// FileChanged reports one change. Text output only shows it when verbose.
func (l *Logger) FileChanged(path string, change ChangeType) {
	if l.jsonOut {
		l.emit("file_changed", map[string]any{"path": path, "change": string(change)})
		return
	}
	if l.verbose {
		l.printf("[%s] %s %s\n", stamp(), l.colorize(string(change), change), path)
	}
}

// Rebuilding reports the start of a hot rebuild for the given paths.
func (l *Logger) Rebuilding(paths []string) {
	l.mu.Lock()
	l.stats.Rebuilds++
	l.mu.Unlock()

	if l.jsonOut {
		l.emit("rebuilding", map[string]any{"paths": paths})
		return
	}
	switch len(paths) {
	case 0:
		l.printf("[%s] rescanning...\n", stamp())
	case 1:
		l.printf("[%s] rebuilding after %s...\n", stamp(), paths[0])
	default:
		l.printf("[%s] rebuilding after %d changes...\n", stamp(), len(paths))
	}
}

// Rebuilt reports one written output.
func (l *Logger) Rebuilt(output string, took time.Duration) {
	l.mu.Lock()
	l.stats.Outputs++
	l.mu.Unlock()

	if l.jsonOut {
		l.emit("rebuilt", map[string]any{"output": output, "duration": took.String()})
		return
	}
	l.printf("[%s] %s %s (%s)\n", stamp(), l.colorize("✓", ChangeAdded), output, took.Round(time.Millisecond))
}

// Skipped reports an output left untouched, with the reason.
func (l *Logger) Skipped(output, reason string) {
	if l.jsonOut {
		l.emit("skipped", map[string]any{"output": output, "reason": reason})
		return
	}
	l.printf("[%s] %s %s skipped: %s\n", stamp(), l.colorize("!", ChangeModified), output, reason)
}

// Error reports an error.
func (l *Logger) Error(err error) {
	l.mu.Lock()
	l.stats.Errors++
	l.mu.Unlock()

	if l.jsonOut {
		l.emit("error", map[string]any{"error": err.Error()})
		return
	}
	l.printf("[%s] %s error: %v\n", stamp(), l.colorize("✗", ChangeDeleted), err)
}

// Shutdown prints the session summary.
func (l *Logger) Shutdown() {
	st := l.Stats()
	if l.jsonOut {
		l.emit("shutdown", map[string]any{
			"rebuilds": st.Rebuilds,
			"outputs":  st.Outputs,
			"errors":   st.Errors,
			"duration": time.Since(st.StartTime).String(),
		})
		return
	}
	l.printf("\nmodlayer: shutting down (%s)\n", strings.Join([]string{
		plural(st.Rebuilds, "rebuild"),
		plural(st.Outputs, "output"),
		plural(st.Errors, "error"),
	}, ", "))
}

// Stats returns the session counters.
func (l *Logger) Stats() SessionStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Logger) colorize(s string, change ChangeType) string {
	if l.noColor || !l.isTTY {
		return s
	}
	var color string
	switch change {
	case ChangeAdded:
		color = "\033[32m"
	case ChangeModified:
		color = "\033[33m"
	case ChangeDeleted:
		color = "\033[31m"
	default:
		return s
	}
	return color + s + "\033[0m"
}

func (l *Logger) emit(event string, fields map[string]any) {
	fields["event"] = event
	fields["time"] = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(fields)
	if err != nil {
		l.printf("{\"event\":\"internal_error\",\"error\":%q}\n", err.Error())
		return
	}
	l.printf("%s\n", data)
}

// printf ignores write errors; output is informational.
func (l *Logger) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(l.writer, format, args...)
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
