// Package runner runs the reload hook: an external command told which
// output was just rewritten so the host can reload it.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/modlayer/internal/log"
)

// ErrNoCommand is returned when no reload command is configured.
var ErrNoCommand = errors.New("no reload command configured")

// Runner runs the reload command with the output's absolute path appended.
type Runner struct {
	command        []string
	executablePath string // modlayer binary, for finding sibling helpers
	dir            string
	stdout         io.Writer
	stderr         io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutablePath sets the path to the modlayer executable. Used
// primarily for testing.
func WithExecutablePath(path string) Option {
	return func(r *Runner) {
		r.executablePath = path
	}
}

// WithDir sets the working directory of the command.
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithOutput sends the command's stdout and stderr to w.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.stdout = w
		r.stderr = w
	}
}

// New creates a Runner for command. An empty command is allowed; Run then
// returns ErrNoCommand.
func New(command []string, opts ...Option) *Runner {
	r := &Runner{command: command}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configured reports whether a command is set.
func (r *Runner) Configured() bool {
	return len(r.command) > 0 && r.command[0] != ""
}

// FindCommand locates the command binary using the following search order:
// 1. Paths containing a separator are used as given
// 2. Sibling binary next to the modlayer executable
// 3. PATH lookup
func (r *Runner) FindCommand() (string, error) {
	if !r.Configured() {
		return "", ErrNoCommand
	}
	name := r.command[0]

	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if !fileExists(name) {
			return "", fmt.Errorf("reload command %s: %w", name, os.ErrNotExist)
		}
		return name, nil
	}

	exe := r.executablePath
	if exe == "" {
		if p, err := os.Executable(); err == nil {
			exe = p
		}
	}
	if exe != "" {
		if sibling := filepath.Join(filepath.Dir(exe), name); fileExists(sibling) {
			return sibling, nil
		}
	}

	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("reload command %s: %w", name, err)
	}
	return p, nil
}

// Run runs the command for one rewritten output and waits for it.
// MODLAYER_OUTPUT and MODLAYER_OUTPUT_PATH are set in its environment.
func (r *Runner) Run(ctx context.Context, output, absPath string) error {
	bin, err := r.FindCommand()
	if err != nil {
		return err
	}

	args := append(append([]string{}, r.command[1:]...), absPath)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"MODLAYER_OUTPUT="+output,
		"MODLAYER_OUTPUT_PATH="+absPath,
	)

	var stderr bytes.Buffer
	cmd.Stdout = r.stdout
	cmd.Stderr = &stderr
	if r.stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.stderr)
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("reload %s: %w: %s", output, err, msg)
		}
		return fmt.Errorf("reload %s: %w", output, err)
	}
	return nil
}

// Hook adapts the runner to a registry reload callback. Failures are
// logged, never returned. It returns nil when no command is configured.
func (r *Runner) Hook(ctx context.Context) func(output, absPath string) {
	if !r.Configured() {
		return nil
	}
	logger := log.Component("reload")
	return func(output, absPath string) {
		if err := r.Run(ctx, output, absPath); err != nil {
			logger.Warnw("reload hook failed", "output", output, "error", err)
			return
		}
		logger.Debugw("reload hook ran", "output", output)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
