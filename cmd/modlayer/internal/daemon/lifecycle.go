package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File names inside the daemon directory.
const (
	DefaultDaemonDir  = ".modlayer"
	DefaultSocketName = "daemon.sock"
	DefaultPIDName    = "daemon.pid"
	DefaultLogName    = "daemon.log"
)

// Paths locates the files of one daemon instance.
type Paths struct {
	Dir    string
	Socket string
	PID    string
	Log    string
}

// PathsIn returns the daemon paths inside dir. A project's daemon lives in
// its state directory.
func PathsIn(dir string) *Paths {
	return &Paths{
		Dir:    dir,
		Socket: filepath.Join(dir, DefaultSocketName),
		PID:    filepath.Join(dir, DefaultPIDName),
		Log:    filepath.Join(dir, DefaultLogName),
	}
}

// PathsForSocket derives the PID and log paths from a custom socket path.
func PathsForSocket(socket string) *Paths {
	return &Paths{
		Dir:    filepath.Dir(socket),
		Socket: socket,
		PID:    socket + ".pid",
		Log:    socket + ".log",
	}
}

// DefaultPaths returns the per-user daemon paths under the home directory.
func DefaultPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return PathsIn(filepath.Join(home, DefaultDaemonDir)), nil
}

// EnsureDir creates the daemon directory, private to the owner.
func (p *Paths) EnsureDir() error {
	return os.MkdirAll(p.Dir, 0o700)
}

// WritePID records the current process ID.
func (p *Paths) WritePID() error {
	if err := p.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(p.PID, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// ReadPID reads the recorded process ID.
func (p *Paths) ReadPID() (int, error) {
	data, err := os.ReadFile(p.PID)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %w", err)
	}
	return pid, nil
}

// Cleanup removes the PID file and the socket. Missing files are fine.
func (p *Paths) Cleanup() error {
	var errs []error
	for _, f := range []string{p.PID, p.Socket} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", f, err))
		}
	}
	return errors.Join(errs...)
}

// IsProcessRunning reports whether a process with pid exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for existence.
	return process.Signal(syscall.Signal(0)) == nil
}

// DaemonStatus is what the PID file says about a daemon.
type DaemonStatus struct {
	Running    bool
	PID        int
	SocketPath string

	// Stale means a PID file exists but its process is gone.
	Stale bool
}

// GetStatus reads the daemon status from its PID file. A nil paths reports
// not running.
func GetStatus(paths *Paths) *DaemonStatus {
	if paths == nil {
		return &DaemonStatus{}
	}
	status := &DaemonStatus{SocketPath: paths.Socket}

	pid, err := paths.ReadPID()
	if err != nil {
		return status
	}
	status.PID = pid
	status.Running = IsProcessRunning(pid)
	status.Stale = !status.Running
	return status
}

// CleanupStale removes leftovers of a daemon that is no longer running: a
// stale PID file, or an orphan socket. It reports whether anything was
// removed.
func CleanupStale(paths *Paths) (bool, error) {
	if paths == nil {
		return false, nil
	}
	status := GetStatus(paths)
	switch {
	case status.Running:
		return false, nil
	case status.Stale:
		if err := paths.Cleanup(); err != nil {
			return false, err
		}
		return true, nil
	}

	if _, err := os.Stat(paths.Socket); err != nil {
		return false, nil
	}
	if err := os.Remove(paths.Socket); err != nil {
		return false, fmt.Errorf("failed to remove orphan socket: %w", err)
	}
	return true, nil
}

// StopProcess asks a process to terminate.
func StopProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	return process.Signal(syscall.SIGTERM)
}

// KillProcess kills a process.
func KillProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	return process.Kill()
}
