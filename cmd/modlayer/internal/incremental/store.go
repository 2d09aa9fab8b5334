package incremental

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// rootsDir is the directory under the state dir holding per-root state.
	rootsDir = "roots"

	// snapshotFile is the name of the snapshot file.
	snapshotFile = "snapshot.bin"

	// derivedDir is the per-root directory for derived data.
	derivedDir = "derived"
)

// Store defines the interface for snapshot persistence.
type Store interface {
	Load() (*Snapshot, error)
	Save(s *Snapshot) error
	Clear() error
	DerivedDir() string
	EnsureDerived() error
}

// FileStore implements Store with one binary snapshot file per root.
type FileStore struct {
	dir     string
	path    string
	derived string
}

// RootKey returns the directory name used for a root's state: the root's base
// name followed by a hash of its absolute path, so two roots with the same
// base name never share state.
func RootKey(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	base := filepath.Base(abs)
	if base == string(filepath.Separator) || base == "." {
		base = "root"
	}
	return base + "-" + HashString(abs)
}

// NewFileStore creates a store for root under stateDir.
// Creates <stateDir>/roots/<key>/snapshot.bin on first Save.
func NewFileStore(stateDir, root string) *FileStore {
	dir := filepath.Join(stateDir, rootsDir, RootKey(root))
	return &FileStore{
		dir:     dir,
		path:    filepath.Join(dir, snapshotFile),
		derived: filepath.Join(dir, derivedDir),
	}
}

// Dir returns the root's state directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads the snapshot from disk. If the snapshot doesn't exist, returns nil
// with no error.
func (s *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// Save writes the snapshot to disk atomically.
func (s *FileStore) Save(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("cannot save nil snapshot")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Write to temp file first for atomic update
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, snap.Encode(), 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}

	// Rename temp file to actual file (atomic on POSIX)
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}

	return nil
}

// Clear removes the snapshot and the derived-data directory.
func (s *FileStore) Clear() error {
	return os.RemoveAll(s.dir)
}

// DerivedDir returns the root's derived-data directory.
func (s *FileStore) DerivedDir() string {
	return s.derived
}

// EnsureDerived makes sure the derived-data directory is a usable directory,
// recreating it from scratch otherwise.
func (s *FileStore) EnsureDerived() error {
	if usableDir(s.derived) {
		return nil
	}
	if err := os.RemoveAll(s.derived); err != nil {
		return fmt.Errorf("failed to remove derived directory: %w", err)
	}
	if err := os.MkdirAll(s.derived, 0o755); err != nil {
		return fmt.Errorf("failed to create derived directory: %w", err)
	}
	if !usableDir(s.derived) {
		return fmt.Errorf("derived directory %s is not writable", s.derived)
	}
	return nil
}

// usableDir reports whether dir is an existing, writable directory.
func usableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
