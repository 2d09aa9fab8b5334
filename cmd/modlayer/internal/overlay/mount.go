package overlay

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Mount is one content root registered into a Resolver with a priority.
//
// The backing storage is an afero.Fs rooted at the mount's root, so the
// resolver only ever deals with root-relative names. Folder-backed mounts
// use an OS filesystem; tests and embedders may supply any afero.Fs.
type Mount struct {
	name      string
	root      string
	priority  int
	seq       int
	isDefault bool
	fs        afero.Fs
}

// MountOption configures a Mount.
type MountOption func(*Mount)

// WithFs sets the backing filesystem. The filesystem must already be rooted
// at the mount root.
func WithFs(fsys afero.Fs) MountOption {
	return func(m *Mount) {
		m.fs = fsys
	}
}

// WithName sets a display name for the mount. Defaults to the root's base name.
func WithName(name string) MountOption {
	return func(m *Mount) {
		m.name = name
	}
}

// AsDefault marks the mount as the authoritative/default provider, which
// ResolveAlternate skips.
func AsDefault() MountOption {
	return func(m *Mount) {
		m.isDefault = true
	}
}

// Name returns the mount's display name.
func (m *Mount) Name() string { return m.name }

// Root returns the concrete root path.
func (m *Mount) Root() string { return m.root }

// Priority returns the mount priority.
func (m *Mount) Priority() int { return m.priority }

// IsDefault reports whether the mount is the authoritative root.
func (m *Mount) IsDefault() bool { return m.isDefault }

// Fs returns the mount's backing filesystem.
func (m *Mount) Fs() afero.Fs { return m.fs }

// Has reports whether the logical path exists on the mount's backing storage.
func (m *Mount) Has(logical string) bool {
	if logical == "" {
		return false
	}
	_, err := m.fs.Stat(filepath.FromSlash(logical))
	return err == nil
}

// Concrete returns the concrete path of a logical path within this mount.
func (m *Mount) Concrete(logical string) string {
	return filepath.Join(m.root, filepath.FromSlash(logical))
}

// Stat returns file info for a logical path on this mount.
func (m *Mount) Stat(logical string) (os.FileInfo, error) {
	return m.fs.Stat(filepath.FromSlash(logical))
}

// ReadFile reads a logical path from this mount.
func (m *Mount) ReadFile(logical string) ([]byte, error) {
	return afero.ReadFile(m.fs, filepath.FromSlash(logical))
}
