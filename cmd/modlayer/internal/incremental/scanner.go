package incremental

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/kinds"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// Mode selects which item types a tracker records.
type Mode int

const (
	TrackFiles Mode = 1 << iota
	TrackFolders

	TrackBoth = TrackFiles | TrackFolders
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case TrackFiles:
		return "files"
	case TrackFolders:
		return "folders"
	case TrackBoth:
		return "both"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "files", "folders" or "both". Empty means both.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "both":
		return TrackBoth, nil
	case "files":
		return TrackFiles, nil
	case "folders":
		return TrackFolders, nil
	default:
		return 0, fmt.Errorf("unknown track mode %q (want files, folders or both)", s)
	}
}

// ScanConfig configures the scanner.
type ScanConfig struct {
	// Fs holds Root. Defaults to the OS filesystem.
	Fs         afero.Fs
	Root       string
	Mode       Mode
	Recursive  bool
	Ignore     []string // doublestar patterns, matched against root-relative slash paths and base names
	IgnoreDirs []string // additional dir name prefixes to ignore
}

// ScanResult maps root-relative slash paths to modification times (UnixNano).
type ScanResult struct {
	Files   map[string]int64
	Folders map[string]int64
}

// Scanner walks a content root and records modification times.
type Scanner struct {
	fs         afero.Fs
	root       string
	mode       Mode
	recursive  bool
	ignore     []string
	ignoreDirs []string
}

// NewScanner creates a scanner with the given config.
func NewScanner(cfg ScanConfig) (*Scanner, error) {
	for _, p := range cfg.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}
	mode := cfg.Mode
	if mode == 0 {
		mode = TrackBoth
	}
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Scanner{
		fs:         fsys,
		root:       cfg.Root,
		mode:       mode,
		recursive:  cfg.Recursive,
		ignore:     cfg.Ignore,
		ignoreDirs: cfg.IgnoreDirs,
	}, nil
}

// ignored reports whether the root-relative path rel should be skipped.
func (s *Scanner) ignored(rel string, isDir bool) bool {
	name := path.Base(rel)
	if isDir && kinds.IsIgnoredDir(name, s.ignoreDirs...) {
		return true
	}
	for _, p := range s.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Scan walks the root and returns the tracked items.
//
// A folder's recorded time is the oldest modification time among its
// recursive contents; an empty folder records its own time. Folder times are
// always computed over the full tree, even when only top-level items are
// tracked.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	files := make(map[string]int64)
	own := make(map[string]int64)    // dir -> its own mtime
	oldest := make(map[string]int64) // dir -> min mtime of contents

	err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, err error) error {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}
		if p == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if s.ignored(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		mt := info.ModTime().UnixNano()
		if info.IsDir() {
			own[rel] = mt
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		files[rel] = mt
		for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
			if v, ok := oldest[dir]; !ok || mt < v {
				oldest[dir] = mt
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Deepest first, so a child's value is final before it reaches its parent.
	dirs := make([]string, 0, len(own))
	for d := range own {
		dirs = append(dirs, d)
	}
	slices.SortFunc(dirs, func(a, b string) int {
		return strings.Count(b, "/") - strings.Count(a, "/")
	})
	for _, d := range dirs {
		v, ok := oldest[d]
		if !ok {
			v = own[d]
			oldest[d] = v
		}
		if parent := path.Dir(d); parent != "." {
			if pv, ok := oldest[parent]; !ok || v < pv {
				oldest[parent] = v
			}
		}
	}

	res := &ScanResult{
		Files:   make(map[string]int64),
		Folders: make(map[string]int64),
	}
	if s.mode&TrackFiles != 0 {
		for p, mt := range files {
			if s.recursive || !strings.Contains(p, "/") {
				res.Files[p] = mt
			}
		}
	}
	if s.mode&TrackFolders != 0 {
		for _, d := range dirs {
			if s.recursive || !strings.Contains(d, "/") {
				res.Folders[d] = oldest[d]
			}
		}
	}
	return res, nil
}
