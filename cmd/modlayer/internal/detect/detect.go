// Package detect finds which artifact kinds have source files under a
// content root.
//
// Detection is deterministic: it walks the tree, skips ignored directories
// (see kinds.IgnoredDirs) and classifies files purely by extension using
// kinds.Extensions. File contents are never read.
package detect

import (
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/kinds"
	"github.com/albertocavalcante/modlayer/pkg/util"
)

// Counts returns the number of source files per artifact kind under root.
func Counts(root string) (map[string]int, error) {
	found := make(map[string]int)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && kinds.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if kind, ok := kinds.Of(path); ok {
			found[kind]++
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return found, nil
}

// Kinds returns the sorted list of artifact kinds with at least one source
// file under root.
func Kinds(root string) ([]string, error) {
	counts, err := Counts(root)
	if err != nil {
		return nil, err
	}

	return util.SortedKeys(counts), nil
}

// HasKind checks if a specific kind is detected under root.
func HasKind(root, kind string) (bool, error) {
	found, err := Kinds(root)
	if err != nil {
		return false, err
	}
	return slices.Contains(found, kind), nil
}
