// Package kinds maps artifact kinds to the source file extensions that feed
// them.
//
// The mapping is shared by the scanner, the watcher, detection and the
// manifest defaults, so every component agrees on which files belong to
// which kind. A kind name is also the name of the codec that builds it.
package kinds

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/albertocavalcante/modlayer/pkg/util"
)

const (
	// Image is a raster sprite sheet assembled from PNG pieces.
	Image = "image"

	// Table is a key=value string table assembled from text fragments.
	Table = "table"
)

// Extensions maps kind names to their source file extensions, most
// preferred first.
var Extensions = map[string][]string{
	Image: {".png"},
	Table: {".txt", ".lang", ".tbl"},
}

// IgnoredDirs contains directory prefixes skipped during scanning, watching
// and detection.
//
// Note: Prefix matching means "." matches every hidden directory, including
// the ".modlayer" state directory.
var IgnoredDirs = []string{
	".",            // Hidden directories
	"node_modules", // Node.js dependencies
	"__pycache__",  // Python cache
	"__MACOSX",     // Archive extraction leftovers
}

// Names returns all known kind names, sorted.
func Names() []string {
	return util.SortedKeys(Extensions)
}

// ExtensionSet returns a set of all extensions for the given kinds.
//
// If kinds is nil or empty, returns all known extensions.
func ExtensionSet(kinds []string) map[string]bool {
	extensions := make(map[string]bool)

	if len(kinds) == 0 {
		for _, exts := range Extensions {
			util.AddAll(extensions, exts...)
		}
		return extensions
	}

	for _, kind := range kinds {
		util.AddAll(extensions, Extensions[kind]...)
	}
	return extensions
}

// Of returns the kind a file belongs to, judged by its extension.
func Of(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	for _, kind := range Names() {
		if slices.Contains(Extensions[kind], ext) {
			return kind, true
		}
	}
	return "", false
}

// IsIgnoredDir reports whether a directory name matches an ignored prefix,
// either built-in or one of the additional prefixes.
func IsIgnoredDir(name string, additional ...string) bool {
	if name == "." || name == ".." {
		return false
	}
	for _, prefix := range IgnoredDirs {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, prefix := range additional {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
