package overlay

import (
	"path"
	"slices"
	"strings"
)

// Clean normalizes a logical path: forward slashes, no leading slash, no
// "." or ".." segments. It returns "" for paths that name the root itself.
func Clean(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// Stem returns the logical path without its extension.
func Stem(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

// Ext returns the lower-cased extension of a logical path, including the dot.
func Ext(p string) string {
	return strings.ToLower(path.Ext(p))
}

// Variants expands a logical path into the candidates allowed by exts,
// in the order exts are given. With no extensions only the path itself is
// returned.
func Variants(p string, exts []string) []string {
	if len(exts) == 0 {
		return []string{p}
	}
	stem := Stem(p)
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		cand := stem + normalizeExt(ext)
		if !slices.Contains(out, cand) {
			out = append(out, cand)
		}
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
