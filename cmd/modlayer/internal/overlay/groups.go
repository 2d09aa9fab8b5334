package overlay

import (
	"slices"
)

// LinkEntry is one member of a linked group: a logical path that may be
// satisfied by any of the allowed extensions.
type LinkEntry struct {
	Path       string
	Extensions []string
}

// matches reports whether a changed logical path belongs to this entry.
func (e LinkEntry) matches(p string) bool {
	if p == e.Path {
		return true
	}
	if Stem(p) != Stem(e.Path) {
		return false
	}
	return slices.Contains(e.Extensions, Ext(p))
}

// expand returns every logical name this entry stands for.
func (e LinkEntry) expand() []string {
	out := []string{e.Path}
	for _, v := range Variants(e.Path, e.Extensions) {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// group is a set of related logical paths.
type group []LinkEntry

// Bind declares that the given logical paths are related: a change to one is
// treated as a change to all of them for staleness propagation.
func (r *Resolver) Bind(paths ...string) {
	if len(paths) < 2 {
		return
	}
	g := make(group, 0, len(paths))
	for _, p := range paths {
		if p = Clean(p); p != "" {
			g = append(g, LinkEntry{Path: p})
		}
	}
	r.groups = append(r.groups, g)
}

// Link is Bind for entries that may be provided in several formats.
func (r *Resolver) Link(entries ...LinkEntry) {
	if len(entries) < 2 {
		return
	}
	g := make(group, 0, len(entries))
	for _, e := range entries {
		e.Path = Clean(e.Path)
		if e.Path == "" {
			continue
		}
		exts := make([]string, 0, len(e.Extensions))
		for _, ext := range e.Extensions {
			exts = append(exts, normalizeExt(ext))
		}
		e.Extensions = exts
		g = append(g, e)
	}
	r.groups = append(r.groups, g)
}

// Related returns the logical path together with every path bound or linked
// to it, sorted. Resolution is unaffected by groups.
func (r *Resolver) Related(logical string) []string {
	logical = Clean(logical)
	if logical == "" {
		return nil
	}
	set := map[string]struct{}{logical: {}}
	for _, g := range r.groups {
		if !slices.ContainsFunc(g, func(e LinkEntry) bool { return e.matches(logical) }) {
			continue
		}
		for _, e := range g {
			for _, p := range e.expand() {
				set[p] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
