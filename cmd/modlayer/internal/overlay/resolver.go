// Package overlay resolves logical asset paths across prioritized content
// roots.
//
// Mounts are kept sorted by descending priority. Mounts with equal priority
// keep their insertion order, so the earliest mounted root wins a tie.
// Mounting happens during startup only; afterwards the resolver is read-only
// and safe for concurrent use without locking.
package overlay

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/albertocavalcante/modlayer/internal/log"
	"github.com/spf13/afero"
)

// Resolver maps logical paths to concrete files across mounts.
type Resolver struct {
	mounts  []*Mount
	nextSeq int
	groups  []group
}

// Location is a resolved logical path.
type Location struct {
	Mount   *Mount
	Logical string
}

// Concrete returns the concrete path of the location.
func (l Location) Concrete() string {
	return l.Mount.Concrete(l.Logical)
}

// Stat returns file info for the location.
func (l Location) Stat() (os.FileInfo, error) {
	return l.Mount.Stat(l.Logical)
}

// ReadFile reads the location's content.
func (l Location) ReadFile() ([]byte, error) {
	return l.Mount.ReadFile(l.Logical)
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Mount registers a content root. Nonexistent roots are accepted; they never
// match anything. No enumeration happens here.
func (r *Resolver) Mount(root string, priority int, opts ...MountOption) *Mount {
	m := &Mount{
		root:     filepath.Clean(root),
		priority: priority,
		seq:      r.nextSeq,
	}
	r.nextSeq++
	for _, opt := range opts {
		opt(m)
	}
	if m.name == "" {
		m.name = filepath.Base(m.root)
	}
	if m.fs == nil {
		if _, err := os.Stat(m.root); err != nil {
			log.Component("overlay").Warnw("content root unavailable", "root", m.root, "error", err)
		}
		m.fs = afero.NewBasePathFs(afero.NewOsFs(), m.root)
	}

	// Insert before the first mount with strictly lower priority so that
	// equal priorities keep insertion order.
	idx := len(r.mounts)
	for i, existing := range r.mounts {
		if existing.priority < priority {
			idx = i
			break
		}
	}
	r.mounts = append(r.mounts, nil)
	copy(r.mounts[idx+1:], r.mounts[idx:])
	r.mounts[idx] = m

	log.Component("overlay").Debugw("mounted", "root", m.root, "priority", priority, "position", idx)
	return m
}

// Mounts returns the mounts in resolution order.
func (r *Resolver) Mounts() []*Mount {
	out := make([]*Mount, len(r.mounts))
	copy(out, r.mounts)
	return out
}

// Locate finds the highest-priority provider of logical, optionally
// restricted to the allowed extensions.
func (r *Resolver) Locate(logical string, exts []string) (Location, bool) {
	return r.locate(logical, exts, false)
}

func (r *Resolver) locate(logical string, exts []string, skipDefault bool) (Location, bool) {
	logical = Clean(logical)
	if logical == "" {
		return Location{}, false
	}
	candidates := Variants(logical, exts)
	for _, m := range r.mounts {
		if skipDefault && m.isDefault {
			continue
		}
		for _, cand := range candidates {
			if m.Has(cand) {
				return Location{Mount: m, Logical: cand}, true
			}
		}
	}
	return Location{}, false
}

// Resolve returns the concrete path from the highest-priority mount that
// contains logical.
func (r *Resolver) Resolve(logical string) (string, bool) {
	loc, ok := r.locate(logical, nil, false)
	if !ok {
		return "", false
	}
	return loc.Concrete(), true
}

// ResolveAlternate is Resolve without the default mount: it finds a
// different provider of the same logical file.
func (r *Resolver) ResolveAlternate(logical string) (string, bool) {
	loc, ok := r.locate(logical, nil, true)
	if !ok {
		return "", false
	}
	return loc.Concrete(), true
}

// ResolveFiltered resolves logical considering only candidates whose
// extension is allowed. The logical path's own extension is replaced by each
// allowed extension in turn; mount priority takes precedence over extension
// order.
func (r *Resolver) ResolveFiltered(logical string, exts []string) (string, bool) {
	if len(exts) == 0 {
		return r.Resolve(logical)
	}
	loc, ok := r.locate(logical, exts, false)
	if !ok {
		return "", false
	}
	return loc.Concrete(), true
}

// ResolveAll returns the concrete path from every mount that has logical,
// highest priority first.
func (r *Resolver) ResolveAll(logical string) []string {
	logical = Clean(logical)
	if logical == "" {
		return nil
	}
	var out []string
	for _, m := range r.mounts {
		if m.Has(logical) {
			out = append(out, m.Concrete(logical))
		}
	}
	return out
}

// Logical maps a concrete path back to its logical path and the mount whose
// root contains it. When roots are nested the deepest root wins.
func (r *Resolver) Logical(concrete string) (string, *Mount, bool) {
	concrete = filepath.Clean(concrete)
	var (
		best    *Mount
		bestRel string
	)
	for _, m := range r.mounts {
		rel, err := filepath.Rel(m.root, concrete)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(m.root) > len(best.root) {
			best = m
			bestRel = rel
		}
	}
	if best == nil {
		return "", nil, false
	}
	return Clean(filepath.ToSlash(bestRel)), best, true
}

// Open opens the highest-priority provider of logical and returns it along
// with its concrete path.
func (r *Resolver) Open(logical string) (afero.File, string, error) {
	loc, ok := r.locate(logical, nil, false)
	if !ok {
		return nil, "", &os.PathError{Op: "open", Path: logical, Err: os.ErrNotExist}
	}
	f, err := loc.Mount.fs.Open(filepath.FromSlash(loc.Logical))
	if err != nil {
		return nil, "", err
	}
	return f, loc.Concrete(), nil
}
