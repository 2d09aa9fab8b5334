package artifact

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/overlay"
	"github.com/albertocavalcante/modlayer/internal/log"
	"github.com/albertocavalcante/modlayer/pkg/util"
)

// Option configures a Registry.
type Option func(*Registry)

// WithCacheSize sets how many decoded sources are kept between passes.
func WithCacheSize(n int) Option {
	return func(r *Registry) {
		r.cacheSize = n
	}
}

// WithOutputCheck overrides how output existence is decided. By default an
// output exists when the resolver can resolve its logical path.
func WithOutputCheck(fn func(output string) bool) Option {
	return func(r *Registry) {
		r.outputExists = fn
	}
}

// Registry holds targets and pending source changes.
type Registry struct {
	res    *overlay.Resolver
	codecs CodecLookup
	logger *zap.SugaredLogger

	targets  []*Target
	byOutput map[string]*Target
	refs     map[string]*SourceRef
	started  bool

	cacheSize    int
	cache        *sourceCache
	outputExists func(string) bool
	onReload     []ReloadFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(res *overlay.Resolver, codecs CodecLookup, opts ...Option) (*Registry, error) {
	if res == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if codecs == nil {
		return nil, fmt.Errorf("codec lookup is required")
	}
	r := &Registry{
		res:      res,
		codecs:   codecs,
		logger:   log.Component("artifact"),
		byOutput: make(map[string]*Target),
		refs:     make(map[string]*SourceRef),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.outputExists == nil {
		r.outputExists = func(output string) bool {
			_, ok := res.Resolve(output)
			return ok
		}
	}
	r.cache = newSourceCache(r.cacheSize)
	return r, nil
}

// Register adds a target. Targets are fixed once the first build starts.
func (r *Registry) Register(t Target) error {
	if r.started {
		return ErrRegistrationClosed
	}

	t.Output = overlay.Clean(t.Output)
	if t.Output == "" {
		return fmt.Errorf("target output is required")
	}
	if _, dup := r.byOutput[t.Output]; dup {
		return fmt.Errorf("target %q already registered", t.Output)
	}
	if _, ok := r.codecs.Lookup(t.Kind); !ok {
		return fmt.Errorf("target %q: %w %q", t.Output, ErrUnknownCodec, t.Kind)
	}
	t.Base = overlay.Clean(t.Base)

	sources := make([]Source, len(t.Sources))
	for i, s := range t.Sources {
		s.Path = overlay.Clean(s.Path)
		if s.Path == "" {
			return fmt.Errorf("target %q: source %d has no path", t.Output, i)
		}
		s.Extensions = slices.Clone(s.Extensions)
		sources[i] = s
	}
	t.Sources = sources

	r.targets = append(r.targets, &t)
	r.byOutput[t.Output] = &t
	r.logger.Debugw("registered target", "output", t.Output, "kind", t.Kind, "sources", len(t.Sources))
	return nil
}

// Targets returns copies of the registered targets in registration order.
func (r *Registry) Targets() []Target {
	out := make([]Target, len(r.targets))
	for i, t := range r.targets {
		out[i] = *t
	}
	return out
}

// RegisterSourceChange records that a logical path changed. Repeated reports
// OR the flags. Paths bound to it with Bind or Link are flagged too.
func (r *Registry) RegisterSourceChange(path string, outdated, deleted bool) {
	path = overlay.Clean(path)
	if path == "" || (!outdated && !deleted) {
		return
	}
	for _, p := range r.res.Related(path) {
		ref, ok := r.refs[p]
		if !ok {
			ref = &SourceRef{Path: p}
			r.refs[p] = ref
		}
		ref.Outdated = ref.Outdated || outdated
		ref.Deleted = ref.Deleted || deleted
	}
	r.logger.Debugw("source change", "path", path, "outdated", outdated, "deleted", deleted)
}

// Pending returns the recorded source changes, sorted by path.
func (r *Registry) Pending() []SourceRef {
	out := make([]SourceRef, 0, len(r.refs))
	for _, p := range util.SortedKeys(r.refs) {
		out = append(out, *r.refs[p])
	}
	return out
}

// NeedsRebuild reports whether output is missing or any declared source is
// outdated or deleted. Unknown outputs never need rebuilding.
func (r *Registry) NeedsRebuild(output string) bool {
	t, ok := r.byOutput[overlay.Clean(output)]
	if !ok {
		return false
	}
	return r.needsRebuild(t)
}

// Stale returns the outputs that need rebuilding, in registration order.
func (r *Registry) Stale() []string {
	var out []string
	for _, t := range r.targets {
		if r.needsRebuild(t) {
			out = append(out, t.Output)
		}
	}
	return out
}

func (r *Registry) needsRebuild(t *Target) bool {
	if !r.outputExists(t.Output) {
		return true
	}
	return len(r.dirtyRefs(t)) > 0
}

// dirtyRefs returns the flagged paths that affect t, sorted.
//
// A flagged path affects a source when it names the source itself, one of
// its extension variants, a folder above it, or something inside it (for
// folder sources). The base path is treated as a source.
func (r *Registry) dirtyRefs(t *Target) []string {
	if len(r.refs) == 0 {
		return nil
	}
	var hit []string
	for p := range r.refs {
		if r.affects(t, p) {
			hit = append(hit, p)
		}
	}
	slices.Sort(hit)
	return hit
}

func (r *Registry) affects(t *Target, p string) bool {
	if t.Base != "" && related(t.Base, nil, p) {
		return true
	}
	for _, s := range t.Sources {
		if related(s.Path, s.Extensions, p) {
			return true
		}
	}
	return false
}

// related reports whether flagged path p touches a source at src.
func related(src string, exts []string, p string) bool {
	if p == src || isUnder(src, p) || isUnder(p, src) {
		return true
	}
	return slices.Contains(overlay.Variants(src, exts), p)
}

// isUnder reports whether child lies strictly inside folder dir.
func isUnder(child, dir string) bool {
	return strings.HasPrefix(child, dir+"/")
}

// OnReload registers a callback fired after each successfully written output.
func (r *Registry) OnReload(fn ReloadFunc) {
	r.onReload = append(r.onReload, fn)
}
