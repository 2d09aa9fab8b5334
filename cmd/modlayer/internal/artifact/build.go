package artifact

import (
	"errors"
	"fmt"
	"time"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/overlay"
	"github.com/albertocavalcante/modlayer/pkg/codec"
)

// BuildAll regenerates every target that needs it and writes each through
// write. Targets are processed one at a time in registration order; sources
// are applied in declaration order, so a later source wins where regions
// overlap.
//
// The set of targets to rebuild is decided before the first one is built.
// A source change is consumed once every planned target it affects has been
// written; changes that affect no target are dropped. Failed or skipped
// targets keep their changes for the next pass. Per-target failures are
// joined into the returned error; the report is always returned.
func (r *Registry) BuildAll(write WriteFunc) (*BuildReport, error) {
	r.started = true
	start := time.Now()
	hits, misses := r.cache.hits, r.cache.misses

	type planned struct {
		target *Target
		refs   []string
	}
	var plan []planned
	for _, t := range r.targets {
		if r.needsRebuild(t) {
			plan = append(plan, planned{target: t, refs: r.dirtyRefs(t)})
		}
	}

	report := &BuildReport{}
	keep := make(map[string]bool)
	var errs []error

	for _, p := range plan {
		res := r.build(p.target, write)
		report.Results = append(report.Results, res)

		switch res.Status {
		case StatusBuilt:
			for _, fn := range r.onReload {
				fn(res.Output, res.Path)
			}
		case StatusFailed:
			errs = append(errs, fmt.Errorf("%s: %s", res.Output, res.Error))
			fallthrough
		default:
			for _, ref := range p.refs {
				keep[ref] = true
			}
		}
	}

	for path := range r.refs {
		if !keep[path] {
			delete(r.refs, path)
		}
	}

	report.CacheHits = r.cache.hits - hits
	report.Decoded = r.cache.misses - misses
	report.Duration = time.Since(start)

	r.logger.Infow("build pass finished",
		"built", report.Count(StatusBuilt),
		"skipped", report.Count(StatusSkipped),
		"failed", report.Count(StatusFailed),
		"decoded", report.Decoded,
		"cache_hits", report.CacheHits,
		"duration", report.Duration,
	)
	return report, errors.Join(errs...)
}

// build regenerates one target.
func (r *Registry) build(t *Target, write WriteFunc) TargetResult {
	start := time.Now()
	res := TargetResult{Output: t.Output}
	logger := r.logger.With("output", t.Output)

	fail := func(status Status, err error) TargetResult {
		res.Status = status
		res.Error = err.Error()
		res.Duration = time.Since(start)
		if status == StatusSkipped {
			logger.Warnw("target skipped", "error", err)
		} else {
			logger.Errorw("target failed", "error", err)
		}
		return res
	}

	cd, ok := r.codecs.Lookup(t.Kind)
	if !ok {
		return fail(StatusFailed, fmt.Errorf("%w %q", ErrUnknownCodec, t.Kind))
	}

	canvas, err := r.baseCanvas(cd, t)
	if err != nil {
		return fail(StatusSkipped, err)
	}

	for _, s := range t.Sources {
		loc, ok := r.res.Locate(s.Path, s.Extensions)
		if !ok {
			logger.Warnw("source not found, skipping", "source", s.Path)
			res.Missing = append(res.Missing, s.Path)
			continue
		}
		src, err := r.cache.load(cd, loc)
		if err != nil {
			logger.Warnw("source unreadable, skipping", "source", s.Path, "concrete", loc.Concrete(), "error", err)
			res.Missing = append(res.Missing, s.Path)
			continue
		}
		next, err := cd.Compose(canvas, src, s.Place)
		if err != nil {
			logger.Warnw("source not applied", "source", s.Path, "error", err)
			res.Missing = append(res.Missing, s.Path)
			continue
		}
		canvas = next
		res.Applied++
	}

	data, err := cd.Encode(canvas)
	if err != nil {
		return fail(StatusFailed, fmt.Errorf("encode: %w", err))
	}
	abs, err := write(t.Output, data)
	if err != nil {
		return fail(StatusFailed, fmt.Errorf("write: %w", err))
	}

	res.Status = StatusBuilt
	res.Path = abs
	res.Duration = time.Since(start)
	logger.Infow("target built", "path", abs, "applied", res.Applied, "missing", len(res.Missing))
	return res
}

// baseCanvas loads the canvas a target is composed onto: the declared base,
// else the prior output, else a blank canvas of the declared size. The base
// is always decoded fresh because composition modifies it.
func (r *Registry) baseCanvas(cd codec.Codec, t *Target) (codec.Canvas, error) {
	basePath := t.Base
	if basePath == "" {
		basePath = t.Output
	}

	if loc, ok := r.res.Locate(basePath, nil); ok {
		data, err := loc.ReadFile()
		if err == nil {
			var cv codec.Canvas
			if cv, err = cd.Decode(data); err == nil {
				return cv, nil
			}
		}
		r.logger.Warnw("base unreadable, falling back to blank", "output", t.Output, "base", loc.Concrete(), "error", err)
	}

	cv, err := cd.Blank(t.Width, t.Height)
	if err != nil {
		return nil, fmt.Errorf("%w for %q: %v", ErrNoBaseCanvas, basePath, err)
	}
	return cv, nil
}

// Prepare registers a change to path and decodes every source it provides,
// so the later build finds them in the cache. A path that no longer
// resolves is registered as deleted. A decode failure is returned after the
// change is registered; the caller may retry once the file is complete.
func (r *Registry) Prepare(path string) error {
	path = overlay.Clean(path)
	if path == "" {
		return nil
	}

	if _, ok := r.res.Resolve(path); !ok {
		r.RegisterSourceChange(path, false, true)
		return nil
	}
	r.RegisterSourceChange(path, true, false)

	var errs []error
	for _, t := range r.targets {
		cd, ok := r.codecs.Lookup(t.Kind)
		if !ok {
			continue
		}
		for _, s := range t.Sources {
			loc, ok := r.res.Locate(s.Path, s.Extensions)
			if !ok || loc.Logical != path {
				continue
			}
			if _, err := r.cache.load(cd, loc); err != nil {
				errs = append(errs, fmt.Errorf("decode %s for %s: %w", loc.Concrete(), t.Output, err))
			}
		}
	}
	return errors.Join(errs...)
}

// PurgeCache drops all decoded sources.
func (r *Registry) PurgeCache() {
	r.cache.purge()
}
