package daemon

import (
	"context"
	"fmt"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/app"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
)

// Backend is the pipeline the daemon serves. Every call may block until the
// pipeline's consumer goroutine is free.
type Backend interface {
	SourceChanged(ctx context.Context, p SourceChangedParams) error
	ContentChanged(ctx context.Context, paths []string) error
	NeedsRebuild(ctx context.Context, output string) (bool, error)
	Build(ctx context.Context, force bool) (*artifact.BuildReport, error)
	Status(ctx context.Context) (*app.Status, error)
	Resolve(ctx context.Context, p ResolveParams) (*ResolveResult, error)
}

// PipelineBackend serves an app through its hot-reload pipeline. State
// changes run on the pipeline's consumer goroutine. Results written by a Do
// closure are only read once Do returned nil, since a cancelled call may
// leave the closure to run later.
type PipelineBackend struct {
	Pipeline *app.Pipeline
}

// SourceChanged implements Backend.
func (b PipelineBackend) SourceChanged(ctx context.Context, p SourceChangedParams) error {
	return b.Pipeline.Do(ctx, func(a *app.App) {
		a.Registry().RegisterSourceChange(p.Path, p.Outdated, p.Deleted)
	})
}

// ContentChanged implements Backend. Paths go through the debounce queue
// without waiting for room, so a full queue fails the call; no paths runs a
// rescan pass right away.
func (b PipelineBackend) ContentChanged(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		var buildErr error
		if err := b.Pipeline.Do(ctx, func(a *app.App) {
			_, buildErr = a.Rebuild(ctx, nil)
		}); err != nil {
			return err
		}
		return buildErr
	}
	for _, p := range paths {
		if err := b.Pipeline.TrySubmit(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// NeedsRebuild implements Backend.
func (b PipelineBackend) NeedsRebuild(ctx context.Context, output string) (bool, error) {
	var stale bool
	if err := b.Pipeline.Do(ctx, func(a *app.App) {
		stale = a.Registry().NeedsRebuild(output)
	}); err != nil {
		return false, err
	}
	return stale, nil
}

// Build implements Backend.
func (b PipelineBackend) Build(ctx context.Context, force bool) (*artifact.BuildReport, error) {
	var (
		report   *artifact.BuildReport
		buildErr error
	)
	if err := b.Pipeline.Do(ctx, func(a *app.App) {
		report, buildErr = a.Startup(ctx, force)
	}); err != nil {
		return nil, err
	}
	return report, buildErr
}

// Status implements Backend.
func (b PipelineBackend) Status(ctx context.Context) (*app.Status, error) {
	var st *app.Status
	if err := b.Pipeline.Do(ctx, func(a *app.App) {
		st = a.Status()
	}); err != nil {
		return nil, err
	}
	return st, nil
}

// Resolve implements Backend. The resolver is read-only once the app is
// built, so it is queried directly.
func (b PipelineBackend) Resolve(_ context.Context, p ResolveParams) (*ResolveResult, error) {
	return ResolveWith(b.Pipeline.App().Resolver(), p), nil
}
