package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
)

// Refresh scans every root and reports its changes to the registry without
// building or persisting anything.
//
// A root whose mount was disabled since the last run reports every file it
// used to provide, so targets fall back to lower-priority roots. A root that
// was re-enabled is treated as new.
func (a *App) Refresh(ctx context.Context) error {
	var errs []error
	for _, r := range a.roots {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.refreshRoot(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) refreshRoot(ctx context.Context, r *Root) error {
	tr := r.Tracker
	logger := a.logger.With("root", r.Config.DisplayName())

	if r.Mount == nil {
		if tr.Enabled() && tr.HasHistory() {
			logger.Infow("mount disabled, its files fall back to lower roots")
			tr.ForEachKnownFile(func(p string) {
				a.reg.RegisterSourceChange(p, true, false)
			})
		}
		tr.SetEnabled(false)
		r.Changes = nil
		return nil
	}

	if !tr.Enabled() {
		logger.Infow("mount re-enabled, rebuilding everything it provides")
		tr.Reset()
		tr.SetEnabled(true)
	}

	if err := tr.Scan(ctx); err != nil {
		return fmt.Errorf("mount %s: %w", r.Config.DisplayName(), err)
	}

	cs := tr.Changes()
	r.Changes = cs
	for _, p := range cs.Outdated() {
		a.reg.RegisterSourceChange(p, true, false)
	}
	for _, p := range cs.StaleFolders {
		a.reg.RegisterSourceChange(p, true, false)
	}
	for _, p := range cs.Deleted {
		a.reg.RegisterSourceChange(p, false, true)
	}
	for _, p := range cs.DeletedFolders {
		a.reg.RegisterSourceChange(p, false, true)
	}

	if !cs.IsEmpty() {
		logger.Debugw("root changed",
			"added", len(cs.Added),
			"modified", len(cs.Modified),
			"deleted", len(cs.Deleted),
			"dirs", cs.AffectedDirs())
	}
	return nil
}

// persist saves every tracker.
func (a *App) persist() error {
	var errs []error
	for _, r := range a.roots {
		if err := r.Tracker.Persist(); err != nil {
			errs = append(errs, fmt.Errorf("mount %s: %w", r.Config.DisplayName(), err))
		}
	}
	return errors.Join(errs...)
}

// Build runs one pass: refresh, build every stale target, then persist the
// trackers. Trackers are only persisted when no target failed, so failed
// changes are found again on the next run.
func (a *App) Build(ctx context.Context) (*artifact.BuildReport, error) {
	if err := a.Refresh(ctx); err != nil {
		return nil, err
	}

	report, buildErr := a.reg.BuildAll(a.write)
	a.passes++
	a.last = report

	if buildErr != nil {
		return report, buildErr
	}
	if err := a.persist(); err != nil {
		return report, fmt.Errorf("failed to persist state: %w", err)
	}
	return report, nil
}

// Startup runs the startup pass. With force set, every root is treated as
// new so every target is rebuilt.
func (a *App) Startup(ctx context.Context, force bool) (*artifact.BuildReport, error) {
	if force {
		for _, r := range a.roots {
			r.Tracker.Reset()
		}
	}
	return a.Build(ctx)
}

// Rebuild is the hot-reload pass run once the queue drains. The drained
// paths were already registered by Prepare; the rescan catches changes the
// watcher missed.
func (a *App) Rebuild(ctx context.Context, paths []string) (*artifact.BuildReport, error) {
	a.logger.Debugw("hot rebuild", "paths", len(paths))
	return a.Build(ctx)
}

// Prepare registers a single changed path and warms its decoded sources.
func (a *App) Prepare(path string) error {
	return a.reg.Prepare(path)
}

// Clean removes all tracker state and built outputs, so the next pass
// rebuilds everything.
func (a *App) Clean() error {
	var errs []error
	for _, r := range a.roots {
		if err := r.Tracker.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("mount %s: %w", r.Config.DisplayName(), err))
		}
	}
	if err := a.outFs.RemoveAll(a.cfg.OutputDir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove outputs: %w", err))
	}
	a.reg.PurgeCache()
	return errors.Join(errs...)
}
