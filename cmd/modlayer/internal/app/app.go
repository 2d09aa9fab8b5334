// Package app wires the resolver, the per-root trackers and the artifact
// registry into one application context, and runs the startup and
// hot-reload passes over it.
//
// An App is driven from a single goroutine. While the hot-reload pipeline
// runs, that goroutine is the queue consumer; other goroutines reach the
// App through Queue.Do.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/incremental"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/overlay"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/runner"
	"github.com/albertocavalcante/modlayer/internal/log"
	"github.com/albertocavalcante/modlayer/pkg/config"
	"github.com/albertocavalcante/modlayer/pkg/registry"
)

// OutputPriority is the priority of the output directory mount. Every
// content root outranks it.
const OutputPriority = math.MinInt32

// Options configures New.
type Options struct {
	Config *config.Config

	// Codecs defaults to the codecs the configured targets use.
	Codecs artifact.CodecLookup

	// OutputFs holds the output directory. Defaults to the OS filesystem.
	OutputFs afero.Fs

	// ContentFs holds the content roots. Defaults to the OS filesystem.
	ContentFs afero.Fs

	// CacheSize bounds the decoded-source cache.
	CacheSize int
}

// Root is one configured content root and its tracker.
type Root struct {
	Config  config.Mount
	Tracker *incremental.Tracker

	// Mount is nil for disabled roots.
	Mount *overlay.Mount

	// Changes holds what the last Refresh found; nil before it.
	Changes *incremental.ChangeSet
}

// App is the application context.
type App struct {
	cfg    *config.Config
	res    *overlay.Resolver
	reg    *artifact.Registry
	roots  []*Root
	outFs  afero.Fs
	srcFs  afero.Fs
	write  artifact.WriteFunc
	hook   *runner.Runner
	logger *zap.SugaredLogger

	passes int
	last   *artifact.BuildReport
}

// New builds the application context from a finalized config.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.OutputDir == "" || cfg.StateDir == "" {
		return nil, errors.New("config is not finalized: output and state dirs are required")
	}

	codecs := opts.Codecs
	if codecs == nil {
		set, err := registry.LoadCodecs(cfg)
		if err != nil {
			return nil, err
		}
		codecs = set
	}
	outFs := opts.OutputFs
	if outFs == nil {
		outFs = afero.NewOsFs()
	}

	srcFs := opts.ContentFs
	if srcFs == nil {
		srcFs = afero.NewOsFs()
	}

	a := &App{
		cfg:    cfg,
		res:    overlay.NewResolver(),
		outFs:  outFs,
		srcFs:  srcFs,
		write:  artifact.DirWriter(outFs, cfg.OutputDir),
		logger: log.Component("app"),
	}

	for _, m := range cfg.Mounts {
		root, err := a.addRoot(m)
		if err != nil {
			return nil, err
		}
		a.roots = append(a.roots, root)
	}
	a.res.Mount(cfg.OutputDir, OutputPriority,
		overlay.WithName("output"),
		overlay.WithFs(afero.NewBasePathFs(outFs, cfg.OutputDir)),
	)

	for _, g := range cfg.Groups {
		a.res.Bind(g.Paths...)
	}
	for _, l := range cfg.Links {
		entries := make([]overlay.LinkEntry, len(l.Entries))
		for i, e := range l.Entries {
			entries[i] = overlay.LinkEntry{Path: e.Path, Extensions: e.Extensions}
		}
		a.res.Link(entries...)
	}

	reg, err := artifact.NewRegistry(a.res, codecs,
		artifact.WithCacheSize(opts.CacheSize),
		artifact.WithOutputCheck(a.outputExists),
	)
	if err != nil {
		return nil, err
	}
	for _, t := range cfg.Targets {
		if err := reg.Register(toTarget(t)); err != nil {
			return nil, err
		}
	}
	a.reg = reg

	var hookOpts []runner.Option
	if cfg.Source != "" {
		hookOpts = append(hookOpts, runner.WithDir(config.ProjectDir(cfg.Source)))
	}
	a.hook = runner.New(cfg.Reload.Command, hookOpts...)
	if fn := a.hook.Hook(context.Background()); fn != nil {
		reg.OnReload(fn)
	}

	a.logger.Debugw("application ready", "roots", len(a.roots), "targets", len(cfg.Targets))
	return a, nil
}

func (a *App) addRoot(m config.Mount) (*Root, error) {
	mode, err := incremental.ParseMode(m.Track)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", m.DisplayName(), err)
	}
	tr, err := incremental.NewTracker(incremental.Config{
		Fs:        a.srcFs,
		Root:      m.Path,
		StateDir:  a.cfg.StateDir,
		Mode:      mode,
		Recursive: m.IsRecursive(),
		Ignore:    m.Ignore,
	})
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", m.DisplayName(), err)
	}

	root := &Root{Config: m, Tracker: tr}
	if m.IsEnabled() {
		opts := []overlay.MountOption{
			overlay.WithName(m.DisplayName()),
			overlay.WithFs(afero.NewBasePathFs(a.srcFs, m.Path)),
		}
		if m.Default {
			opts = append(opts, overlay.AsDefault())
		}
		root.Mount = a.res.Mount(m.Path, m.Priority, opts...)
	}
	return root, nil
}

func toTarget(t config.Target) artifact.Target {
	out := artifact.Target{
		Output: t.Output,
		Kind:   t.Kind,
		Base:   t.Base,
		Width:  t.Width,
		Height: t.Height,
	}
	for _, s := range t.Sources {
		out.Sources = append(out.Sources, artifact.Source{
			Path:       s.Path,
			Extensions: s.Extensions,
			Place: artifact.Placement{
				X: s.X, Y: s.Y, W: s.W, H: s.H, SrcX: s.SX, SrcY: s.SY,
				Prefix:    s.Prefix,
				FirstLine: s.FirstLine,
				LineCount: s.LineCount,
			},
		})
	}
	return out
}

func (a *App) outputExists(output string) bool {
	ok, err := afero.Exists(a.outFs, filepath.Join(a.cfg.OutputDir, filepath.FromSlash(output)))
	return err == nil && ok
}

// Config returns the application config.
func (a *App) Config() *config.Config { return a.cfg }

// Resolver returns the overlay resolver.
func (a *App) Resolver() *overlay.Resolver { return a.res }

// Registry returns the artifact registry.
func (a *App) Registry() *artifact.Registry { return a.reg }

// Roots returns the configured content roots in declaration order.
func (a *App) Roots() []*Root { return a.roots }

// WatchRoots returns the directories of the enabled content roots.
func (a *App) WatchRoots() []string {
	var out []string
	for _, r := range a.roots {
		if r.Mount != nil {
			out = append(out, r.Mount.Root())
		}
	}
	return out
}

// OnReload registers a callback fired after each rebuilt output.
func (a *App) OnReload(fn artifact.ReloadFunc) {
	a.reg.OnReload(fn)
}

// LastReport returns the report of the most recent build pass.
func (a *App) LastReport() *artifact.BuildReport { return a.last }
