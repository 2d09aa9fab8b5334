package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/artifact"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/kinds"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/watch"
)

// Pipeline is the hot-reload loop: a filesystem watcher feeding the queue,
// whose consumer runs the App's passes.
type Pipeline struct {
	app     *App
	queue   *watch.Queue
	watcher *watch.Watcher
	logger  *watch.Logger
	tick    time.Duration
	ctx     context.Context
}

// PipelineOptions configures NewPipeline.
type PipelineOptions struct {
	Logger *watch.Logger

	// NoWatcher disables the filesystem watcher; changes then only arrive
	// through TrySubmit.
	NoWatcher bool
}

// NewPipeline creates the hot-reload loop for a.
func (a *App) NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	tick, err := a.cfg.Watch.TickInterval()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = watch.NewLogger(watch.LoggerConfig{})
	}

	p := &Pipeline{app: a, logger: logger, tick: tick, ctx: context.Background()}
	p.queue = watch.NewQueue(watch.QueueConfig{
		DebounceTicks: a.cfg.Watch.DebounceTicks,
		Capacity:      a.cfg.Watch.QueueSize,
		MaxAttempts:   a.cfg.Watch.MaxAttempts,
		Prepare:       func(ev watch.Event) error { return a.Prepare(ev.Path) },
		Rebuild:       p.rebuild,
	})

	if !opts.NoWatcher {
		p.watcher, err = watch.New(watch.Config{
			Roots:      a.WatchRoots(),
			Mapper:     a.res,
			Extensions: a.extensions(),
			Ignore:     a.cfg.Watch.Ignore,
			Sink:       p.queue,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// extensions returns the file extensions of the configured target kinds.
func (a *App) extensions() map[string]bool {
	var ks []string
	for _, t := range a.cfg.Targets {
		ks = append(ks, t.Kind)
	}
	return kinds.ExtensionSet(ks)
}

// App returns the application the pipeline drives. Outside the consumer
// goroutine only its read-only parts may be used.
func (p *Pipeline) App() *App { return p.app }

// Queue returns the hot-reload queue.
func (p *Pipeline) Queue() *watch.Queue { return p.queue }

// Do runs fn against the App on the consumer goroutine.
func (p *Pipeline) Do(ctx context.Context, fn func(a *App)) error {
	return p.queue.Do(ctx, func() { fn(p.app) })
}

// TrySubmit enqueues a change to a logical path without blocking. It fails
// with watch.ErrQueueFull when the queue has no room.
func (p *Pipeline) TrySubmit(path string) error {
	return p.queue.TrySubmit(watch.Event{Path: path, Op: watch.OpWrite, Time: time.Now()})
}

func (p *Pipeline) rebuild(paths []string) error {
	p.logger.Rebuilding(paths)
	report, err := p.app.Rebuild(p.ctx, paths)
	LogReport(p.logger, report)
	if err != nil {
		p.logger.Error(err)
	}
	return err
}

// LogReport prints each target result of report.
func LogReport(l *watch.Logger, report *artifact.BuildReport) {
	if report == nil {
		return
	}
	for _, res := range report.Results {
		switch res.Status {
		case artifact.StatusBuilt:
			l.Rebuilt(res.Output, res.Duration)
		case artifact.StatusSkipped:
			l.Skipped(res.Output, res.Error)
		}
	}
}

// Run runs the watcher and the queue consumer until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.ctx = ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.queue.Run(ctx, p.tick)
	})
	if p.watcher != nil {
		g.Go(func() error {
			defer p.watcher.Close()
			if err := p.watcher.Run(ctx); err != nil {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

	p.logger.Ready(p.app.WatchRoots(), len(p.app.cfg.Targets))
	err := g.Wait()
	p.logger.Shutdown()
	return err
}

// Close stops the queue and releases the watcher. Run closes both itself;
// Close is for a pipeline that never ran.
func (p *Pipeline) Close() error {
	p.queue.Close()
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}
