package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/kinds"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/overlay"
)

// ErrWatchLimitReached is returned when the OS watch limit is exceeded.
var ErrWatchLimitReached = errors.New("filesystem watch limit reached")

// Sink receives change events. *Queue implements it.
type Sink interface {
	Submit(ctx context.Context, ev Event) error
}

// Mapper maps concrete paths under the watched roots to logical paths.
// *overlay.Resolver implements it.
type Mapper interface {
	Logical(concrete string) (string, *overlay.Mount, bool)
}

// Config configures the watcher.
type Config struct {
	// Roots are the OS directories to watch, usually the mount roots.
	Roots []string

	// Mapper turns event paths into logical paths.
	Mapper Mapper

	// Extensions limits events to these file extensions. Nil means any.
	Extensions map[string]bool

	// Ignore holds doublestar patterns matched against the logical path
	// and the base name.
	Ignore []string

	Sink   Sink
	Logger *Logger
}

// Watcher forwards filesystem changes under the mount roots to a Sink.
// Deletions and rename-from halves are not forwarded.
type Watcher struct {
	config    Config
	fsWatcher *fsnotify.Watcher
	logger    *Logger
}

// New creates a watcher. Roots are not added until Run.
func New(cfg Config) (*Watcher, error) {
	if cfg.Sink == nil {
		return nil, errors.New("watch: config has no sink")
	}
	if cfg.Mapper == nil {
		return nil, errors.New("watch: config has no path mapper")
	}
	for _, p := range cfg.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("watch: invalid ignore pattern %q", p)
		}
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewLogger(LoggerConfig{})
	}
	return &Watcher{config: cfg, fsWatcher: fsw, logger: logger}, nil
}

// Run watches every root and forwards events until ctx is cancelled or the
// sink is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for _, root := range w.config.Roots {
		if _, err := os.Stat(root); err != nil {
			w.logger.Error(fmt.Errorf("skipping watch root %s: %w", root, err))
			continue
		}
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if err := w.handleEvent(ctx, event); err != nil {
				if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error(err)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error(err)
		}
	}
}

// addRecursive watches dir and every non-ignored directory below it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if !os.IsPermission(err) {
				w.logger.Error(fmt.Errorf("walk error at %s: %w", p, err))
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignoredDir(p) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(p); err != nil {
			if isWatchLimitError(err) {
				return fmt.Errorf("%w at %s (raise fs.inotify.max_user_watches): %v", ErrWatchLimitReached, p, err)
			}
			w.logger.Error(fmt.Errorf("failed to watch %s: %w", p, err))
		}
		return nil
	})
}

func (w *Watcher) ignoredDir(p string) bool {
	if kinds.IsIgnoredDir(filepath.Base(p)) {
		return true
	}
	logical, _, ok := w.config.Mapper.Logical(p)
	return ok && w.ignored(logical)
}

func (w *Watcher) ignored(logical string) bool {
	name := path.Base(logical)
	for _, pat := range w.config.Ignore {
		if ok, _ := doublestar.Match(pat, logical); ok {
			return true
		}
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// handleEvent forwards one fsnotify event.
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) error {
	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	default:
		return nil
	}

	if op == OpCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.ignoredDir(event.Name) {
				return nil
			}
			return w.addRecursive(event.Name)
		}
	}

	if w.config.Extensions != nil && !w.config.Extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return nil
	}
	logical, _, ok := w.config.Mapper.Logical(event.Name)
	if !ok || w.ignored(logical) {
		return nil
	}

	w.logger.FileChanged(logical, ChangeFor(op))
	return w.config.Sink.Submit(ctx, Event{Path: logical, Op: op, Time: time.Now()})
}

// isWatchLimitError reports whether err comes from exhausting inotify
// watches or file descriptors.
func isWatchLimitError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EMFILE) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "no space left on device") || strings.Contains(s, "too many open files")
}

// Close releases the OS watches.
func (w *Watcher) Close() error {
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}
