package incremental

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/albertocavalcante/modlayer/internal/log"
	"github.com/albertocavalcante/modlayer/pkg/util"
)

// Config configures a Tracker.
type Config struct {
	// Fs holds Root. Defaults to the OS filesystem. Snapshots always live
	// on the OS filesystem under StateDir.
	Fs         afero.Fs
	Root       string
	StateDir   string
	Mode       Mode
	Recursive  bool
	Ignore     []string // doublestar patterns
	IgnoreDirs []string // extra dir name prefixes, on top of kinds.IgnoredDirs

	// Store overrides the snapshot store. Defaults to a FileStore under StateDir.
	Store Store
}

// Tracker records per-item modification times for one content root and
// reports items that changed since the last persisted snapshot.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	fs      afero.Fs
	root    string
	store   Store
	scanner *Scanner
	logger  *zap.SugaredLogger

	history  bool // a snapshot was loaded or persisted
	rootGone bool

	prevFiles   map[string]int64
	prevFolders map[string]int64
	curFiles    map[string]int64
	curFolders  map[string]int64
	scanned     bool

	enabled  bool
	settings map[string]bool
	metadata []byte
}

// NewTracker opens the tracker for cfg.Root.
//
// A snapshot written in another format, or one that fails to decode, is
// discarded together with the derived-data directory and the root is treated
// as new. If the root no longer exists, the next Scan reports everything it
// recorded as deleted and Persist removes its state.
func NewTracker(cfg Config) (*Tracker, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("tracker root is required")
	}
	root := filepath.Clean(cfg.Root)
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	scanner, err := NewScanner(ScanConfig{
		Fs:         fsys,
		Root:       root,
		Mode:       cfg.Mode,
		Recursive:  cfg.Recursive,
		Ignore:     cfg.Ignore,
		IgnoreDirs: cfg.IgnoreDirs,
	})
	if err != nil {
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		if cfg.StateDir == "" {
			return nil, fmt.Errorf("tracker state dir is required")
		}
		store = NewFileStore(cfg.StateDir, root)
	}

	t := &Tracker{
		fs:          fsys,
		root:        root,
		store:       store,
		scanner:     scanner,
		logger:      log.Component("tracker").With("root", root),
		prevFiles:   make(map[string]int64),
		prevFolders: make(map[string]int64),
		enabled:     true,
		settings:    make(map[string]bool),
	}

	t.rootGone = !t.rootExists()

	snap, err := store.Load()
	switch {
	case errors.Is(err, ErrFormatMismatch), errors.Is(err, ErrCorruptSnapshot):
		t.logger.Warnw("discarding unreadable snapshot", "error", err)
		if err := store.Clear(); err != nil {
			return nil, fmt.Errorf("failed to discard snapshot: %w", err)
		}
		snap = nil
	case err != nil:
		return nil, err
	}

	if snap != nil {
		t.load(snap)
	}

	if t.rootGone {
		t.logger.Infow("root no longer exists, its recorded items will be reported deleted",
			"files", len(t.prevFiles), "folders", len(t.prevFolders))
		return t, nil
	}
	if err := store.EnsureDerived(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) rootExists() bool {
	ok, err := afero.DirExists(t.fs, t.root)
	return err == nil && ok
}

func (t *Tracker) load(snap *Snapshot) {
	t.history = true
	t.enabled = snap.Enabled
	for _, it := range snap.Files {
		t.prevFiles[it.Path] = it.ModTime
	}
	for _, it := range snap.Folders {
		t.prevFolders[it.Path] = it.ModTime
	}
	for _, st := range snap.Settings {
		t.settings[st.Name] = st.Value
	}
	t.metadata = snap.Metadata
}

// Root returns the tracked root.
func (t *Tracker) Root() string {
	return t.root
}

// HasHistory reports whether the root had a usable snapshot.
func (t *Tracker) HasHistory() bool {
	return t.history
}

// Scan walks the root and records current modification times.
func (t *Tracker) Scan(ctx context.Context) error {
	if !t.rootExists() {
		t.rootGone = true
		t.curFiles = map[string]int64{}
		t.curFolders = map[string]int64{}
		t.scanned = true
		return nil
	}
	if t.rootGone {
		if err := t.store.EnsureDerived(); err != nil {
			return err
		}
		t.rootGone = false
	}

	res, err := t.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", t.root, err)
	}
	t.curFiles = res.Files
	t.curFolders = res.Folders
	t.scanned = true

	t.logger.Debugw("scanned", "files", len(res.Files), "folders", len(res.Folders))
	return nil
}

// outdated calls fn for every current item whose recorded time is unknown or
// older than its current time.
func outdated(prev, cur map[string]int64, fn func(string)) {
	for _, p := range util.SortedKeys(cur) {
		if old, ok := prev[p]; !ok || old < cur[p] {
			fn(p)
		}
	}
}

// deleted calls fn for every recorded item that is no longer present.
func deleted(prev, cur map[string]int64, fn func(string)) {
	for _, p := range util.SortedKeys(prev) {
		if _, ok := cur[p]; !ok {
			fn(p)
		}
	}
}

// ForEachOutdatedFile calls fn for each new or newer file, in path order.
// Reports nothing before the first Scan.
func (t *Tracker) ForEachOutdatedFile(fn func(path string)) {
	if t.scanned {
		outdated(t.prevFiles, t.curFiles, fn)
	}
}

// ForEachOutdatedFolder calls fn for each new or newer folder, in path order.
func (t *Tracker) ForEachOutdatedFolder(fn func(path string)) {
	if t.scanned {
		outdated(t.prevFolders, t.curFolders, fn)
	}
}

// ForEachDeletedFile calls fn for each recorded file that no longer exists.
func (t *Tracker) ForEachDeletedFile(fn func(path string)) {
	if t.scanned {
		deleted(t.prevFiles, t.curFiles, fn)
	}
}

// ForEachDeletedFolder calls fn for each recorded folder that no longer exists.
func (t *Tracker) ForEachDeletedFolder(fn func(path string)) {
	if t.scanned {
		deleted(t.prevFolders, t.curFolders, fn)
	}
}

// ForEachKnownFile calls fn for each file in the persisted snapshot.
func (t *Tracker) ForEachKnownFile(fn func(path string)) {
	for _, p := range util.SortedKeys(t.prevFiles) {
		fn(p)
	}
}

// Changes summarizes the differences found by the last Scan.
func (t *Tracker) Changes() *ChangeSet {
	cs := NewChangeSet()
	t.ForEachOutdatedFile(func(p string) {
		if _, ok := t.prevFiles[p]; ok {
			cs.Modified = append(cs.Modified, p)
		} else {
			cs.Added = append(cs.Added, p)
		}
	})
	t.ForEachDeletedFile(func(p string) { cs.Deleted = append(cs.Deleted, p) })
	t.ForEachOutdatedFolder(func(p string) { cs.StaleFolders = append(cs.StaleFolders, p) })
	t.ForEachDeletedFolder(func(p string) { cs.DeletedFolders = append(cs.DeletedFolders, p) })
	cs.sort()
	return cs
}

// Persist writes the current state as the new snapshot. Without a prior Scan
// the previously recorded items are kept. For a root that no longer exists
// the state is removed instead.
func (t *Tracker) Persist() error {
	if t.rootGone {
		return t.store.Clear()
	}

	files, folders := t.prevFiles, t.prevFolders
	if t.scanned {
		files, folders = t.curFiles, t.curFolders
	}

	snap := &Snapshot{
		Enabled:  t.enabled,
		Files:    descriptors(files),
		Folders:  descriptors(folders),
		Metadata: t.metadata,
	}
	for _, name := range util.SortedKeys(t.settings) {
		snap.Settings = append(snap.Settings, Setting{Name: name, Value: t.settings[name]})
	}

	if err := t.store.Save(snap); err != nil {
		return err
	}

	t.prevFiles = maps.Clone(files)
	t.prevFolders = maps.Clone(folders)
	t.history = true
	t.logger.Debugw("persisted snapshot", "files", len(files), "folders", len(folders))
	return nil
}

// GetSetting returns a persisted boolean setting, or def if unset.
func (t *Tracker) GetSetting(name string, def bool) bool {
	if v, ok := t.settings[name]; ok {
		return v
	}
	return def
}

// SetSetting records a boolean setting; it is saved on the next Persist.
func (t *Tracker) SetSetting(name string, v bool) {
	t.settings[name] = v
}

// Enabled returns the root's last recorded enabled flag.
func (t *Tracker) Enabled() bool {
	return t.enabled
}

// SetEnabled records the root's enabled flag; it is saved on the next Persist.
func (t *Tracker) SetEnabled(v bool) {
	t.enabled = v
}

// Metadata returns the opaque metadata blob.
func (t *Tracker) Metadata() []byte {
	return t.metadata
}

// SetMetadata replaces the opaque metadata blob.
func (t *Tracker) SetMetadata(b []byte) {
	t.metadata = b
}

// DerivedDir returns the root's derived-data directory.
func (t *Tracker) DerivedDir() string {
	return t.store.DerivedDir()
}

// Reset forgets the recorded items so every current item reports as
// outdated. Settings and metadata are kept.
func (t *Tracker) Reset() {
	t.prevFiles = make(map[string]int64)
	t.prevFolders = make(map[string]int64)
	t.history = false
}

// Clear removes all persisted state for the root, including derived data.
func (t *Tracker) Clear() error {
	if err := t.store.Clear(); err != nil {
		return err
	}
	t.Reset()
	t.settings = make(map[string]bool)
	t.metadata = nil
	t.enabled = true
	if t.rootGone {
		return nil
	}
	return t.store.EnsureDerived()
}

func descriptors(m map[string]int64) []ItemDescriptor {
	out := make([]ItemDescriptor, 0, len(m))
	for _, p := range util.SortedKeys(m) {
		out = append(out, ItemDescriptor{Path: p, ModTime: m[p]})
	}
	return out
}

