package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	docerrors "github.com/conneroisu/docsite/internal/errors"
	"github.com/conneroisu/docsite/internal/logging"
)

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Kind    EventKind
	Path    string
	ModTime time.Time
	Size    int64
}

// EventKind represents the type of file change
type EventKind int

const (
	EventAdded EventKind = iota
	EventModified
	EventRemoved
	EventOther
)

// String returns the string representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "other"
	}
}

// ChangeHandler handles a single change event. Errors are logged and never
// stop the watcher.
type ChangeHandler func(event ChangeEvent) error

// Options configures a FileWatcher.
type Options struct {
	// Root is the directory watched recursively. It does not need to exist
	// yet.
	Root string
	// Ignore holds extra glob patterns, matched against the slash-separated
	// path relative to Root and against the base name.
	Ignore []string
	// Debounce coalesces events for the same path. Zero delivers every
	// notification.
	Debounce time.Duration
	// BufferSize is the capacity of the Events channel.
	BufferSize int
	Logger     logging.Logger
}

// FileWatcher watches a content tree and emits ChangeEvents for everything
// under it except dotfiles.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	root      string
	ignore    []glob.Glob
	debouncer *Debouncer
	logger    logging.Logger

	mutex    sync.RWMutex
	handlers []ChangeHandler
	// pending is the ancestor watched while root does not exist.
	pending string

	dispatchMu sync.Mutex
	events     chan ChangeEvent
	closed     bool

	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher for opts.Root. Nothing is watched until Start.
func New(opts Options) (*FileWatcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, docerrors.NewIOError("resolve root", opts.Root, err)
	}

	ignore := make([]glob.Glob, 0, len(opts.Ignore))
	for _, pattern := range opts.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		g, err := glob.Compile(filepath.ToSlash(pattern), '/')
		if err != nil {
			return nil, docerrors.NewConfigError("watch.ignore", "invalid pattern %q: %v", pattern, err)
		}
		ignore = append(ignore, g)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, docerrors.NewIOError("create watcher", root, err)
	}

	size := opts.BufferSize
	if size <= 0 {
		size = 256
	}

	fw := &FileWatcher{
		watcher: w,
		root:    root,
		ignore:  ignore,
		logger:  logging.OrNop(opts.Logger).WithComponent("watcher"),
		events:  make(chan ChangeEvent, size),
		done:    make(chan struct{}),
	}
	if opts.Debounce > 0 {
		fw.debouncer = NewDebouncer(opts.Debounce)
	}

	return fw, nil
}

// Root returns the absolute watched directory.
func (fw *FileWatcher) Root() string {
	return fw.root
}

// AddHandler adds a change handler. Handlers run one at a time, in the
// order they were added.
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// Events returns the stream of change events. It is closed by Stop and
// cannot be restarted. Events are dropped when nobody drains it.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Start begins watching. A missing root is not an error: the nearest
// existing ancestor is watched until the root appears.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.watchRoot(false); err != nil {
		return err
	}

	fw.mutex.Lock()
	fw.started = true
	fw.mutex.Unlock()

	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and closes the Events channel.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()

		fw.mutex.RLock()
		started := fw.started
		fw.mutex.RUnlock()
		if started {
			<-fw.done
		}

		if fw.debouncer != nil {
			fw.debouncer.Stop()
		}

		fw.dispatchMu.Lock()
		fw.closed = true
		close(fw.events)
		fw.dispatchMu.Unlock()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer close(fw.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// rewatchRoot drops the watches of a root that went away and waits for it
// to come back.
func (fw *FileWatcher) rewatchRoot() {
	for _, name := range fw.watcher.WatchList() {
		if isWithin(fw.root, name) {
			_ = fw.watcher.Remove(name)
		}
	}
	fw.logger.Info(context.Background(), "Content root removed", "root", fw.root)
	if err := fw.watchRoot(true); err != nil {
		fw.logger.Warn(context.Background(), err, "Failed to follow content root", "path", fw.root)
	}
}

// watchRoot adds the root tree, or the nearest existing ancestor when the
// root is missing. emit is passed through to addRecursive.
func (fw *FileWatcher) watchRoot(emit bool) error {
	info, err := os.Stat(fw.root)
	if err == nil && info.IsDir() {
		fw.mutex.Lock()
		old := fw.pending
		fw.pending = ""
		fw.mutex.Unlock()
		if old != "" {
			_ = fw.watcher.Remove(old)
		}
		return fw.addRecursive(fw.root, emit)
	}

	ancestor := nearestExistingDir(filepath.Dir(fw.root))
	fw.mutex.Lock()
	old := fw.pending
	fw.pending = ancestor
	fw.mutex.Unlock()

	if old == ancestor {
		return nil
	}
	if old != "" {
		_ = fw.watcher.Remove(old)
	}
	if err := fw.watcher.Add(ancestor); err != nil {
		return docerrors.NewIOError("watch", ancestor, err)
	}
	fw.logger.Info(context.Background(), "Content root missing, waiting for it to be created",
		"root", fw.root, "watching", ancestor)
	return nil
}

// addRecursive watches dir and every non-hidden directory below it. When
// emit is set, files found along the way are reported as added; that
// covers files written into a directory before its watch was in place.
func (fw *FileWatcher) addRecursive(dir string, emit bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The tree can change under us; skip what vanished.
			return nil
		}
		if path != fw.root && fw.isIgnored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.watcher.Add(path); err != nil {
				fw.logger.Warn(context.Background(), err, "Skipping directory", "path", path)
			}
			return nil
		}
		if emit {
			fw.dispatch(fw.newEvent(EventAdded, path))
		}
		return nil
	})
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	fw.mutex.RLock()
	pending := fw.pending
	fw.mutex.RUnlock()

	if pending != "" {
		// Only creations on the way down to the root matter while waiting.
		if event.Has(fsnotify.Create) && isWithin(event.Name, fw.root) {
			// Anything written before the watch landed is reported as added.
			if err := fw.watchRoot(true); err != nil {
				fw.logger.Warn(context.Background(), err, "Failed to follow content root", "path", event.Name)
			}
			fw.mutex.RLock()
			found := fw.pending == ""
			fw.mutex.RUnlock()
			if found {
				fw.logger.Info(context.Background(), "Content root created, watching", "root", fw.root)
			}
		}
		return
	}

	if event.Name == fw.root {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			fw.rewatchRoot()
		}
		return
	}
	if !isWithin(fw.root, event.Name) {
		return
	}
	if fw.isIgnored(event.Name) {
		return
	}

	kind := kindOf(event.Op)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			fw.dispatch(fw.newEvent(kind, event.Name))
			if err := fw.addRecursive(event.Name, true); err != nil {
				fw.logger.Warn(context.Background(), err, "Failed to watch new directory", "path", event.Name)
			}
			return
		}
	}

	ev := fw.newEvent(kind, event.Name)
	if fw.debouncer != nil {
		fw.debouncer.Process(ev.Path, func() { fw.dispatch(ev) })
		return
	}
	fw.dispatch(ev)
}

func (fw *FileWatcher) newEvent(kind EventKind, path string) ChangeEvent {
	ev := ChangeEvent{Kind: kind, Path: path}
	if kind != EventRemoved {
		if info, err := os.Stat(path); err == nil {
			ev.ModTime = info.ModTime()
			ev.Size = info.Size()
		}
	}
	return ev
}

// dispatch runs the handlers and then offers the event on the channel.
func (fw *FileWatcher) dispatch(ev ChangeEvent) {
	fw.dispatchMu.Lock()
	defer fw.dispatchMu.Unlock()

	if fw.closed {
		return
	}

	fw.mutex.RLock()
	handlers := fw.handlers
	fw.mutex.RUnlock()

	for _, handler := range handlers {
		if err := handler(ev); err != nil {
			fw.logger.Warn(context.Background(), err, "File watcher handler error",
				"path", ev.Path, "kind", ev.Kind.String())
		}
	}

	select {
	case fw.events <- ev:
	default:
		fw.logger.Debug(context.Background(), "Event channel full, dropping event", "path", ev.Path)
	}
}

// isIgnored reports dotfiles, anything below a dot-directory, and paths
// matching an ignore pattern.
func (fw *FileWatcher) isIgnored(path string) bool {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)

	if IsHidden(rel) {
		return true
	}

	base := filepath.Base(path)
	for _, g := range fw.ignore {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// IsHidden reports whether any segment of a slash-separated relative path
// starts with a dot.
func IsHidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func kindOf(op fsnotify.Op) EventKind {
	switch {
	case op.Has(fsnotify.Create):
		return EventAdded
	case op.Has(fsnotify.Write):
		return EventModified
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventRemoved
	default:
		return EventOther
	}
}

// isWithin reports whether path is parent itself or below it.
func isWithin(parent, path string) bool {
	rel, err := filepath.Rel(parent, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func nearestExistingDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
