// Package watcher turns native filesystem notifications for a source tree
// into rebuild requests.
//
// A Watcher keeps one registration per watchable directory below the root
// and registers directories created while it runs. Relevant changes are
// reported one by one; coalescing them into rebuilds is the Coalescer's job.
//
// A file created inside a brand new directory before that directory has been
// registered is not reported. The window is a single event-loop iteration and
// the next change in the directory is seen, so the miss is accepted.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	deverrors "github.com/instant-compose/devloop/internal/errors"
	"github.com/instant-compose/devloop/internal/logging"
)

// Watcher keeps watch registrations for every watchable directory of a tree.
type Watcher struct {
	filter  *Filter
	source  EventSource
	logger  logging.Logger
	mu      sync.Mutex
	watched map[string]struct{}
}

// New creates a watcher over an arbitrary event source.
func New(filter *Filter, source EventSource, logger logging.Logger) *Watcher {
	if logger == nil {
		logger = logging.Nop()
	}

	return &Watcher{
		filter:  filter,
		source:  source,
		logger:  logger.WithComponent("watcher"),
		watched: make(map[string]struct{}),
	}
}

// NewFSNotify creates a watcher backed by fsnotify.
func NewFSNotify(filter *Filter, logger logging.Logger) (*Watcher, error) {
	source, err := NewFSNotifySource()
	if err != nil {
		return nil, deverrors.NewWatcherError(deverrors.CodeWatcherAdd, "creating file watcher", err)
	}

	return New(filter, source, logger), nil
}

// AddRecursive registers root and every watchable directory below it.
// Subdirectories that vanish or cannot be read during the walk are skipped.
func (w *Watcher) AddRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return deverrors.NewWatcherError(deverrors.CodeWatcherAdd, "watch root", err)
	}
	if !info.IsDir() {
		return deverrors.NewWatcherError(deverrors.CodeWatcherAdd,
			fmt.Sprintf("watch root %s is not a directory", root), nil)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.logger.Warn(context.Background(), err, "Skipping unreadable path", "path", path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if !w.filter.IsWatchable(path) {
			return filepath.SkipDir
		}

		return w.add(path)
	})
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watched[dir]; ok {
		return nil
	}
	if err := w.source.Add(dir); err != nil {
		return deverrors.NewWatcherError(deverrors.CodeWatcherAdd, "watching "+dir, err)
	}
	w.watched[dir] = struct{}{}

	return nil
}

// forget drops the registrations of path and every directory below it, so a
// tree recreated at the same place is registered again.
func (w *Watcher) forget(path string) {
	prefix := path + string(filepath.Separator)

	w.mu.Lock()
	defer w.mu.Unlock()
	for dir := range w.watched {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.watched, dir)
		}
	}
}

// WatchedDirs returns how many directories are currently registered.
func (w *Watcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Watch blocks reading native events and calls onChange once for every
// event the filter marks relevant. It returns nil when ctx is cancelled and
// a fatal watcher error when the event queue cannot be read.
func (w *Watcher) Watch(ctx context.Context, onChange func(Event)) error {
	for {
		ev, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return deverrors.NewWatcherError(deverrors.CodeWatcherRead, "reading file events", err)
		}

		w.handle(ctx, ev, onChange)
	}
}

func (w *Watcher) handle(ctx context.Context, ev Event, onChange func(Event)) {
	if ev.Op == OpChmod || ev.Op == 0 {
		return
	}

	if ev.Op.Has(OpRemove) || ev.Op.Has(OpRename) {
		w.forget(ev.Path)
	}

	if ev.Op.Has(OpCreate) {
		if info, err := os.Stat(ev.Path); err == nil && info.IsDir() && w.filter.IsWatchable(ev.Path) {
			if err := w.AddRecursive(ev.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn(ctx, err, "Failed to watch new directory", "path", ev.Path)
			}
		}
	}

	if !w.filter.IsRelevantChange(ev.Path) {
		w.logger.Debug(ctx, "Ignoring change", "path", ev.Path, "op", ev.Op.String())
		return
	}

	w.logger.Debug(ctx, "File changed", "path", ev.Path, "op", ev.Op.String())
	onChange(ev)
}

// Close stops the native event source.
func (w *Watcher) Close() error {
	return w.source.Close()
}
