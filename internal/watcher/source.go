package watcher

import (
	"context"
	"errors"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Op describes what happened to a path.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// String returns the string representation of the Op, joining flags with "|".
func (op Op) String() string {
	var parts []string
	for _, f := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "create"},
		{OpWrite, "write"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{OpChmod, "chmod"},
	} {
		if op&f.op != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}

	return strings.Join(parts, "|")
}

// Has reports whether op includes flag.
func (op Op) Has(flag Op) bool { return op&flag != 0 }

// Event is a single native filesystem notification.
type Event struct {
	Path string
	Op   Op
}

// ErrSourceClosed is returned by Next once the event source has been closed.
var ErrSourceClosed = errors.New("event source closed")

// EventSource is a native filesystem event queue. Next blocks until an event
// arrives, the queue fails, or ctx is done.
type EventSource interface {
	Add(path string) error
	Next(ctx context.Context) (Event, error)
	Close() error
}

// FSNotifySource adapts an fsnotify.Watcher to EventSource.
type FSNotifySource struct {
	w *fsnotify.Watcher
}

// NewFSNotifySource creates a native event source.
func NewFSNotifySource() (*FSNotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FSNotifySource{w: w}, nil
}

// Add registers a single directory (fsnotify watches are not recursive).
func (s *FSNotifySource) Add(path string) error {
	return s.w.Add(path)
}

// Next returns the next event from the fsnotify queue.
func (s *FSNotifySource) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-s.w.Events:
		if !ok {
			return Event{}, ErrSourceClosed
		}
		return Event{Path: ev.Name, Op: convertOp(ev.Op)}, nil
	case err, ok := <-s.w.Errors:
		if !ok {
			return Event{}, ErrSourceClosed
		}
		return Event{}, err
	}
}

// Close releases the inotify/kqueue handles.
func (s *FSNotifySource) Close() error {
	return s.w.Close()
}

func convertOp(op fsnotify.Op) Op {
	var out Op
	if op.Has(fsnotify.Create) {
		out |= OpCreate
	}
	if op.Has(fsnotify.Write) {
		out |= OpWrite
	}
	if op.Has(fsnotify.Remove) {
		out |= OpRemove
	}
	if op.Has(fsnotify.Rename) {
		out |= OpRename
	}
	if op.Has(fsnotify.Chmod) {
		out |= OpChmod
	}

	return out
}
