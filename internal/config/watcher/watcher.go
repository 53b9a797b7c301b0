// Package watcher reports changes to the files a configuration was built
// from.
//
// The watcher subscribes to the parent directory of every tracked file, so
// files that are replaced by editors (write to temp, rename over) keep being
// tracked. Events for other files in those directories are dropped. Changes
// are delivered in batches once no further change has arrived for the
// debounce interval.
package watcher

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the last change to the file was seen.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Reset after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher monitors a set of files for changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu     sync.Mutex
	files  map[string]bool
	dirs   map[string]bool
	closed bool

	events chan []Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a batch is delivered. Zero
// delivers every change on its own.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// New starts watching paths.
func New(paths []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: 100 * time.Millisecond,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		events:   make(chan []Event),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.Reset(paths); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Events delivers batches of changes, sorted by path. The channel is closed
// by Close.
func (w *Watcher) Events() <-chan []Event {
	return w.events
}

// Errors delivers errors reported by the file system watcher. Errors are
// dropped while a previous one is unread.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Reset replaces the tracked files.
func (w *Watcher) Reset(paths []string) error {
	files := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}

	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	for dir := range w.dirs {
		if !dirs[dir] {
			_ = w.fsw.Remove(dir)
		}
	}

	w.files = files
	w.dirs = dirs
	return nil
}

// Files returns the tracked files, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	files := make([]string, 0, len(w.files))
	for path := range w.files {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Close stops the watcher and closes the Events channel.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer close(w.events)

	pending := make(map[string]Event)
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			event, tracked := w.translate(ev)
			if !tracked {
				continue
			}
			queue(pending, event)

			if w.debounce == 0 {
				if !w.flush(pending) {
					return
				}
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if !w.flush(pending) {
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// translate maps an fsnotify event to an Event for a tracked file.
func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	tracked := w.files[path]
	w.mu.Unlock()
	if !tracked {
		return Event{}, false
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	default:
		return Event{}, false
	}
	return Event{Path: path, Op: op, Time: time.Now()}, true
}

// queue adds event to pending, coalescing with an earlier change of the
// same file:
//   - a removal wins unless the file is created again
//   - a creation is not downgraded by a later write
//   - otherwise the later operation wins
func queue(pending map[string]Event, event Event) {
	existing, ok := pending[event.Path]
	if !ok {
		pending[event.Path] = event
		return
	}

	switch {
	case existing.Op == OpRemove && event.Op != OpCreate:
		event.Op = OpRemove
	case existing.Op == OpCreate && event.Op == OpWrite:
		event.Op = OpCreate
	}
	pending[event.Path] = event
}

// flush delivers pending as one batch. It reports false if the watcher was
// closed while waiting for a reader.
func (w *Watcher) flush(pending map[string]Event) bool {
	if len(pending) == 0 {
		return true
	}

	batch := make([]Event, 0, len(pending))
	for path, ev := range pending {
		batch = append(batch, ev)
		delete(pending, path)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case w.events <- batch:
		return true
	case <-w.done:
		return false
	}
}
