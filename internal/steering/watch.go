package steering

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// EventType classifies an index change.
type EventType int

const (
	// EventTypeUpdated indicates a note was created or rewritten.
	EventTypeUpdated EventType = iota

	// EventTypeRemoved indicates a note was deleted or renamed away.
	EventTypeRemoved
)

// Event describes one change to the steering index.
type Event struct {
	Type      EventType
	Slug      string
	Timestamp time.Time
}

// Watcher keeps an in-memory index of the steering directory current by
// watching filesystem events. Notes written through the Store and by
// hand both land in the index.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	events  chan Event
	stop    chan struct{}

	mu    sync.RWMutex
	index map[string]Note
}

// NewWatcher creates a watcher for the store's directory. A nil logger
// defaults to a no-op logger.
func NewWatcher(store *Store, logger *zap.Logger) (*Watcher, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		store:   store,
		watcher: fw,
		logger:  logger,
		events:  make(chan Event, 16),
		stop:    make(chan struct{}),
		index:   make(map[string]Note),
	}, nil
}

// Start seeds the index from the current directory contents and begins
// watching. Call Stop to clean up resources.
func (w *Watcher) Start(ctx context.Context) error {
	notes, err := w.store.List()
	if err != nil {
		return fmt.Errorf("seeding steering index: %w", err)
	}
	w.mu.Lock()
	for _, note := range notes {
		w.index[note.Slug] = note
	}
	w.mu.Unlock()

	if err := w.watcher.Add(w.store.Dir()); err != nil {
		return fmt.Errorf("watching steering dir: %w", err)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		_ = w.watcher.Close() // Best-effort cleanup, ignore error
	}
}

// Events returns the channel carrying index change events. Sends are
// non-blocking; slow consumers miss events but the index stays current.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Notes returns an index snapshot, newest first.
func (w *Watcher) Notes() []Note {
	w.mu.RLock()
	notes := make([]Note, 0, len(w.index))
	for _, note := range w.index {
		notes = append(notes, note)
	}
	w.mu.RUnlock()

	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].Generated.Equal(notes[j].Generated) {
			return notes[i].Generated.After(notes[j].Generated)
		}
		return notes[i].Slug < notes[j].Slug
	})
	return notes
}

// Get returns an indexed note by slug.
func (w *Watcher) Get(slug string) (Note, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	note, ok := w.index[slug]
	return note, ok
}

// processEvents applies filesystem events to the index.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("steering watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleFileEvent(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".md" {
		return
	}
	slug := strings.TrimSuffix(filepath.Base(event.Name), ".md")

	switch {
	case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
		note, err := w.store.readFile(slug)
		if err != nil {
			w.logger.Warn("ignoring unparseable steering note",
				zap.String("slug", slug),
				zap.Error(err))
			return
		}
		w.mu.Lock()
		w.index[slug] = *note
		w.mu.Unlock()
		w.emit(Event{Type: EventTypeUpdated, Slug: slug, Timestamp: time.Now()})

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.mu.Lock()
		_, existed := w.index[slug]
		delete(w.index, slug)
		w.mu.Unlock()
		if existed {
			w.emit(Event{Type: EventTypeRemoved, Slug: slug, Timestamp: time.Now()})
		}
	}
}

// emit sends an event without blocking.
func (w *Watcher) emit(event Event) {
	select {
	case w.events <- event:
	default:
		// Drop the event rather than block the watch loop.
	}
}
