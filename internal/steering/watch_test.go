package steering

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T) (*Store, *Watcher) {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	watcher, err := NewWatcher(store, nil)
	require.NoError(t, err)
	return store, watcher
}

// waitForEvent drains the event channel until a matching event arrives.
// Filesystem writes can produce both create and write notifications, so
// duplicates for the same slug are expected.
func waitForEvent(t *testing.T, events <-chan Event, wantType EventType, wantSlug string) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type == wantType && event.Slug == wantSlug {
				return event
			}
		case <-deadline:
			t.Fatalf("timeout waiting for event type=%d slug=%q", wantType, wantSlug)
			return Event{}
		}
	}
}

func TestNewWatcher_RequiresStore(t *testing.T) {
	_, err := NewWatcher(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")
}

func TestWatcher_SeedsExistingNotes(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	base := time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)
	_, err = store.Write(&Note{Title: "older note", Generated: base})
	require.NoError(t, err)
	_, err = store.Write(&Note{Title: "newer note", Generated: base.Add(time.Hour)})
	require.NoError(t, err)

	watcher, err := NewWatcher(store, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	notes := watcher.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, "newer-note", notes[0].Slug)
	assert.Equal(t, "older-note", notes[1].Slug)

	note, ok := watcher.Get("older-note")
	assert.True(t, ok)
	assert.Equal(t, "older note", note.Title)
}

func TestWatcher_IndexesNewNote(t *testing.T) {
	store, watcher := newTestWatcher(t)

	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	// Give the watcher time to initialize
	time.Sleep(50 * time.Millisecond)

	slug, err := store.Write(&Note{
		Title: "Fresh Optimization",
		Body:  "batching reduces round trips",
	})
	require.NoError(t, err)

	event := waitForEvent(t, watcher.Events(), EventTypeUpdated, slug)
	assert.False(t, event.Timestamp.IsZero())

	note, ok := watcher.Get(slug)
	require.True(t, ok)
	assert.Equal(t, "Fresh Optimization", note.Title)
	assert.Equal(t, "batching reduces round trips", note.Body)
}

func TestWatcher_RemovesDeletedNote(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	slug, err := store.Write(&Note{Title: "short lived"})
	require.NoError(t, err)

	watcher, err := NewWatcher(store, nil)
	require.NoError(t, err)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(store.Dir(), slug+".md")))

	waitForEvent(t, watcher.Events(), EventTypeRemoved, slug)

	_, ok := watcher.Get(slug)
	assert.False(t, ok)
	assert.Empty(t, watcher.Notes())
}

func TestWatcher_SkipsNonMarkdownAndUnparseable(t *testing.T) {
	store, watcher := newTestWatcher(t)

	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "scratch.txt"), []byte("ignore"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "bad.md"), []byte("no front matter"), 0o600))

	slug, err := store.Write(&Note{Title: "good note"})
	require.NoError(t, err)
	waitForEvent(t, watcher.Events(), EventTypeUpdated, slug)

	_, ok := watcher.Get("bad")
	assert.False(t, ok)
	_, ok = watcher.Get("scratch")
	assert.False(t, ok)
	assert.Len(t, watcher.Notes(), 1)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	_, watcher := newTestWatcher(t)

	require.NoError(t, watcher.Start(context.Background()))

	watcher.Stop()
	watcher.Stop()
}

func TestWatcher_ContextCancelStopsProcessing(t *testing.T) {
	store, watcher := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, watcher.Start(ctx))
	defer watcher.Stop()

	cancel()
	time.Sleep(100 * time.Millisecond)

	_, err := store.Write(&Note{Title: "after cancel"})
	require.NoError(t, err)

	select {
	case event := <-watcher.Events():
		t.Fatalf("unexpected event after cancel: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}
