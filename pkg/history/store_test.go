package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	entries []EntryPatch
	err     error
	calls   int
}

func (f *stubFetcher) History(context.Context) ([]EntryPatch, error) {
	f.calls++
	return f.entries, f.err
}

func newFileCache(t *testing.T) *FileCache {
	t.Helper()
	return NewFileCache(filepath.Join(t.TempDir(), "history.json"), DefaultLimit)
}

func TestFileCache_RoundTrip(t *testing.T) {
	c := newFileCache(t)

	want := []Entry{
		{AnnotationID: "A", Title: "first", CreatedAt: day(2), NodeCount: 5, EdgeCount: 2},
		{AnnotationID: "B", CreatedAt: day(1)},
	}
	require.NoError(t, c.Save(want))

	got, err := c.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileCache_MissingFileLoadsEmpty(t *testing.T) {
	c := NewFileCache(filepath.Join(t.TempDir(), "does-not-exist.json"), 0)
	got, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileCache_MalformedFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	c := NewFileCache(path, 0)
	got, err := c.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileCache_SaveEnforcesLimit(t *testing.T) {
	c := NewFileCache(filepath.Join(t.TempDir(), "history.json"), 3)

	var entries []Entry
	for i := 5; i >= 1; i-- {
		entries = append(entries, Entry{AnnotationID: string(rune('a' + i)), CreatedAt: day(i)})
	}
	require.NoError(t, c.Save(entries))

	got, err := c.Load()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestStore_RefreshMergesAndPersists(t *testing.T) {
	cache := newFileCache(t)
	require.NoError(t, cache.Save([]Entry{
		{AnnotationID: "A", CreatedAt: day(1)},
	}))

	remote := &stubFetcher{entries: []EntryPatch{
		{AnnotationID: "A", CreatedAt: timeptr(day(2)), Title: strptr("Updated")},
		{AnnotationID: "B", CreatedAt: timeptr(day(3))},
	}}
	store := NewStore(cache, remote, DefaultLimit, nil)

	got := store.Refresh(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].AnnotationID)
	assert.Equal(t, "A", got[1].AnnotationID)
	assert.Equal(t, "Updated", got[1].Title)

	// The merged view is persisted for the next load.
	persisted, err := cache.Load()
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
	assert.Equal(t, "B", persisted[0].AnnotationID)
}

func TestStore_RefreshFallsBackToLocalOnFetchError(t *testing.T) {
	cache := newFileCache(t)
	store := NewStore(cache, &stubFetcher{err: errors.New("boom")}, DefaultLimit, nil)

	got := store.Refresh(context.Background())
	assert.Empty(t, got)

	require.NoError(t, cache.Save([]Entry{{AnnotationID: "A", CreatedAt: day(1)}}))
	got = store.Refresh(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].AnnotationID)
}

func TestStore_RecordSubmissionWritesPlaceholder(t *testing.T) {
	cache := newFileCache(t)
	store := NewStore(cache, &stubFetcher{}, DefaultLimit, nil)

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	store.RecordSubmission("new-job", "my graph", now)

	got := store.Hydrate()
	require.Len(t, got, 1)
	assert.Equal(t, "new-job", got[0].AnnotationID)
	assert.Equal(t, "my graph", got[0].Title)
	assert.Zero(t, got[0].NodeCount)
	assert.Zero(t, got[0].EdgeCount)
}

func TestStore_RecordSubmissionIgnoresEmptyID(t *testing.T) {
	cache := newFileCache(t)
	store := NewStore(cache, &stubFetcher{}, DefaultLimit, nil)

	store.RecordSubmission("", "untitled", time.Now())
	assert.Empty(t, store.Hydrate())
}
