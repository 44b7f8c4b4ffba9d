package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Fetcher retrieves the authoritative history list from the backend.
type Fetcher interface {
	History(ctx context.Context) ([]EntryPatch, error)
}

// Store combines the local cache with the remote history endpoint.
//
// Lifecycle per view load:
//
//	entries := store.Hydrate()          // local only, instant
//	entries  = store.Refresh(ctx)       // local + remote merge, persisted
//
// Remote failures are logged and degrade to local-only data; they never
// propagate out of the store.
type Store struct {
	cache  Cache
	remote Fetcher
	limit  int
	log    *zap.Logger
}

func NewStore(cache Cache, remote Fetcher, limit int, log *zap.Logger) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{cache: cache, remote: remote, limit: limit, log: log}
}

// Hydrate returns the locally cached entries. A missing or unreadable cache
// yields an empty list.
func (s *Store) Hydrate() []Entry {
	entries, err := s.cache.Load()
	if err != nil {
		s.log.Warn("failed to load history cache", zap.Error(err))
		return nil
	}
	return entries
}

// Refresh merges the local cache with a fresh remote fetch, persists the
// trimmed result, and returns the merged view sorted newest first.
//
// On remote failure the merge falls back to local-only data and nothing is
// persisted.
func (s *Store) Refresh(ctx context.Context) []Entry {
	local := s.Hydrate()

	remote, err := s.remote.History(ctx)
	if err != nil {
		s.log.Warn("history fetch failed, using cached entries only", zap.Error(err))
		return Merge(local, nil)
	}

	merged := Merge(local, remote)
	if err := s.cache.Save(Trim(merged, s.limit)); err != nil {
		s.log.Warn("failed to persist history cache", zap.Error(err))
	}
	return merged
}

// RecordSubmission writes an optimistic placeholder entry for a job that was
// just submitted, before the backend has confirmed it. Counts start at zero
// and are reconciled on the next Refresh.
func (s *Store) RecordSubmission(annotationID, title string, at time.Time) {
	if annotationID == "" {
		return
	}
	local := s.Hydrate()
	entries := Merge(append(local, Entry{
		AnnotationID: annotationID,
		Title:        title,
		CreatedAt:    at,
	}), nil)
	if err := s.cache.Save(Trim(entries, s.limit)); err != nil {
		s.log.Warn("failed to record submission in history cache", zap.Error(err))
	}
}
