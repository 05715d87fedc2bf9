// Package memory provides an in-memory implementation of runhistory.Store
// for lightweight deployments. Records are lost when the process restarts.
// Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/neuroforge-dev/kernel/pkg/runhistory"
)

// entry holds a stored run record and its LRU position.
type entry struct {
	rec     *runhistory.RunRecord
	lruElem *list.Element
}

// Store is an in-memory runhistory.Store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements runhistory.Store at compile time.
var _ runhistory.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the oldest entry is evicted when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Save persists a run record in memory.
func (s *Store) Save(_ context.Context, rec *runhistory.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rec.ID]; exists {
		return runhistory.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(rec.ID)
	s.entries[rec.ID] = &entry{rec: rec, lruElem: elem}

	return nil
}

// Get retrieves a run record by ID and marks it most recently used.
func (s *Store) Get(_ context.Context, id string) (*runhistory.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, runhistory.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.rec, nil
}

// List returns up to limit run records, newest first. limit <= 0 means
// no limit.
func (s *Store) List(_ context.Context, limit int) ([]*runhistory.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*runhistory.RunRecord, 0, len(s.entries))
	for _, e := range s.entries {
		recs = append(recs, e.rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	return recs, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
