package domain

import "sync"

// Store holds the authoritative ordered task collection. Iteration order is
// insertion order; nothing re-sorts by status or any other key. Mutations are
// funneled through the hub's single event loop, but the lock lets read-only
// callers (the REST snapshot endpoint) take a consistent copy without
// entering that loop.
type Store struct {
	mu    sync.RWMutex
	tasks []Task
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a task at the end. The caller guarantees id uniqueness by
// always generating a fresh one.
func (s *Store) Append(t Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
}

// MergeUpdate overlays the non-nil fields of upd on the stored task and
// returns the post-merge copy. The second return is false when the id is
// unknown.
func (s *Store) MergeUpdate(upd TaskUpdate) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(upd.ID)
	if i < 0 {
		return Task{}, false
	}
	t := &s.tasks[i]
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.Category != nil {
		t.Category = *upd.Category
	}
	if upd.Attachments != nil {
		t.Attachments = *upd.Attachments
	}
	return t.Clone(), true
}

// SetStatus replaces only the status field and returns the updated copy, or
// false when the id is unknown.
func (s *Store) SetStatus(id, status string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return Task{}, false
	}
	s.tasks[i].Status = status
	return s.tasks[i].Clone(), true
}

// Remove drops the task with the given id. Removing an absent id is a no-op;
// the return reports whether anything was dropped.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findIndex(id)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return true
}

// Upsert replaces the task with a matching id in place, or appends when the
// id is new. Used when applying mutation results from peer instances.
func (s *Store) Upsert(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.findIndex(t.ID); i >= 0 {
		s.tasks[i] = t
		return
	}
	s.tasks = append(s.tasks, t)
}

// Snapshot returns a copy of the current tasks in insertion order. The
// result shares no storage with the store, so the caller may serialize or
// hold it while mutations continue.
func (s *Store) Snapshot() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Len reports the current task count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) findIndex(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
