package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an update or move names an id that is not in
// the store. Callers skip the fan-out broadcast and report the failure to the
// originating session only.
var ErrNotFound = errors.New("task not found")

// ErrInvalidStatus is returned when a move names a status outside the board
// columns.
var ErrInvalidStatus = errors.New("invalid status")

// Engine translates operation requests into store mutations and produces the
// canonical post-mutation state for broadcast.
type Engine struct {
	store *Store
	now   func() time.Time
	newID func() string
}

// NewEngine returns an engine that mutates the given store.
func NewEngine(store *Store) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Create assigns a fresh id and creation timestamp, appends the task, and
// returns it. Create never fails: title emptiness and attachment size are
// client-side concerns, and a missing status is stored as-is rather than
// defaulted.
func (e *Engine) Create(req TaskCreate) Task {
	t := Task{
		ID:          e.newID(),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		Category:    req.Category,
		Attachments: req.Attachments,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	e.store.Append(t)
	return t.Clone()
}

// Update merges the non-nil fields of upd over the stored task and returns
// the result. Id and creation timestamp survive any merge.
func (e *Engine) Update(upd TaskUpdate) (Task, error) {
	t, ok := e.store.MergeUpdate(upd)
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// Move replaces the task's status. The engine is the authority for this
// field, so values outside the board columns are rejected.
func (e *Engine) Move(req TaskMove) (Task, error) {
	if !ValidStatus(req.NewStatus) {
		return Task{}, ErrInvalidStatus
	}
	t, ok := e.store.SetStatus(req.TaskID, req.NewStatus)
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

// Delete removes the task and returns its id unconditionally: deleting an
// absent id is harmless and the deletion broadcast goes out either way.
func (e *Engine) Delete(id string) string {
	e.store.Remove(id)
	return id
}

// Snapshot returns the full ordered task list for a sync response.
func (e *Engine) Snapshot() []Task {
	return e.store.Snapshot()
}
