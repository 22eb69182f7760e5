// Package board holds the in-memory projection of a project's tasks into
// status columns.
package board

import (
	"errors"
	"fmt"
	"sync"

	"task-board-sync/internal/models"
)

var (
	ErrTaskNotFound  = errors.New("task not on board")
	ErrInvalidStatus = errors.New("invalid status")
)

// Store is the ordered board projection. A task's column is derived from its
// status and parent; the store never holds two entries with the same id.
type Store struct {
	mu  sync.Mutex
	seq sequence
}

// NewStore returns an empty board.
func NewStore() *Store {
	return &Store{}
}

// Load replaces the whole projection. Later duplicates of an id overwrite the
// earlier entry in place.
func (s *Store) Load(tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := sequence{items: make([]models.Task, 0, len(tasks))}
	for _, t := range tasks {
		if i := next.indexOf(t.ID); i >= 0 {
			next.replace(i, t)
			continue
		}
		next.items = append(next.items, t)
	}
	s.seq = next
}

// MoveTask takes the task out of its current slot and re-inserts it with
// newStatus, before insertBeforeID when that task sits in the target column,
// otherwise at the column end. It returns the status the task had before.
func (s *Store) MoveTask(taskID string, newStatus models.TaskStatus, insertBeforeID string) (models.TaskStatus, error) {
	if !newStatus.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, err := s.move(taskID, newStatus, insertBeforeID)
	if err != nil {
		return "", err
	}
	return prior.Status, nil
}

// DropTask is MoveTask for a finished drag. Under one lock it leaves the task
// alone when the drop would not change its slot, otherwise moves it. It
// returns the copy held before the drop and whether the board changed.
func (s *Store) DropTask(taskID string, newStatus models.TaskStatus, insertBeforeID string) (models.Task, bool, error) {
	if !newStatus.Valid() {
		return models.Task{}, false, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.seq.indexOf(taskID)
	if i < 0 {
		return models.Task{}, false, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if s.sameSlot(s.seq.at(i), newStatus, insertBeforeID) {
		return s.seq.at(i), false, nil
	}
	prior, err := s.move(taskID, newStatus, insertBeforeID)
	if err != nil {
		return models.Task{}, false, err
	}
	return prior, true, nil
}

func (s *Store) move(taskID string, newStatus models.TaskStatus, insertBeforeID string) (models.Task, error) {
	t, ok := s.seq.remove(taskID)
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	prior := t
	t.Status = newStatus

	idx := -1
	if insertBeforeID != "" && insertBeforeID != taskID {
		if a := s.seq.indexOf(insertBeforeID); a >= 0 && inColumn(s.seq.at(a), newStatus) {
			idx = a
		}
	}
	if idx < 0 {
		idx = s.seq.columnEnd(newStatus)
	}
	s.seq.insertAt(idx, t)
	return prior, nil
}

// sameSlot reports whether moving t to status before insertBeforeID would
// leave it where it is. An anchor outside the column means the column end.
func (s *Store) sameSlot(t models.Task, status models.TaskStatus, insertBeforeID string) bool {
	if !inColumn(t, status) {
		return false
	}
	if insertBeforeID == t.ID {
		return true
	}
	col := s.column(status)
	idx, anchor := -1, -1
	for i, c := range col {
		switch c.ID {
		case t.ID:
			idx = i
		case insertBeforeID:
			anchor = i
		}
	}
	if anchor < 0 {
		return idx == len(col)-1
	}
	return anchor == idx+1
}

// Revert restores a task's status after a failed commit. The task goes to the
// end of the restored column.
func (s *Store) Revert(taskID string, previous models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.seq.remove(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	t.Status = previous
	s.seq.insertAt(s.seq.columnEnd(previous), t)
	return nil
}

// Upsert replaces the task in place, or appends it to the end of its column
// when it is new. It returns the previous copy.
func (s *Store) Upsert(t models.Task) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.seq.indexOf(t.ID); i >= 0 {
		prev := s.seq.at(i)
		if prev.Status == t.Status || t.IsSubtask() {
			s.seq.replace(i, t)
			return prev, true
		}
		// status changed remotely: the task leaves its old slot
		s.seq.remove(t.ID)
		s.seq.insertAt(s.seq.columnEnd(t.Status), t)
		return prev, true
	}
	s.seq.insertAt(s.seq.columnEnd(t.Status), t)
	return models.Task{}, false
}

// Remove drops a task from the board.
func (s *Store) Remove(taskID string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.remove(taskID)
}

// Get returns a copy of the task.
func (s *Store) Get(taskID string) (models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.seq.indexOf(taskID)
	if i < 0 {
		return models.Task{}, false
	}
	return s.seq.at(i), true
}

// Column returns the top-level tasks with the given status in board order.
func (s *Store) Column(status models.TaskStatus) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.column(status)
}

func (s *Store) column(status models.TaskStatus) []models.Task {
	var out []models.Task
	for _, t := range s.seq.items {
		if inColumn(t, status) {
			out = append(out, t)
		}
	}
	return out
}

// Columns returns every column keyed by status.
func (s *Store) Columns() map[models.TaskStatus][]models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.TaskStatus][]models.Task, len(models.Statuses))
	for _, st := range models.Statuses {
		out[st] = s.column(st)
	}
	return out
}

// Position reports the column and index of a top-level task.
func (s *Store) Position(taskID string) (models.TaskStatus, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.seq.indexOf(taskID)
	if i < 0 {
		return "", -1, false
	}
	t := s.seq.at(i)
	if t.IsSubtask() {
		return t.Status, -1, false
	}
	for idx, c := range s.column(t.Status) {
		if c.ID == taskID {
			return t.Status, idx, true
		}
	}
	return t.Status, -1, false
}

// Subtasks returns the tasks whose parent is parentID.
func (s *Store) Subtasks(parentID string) []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.seq.items {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentID {
			out = append(out, t)
		}
	}
	return out
}

// Snapshot returns the whole ordered projection, subtasks included.
func (s *Store) Snapshot() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.snapshot()
}

// Len is the number of tasks held, subtasks included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.len()
}
