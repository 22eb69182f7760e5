package board

import "task-board-sync/internal/models"

// sequence is the index-addressed ordering behind the board. Every operation
// is O(n); boards are small.
type sequence struct {
	items []models.Task
}

func (s *sequence) len() int { return len(s.items) }

func (s *sequence) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *sequence) at(i int) models.Task { return s.items[i] }

// remove deletes the task with id and returns it.
func (s *sequence) remove(id string) (models.Task, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return models.Task{}, false
	}
	t := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return t, true
}

// insertAt places t at index i; i == len appends.
func (s *sequence) insertAt(i int, t models.Task) {
	if i < 0 || i > len(s.items) {
		i = len(s.items)
	}
	s.items = append(s.items, models.Task{})
	copy(s.items[i+1:], s.items[i:])
	s.items[i] = t
}

func (s *sequence) replace(i int, t models.Task) { s.items[i] = t }

// columnEnd is the index right after the last member of column status, or
// the end of the sequence when the column is empty.
func (s *sequence) columnEnd(status models.TaskStatus) int {
	last := -1
	for i := range s.items {
		if inColumn(s.items[i], status) {
			last = i
		}
	}
	if last < 0 {
		return len(s.items)
	}
	return last + 1
}

func (s *sequence) snapshot() []models.Task {
	out := make([]models.Task, len(s.items))
	copy(out, s.items)
	return out
}

func inColumn(t models.Task, status models.TaskStatus) bool {
	return t.Status == status && !t.IsSubtask()
}
