package board

import (
	"testing"

	"task-board-sync/internal/models"

	"github.com/stretchr/testify/require"
)

func task(id string, status models.TaskStatus) models.Task {
	return models.Task{ID: id, Title: "Task " + id, Status: status, CreatedBy: "u1", ProjectID: "P"}
}

func ids(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func seeded() *Store {
	s := NewStore()
	sub := task("S1", models.StatusTodo)
	sub.ParentTaskID = models.StringPtr("A")
	s.Load([]models.Task{
		task("A", models.StatusTodo),
		task("B", models.StatusTodo),
		task("C", models.StatusInProgress),
		sub,
		task("D", models.StatusTodo),
		task("E", models.StatusDone),
	})
	return s
}

func TestLoad_ColumnsExcludeSubtasks(t *testing.T) {
	s := seeded()
	require.Equal(t, []string{"A", "B", "D"}, ids(s.Column(models.StatusTodo)))
	require.Equal(t, []string{"C"}, ids(s.Column(models.StatusInProgress)))
	require.Empty(t, s.Column(models.StatusReview))
	require.Equal(t, 6, s.Len())
	require.Equal(t, []string{"S1"}, ids(s.Subtasks("A")))
}

func TestLoad_DeduplicatesIDs(t *testing.T) {
	s := NewStore()
	first := task("A", models.StatusTodo)
	second := task("A", models.StatusDone)
	s.Load([]models.Task{first, task("B", models.StatusTodo), second})
	require.Equal(t, 2, s.Len())
	got, ok := s.Get("A")
	require.True(t, ok)
	require.Equal(t, models.StatusDone, got.Status)
}

func TestMoveTask_CrossColumnAppendsAtColumnEnd(t *testing.T) {
	s := seeded()
	prev, err := s.MoveTask("B", models.StatusInProgress, "")
	require.NoError(t, err)
	require.Equal(t, models.StatusTodo, prev)

	require.Equal(t, []string{"A", "D"}, ids(s.Column(models.StatusTodo)))
	require.Equal(t, []string{"C", "B"}, ids(s.Column(models.StatusInProgress)))
	require.Equal(t, []string{"E"}, ids(s.Column(models.StatusDone)))
}

func TestMoveTask_InsertBeforeAnchor(t *testing.T) {
	s := seeded()
	_, err := s.MoveTask("E", models.StatusTodo, "B")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "E", "B", "D"}, ids(s.Column(models.StatusTodo)))
	require.Empty(t, s.Column(models.StatusDone))
}

func TestMoveTask_AnchorOutsideTargetColumnFallsBackToEnd(t *testing.T) {
	s := seeded()
	_, err := s.MoveTask("A", models.StatusDone, "C")
	require.NoError(t, err)
	require.Equal(t, []string{"E", "A"}, ids(s.Column(models.StatusDone)))
	require.Equal(t, []string{"C"}, ids(s.Column(models.StatusInProgress)))
}

func TestMoveTask_EmptyColumn(t *testing.T) {
	s := seeded()
	_, err := s.MoveTask("C", models.StatusReview, "")
	require.NoError(t, err)
	require.Equal(t, []string{"C"}, ids(s.Column(models.StatusReview)))
}

func TestMoveTask_ReorderWithinColumn(t *testing.T) {
	s := seeded()
	_, err := s.MoveTask("D", models.StatusTodo, "A")
	require.NoError(t, err)
	require.Equal(t, []string{"D", "A", "B"}, ids(s.Column(models.StatusTodo)))
}

func TestMoveTask_Errors(t *testing.T) {
	s := seeded()
	_, err := s.MoveTask("missing", models.StatusDone, "")
	require.ErrorIs(t, err, ErrTaskNotFound)

	_, err = s.MoveTask("A", models.TaskStatus("ARCHIVED"), "")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.Equal(t, []string{"A", "B", "D"}, ids(s.Column(models.StatusTodo)))
}

func TestMoveTask_EveryStatusMembership(t *testing.T) {
	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			s := NewStore()
			s.Load([]models.Task{task("X", from), task("Y", to), task("Z", from)})
			prev, err := s.MoveTask("X", to, "")
			require.NoError(t, err)
			require.Equal(t, from, prev)
			require.Contains(t, ids(s.Column(to)), "X")
			if from != to {
				require.NotContains(t, ids(s.Column(from)), "X")
			}
		}
	}
}

func membership(s *Store) map[models.TaskStatus][]string {
	out := map[models.TaskStatus][]string{}
	for st, col := range s.Columns() {
		out[st] = ids(col)
	}
	return out
}

func TestRevert_RestoresMembership(t *testing.T) {
	s := seeded()
	before := membership(s)

	prev, err := s.MoveTask("D", models.StatusDone, "E")
	require.NoError(t, err)
	require.NoError(t, s.Revert("D", prev))

	require.Equal(t, before, membership(s))
}

func TestRevert_PlacesTaskAtColumnEnd(t *testing.T) {
	s := seeded()
	prev, err := s.MoveTask("A", models.StatusReview, "")
	require.NoError(t, err)
	require.NoError(t, s.Revert("A", prev))
	require.Equal(t, []string{"B", "D", "A"}, ids(s.Column(models.StatusTodo)))
	require.ErrorIs(t, s.Revert("missing", models.StatusTodo), ErrTaskNotFound)
}

func TestUpsert(t *testing.T) {
	s := seeded()

	updated := task("B", models.StatusTodo)
	updated.Title = "renamed"
	prev, existed := s.Upsert(updated)
	require.True(t, existed)
	require.Equal(t, "Task B", prev.Title)
	require.Equal(t, []string{"A", "B", "D"}, ids(s.Column(models.StatusTodo)))

	moved := task("A", models.StatusDone)
	_, existed = s.Upsert(moved)
	require.True(t, existed)
	require.Equal(t, []string{"E", "A"}, ids(s.Column(models.StatusDone)))

	_, existed = s.Upsert(task("N", models.StatusReview))
	require.False(t, existed)
	require.Equal(t, []string{"N"}, ids(s.Column(models.StatusReview)))
}

func TestPositionAndRemove(t *testing.T) {
	s := seeded()
	st, idx, ok := s.Position("D")
	require.True(t, ok)
	require.Equal(t, models.StatusTodo, st)
	require.Equal(t, 2, idx)

	_, _, ok = s.Position("S1")
	require.False(t, ok, "subtasks have no column position")

	removed, ok := s.Remove("A")
	require.True(t, ok)
	require.Equal(t, "A", removed.ID)
	_, ok = s.Get("A")
	require.False(t, ok)
}

func TestDropTask_SameSlotLeavesBoardAlone(t *testing.T) {
	s := seeded()

	for _, before := range []string{"A", "B"} {
		prior, moved, err := s.DropTask("A", models.StatusTodo, before)
		require.NoError(t, err)
		require.False(t, moved, "before %q", before)
		require.Equal(t, models.StatusTodo, prior.Status)
	}
	// D is last, so an empty or foreign anchor keeps it there
	_, moved, err := s.DropTask("D", models.StatusTodo, "C")
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, []string{"A", "B", "D"}, ids(s.Column(models.StatusTodo)))
}

func TestDropTask_MovesAndReturnsPriorCopy(t *testing.T) {
	s := seeded()

	prior, moved, err := s.DropTask("B", models.StatusInProgress, "C")
	require.NoError(t, err)
	require.True(t, moved)
	require.Equal(t, models.StatusTodo, prior.Status)
	require.Equal(t, []string{"B", "C"}, ids(s.Column(models.StatusInProgress)))

	_, _, err = s.DropTask("missing", models.StatusDone, "")
	require.ErrorIs(t, err, ErrTaskNotFound)
	_, _, err = s.DropTask("A", "ARCHIVED", "")
	require.ErrorIs(t, err, ErrInvalidStatus)
}
