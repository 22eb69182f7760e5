package drag

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"task-board-sync/internal/board"
	"task-board-sync/internal/models"
	"task-board-sync/internal/permission"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeCommitter struct {
	mu    sync.Mutex
	calls []models.TaskStatus
	err   error
	board *board.Store
}

func (f *fakeCommitter) CommitStatusChange(_ context.Context, task models.Task, newStatus, previous models.TaskStatus) error {
	f.mu.Lock()
	f.calls = append(f.calls, newStatus)
	f.mu.Unlock()
	if f.err != nil {
		_ = f.board.Revert(task.ID, previous)
		return f.err
	}
	return nil
}

func (f *fakeCommitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func newBoard() *board.Store {
	b := board.NewStore()
	b.Load([]models.Task{
		{ID: "A", Status: models.StatusTodo, CreatedBy: "U1"},
		{ID: "B", Status: models.StatusTodo, CreatedBy: "U1"},
		{ID: "C", Status: models.StatusInProgress, CreatedBy: "U1"},
	})
	return b
}

func actor(id string, caps ...models.Capability) ActorFunc {
	return func() models.Actor { return models.NewActor(id, id, caps...) }
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestDrop_MovesAndCommits(t *testing.T) {
	b := newBoard()
	fc := &fakeCommitter{board: b}
	c := NewController(b, fc, nil, actor("U1"), quietLogger())

	require.True(t, c.Start("A"))
	require.Equal(t, Dragging, c.State())
	out, err := c.Drop(context.Background(), Target{Status: models.StatusInProgress, BeforeID: "C"})
	require.NoError(t, err)
	require.Equal(t, Moved, out)
	require.Equal(t, Idle, c.State())
	c.Wait()

	require.Equal(t, []string{"A", "C"}, ids(b.Column(models.StatusInProgress)))
	require.Equal(t, []models.TaskStatus{models.StatusInProgress}, fc.calls)
}

func TestDrop_OntoOwnSlotIsNoOp(t *testing.T) {
	cases := []struct {
		name   string
		taskID string
		target Target
	}{
		{"onto itself", "A", Target{Status: models.StatusTodo, BeforeID: "A"}},
		{"before next sibling", "A", Target{Status: models.StatusTodo, BeforeID: "B"}},
		{"column end when last", "B", Target{Status: models.StatusTodo}},
		{"anchor elsewhere when last", "B", Target{Status: models.StatusTodo, BeforeID: "C"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBoard()
			before := b.Snapshot()
			fc := &fakeCommitter{board: b}
			c := NewController(b, fc, nil, actor("U1"), quietLogger())

			require.True(t, c.Start(tc.taskID))
			out, err := c.Drop(context.Background(), tc.target)
			require.NoError(t, err)
			require.Equal(t, NoOp, out)
			c.Wait()

			require.Equal(t, before, b.Snapshot())
			require.Zero(t, fc.count())
		})
	}
}

func TestDrop_ReorderWithinColumnCommits(t *testing.T) {
	b := newBoard()
	fc := &fakeCommitter{board: b}
	c := NewController(b, fc, nil, actor("U1"), quietLogger())

	require.True(t, c.Start("B"))
	out, err := c.Drop(context.Background(), Target{Status: models.StatusTodo, BeforeID: "A"})
	require.NoError(t, err)
	require.Equal(t, Moved, out)
	c.Wait()
	require.Equal(t, []string{"B", "A"}, ids(b.Column(models.StatusTodo)))
}

func TestStart_UnauthorizedStaysIdle(t *testing.T) {
	b := newBoard()
	fc := &fakeCommitter{board: b}
	c := NewController(b, fc, nil, actor("U3"), quietLogger())

	require.False(t, c.Start("A"))
	require.Equal(t, Idle, c.State())
	_, err := c.Drop(context.Background(), Target{Status: models.StatusDone})
	require.ErrorIs(t, err, ErrNotDragging)
	require.Zero(t, fc.count())
	require.Equal(t, models.StatusTodo, must(b.Get("A")).Status)
}

func TestStart_ProjectOwnerMayDragAnyTask(t *testing.T) {
	b := newBoard()
	c := NewController(b, &fakeCommitter{board: b}, nil, actor("U3", models.CapProjectOwner), quietLogger())
	require.True(t, c.Start("A"))
}

func TestStart_RefusesSecondDragAndUnknownTask(t *testing.T) {
	b := newBoard()
	c := NewController(b, &fakeCommitter{board: b}, nil, actor("U1"), quietLogger())
	require.False(t, c.Start("missing"))
	require.True(t, c.Start("A"))
	require.False(t, c.Start("B"))
	active, ok := c.Active()
	require.True(t, ok)
	require.Equal(t, "A", active.ID)

	c.Cancel()
	require.Equal(t, Idle, c.State())
	require.True(t, c.Start("B"))
}

func TestDrop_FailedCommitReverts(t *testing.T) {
	b := newBoard()
	fc := &fakeCommitter{board: b, err: errors.New("HTTP 500")}
	c := NewController(b, fc, nil, actor("U1"), quietLogger())
	var committed error
	c.OnCommitted = func(_ string, err error) { committed = err }

	require.True(t, c.Start("A"))
	_, err := c.Drop(context.Background(), Target{Status: models.StatusDone})
	require.NoError(t, err)
	c.Wait()

	require.EqualError(t, committed, "HTTP 500")
	require.Equal(t, models.StatusTodo, must(b.Get("A")).Status)
	require.Empty(t, b.Column(models.StatusDone))
}

func TestDrop_InvalidStatus(t *testing.T) {
	b := newBoard()
	c := NewController(b, &fakeCommitter{board: b}, nil, actor("U1"), quietLogger())
	require.True(t, c.Start("A"))
	_, err := c.Drop(context.Background(), Target{Status: "ARCHIVED"})
	require.ErrorIs(t, err, board.ErrInvalidStatus)
	require.Equal(t, Idle, c.State())
}

func must(t models.Task, ok bool) models.Task {
	if !ok {
		panic("task missing")
	}
	return t
}

func TestBegin_ReportsWhyDragIsRefused(t *testing.T) {
	b := newBoard()
	b.Upsert(models.Task{ID: "S", Status: models.StatusTodo, CreatedBy: "U1", ParentTaskID: models.StringPtr("A")})

	stranger := NewController(b, &fakeCommitter{board: b}, nil, actor("U9"), quietLogger())
	require.ErrorIs(t, stranger.Begin("A"), permission.ErrNotPermitted)

	c := NewController(b, &fakeCommitter{board: b}, nil, actor("U1"), quietLogger())
	require.ErrorIs(t, c.Begin("missing"), board.ErrTaskNotFound)
	require.ErrorIs(t, c.Begin("S"), ErrSubtask)

	require.NoError(t, c.Begin("A"))
	err := c.Begin("B")
	require.ErrorIs(t, err, ErrBusy)
	require.NotErrorIs(t, err, permission.ErrNotPermitted)
}

func TestDrop_UsesBoardStateAtDropTime(t *testing.T) {
	b := newBoard()
	fc := &fakeCommitter{board: b}
	c := NewController(b, fc, nil, actor("U1"), quietLogger())

	require.True(t, c.Start("A"))
	// another client moved A while it was being dragged
	b.Upsert(models.Task{ID: "A", Status: models.StatusReview, CreatedBy: "U1"})

	out, err := c.Drop(context.Background(), Target{Status: models.StatusReview})
	require.NoError(t, err)
	require.Equal(t, NoOp, out)
	c.Wait()
	require.Zero(t, fc.count())
}
