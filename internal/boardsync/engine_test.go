package boardsync

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"task-board-sync/internal/auth"
	"task-board-sync/internal/board"
	"task-board-sync/internal/database"
	"task-board-sync/internal/drag"
	"task-board-sync/internal/handlers"
	"task-board-sync/internal/models"
	"task-board-sync/internal/mutation"
	"task-board-sync/internal/notify"
	"task-board-sync/internal/realtime"
	"task-board-sync/internal/routes"
	"task-board-sync/internal/testutil"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stack struct {
	srv     *httptest.Server
	db      *gorm.DB
	hub     *realtime.Hub
	puts    atomic.Int32
	failPut atomic.Bool
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// newStack runs the store over an in-memory database seeded with users
// U1 alice, U2 bob, U3 carol, project P managed by U3, tasks A (created by
// U1, assigned to U2) and B (created by U1) in TODO, and subtask S of A.
func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	for _, u := range []models.User{{ID: "U1", Username: "alice"}, {ID: "U2", Username: "bob"}, {ID: "U3", Username: "carol"}} {
		require.NoError(t, db.Create(&u).Error)
	}
	require.NoError(t, db.Create(&models.Project{ID: "P", Name: "Apollo", ManagerID: "U3"}).Error)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, task := range []models.Task{
		{ID: "A", Title: "Ship it", Status: models.StatusTodo, CreatedBy: "U1", AssigneeID: models.StringPtr("U2"), ProjectID: "P"},
		{ID: "B", Title: "Write docs", Status: models.StatusTodo, CreatedBy: "U1", ProjectID: "P"},
		{ID: "S", Title: "Sub", Status: models.StatusTodo, CreatedBy: "U1", ProjectID: "P", ParentTaskID: models.StringPtr("A")},
	} {
		task.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, db.Create(&task).Error)
	}

	s := &stack{db: db, hub: realtime.NewHub()}
	router := routes.SetupRoutes(handlers.New(s.hub, nil, quietLogger()), routes.Options{CORSOrigin: "*"})
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			s.puts.Add(1)
			if s.failPut.Load() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"status":"ERROR","data":null,"message":"database is locked"}`))
				return
			}
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

type recorder struct {
	mu     sync.Mutex
	ok     []string
	errors []string
}

func (r *recorder) Success(msg string) {
	r.mu.Lock()
	r.ok = append(r.ok, msg)
	r.mu.Unlock()
}

func (r *recorder) Info(string) {}

func (r *recorder) Error(msg string, _ error) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}

func (r *recorder) snapshot() (ok, errs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ok...), append([]string(nil), r.errors...)
}

func (s *stack) engine(t *testing.T, userID, username string, fb mutation.Feedback) *Engine {
	t.Helper()
	token, err := auth.GenerateToken(userID, username)
	require.NoError(t, err)
	e, err := New(Options{
		BaseURL:   s.srv.URL,
		ProjectID: "P",
		Token:     token,
		Feedback:  fb,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Load(context.Background()))
	t.Cleanup(e.Wait)
	return e
}

func (s *stack) notifications(t *testing.T, typ models.NotificationType) []models.Notification {
	t.Helper()
	var list []models.Notification
	require.NoError(t, s.db.Where("type = ?", typ).Order("recipient_user_id asc").Find(&list).Error)
	return list
}

func columnIDs(e *Engine, status models.TaskStatus) []string {
	var ids []string
	for _, t := range e.Board().Column(status) {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestMove_CommitsAndNotifiesStakeholders(t *testing.T) {
	s := newStack(t)
	fb := &recorder{}
	e := s.engine(t, "U1", "alice", fb)

	out, err := e.Move(context.Background(), "A", models.StatusDone, "")
	require.NoError(t, err)
	require.Equal(t, drag.Moved, out)
	require.Equal(t, []string{"A"}, columnIDs(e, models.StatusDone))
	e.Wait()

	var stored models.Task
	require.NoError(t, s.db.First(&stored, "id = ?", "A").Error)
	require.Equal(t, models.StatusDone, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	sent := s.notifications(t, models.NotifyTaskStatusChanged)
	require.Len(t, sent, 2)
	require.Equal(t, "U2", sent[0].RecipientUserID)
	require.Equal(t, `alice changed task "Ship it" status from "To Do" to "Done" (You are the Assignee)`, sent[0].Message)
	require.Equal(t, "U3", sent[1].RecipientUserID)
	require.Equal(t, `alice changed task "Ship it" status from "To Do" to "Done" (You are the product-owner)`, sent[1].Message)
	require.Equal(t, "Apollo", sent[1].ProjectName)

	ok, errs := fb.snapshot()
	require.Equal(t, []string{"Task moved to Done"}, ok)
	require.Empty(t, errs)
}

func TestMove_ServerErrorRevertsBoard(t *testing.T) {
	s := newStack(t)
	s.failPut.Store(true)
	fb := &recorder{}
	e := s.engine(t, "U1", "alice", fb)

	var committed error
	done := make(chan struct{})
	e.Controller().OnCommitted = func(_ string, err error) {
		committed = err
		close(done)
	}

	out, err := e.Move(context.Background(), "A", models.StatusDone, "")
	require.NoError(t, err)
	require.Equal(t, drag.Moved, out)
	<-done
	e.Wait()

	require.ErrorIs(t, committed, mutation.ErrCommitFailed)
	a, _ := e.Board().Get("A")
	require.Equal(t, models.StatusTodo, a.Status)
	require.Empty(t, columnIDs(e, models.StatusDone))
	// restored at the end of its column
	require.Equal(t, []string{"B", "A"}, columnIDs(e, models.StatusTodo))

	require.Empty(t, s.notifications(t, models.NotifyTaskStatusChanged))
	_, errs := fb.snapshot()
	require.Equal(t, []string{"Failed to update task status"}, errs)
}

func TestMove_DropOnOwnSlotIsNoOp(t *testing.T) {
	s := newStack(t)
	e := s.engine(t, "U1", "alice", &recorder{})
	before := columnIDs(e, models.StatusTodo)

	out, err := e.Move(context.Background(), "A", models.StatusTodo, "A")
	require.NoError(t, err)
	require.Equal(t, drag.NoOp, out)
	e.Wait()

	require.Equal(t, before, columnIDs(e, models.StatusTodo))
	require.Zero(t, s.puts.Load())
	require.Equal(t, drag.Idle, e.Controller().State())
}

func TestMove_StrangerIsRefused(t *testing.T) {
	s := newStack(t)
	e := s.engine(t, "U9", "mallory", &recorder{})

	out, err := e.Move(context.Background(), "A", models.StatusDone, "")
	require.ErrorIs(t, err, ErrDragRefused)
	require.ErrorIs(t, err, mutation.ErrNotPermitted)
	require.Equal(t, drag.NoOp, out)
	e.Wait()

	a, _ := e.Board().Get("A")
	require.Equal(t, models.StatusTodo, a.Status)
	require.Zero(t, s.puts.Load())
}

func TestMove_WhileAnotherDragIsActive(t *testing.T) {
	s := newStack(t)
	e := s.engine(t, "U1", "alice", &recorder{})
	require.True(t, e.Controller().Start("B"))

	out, err := e.Move(context.Background(), "A", models.StatusDone, "")
	require.ErrorIs(t, err, drag.ErrBusy)
	require.NotErrorIs(t, err, mutation.ErrNotPermitted)
	require.Equal(t, drag.NoOp, out)
	require.Zero(t, s.puts.Load())
}

func TestMove_ProductOwnerMayDragAndIsNotNotified(t *testing.T) {
	s := newStack(t)
	e := s.engine(t, "U3", "carol", &recorder{})
	require.True(t, e.Session().Actor().Has(models.CapProjectOwner))

	out, err := e.Move(context.Background(), "B", models.StatusInProgress, "")
	require.NoError(t, err)
	require.Equal(t, drag.Moved, out)
	e.Wait()

	sent := s.notifications(t, models.NotifyTaskStatusChanged)
	require.Len(t, sent, 1)
	require.Equal(t, "U1", sent[0].RecipientUserID)
	require.Contains(t, sent[0].Message, "(You are the Creator)")
}

func TestCheckOverdue_SentOnceThenClearedOnDone(t *testing.T) {
	s := newStack(t)
	past := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.db.Model(&models.Task{}).Where("id = ?", "A").Update("due_date", past).Error)
	e := s.engine(t, "U1", "alice", &recorder{})

	settled, err := e.CheckOverdue(context.Background())
	require.NoError(t, err)
	require.Len(t, settled, 3)
	var recipients []string
	for _, r := range settled {
		require.Equal(t, notify.Fulfilled, r.Status)
		require.False(t, r.Duplicate)
		recipients = append(recipients, r.RecipientUserID)
	}
	sort.Strings(recipients)
	require.Equal(t, []string{"U1", "U2", "U3"}, recipients)

	settled, err = e.CheckOverdue(context.Background())
	require.NoError(t, err)
	for _, r := range settled {
		require.Equal(t, notify.Fulfilled, r.Status)
		require.True(t, r.Duplicate)
	}
	overdue := s.notifications(t, models.NotifyTaskOverdue)
	require.Len(t, overdue, 3)
	require.Equal(t, models.SystemActorID, overdue[0].ActorUserID)
	require.Equal(t, `Task "Ship it" is now overdue (You are the Creator)`, overdue[0].Message)

	_, err = e.Move(context.Background(), "A", models.StatusDone, "")
	require.NoError(t, err)
	e.Wait()
	require.Empty(t, s.notifications(t, models.NotifyTaskOverdue))
}

func TestDelete_RemovesSubtasksFirst(t *testing.T) {
	s := newStack(t)
	e := s.engine(t, "U1", "alice", &recorder{})

	require.NoError(t, e.Delete(context.Background(), "A"))
	e.Wait()

	var count int64
	require.NoError(t, s.db.Model(&models.Task{}).Where("id IN ?", []string{"A", "S"}).Count(&count).Error)
	require.Zero(t, count)
	_, onBoard := e.Board().Get("A")
	require.False(t, onBoard)
	_, onBoard = e.Board().Get("S")
	require.False(t, onBoard)

	sent := s.notifications(t, models.NotifyTaskDeleted)
	require.Len(t, sent, 2)
	require.Equal(t, `alice deleted task "Ship it" (You are the Assignee)`, sent[0].Message)
}

func TestAssign_UsesLoadedNames(t *testing.T) {
	s := newStack(t)
	e := s.engine(t, "U1", "alice", &recorder{})

	saved, err := e.Assign(context.Background(), "B", "U2")
	require.NoError(t, err)
	require.Equal(t, "U2", saved.Assignee())
	e.Wait()

	sent := s.notifications(t, models.NotifyTaskAssigned)
	require.Len(t, sent, 2)
	require.Equal(t, `alice assigned task "Write docs" to bob (You are the Assignee)`, sent[0].Message)
	require.Equal(t, "U3", sent[1].RecipientUserID)
}

func TestSubscribe_AppliesOtherUsersChanges(t *testing.T) {
	s := newStack(t)
	alice := s.engine(t, "U1", "alice", &recorder{})
	bob := s.engine(t, "U2", "bob", &recorder{})

	inbox := make(chan models.Notification, 4)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- bob.Subscribe(ctx, func(n models.Notification) { inbox <- n })
	}()
	require.Eventually(t, func() bool {
		return s.hub.Subscribers(realtime.ProjectTopic("P")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := alice.Move(context.Background(), "A", models.StatusReview, "")
	require.NoError(t, err)
	alice.Wait()

	require.Eventually(t, func() bool {
		a, ok := bob.Board().Get("A")
		return ok && a.Status == models.StatusReview
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case n := <-inbox:
		require.Equal(t, models.NotifyTaskStatusChanged, n.Type)
		require.Equal(t, "U2", n.RecipientUserID)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification pushed")
	}

	cancel()
	require.NoError(t, <-errc)
}

func TestLogout_ClearsSessionAndBoard(t *testing.T) {
	s := newStack(t)
	e := s.engine(t, "U1", "alice", &recorder{})
	_, ok := e.Session().UserNames.Get("U2")
	require.True(t, ok)

	e.Logout()
	require.False(t, e.Session().Active())
	require.Zero(t, e.Board().Len())
	_, ok = e.Session().UserNames.Get("U2")
	require.False(t, ok)

	_, err := e.Move(context.Background(), "A", models.StatusDone, "")
	require.ErrorIs(t, err, board.ErrTaskNotFound)
}
