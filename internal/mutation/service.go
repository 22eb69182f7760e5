// Package mutation commits board changes to the remote store, rolls the board
// back when the store refuses, and fans successful changes out as
// notifications.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"task-board-sync/internal/board"
	"task-board-sync/internal/models"
	"task-board-sync/internal/notify"
	"task-board-sync/internal/permission"
	"task-board-sync/internal/roles"
	"task-board-sync/internal/session"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNotPermitted = permission.ErrNotPermitted
	ErrCommitFailed = errors.New("commit failed")
)

// TaskStore is the remote task persistence.
type TaskStore interface {
	UpdateTask(ctx context.Context, t models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	ListOverdue(ctx context.Context, projectID string) ([]models.Task, error)
}

// OverdueCleaner drops overdue notifications of a finished task.
type OverdueCleaner interface {
	ClearTaskOverdue(ctx context.Context, taskID string) error
}

// Deps wires a Service. Gate defaults to permission.Default and Feedback to
// LogFeedback.
type Deps struct {
	Board      *board.Store
	Tasks      TaskStore
	Overdue    OverdueCleaner
	Resolver   *roles.Resolver
	Dispatcher *notify.Dispatcher
	Gate       permission.Gate
	Session    *session.Session
	Feedback   Feedback
	Logger     *log.Logger
}

// Service is the only writer of tasks to the remote store.
type Service struct {
	board      *board.Store
	tasks      TaskStore
	overdue    OverdueCleaner
	resolver   *roles.Resolver
	dispatcher *notify.Dispatcher
	gate       permission.Gate
	session    *session.Session
	feedback   Feedback
	log        *log.Logger

	now func() time.Time
	wg  sync.WaitGroup

	// OnSettled, when set, receives every fan-out result.
	OnSettled func(models.NotificationType, []notify.Settled)
}

// NewService wires a service from deps.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		panic("mutation.NewService: logger is nil")
	}
	if d.Board == nil || d.Tasks == nil || d.Session == nil {
		panic("mutation.NewService: board, tasks and session are required")
	}
	if d.Gate == nil {
		d.Gate = permission.Default
	}
	if d.Feedback == nil {
		d.Feedback = LogFeedback{Log: d.Logger}
	}
	return &Service{
		board:      d.Board,
		tasks:      d.Tasks,
		overdue:    d.Overdue,
		resolver:   d.Resolver,
		dispatcher: d.Dispatcher,
		gate:       d.Gate,
		session:    d.Session,
		feedback:   d.Feedback,
		log:        d.Logger,
		now:        time.Now,
	}
}

// Wait blocks until every background fan-out has settled.
func (s *Service) Wait() { s.wg.Wait() }

// CommitStatusChange persists a status change the board already shows
// optimistically. On failure the board is reverted to previous and the
// returned error wraps ErrCommitFailed; no notification is sent.
func (s *Service) CommitStatusChange(ctx context.Context, task models.Task, newStatus, previous models.TaskStatus) error {
	actor := s.session.Actor()
	entry := s.log.WithFields(log.Fields{"task": task.ID, "from": previous, "to": newStatus})

	if !s.gate.CanEdit(task, actor) {
		s.revert(task.ID, previous)
		s.feedback.Error("You are not allowed to move this task", ErrNotPermitted)
		return ErrNotPermitted
	}

	update := task
	update.Status = newStatus
	if newStatus == models.StatusDone {
		at := s.now().UTC()
		update.CompletedAt = &at
	} else {
		update.CompletedAt = nil
	}

	saved, err := s.tasks.UpdateTask(ctx, update)
	if err != nil {
		entry.WithError(err).Warn("status change rejected, reverting")
		s.revert(task.ID, previous)
		s.feedback.Error("Failed to update task status", err)
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	saved = keepLocalFields(saved, update)

	if newStatus == models.StatusDone && s.overdue != nil {
		if err := s.overdue.ClearTaskOverdue(ctx, task.ID); err != nil {
			entry.WithError(err).Warn("overdue notifications not cleared")
		}
	}
	s.board.Upsert(saved)

	s.fanOut(ctx, saved, actor, notify.Template{
		Type:       models.NotifyTaskStatusChanged,
		Transition: &notify.Transition{From: previous.DisplayName(), To: newStatus.DisplayName()},
	})
	entry.Debug("status change committed")
	s.feedback.Success("Task moved to " + newStatus.DisplayName())
	return nil
}

// CommitEdit persists an edited task. The board shows after at once and goes
// back to before if the store refuses. eventType is the notification sent on
// success.
func (s *Service) CommitEdit(ctx context.Context, before, after models.Task, eventType models.NotificationType) (models.Task, error) {
	return s.commitEdit(ctx, before, after, notify.Template{Type: eventType}, "Task updated")
}

// Assign changes the assignee. An empty assigneeID unassigns the task.
func (s *Service) Assign(ctx context.Context, task models.Task, assigneeID, assigneeName string) (models.Task, error) {
	prevID := task.Assignee()
	if prevID == assigneeID {
		return task, nil
	}

	after := task
	if assigneeID == "" {
		after.AssigneeID = nil
		after.AssigneeName = ""
	} else {
		after.AssigneeID = models.StringPtr(assigneeID)
		after.AssigneeName = s.displayName(assigneeID, assigneeName)
	}

	tmpl := notify.Template{}
	switch {
	case assigneeID == "":
		tmpl.Type = models.NotifyTaskUpdated
	case prevID == "":
		tmpl.Type = models.NotifyTaskAssigned
		tmpl.Transition = &notify.Transition{To: after.AssigneeName}
	default:
		tmpl.Type = models.NotifyTaskReassigned
		tmpl.Transition = &notify.Transition{
			From: s.displayName(prevID, task.AssigneeName),
			To:   after.AssigneeName,
		}
	}
	return s.commitEdit(ctx, task, after, tmpl, "Task assignee updated")
}

func (s *Service) commitEdit(ctx context.Context, before, after models.Task, tmpl notify.Template, okMsg string) (models.Task, error) {
	actor := s.session.Actor()
	if !s.gate.CanEdit(before, actor) {
		s.feedback.Error("You are not allowed to edit this task", ErrNotPermitted)
		return before, ErrNotPermitted
	}
	if after.Status == models.StatusDone && after.CompletedAt == nil {
		at := s.now().UTC()
		after.CompletedAt = &at
	} else if after.Status != models.StatusDone {
		after.CompletedAt = nil
	}

	_, onBoard := s.board.Get(before.ID)
	if onBoard {
		s.board.Upsert(after)
	}
	saved, err := s.tasks.UpdateTask(ctx, after)
	if err != nil {
		s.log.WithError(err).WithField("task", before.ID).Warn("edit rejected, restoring")
		if onBoard {
			s.board.Upsert(before)
		}
		s.feedback.Error("Failed to update task", err)
		return before, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	saved = keepLocalFields(saved, after)
	if onBoard {
		s.board.Upsert(saved)
	}

	s.fanOut(ctx, saved, actor, tmpl)
	s.feedback.Success(okMsg)
	return saved, nil
}

// Delete removes the task's subtasks, then the task itself. Nothing is taken
// off the board until the store confirmed the parent's deletion.
func (s *Service) Delete(ctx context.Context, task models.Task) error {
	actor := s.session.Actor()
	if !s.gate.CanEdit(task, actor) {
		s.feedback.Error("You are not allowed to delete this task", ErrNotPermitted)
		return ErrNotPermitted
	}

	subtasks, err := s.tasks.ListTasks(ctx, models.TaskFilter{ParentTaskID: task.ID})
	if err != nil {
		s.feedback.Error("Failed to delete task", err)
		return fmt.Errorf("%w: list subtasks: %w", ErrCommitFailed, err)
	}
	for _, st := range subtasks {
		if err := s.tasks.DeleteTask(ctx, st.ID); err != nil {
			s.feedback.Error("Failed to delete subtask "+st.Title, err)
			return fmt.Errorf("%w: delete subtask %s: %w", ErrCommitFailed, st.ID, err)
		}
		s.board.Remove(st.ID)
	}
	if err := s.tasks.DeleteTask(ctx, task.ID); err != nil {
		s.feedback.Error("Failed to delete task", err)
		return fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}
	s.board.Remove(task.ID)

	s.fanOut(ctx, task, actor, notify.Template{Type: models.NotifyTaskDeleted})
	s.feedback.Success("Task deleted")
	return nil
}

// CheckOverdue notifies everyone involved in the project's overdue tasks on
// behalf of the system actor. The server drops repeats, so running it again
// is harmless. It waits for every submission and returns them.
func (s *Service) CheckOverdue(ctx context.Context, projectID string) ([]notify.Settled, error) {
	tasks, err := s.tasks.ListOverdue(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	if s.resolver == nil || s.dispatcher == nil {
		return nil, nil
	}

	now := s.now()
	var all []notify.Settled
	for _, t := range tasks {
		if !t.IsOverdue(now) {
			continue
		}
		m := s.resolver.Resolve(ctx, t, models.SystemActorID, models.NotifyTaskOverdue)
		results := s.dispatcher.Dispatch(ctx, notify.Template{
			Type:          models.NotifyTaskOverdue,
			ActorUserID:   models.SystemActorID,
			ActorUserName: models.SystemActorName,
			ProjectID:     t.ProjectID,
			ProjectName:   t.ProjectName,
			TaskID:        t.ID,
			TaskTitle:     t.Title,
		}, m)
		all = append(all, results...)
	}
	s.reportDuplicates(all)
	if s.OnSettled != nil && len(all) > 0 {
		s.OnSettled(models.NotifyTaskOverdue, all)
	}
	return all, nil
}

// fanOut resolves recipients and dispatches on a tracked goroutine that
// outlives the caller's context.
func (s *Service) fanOut(ctx context.Context, task models.Task, actor models.Actor, tmpl notify.Template) {
	if s.resolver == nil || s.dispatcher == nil {
		return
	}
	tmpl.ActorUserID = actor.ID
	tmpl.ActorUserName = actor.Name
	if tmpl.ActorUserName == "" {
		tmpl.ActorUserName = actor.ID
	}
	tmpl.ProjectID = task.ProjectID
	tmpl.ProjectName = task.ProjectName
	tmpl.TaskID = task.ID
	tmpl.TaskTitle = task.Title

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		m := s.resolver.Resolve(ctx, task, actor.ID, tmpl.Type)
		if m.Len() == 0 {
			s.log.WithFields(log.Fields{"task": task.ID, "type": tmpl.Type}).Debug("no recipients")
			return
		}
		results := s.dispatcher.Dispatch(ctx, tmpl, m)
		s.reportDuplicates(results)
		if s.OnSettled != nil {
			s.OnSettled(tmpl.Type, results)
		}
	}()
}

func (s *Service) reportDuplicates(results []notify.Settled) {
	n := 0
	for _, r := range results {
		if r.Duplicate {
			n++
		}
	}
	if n > 0 {
		s.feedback.Info(fmt.Sprintf("%d notification(s) already sent", n))
	}
}

func (s *Service) revert(taskID string, previous models.TaskStatus) {
	if cur, ok := s.board.Get(taskID); !ok || cur.Status == previous {
		return
	}
	if err := s.board.Revert(taskID, previous); err != nil && !errors.Is(err, board.ErrTaskNotFound) {
		s.log.WithError(err).WithField("task", taskID).Error("board revert failed")
	}
}

func (s *Service) displayName(userID, fallback string) string {
	if fallback != "" {
		s.session.UserNames.Set(userID, fallback, 0)
		return fallback
	}
	if name, ok := s.session.UserNames.Get(userID); ok {
		return name
	}
	return userID
}

// keepLocalFields fills in what the store does not echo back.
func keepLocalFields(saved, sent models.Task) models.Task {
	if saved.ID == "" {
		return sent
	}
	if saved.ProjectName == "" {
		saved.ProjectName = sent.ProjectName
	}
	if saved.AssigneeName == "" && saved.Assignee() == sent.Assignee() {
		saved.AssigneeName = sent.AssigneeName
	}
	return saved
}
