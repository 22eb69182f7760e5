// Package boardsync wires the client side of the board: session, remote
// store, board state, drag controller, mutation service and live updates.
package boardsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"task-board-sync/internal/board"
	"task-board-sync/internal/drag"
	"task-board-sync/internal/models"
	"task-board-sync/internal/mutation"
	"task-board-sync/internal/notify"
	"task-board-sync/internal/realtime"
	"task-board-sync/internal/remote"
	"task-board-sync/internal/roles"
	"task-board-sync/internal/session"

	log "github.com/sirupsen/logrus"
)

var (
	ErrDragRefused = errors.New("drag refused")
	ErrNoProject   = errors.New("no project selected")
)

// Options configures an Engine.
type Options struct {
	BaseURL   string
	ProjectID string
	Token     string

	NotifyConcurrency int
	CacheSize         int
	HTTPTimeout       time.Duration

	Feedback mutation.Feedback
	Logger   *log.Logger
}

// Engine is one user's view of one project board.
type Engine struct {
	projectID string
	baseURL   string

	session  *session.Session
	client   *remote.Client
	board    *board.Store
	resolver *roles.Resolver
	service  *mutation.Service
	drag     *drag.Controller
	log      *log.Logger
}

// New opens a session from opts.Token and wires every component. Nothing
// is fetched until Load.
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		panic("boardsync.New: logger is nil")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.NotifyConcurrency <= 0 {
		opts.NotifyConcurrency = 8
	}
	sess, err := session.FromToken(opts.Token, opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	client := remote.New(opts.BaseURL, sess.Token, opts.HTTPTimeout, opts.Logger)
	b := board.NewStore()
	resolver := roles.NewResolver(client, sess, opts.Logger)
	svc := mutation.NewService(mutation.Deps{
		Board:      b,
		Tasks:      client,
		Overdue:    client,
		Resolver:   resolver,
		Dispatcher: notify.NewDispatcher(client, opts.NotifyConcurrency, opts.Logger),
		Session:    sess,
		Feedback:   opts.Feedback,
		Logger:     opts.Logger,
	})
	ctrl := drag.NewController(b, svc, nil, sess.Actor, opts.Logger)

	return &Engine{
		projectID: opts.ProjectID,
		baseURL:   opts.BaseURL,
		session:   sess,
		client:    client,
		board:     b,
		resolver:  resolver,
		service:   svc,
		drag:      ctrl,
		log:       opts.Logger,
	}, nil
}

func (e *Engine) Board() *board.Store          { return e.board }
func (e *Engine) Session() *session.Session    { return e.session }
func (e *Engine) Controller() *drag.Controller { return e.drag }

// Load fetches the project's tasks into the board, fills the user name
// cache and grants project ownership when the session user manages the
// project.
func (e *Engine) Load(ctx context.Context) error {
	if e.projectID == "" {
		return ErrNoProject
	}
	tasks, err := e.client.ListTasks(ctx, models.TaskFilter{ProjectID: e.projectID})
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	e.board.Load(tasks)

	if users, err := e.client.ListUsers(ctx); err != nil {
		e.log.WithError(err).Warn("user names not loaded")
	} else {
		for _, u := range users {
			e.session.UserNames.Set(u.ID, u.Username, 0)
		}
	}

	owner, err := e.client.ProductOwnerID(ctx, e.projectID)
	switch {
	case err != nil:
		e.log.WithError(err).WithField("project", e.projectID).Warn("product owner unknown")
	case owner != "":
		e.session.ProductOwners.Set(e.projectID, owner, 0)
		if owner == e.session.Actor().ID {
			e.session.Grant(models.CapProjectOwner)
		}
	}

	e.log.WithFields(log.Fields{"project": e.projectID, "tasks": e.board.Len()}).Debug("board loaded")
	return nil
}

// Move drags taskID onto status, before the task beforeID or at the end of
// the column when beforeID is empty. The commit runs in the background;
// call Wait to see it settle.
func (e *Engine) Move(ctx context.Context, taskID string, status models.TaskStatus, beforeID string) (drag.Outcome, error) {
	if err := e.drag.Begin(taskID); err != nil {
		switch {
		case errors.Is(err, board.ErrTaskNotFound):
			return drag.NoOp, err
		case !e.session.Active():
			return drag.NoOp, session.ErrNoSession
		}
		return drag.NoOp, fmt.Errorf("%w: %w", ErrDragRefused, err)
	}
	return e.drag.Drop(ctx, drag.Target{Status: status, BeforeID: beforeID})
}

// Assign gives taskID to assigneeID, or unassigns it when assigneeID is empty.
func (e *Engine) Assign(ctx context.Context, taskID, assigneeID string) (models.Task, error) {
	t, err := e.task(ctx, taskID)
	if err != nil {
		return models.Task{}, err
	}
	name, _ := e.session.UserNames.Get(assigneeID)
	return e.service.Assign(ctx, t, assigneeID, name)
}

// Delete removes taskID and its subtasks.
func (e *Engine) Delete(ctx context.Context, taskID string) error {
	t, err := e.task(ctx, taskID)
	if err != nil {
		return err
	}
	return e.service.Delete(ctx, t)
}

// CheckOverdue sends overdue notices for the project's overdue tasks.
func (e *Engine) CheckOverdue(ctx context.Context) ([]notify.Settled, error) {
	if e.projectID == "" {
		return nil, ErrNoProject
	}
	return e.service.CheckOverdue(ctx, e.projectID)
}

// Subscribe follows the project's live updates until ctx ends.
func (e *Engine) Subscribe(ctx context.Context, onNotification func(models.Notification)) error {
	if e.projectID == "" {
		return ErrNoProject
	}
	sub := realtime.NewSubscriber(e.baseURL, e.projectID, e.session.Token, e.board, e.log)
	sub.OnNotification = onNotification
	return sub.Run(ctx)
}

// Wait blocks until every background commit and fan-out has settled.
func (e *Engine) Wait() {
	e.drag.Wait()
	e.service.Wait()
}

// Logout waits for pending work, then ends the session and clears the board.
func (e *Engine) Logout() {
	e.drag.Cancel()
	e.Wait()
	e.session.Logout()
	e.board.Load(nil)
}

func (e *Engine) task(ctx context.Context, taskID string) (models.Task, error) {
	if t, ok := e.board.Get(taskID); ok {
		return t, nil
	}
	t, err := e.client.GetTask(ctx, taskID)
	if err != nil {
		return models.Task{}, fmt.Errorf("fetch task %s: %w", taskID, err)
	}
	return t, nil
}
