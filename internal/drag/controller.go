// Package drag turns a drag-and-drop gesture on the board into a local move
// and a background commit.
package drag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"task-board-sync/internal/board"
	"task-board-sync/internal/models"
	"task-board-sync/internal/permission"

	log "github.com/sirupsen/logrus"
)

var (
	ErrNotDragging = errors.New("no drag in progress")
	ErrBusy        = errors.New("another drag is in progress")
	ErrSubtask     = errors.New("subtasks are not dragged")
)

// State of the controller.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Outcome of a drop.
type Outcome int

const (
	NoOp Outcome = iota
	Moved
)

func (o Outcome) String() string {
	if o == Moved {
		return "moved"
	}
	return "no-op"
}

// Target is where the task was dropped: a column, optionally before a task
// in it. An empty BeforeID means the end of the column.
type Target struct {
	Status   models.TaskStatus
	BeforeID string
}

// Committer persists a status change the board already shows.
type Committer interface {
	CommitStatusChange(ctx context.Context, task models.Task, newStatus, previous models.TaskStatus) error
}

// ActorFunc returns the user performing the gesture.
type ActorFunc func() models.Actor

// Controller is the drag state machine for one board.
type Controller struct {
	board  *board.Store
	commit Committer
	gate   permission.Gate
	actor  ActorFunc
	log    *log.Logger

	mu     sync.Mutex
	state  State
	active models.Task

	wg sync.WaitGroup
	// OnCommitted, when set, receives every commit result.
	OnCommitted func(taskID string, err error)
}

// NewController wires a controller. gate nil means permission.Default.
func NewController(b *board.Store, c Committer, gate permission.Gate, actor ActorFunc, logger *log.Logger) *Controller {
	if logger == nil {
		panic("drag.NewController: logger is nil")
	}
	if gate == nil {
		gate = permission.Default
	}
	return &Controller{board: b, commit: c, gate: gate, actor: actor, log: logger}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the task being dragged.
func (c *Controller) Active() (models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.state == Dragging
}

// Start begins dragging taskID. It refuses silently, returning false, when
// the task is unknown, a drag is already running or the actor may not edit it.
func (c *Controller) Start(taskID string) bool {
	return c.Begin(taskID) == nil
}

// Begin is Start reporting why a drag was refused: board.ErrTaskNotFound,
// ErrSubtask, permission.ErrNotPermitted or ErrBusy.
func (c *Controller) Begin(taskID string) error {
	t, ok := c.board.Get(taskID)
	if !ok {
		return fmt.Errorf("%w: %s", board.ErrTaskNotFound, taskID)
	}
	if t.IsSubtask() {
		return fmt.Errorf("%w: %s", ErrSubtask, taskID)
	}
	if !c.gate.CanEdit(t, c.actor()) {
		c.log.WithField("task", taskID).Debug("drag refused")
		return permission.ErrNotPermitted
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Dragging {
		return fmt.Errorf("%w: %s", ErrBusy, c.active.ID)
	}
	c.state = Dragging
	c.active = t
	return nil
}

// Cancel abandons the drag without touching the board.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.state = Idle
	c.active = models.Task{}
	c.mu.Unlock()
}

// Drop ends the drag. A drop onto the task's own slot is a no-op. Otherwise
// the board moves at once and the commit runs in the background; its
// failure reverts the board there.
func (c *Controller) Drop(ctx context.Context, target Target) (Outcome, error) {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return NoOp, ErrNotDragging
	}
	task := c.active
	c.state = Idle
	c.active = models.Task{}
	c.mu.Unlock()

	if !target.Status.Valid() {
		return NoOp, fmt.Errorf("%w: %q", board.ErrInvalidStatus, target.Status)
	}
	current, moved, err := c.board.DropTask(task.ID, target.Status, target.BeforeID)
	if err != nil {
		return NoOp, err
	}
	if !moved {
		return NoOp, nil
	}
	previous := current.Status

	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.commit.CommitStatusChange(ctx, current, target.Status, previous)
		if err != nil {
			c.log.WithError(err).WithField("task", task.ID).Debug("drop not committed")
		}
		if c.OnCommitted != nil {
			c.OnCommitted(task.ID, err)
		}
	}()
	return Moved, nil
}

// Wait blocks until every commit started by Drop has returned.
func (c *Controller) Wait() { c.wg.Wait() }
