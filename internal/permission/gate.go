// Package permission decides who may edit or drag a task.
package permission

import (
	"errors"

	"task-board-sync/internal/models"
)

// ErrNotPermitted is returned by mutation entry points when the gate refuses.
var ErrNotPermitted = errors.New("not permitted to edit task")

// Gate answers whether an actor may edit a task.
type Gate interface {
	CanEdit(task models.Task, actor models.Actor) bool
}

// GateFunc adapts a plain function to Gate.
type GateFunc func(task models.Task, actor models.Actor) bool

func (f GateFunc) CanEdit(task models.Task, actor models.Actor) bool { return f(task, actor) }

// Default is the gate used everywhere unless a caller injects its own.
var Default Gate = GateFunc(CanEdit)

// CanEdit is true for the task's creator, its assignee, and anyone who may
// manage any task or owns the project.
func CanEdit(task models.Task, actor models.Actor) bool {
	if actor.ID == "" {
		return false
	}
	if task.CreatedBy == actor.ID {
		return true
	}
	if task.Assignee() == actor.ID {
		return true
	}
	return actor.Has(models.CapManageAnyTask) || actor.Has(models.CapProjectOwner)
}
