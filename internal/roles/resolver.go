// Package roles works out who should hear about a change to a task.
package roles

import (
	"context"
	"strings"

	"task-board-sync/internal/models"
	"task-board-sync/internal/session"

	log "github.com/sirupsen/logrus"
)

// OwnerLookup finds a project's product owner. An empty id means the project
// has none.
type OwnerLookup interface {
	ProductOwnerID(ctx context.Context, projectID string) (string, error)
}

// Resolver builds the RoleMap for a task event.
type Resolver struct {
	owners  OwnerLookup
	session *session.Session
	log     *log.Logger
}

// NewResolver wires a resolver. sess may be nil, in which case product owner
// lookups are not cached.
func NewResolver(owners OwnerLookup, sess *session.Session, logger *log.Logger) *Resolver {
	if logger == nil {
		panic("roles.NewResolver: logger is nil")
	}
	return &Resolver{owners: owners, session: sess, log: logger}
}

// Resolve returns the assignee, creator and product owner of the task keyed by
// user id, without actorID unless the event is TASK_OVERDUE.
func (r *Resolver) Resolve(ctx context.Context, task models.Task, actorID string, event models.NotificationType) *RoleMap {
	m := NewRoleMap()
	m.Add(task.Assignee(), Assignee)
	m.Add(task.CreatedBy, Creator)
	if po := r.productOwner(ctx, task.ProjectID); po != "" {
		m.Add(po, ProductOwner)
	}
	if event != models.NotifyTaskOverdue {
		m.Remove(actorID)
	}
	return m
}

// productOwner never fails: an unresolvable owner just means no recipient.
// Failed projects are not asked again until the session ends.
func (r *Resolver) productOwner(ctx context.Context, projectID string) string {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" || r.owners == nil {
		return ""
	}
	if r.session != nil {
		if id, ok := r.session.ProductOwners.Get(projectID); ok {
			return id
		}
		if r.session.FailedLookups.Contains(ownerKey(projectID)) {
			return ""
		}
	}
	id, err := r.owners.ProductOwnerID(ctx, projectID)
	if err != nil {
		r.log.WithError(err).WithField("project", projectID).Warn("product owner lookup failed")
		if r.session != nil {
			r.session.FailedLookups.Add(ownerKey(projectID))
		}
		return ""
	}
	id = strings.TrimSpace(id)
	if r.session != nil && id != "" {
		r.session.ProductOwners.Set(projectID, id, 0)
	}
	return id
}

func ownerKey(projectID string) string { return "project-owner:" + projectID }
