// Package notify fans one task event out to every interested user.
package notify

import (
	"context"
	"fmt"

	"task-board-sync/internal/models"
	"task-board-sync/internal/roles"

	log "github.com/sirupsen/logrus"
)

// CreateResult is what the notification endpoint answered.
type CreateResult struct {
	// Duplicate is set when the server already had this notification.
	Duplicate    bool
	Notification *models.Notification
}

// Sender submits one notification.
type Sender interface {
	CreateNotification(ctx context.Context, event models.NotificationEvent) (CreateResult, error)
}

// Transition is the human readable before/after of the change.
type Transition struct {
	From string
	To   string
}

// Template holds everything shared by the per-recipient events.
type Template struct {
	Type          models.NotificationType
	ActorUserID   string
	ActorUserName string
	ProjectID     string
	ProjectName   string
	TaskID        string
	TaskTitle     string
	Transition    *Transition
	// Message overrides the generated sentence; the role suffix is still added.
	Message string
}

// SettleStatus mirrors a settled promise.
type SettleStatus string

const (
	Fulfilled SettleStatus = "fulfilled"
	Rejected  SettleStatus = "rejected"
)

// Settled is the outcome of one recipient's submission.
type Settled struct {
	RecipientUserID string
	Event           models.NotificationEvent
	Status          SettleStatus
	Duplicate       bool
	Err             error
}

// Dispatcher builds and submits per-recipient notifications.
type Dispatcher struct {
	sender Sender
	limit  int
	log    *log.Logger
}

// NewDispatcher wires a dispatcher; limit caps in-flight submissions.
func NewDispatcher(sender Sender, limit int, logger *log.Logger) *Dispatcher {
	if logger == nil {
		panic("notify.NewDispatcher: logger is nil")
	}
	return &Dispatcher{sender: sender, limit: limit, log: logger}
}

// Dispatch sends one event per user in recipients and waits for all of them
// to settle. Individual failures come back as Rejected entries; Dispatch
// itself never fails.
func (d *Dispatcher) Dispatch(ctx context.Context, tmpl Template, recipients *roles.RoleMap) []Settled {
	if recipients == nil || recipients.Len() == 0 {
		return nil
	}
	ids := recipients.UserIDs()
	events := make([]models.NotificationEvent, len(ids))
	for i, id := range ids {
		events[i] = Build(tmpl, id, recipients.Label(id))
	}

	results := make([]Settled, len(events))
	errs := BestEffort(ctx, d.limit, len(events), func(ctx context.Context, i int) error {
		res, err := d.sender.CreateNotification(ctx, events[i])
		if err == nil {
			results[i].Duplicate = res.Duplicate
		}
		return err
	})

	for i, ev := range events {
		results[i].RecipientUserID = ev.RecipientUserID
		results[i].Event = ev
		if errs[i] != nil {
			results[i].Status = Rejected
			results[i].Err = errs[i]
			d.log.WithError(errs[i]).WithFields(log.Fields{
				"type":      ev.Type,
				"task":      ev.TaskID,
				"recipient": ev.RecipientUserID,
			}).Warn("notification not delivered")
			continue
		}
		results[i].Status = Fulfilled
		if results[i].Duplicate {
			d.log.WithFields(log.Fields{"task": ev.TaskID, "recipient": ev.RecipientUserID}).Debug("notification already sent")
		}
	}
	return results
}

// Build constructs the event for one recipient.
func Build(tmpl Template, recipientID, roleLabel string) models.NotificationEvent {
	return models.NotificationEvent{
		Type:            tmpl.Type,
		Title:           tmpl.Type.Title(),
		Message:         Message(tmpl, roleLabel),
		RecipientUserID: recipientID,
		ActorUserID:     tmpl.ActorUserID,
		ActorUserName:   tmpl.ActorUserName,
		ProjectID:       tmpl.ProjectID,
		ProjectName:     tmpl.ProjectName,
		TaskID:          tmpl.TaskID,
	}
}

// Message renders the sentence shown to a recipient holding roleLabel.
func Message(tmpl Template, roleLabel string) string {
	body := tmpl.Message
	if body == "" {
		body = sentence(tmpl)
	}
	if roleLabel == "" {
		return body
	}
	return fmt.Sprintf("%s (You are the %s)", body, roleLabel)
}

func sentence(tmpl Template) string {
	from, to := "", ""
	if tmpl.Transition != nil {
		from, to = tmpl.Transition.From, tmpl.Transition.To
	}
	switch tmpl.Type {
	case models.NotifyTaskStatusChanged:
		return fmt.Sprintf("%s changed task \"%s\" status from \"%s\" to \"%s\"", tmpl.ActorUserName, tmpl.TaskTitle, from, to)
	case models.NotifyTaskAssigned:
		return fmt.Sprintf("%s assigned task \"%s\" to %s", tmpl.ActorUserName, tmpl.TaskTitle, to)
	case models.NotifyTaskReassigned:
		return fmt.Sprintf("%s reassigned task \"%s\" from %s to %s", tmpl.ActorUserName, tmpl.TaskTitle, from, to)
	case models.NotifyTaskUpdated:
		return fmt.Sprintf("%s updated task \"%s\"", tmpl.ActorUserName, tmpl.TaskTitle)
	case models.NotifyTaskDeleted:
		return fmt.Sprintf("%s deleted task \"%s\"", tmpl.ActorUserName, tmpl.TaskTitle)
	case models.NotifyTaskOverdue:
		return fmt.Sprintf("Task \"%s\" is now overdue", tmpl.TaskTitle)
	default:
		return fmt.Sprintf("Task \"%s\" has been modified", tmpl.TaskTitle)
	}
}
