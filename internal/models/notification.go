package models

import (
	"time"
)

// NotificationType enumerates the task events that fan out to stakeholders.
type NotificationType string

const (
	NotifyTaskStatusChanged NotificationType = "TASK_STATUS_CHANGED"
	NotifyTaskAssigned      NotificationType = "TASK_ASSIGNED"
	NotifyTaskReassigned    NotificationType = "TASK_REASSIGNED"
	NotifyTaskUpdated       NotificationType = "TASK_UPDATED"
	NotifyTaskDeleted       NotificationType = "TASK_DELETED"
	NotifyTaskOverdue       NotificationType = "TASK_OVERDUE"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyTaskStatusChanged, NotifyTaskAssigned, NotifyTaskReassigned,
		NotifyTaskUpdated, NotifyTaskDeleted, NotifyTaskOverdue:
		return true
	}
	return false
}

// Title returns the short heading shown for the notification type.
func (t NotificationType) Title() string {
	switch t {
	case NotifyTaskStatusChanged:
		return "Task status changed"
	case NotifyTaskAssigned:
		return "Task assigned"
	case NotifyTaskReassigned:
		return "Task reassigned"
	case NotifyTaskUpdated:
		return "Task updated"
	case NotifyTaskDeleted:
		return "Task deleted"
	case NotifyTaskOverdue:
		return "Task overdue"
	default:
		return "Task notification"
	}
}

// SystemActorID and SystemActorName identify system-authored events.
const (
	SystemActorID   = "system"
	SystemActorName = "System"
)

// NotificationEvent is the per-recipient payload of POST /notifications/create.
// It is built once per recipient and passed by value.
type NotificationEvent struct {
	Type            NotificationType `json:"type" binding:"required"`
	Title           string           `json:"title"`
	Message         string           `json:"message" binding:"required"`
	RecipientUserID string           `json:"recipientUserId" binding:"required"`
	ActorUserID     string           `json:"actorUserId"`
	ActorUserName   string           `json:"actorUserName"`
	ProjectID       string           `json:"projectId"`
	ProjectName     string           `json:"projectName"`
	TaskID          string           `json:"taskId"`
}

// Notification is a stored notification in a recipient's inbox
type Notification struct {
	ID              string           `json:"id" gorm:"primaryKey"`
	Type            NotificationType `json:"type" gorm:"not null;index"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	RecipientUserID string           `json:"recipientUserId" gorm:"column:recipient_user_id;index"`
	ActorUserID     string           `json:"actorUserId" gorm:"column:actor_user_id"`
	ActorUserName   string           `json:"actorUserName" gorm:"column:actor_user_name"`
	ProjectID       string           `json:"projectId" gorm:"column:project_id"`
	ProjectName     string           `json:"projectName" gorm:"column:project_name"`
	TaskID          string           `json:"taskId" gorm:"column:task_id;index"`
	IsRead          bool             `json:"isRead" gorm:"column:is_read;default:false"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// TableName specifies the table name for Notification Model
func (Notification) TableName() string {
	return "notifications"
}

// DedupeRecord marks a (task, recipient) pair that already got an overdue
// notification when no Redis is configured.
type DedupeRecord struct {
	Key       string     `gorm:"column:dedupe_key;primaryKey"`
	TaskID    string     `gorm:"column:task_id;index"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	CreatedAt time.Time
}

// TableName specifies the table name for DedupeRecord Model
func (DedupeRecord) TableName() string {
	return "notification_dedupe"
}
