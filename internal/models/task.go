package models

import (
	"time"
)

// TaskStatus represents the board column a task sits in
type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusReview     TaskStatus = "REVIEW"
	StatusDone       TaskStatus = "DONE"
)

// Statuses lists every column in board order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// DisplayName returns the human readable column title.
func (s TaskStatus) DisplayName() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusReview:
		return "Review"
	case StatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "HIGH"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityLow    TaskPriority = "LOW"
)

// Task represents a work item on a project board
type Task struct {
	ID           string          `json:"id" gorm:"primaryKey"`
	Title        string          `json:"title" gorm:"not null"`
	Description  string          `json:"description"`
	Status       TaskStatus      `json:"status" gorm:"not null;default:'TODO';index"`
	AssigneeID   *string         `json:"assigneeId" gorm:"column:assignee_id;index"`
	AssigneeName string          `json:"assigneeName" gorm:"column:assignee_name"`
	CreatedBy    string          `json:"createdBy" gorm:"column:created_by;index"`
	ProjectID    string          `json:"projectId" gorm:"column:project_id;index"`
	ProjectName  string          `json:"projectName" gorm:"-"`
	SprintID     *string         `json:"sprintId" gorm:"column:sprint_id;index"`
	Priority     TaskPriority    `json:"priority" gorm:"default:'MEDIUM'"`
	DueDate      *time.Time      `json:"dueDate" gorm:"column:due_date"`
	CompletedAt  *time.Time      `json:"completedAt" gorm:"column:completed_at"`
	ParentTaskID *string         `json:"parentTaskId" gorm:"column:parent_task_id;index"`
	Attachments  []AttachmentRef `json:"attachments,omitempty" gorm:"serializer:json"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

// IsSubtask reports whether the task hangs under a parent and is hidden from columns.
func (t Task) IsSubtask() bool {
	return t.ParentTaskID != nil && *t.ParentTaskID != ""
}

// Assignee returns the assignee id or "" when unassigned.
func (t Task) Assignee() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}

// IsOverdue reports whether the due date's last moment has passed and the task is not done.
func (t Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == StatusDone {
		return false
	}
	d := t.DueDate.In(now.Location())
	endOfDay := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), d.Location())
	return now.After(endOfDay)
}

// TaskFilter narrows GET /tasks.
type TaskFilter struct {
	ProjectID    string
	SprintID     string
	Status       TaskStatus
	ParentTaskID string
}

// StringPtr is a small helper for the nullable id fields.
func StringPtr(s string) *string {
	return &s
}
