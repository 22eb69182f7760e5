package remote

import (
	"context"
	"net/http"
	"net/url"

	"task-board-sync/internal/models"
)

// ListTasks calls GET /api/tasks with the non-empty filter fields.
func (c *Client) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	q := url.Values{}
	if f.ProjectID != "" {
		q.Set("projectId", f.ProjectID)
	}
	if f.SprintID != "" {
		q.Set("sprintId", f.SprintID)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.ParentTaskID != "" {
		q.Set("parentTaskId", f.ParentTaskID)
	}
	path := "/api/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var tasks []models.Task
	if err := c.call(ctx, "list tasks", http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask calls GET /api/tasks/{id}.
func (c *Client) GetTask(ctx context.Context, id string) (models.Task, error) {
	var t models.Task
	err := c.call(ctx, "get task", http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &t)
	return t, err
}

// UpdateTask sends the full task representation with PUT /api/tasks/{id} and
// returns the stored copy.
func (c *Client) UpdateTask(ctx context.Context, t models.Task) (models.Task, error) {
	var saved models.Task
	if err := c.call(ctx, "update task", http.MethodPut, "/api/tasks/"+url.PathEscape(t.ID), t, &saved); err != nil {
		return models.Task{}, err
	}
	if saved.ID == "" {
		saved = t
	}
	return saved, nil
}

// DeleteTask calls DELETE /api/tasks/{id}.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.call(ctx, "delete task", http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
}

// ListOverdue calls GET /api/tasks/project/{projectId}/overdue.
func (c *Client) ListOverdue(ctx context.Context, projectID string) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.call(ctx, "list overdue", http.MethodGet, "/api/tasks/project/"+url.PathEscape(projectID)+"/overdue", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListUsers calls GET /api/users.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.call(ctx, "list users", http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Me calls GET /api/users/me.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.call(ctx, "current user", http.MethodGet, "/api/users/me", nil, &u)
	return u, err
}

// ProductOwnerID calls GET /api/projects/{id}/manager_id. A project without
// a manager yields "".
func (c *Client) ProductOwnerID(ctx context.Context, projectID string) (string, error) {
	var id string
	if err := c.call(ctx, "product owner", http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/manager_id", nil, &id); err != nil {
		return "", err
	}
	return id, nil
}
