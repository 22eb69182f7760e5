package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"task-board-sync/internal/models"
	"task-board-sync/internal/notify"
)

// createResponse is the notification service envelope, which differs from
// the task service one.
type createResponse struct {
	Success bool                 `json:"success"`
	Data    *models.Notification `json:"data"`
	Message string               `json:"message"`
}

// CreateNotification calls POST /api/notifications/create. success with a
// null payload is the server's duplicate signal, not an error.
func (c *Client) CreateNotification(ctx context.Context, ev models.NotificationEvent) (notify.CreateResult, error) {
	const op = "create notification"
	code, data, err := c.do(ctx, op, http.MethodPost, "/api/notifications/create", ev)
	if err != nil {
		return notify.CreateResult{}, err
	}
	var resp createResponse
	decodeErr := json.Unmarshal(data, &resp)
	if code < 200 || code > 299 {
		return notify.CreateResult{}, &StatusError{Op: op, StatusCode: code, Message: resp.Message}
	}
	if decodeErr != nil {
		return notify.CreateResult{}, fmt.Errorf("%s: decode: %w", op, decodeErr)
	}
	if !resp.Success {
		return notify.CreateResult{}, &StatusError{Op: op, StatusCode: code, Message: resp.Message}
	}
	if resp.Data == nil {
		return notify.CreateResult{Duplicate: true}, nil
	}
	return notify.CreateResult{Notification: resp.Data}, nil
}

// ClearTaskOverdue calls DELETE /api/notifications/task/{id}/overdue.
func (c *Client) ClearTaskOverdue(ctx context.Context, taskID string) error {
	const op = "clear overdue"
	code, data, err := c.do(ctx, op, http.MethodDelete, "/api/notifications/task/"+url.PathEscape(taskID)+"/overdue", nil)
	if err != nil {
		return err
	}
	if code < 200 || code > 299 {
		var resp createResponse
		_ = json.Unmarshal(data, &resp)
		return &StatusError{Op: op, StatusCode: code, Message: resp.Message}
	}
	return nil
}

// Inbox calls GET /api/notifications for the token's user.
func (c *Client) Inbox(ctx context.Context) ([]models.Notification, error) {
	const op = "inbox"
	code, data, err := c.do(ctx, op, http.MethodGet, "/api/notifications", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Success bool                  `json:"success"`
		Data    []models.Notification `json:"data"`
		Message string                `json:"message"`
	}
	decodeErr := json.Unmarshal(data, &resp)
	if code < 200 || code > 299 || !resp.Success {
		return nil, &StatusError{Op: op, StatusCode: code, Message: resp.Message}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, decodeErr)
	}
	return resp.Data, nil
}

// Login calls POST /api/login and returns the bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	const op = "login"
	code, data, err := c.do(ctx, op, http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		Token string `json:"token"`
		Error string `json:"error"`
	}
	_ = json.Unmarshal(data, &resp)
	if code != http.StatusOK || resp.Token == "" {
		return "", &StatusError{Op: op, StatusCode: code, Message: resp.Error}
	}
	return resp.Token, nil
}

var _ notify.Sender = (*Client)(nil)
