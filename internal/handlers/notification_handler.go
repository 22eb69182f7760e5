package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"task-board-sync/internal/database"
	"task-board-sync/internal/models"
	"task-board-sync/internal/notify"
	"task-board-sync/internal/realtime"
	"task-board-sync/internal/roles"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var errInvalidType = errors.New("invalid notification type")

// CreateNotification handles POST /api/notifications/create
// A repeated TASK_OVERDUE for the same task and recipient succeeds without data.
func (h *Handler) CreateNotification(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	var ev models.NotificationEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		respondNotify(c, http.StatusBadRequest, nil, err.Error())
		return
	}

	res, err := h.storeNotification(c.Request.Context(), ev)
	switch {
	case errors.Is(err, errInvalidType):
		respondNotify(c, http.StatusBadRequest, nil, err.Error())
	case err != nil:
		respondNotify(c, http.StatusInternalServerError, nil, "Failed to create notification")
	case res.Duplicate:
		respondNotify(c, http.StatusOK, nil, "Overdue notification already sent for this task")
	default:
		respondNotify(c, http.StatusCreated, res.Notification, "Notification created")
	}
}

// storeNotification persists ev, dropping repeated overdue notices, and
// pushes it to the recipient's topic.
func (h *Handler) storeNotification(ctx context.Context, ev models.NotificationEvent) (notify.CreateResult, error) {
	if !ev.Type.Valid() {
		return notify.CreateResult{}, fmt.Errorf("%w: %q", errInvalidType, ev.Type)
	}

	dedupeOverdue := ev.Type == models.NotifyTaskOverdue && ev.TaskID != ""
	if dedupeOverdue {
		fresh, err := h.dedupe.Claim(ctx, ev.TaskID, ev.RecipientUserID)
		if err != nil {
			return notify.CreateResult{}, fmt.Errorf("dedupe: %w", err)
		}
		if !fresh {
			return notify.CreateResult{Duplicate: true}, nil
		}
	}

	title := ev.Title
	if title == "" {
		title = ev.Type.Title()
	}
	n := models.Notification{
		ID:              uuid.NewString(),
		Type:            ev.Type,
		Title:           title,
		Message:         ev.Message,
		RecipientUserID: ev.RecipientUserID,
		ActorUserID:     ev.ActorUserID,
		ActorUserName:   ev.ActorUserName,
		ProjectID:       ev.ProjectID,
		ProjectName:     ev.ProjectName,
		TaskID:          ev.TaskID,
	}
	if err := database.GetDB().WithContext(ctx).Create(&n).Error; err != nil {
		if dedupeOverdue {
			if rerr := h.dedupe.Release(ctx, ev.TaskID, ev.RecipientUserID); rerr != nil {
				h.log.WithError(rerr).WithField("task", ev.TaskID).Warn("dedupe release failed")
			}
		}
		return notify.CreateResult{}, err
	}

	h.publish(realtime.UserTopic(n.RecipientUserID), realtime.Event{
		Type:         realtime.EventNotificationCreated,
		TaskID:       n.TaskID,
		ProjectID:    n.ProjectID,
		ActorUserID:  n.ActorUserID,
		Notification: &n,
	})
	return notify.CreateResult{Notification: &n}, nil
}

// localSender lets the handler act as a notify.Sender for the
// server-side overdue scan.
type localSender struct{ h *Handler }

func (s localSender) CreateNotification(ctx context.Context, ev models.NotificationEvent) (notify.CreateResult, error) {
	return s.h.storeNotification(ctx, ev)
}

// ListNotifications handles GET /api/notifications
// Returns the caller's inbox, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	query := database.GetDB().WithContext(c.Request.Context()).Where("recipient_user_id = ?", userID)
	if c.Query("unread") == "true" {
		query = query.Where("is_read = ?", false)
	}
	var list []models.Notification
	if err := query.Order("created_at desc").Find(&list).Error; err != nil {
		respondNotify(c, http.StatusInternalServerError, nil, "Failed to fetch notifications")
		return
	}
	respondNotify(c, http.StatusOK, list, "")
}

// ClearTaskOverdue handles DELETE /api/notifications/task/:id/overdue
// Removes the task's overdue notifications and their dedupe records.
func (h *Handler) ClearTaskOverdue(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	taskID := c.Param("id")

	res := database.GetDB().WithContext(c.Request.Context()).
		Where("task_id = ? AND type = ?", taskID, models.NotifyTaskOverdue).
		Delete(&models.Notification{})
	if res.Error != nil {
		respondNotify(c, http.StatusInternalServerError, nil, "Failed to delete overdue notifications")
		return
	}
	if err := h.dedupe.ClearTask(c.Request.Context(), taskID); err != nil {
		h.log.WithError(err).WithField("task", taskID).Warn("dedupe cleanup failed")
	}
	respondNotify(c, http.StatusOK, gin.H{"deleted": res.RowsAffected}, "Overdue notifications deleted")
}

// dbOwners finds product owners in the projects table.
type dbOwners struct{}

func (dbOwners) ProductOwnerID(ctx context.Context, projectID string) (string, error) {
	var p models.Project
	err := database.GetDB().WithContext(ctx).Where("id = ?", projectID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return p.ManagerID, err
}

// ScanOverdue notifies assignee, creator and product owner of every overdue
// task on behalf of the system. Repeats are dropped by the deduper.
func (h *Handler) ScanOverdue(ctx context.Context) ([]notify.Settled, error) {
	tasks, err := h.overdueTasks(ctx, "")
	if err != nil {
		return nil, err
	}
	resolver := roles.NewResolver(dbOwners{}, nil, h.log)
	dispatcher := notify.NewDispatcher(localSender{h}, 1, h.log)

	var all []notify.Settled
	for _, t := range tasks {
		m := resolver.Resolve(ctx, t, models.SystemActorID, models.NotifyTaskOverdue)
		all = append(all, dispatcher.Dispatch(ctx, notify.Template{
			Type:          models.NotifyTaskOverdue,
			ActorUserID:   models.SystemActorID,
			ActorUserName: models.SystemActorName,
			ProjectID:     t.ProjectID,
			ProjectName:   t.ProjectName,
			TaskID:        t.ID,
			TaskTitle:     t.Title,
		}, m)...)
	}
	sent := 0
	for _, s := range all {
		if s.Status == notify.Fulfilled && !s.Duplicate {
			sent++
		}
	}
	h.log.WithFields(log.Fields{"tasks": len(tasks), "sent": sent}).Info("overdue scan finished")
	return all, nil
}
