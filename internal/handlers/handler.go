package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"task-board-sync/internal/database"
	"task-board-sync/internal/dedupe"
	"task-board-sync/internal/models"
	"task-board-sync/internal/realtime"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Handler serves the task, notification and project endpoints.
type Handler struct {
	hub    *realtime.Hub
	dedupe dedupe.Deduper
	log    *log.Logger
	now    func() time.Time
}

// New wires the handlers. A nil deduper keeps dedupe records in the database.
func New(hub *realtime.Hub, deduper dedupe.Deduper, logger *log.Logger) *Handler {
	if logger == nil {
		panic("handlers.New: logger is nil")
	}
	if hub == nil {
		hub = realtime.GetHub()
	}
	if deduper == nil {
		deduper = dedupe.NewDBDeduper(database.GetDB(), 0)
	}
	return &Handler{hub: hub, dedupe: deduper, log: logger, now: time.Now}
}

const (
	statusSuccess = "SUCCESS"
	statusError   = "ERROR"
)

// respond writes the {status, data, message} envelope of the task and project services.
func respond(c *gin.Context, code int, data any, message string) {
	status := statusSuccess
	if code >= http.StatusBadRequest {
		status = statusError
	}
	c.JSON(code, gin.H{
		"status":  status,
		"data":    data,
		"message": message,
	})
}

func fail(c *gin.Context, code int, message string) {
	respond(c, code, nil, message)
}

// respondNotify writes the {success, data, message} envelope of the notification service.
func respondNotify(c *gin.Context, code int, data any, message string) {
	c.JSON(code, gin.H{
		"success": code < http.StatusBadRequest,
		"data":    data,
		"message": message,
	})
}

func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return "", false
	}
	return userID, true
}

// actorFor builds the caller's capabilities for a task of projectID.
func actorFor(ctx context.Context, userID, projectID string) (models.Actor, error) {
	db := database.GetDB().WithContext(ctx)
	var u models.User
	err := db.Where("id = ?", userID).First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Actor{}, err
	}
	actor := models.NewActor(userID, u.Username)
	if u.IsAdmin {
		actor = actor.With(models.CapManageAnyTask)
	}
	if projectID != "" {
		var p models.Project
		err := db.Where("id = ?", projectID).First(&p).Error
		switch {
		case err == nil:
			if p.ManagerID == userID {
				actor = actor.With(models.CapProjectOwner)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return models.Actor{}, err
		}
	}
	return actor, nil
}

func (h *Handler) publish(topic string, ev realtime.Event) {
	if err := h.hub.Publish(topic, ev); err != nil {
		h.log.WithError(err).WithField("topic", topic).Warn("publish failed")
	}
}
