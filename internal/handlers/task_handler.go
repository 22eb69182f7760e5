package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"task-board-sync/internal/database"
	"task-board-sync/internal/models"
	"task-board-sync/internal/permission"
	"task-board-sync/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	Title        string                 `json:"title" binding:"required"`
	Description  string                 `json:"description"`
	Status       models.TaskStatus      `json:"status"`
	AssigneeID   *string                `json:"assigneeId"`
	ProjectID    string                 `json:"projectId" binding:"required"`
	SprintID     *string                `json:"sprintId"`
	Priority     models.TaskPriority    `json:"priority"`
	DueDate      *time.Time             `json:"dueDate"`
	ParentTaskID *string                `json:"parentTaskId"`
	Attachments  []models.AttachmentRef `json:"attachments"`
}

// enrich fills the display fields that are not stored on the task row.
func enrich(db *gorm.DB, tasks []models.Task) {
	if len(tasks) == 0 {
		return
	}
	var users []models.User
	if err := db.Find(&users).Error; err == nil {
		names := make(map[string]string, len(users))
		for _, u := range users {
			names[u.ID] = u.Username
		}
		for i := range tasks {
			if name, ok := names[tasks[i].Assignee()]; ok {
				tasks[i].AssigneeName = name
			}
		}
	}
	var projects []models.Project
	if err := db.Find(&projects).Error; err == nil {
		names := make(map[string]string, len(projects))
		for _, p := range projects {
			names[p.ID] = p.Name
		}
		for i := range tasks {
			tasks[i].ProjectName = names[tasks[i].ProjectID]
		}
	}
}

func loadTask(c *gin.Context, taskID string) (models.Task, bool) {
	var task models.Task
	err := database.GetDB().WithContext(c.Request.Context()).Where("id = ?", taskID).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Task not found")
		} else {
			fail(c, http.StatusInternalServerError, "Failed to fetch task")
		}
		return models.Task{}, false
	}
	return task, true
}

// GetTasks handles GET /api/tasks
// Optional filters: projectId, sprintId, status, parentTaskId.
func (h *Handler) GetTasks(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	query := db.Model(&models.Task{})
	if v := c.Query("projectId"); v != "" {
		query = query.Where("project_id = ?", v)
	}
	if v := c.Query("sprintId"); v != "" {
		query = query.Where("sprint_id = ?", v)
	}
	if v := c.Query("status"); v != "" {
		status := models.TaskStatus(strings.ToUpper(v))
		if !status.Valid() {
			fail(c, http.StatusBadRequest, "Invalid status")
			return
		}
		query = query.Where("status = ?", status)
	}
	if v := c.Query("parentTaskId"); v != "" {
		query = query.Where("parent_task_id = ?", v)
	}

	var tasks []models.Task
	if err := query.Order("created_at asc").Find(&tasks).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch tasks")
		return
	}
	enrich(db, tasks)
	respond(c, http.StatusOK, tasks, "")
}

// GetTaskByID handles GET /api/tasks/:id
func (h *Handler) GetTaskByID(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	task, ok := loadTask(c, c.Param("id"))
	if !ok {
		return
	}
	tasks := []models.Task{task}
	enrich(database.GetDB().WithContext(c.Request.Context()), tasks)
	respond(c, http.StatusOK, tasks[0], "")
}

// CreateTask handles POST /api/tasks
func (h *Handler) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	status := req.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		fail(c, http.StatusBadRequest, "Invalid status")
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	db := database.GetDB().WithContext(c.Request.Context())
	if req.ParentTaskID != nil && *req.ParentTaskID != "" {
		var parent models.Task
		if err := db.Where("id = ? AND project_id = ?", *req.ParentTaskID, req.ProjectID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, http.StatusBadRequest, "Invalid parentTaskId: parent task not found in project")
			} else {
				fail(c, http.StatusInternalServerError, "Failed to validate parentTaskId")
			}
			return
		}
	}

	task := models.Task{
		ID:           uuid.NewString(),
		Title:        req.Title,
		Description:  req.Description,
		Status:       status,
		AssigneeID:   req.AssigneeID,
		CreatedBy:    userID,
		ProjectID:    req.ProjectID,
		SprintID:     req.SprintID,
		Priority:     priority,
		DueDate:      req.DueDate,
		ParentTaskID: req.ParentTaskID,
		Attachments:  req.Attachments,
	}
	if status == models.StatusDone {
		at := h.now().UTC()
		task.CompletedAt = &at
	}

	if err := db.Create(&task).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to create task")
		return
	}
	tasks := []models.Task{task}
	enrich(db, tasks)
	task = tasks[0]

	h.publish(realtime.ProjectTopic(task.ProjectID), realtime.Event{
		Type:        realtime.EventTaskCreated,
		TaskID:      task.ID,
		ProjectID:   task.ProjectID,
		ActorUserID: userID,
		Task:        &task,
	})
	respond(c, http.StatusCreated, task, "Task created")
}

// UpdateTask handles PUT /api/tasks/:id
// The body is the full task; id, creator and creation time cannot change.
func (h *Handler) UpdateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	existing, ok := loadTask(c, c.Param("id"))
	if !ok {
		return
	}

	actor, err := actorFor(c.Request.Context(), userID, existing.ProjectID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load permissions")
		return
	}
	if !permission.CanEdit(existing, actor) {
		fail(c, http.StatusForbidden, permission.ErrNotPermitted.Error())
		return
	}

	var body models.Task
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if body.Status == "" {
		body.Status = existing.Status
	}
	if !body.Status.Valid() {
		fail(c, http.StatusBadRequest, "Invalid status")
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		fail(c, http.StatusBadRequest, "Title is required")
		return
	}

	body.ID = existing.ID
	body.CreatedBy = existing.CreatedBy
	body.CreatedAt = existing.CreatedAt
	if body.ProjectID == "" {
		body.ProjectID = existing.ProjectID
	}
	if body.Priority == "" {
		body.Priority = existing.Priority
	}
	switch {
	case body.Status != models.StatusDone:
		body.CompletedAt = nil
	case body.CompletedAt == nil:
		at := h.now().UTC()
		body.CompletedAt = &at
	}

	db := database.GetDB().WithContext(c.Request.Context())
	if err := db.Save(&body).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update task")
		return
	}
	tasks := []models.Task{body}
	enrich(db, tasks)
	body = tasks[0]

	h.publish(realtime.ProjectTopic(body.ProjectID), realtime.Event{
		Type:        realtime.EventTaskUpdated,
		TaskID:      body.ID,
		ProjectID:   body.ProjectID,
		ActorUserID: userID,
		Task:        &body,
	})
	respond(c, http.StatusOK, body, "Task updated")
}

// DeleteTask handles DELETE /api/tasks/:id
// Subtasks must be deleted first.
func (h *Handler) DeleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	task, ok := loadTask(c, c.Param("id"))
	if !ok {
		return
	}

	actor, err := actorFor(c.Request.Context(), userID, task.ProjectID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to load permissions")
		return
	}
	if !permission.CanEdit(task, actor) {
		fail(c, http.StatusForbidden, permission.ErrNotPermitted.Error())
		return
	}

	db := database.GetDB().WithContext(c.Request.Context())
	var subtasks int64
	if err := db.Model(&models.Task{}).Where("parent_task_id = ?", task.ID).Count(&subtasks).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to count subtasks")
		return
	}
	if subtasks > 0 {
		fail(c, http.StatusConflict, "Task has subtasks; delete them first")
		return
	}

	if err := db.Delete(&task).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to delete task")
		return
	}

	h.publish(realtime.ProjectTopic(task.ProjectID), realtime.Event{
		Type:        realtime.EventTaskDeleted,
		TaskID:      task.ID,
		ProjectID:   task.ProjectID,
		ActorUserID: userID,
	})
	respond(c, http.StatusOK, gin.H{"id": task.ID}, "Task deleted successfully")
}

// GetOverdueTasks handles GET /api/tasks/project/:projectId/overdue
func (h *Handler) GetOverdueTasks(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	tasks, err := h.overdueTasks(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch overdue tasks")
		return
	}
	respond(c, http.StatusOK, tasks, "")
}

// overdueTasks lists the project's tasks whose due day has ended and which
// are not done. An empty projectID means every project.
func (h *Handler) overdueTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	db := database.GetDB().WithContext(ctx)
	query := db.Where("due_date IS NOT NULL AND status <> ?", models.StatusDone)
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	var candidates []models.Task
	if err := query.Order("due_date asc").Find(&candidates).Error; err != nil {
		return nil, err
	}
	now := h.now()
	tasks := make([]models.Task, 0, len(candidates))
	for _, t := range candidates {
		if t.IsOverdue(now) {
			tasks = append(tasks, t)
		}
	}
	enrich(db, tasks)
	return tasks, nil
}
