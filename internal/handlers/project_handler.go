package handlers

import (
	"errors"
	"net/http"

	"task-board-sync/internal/database"
	"task-board-sync/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateProjectRequest represents the request payload for creating a project
type CreateProjectRequest struct {
	Name      string `json:"name" binding:"required"`
	ManagerID string `json:"managerId"`
}

// GetProjects handles GET /api/projects
func (h *Handler) GetProjects(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	var projects []models.Project
	if err := database.GetDB().WithContext(c.Request.Context()).Order("name asc").Find(&projects).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch projects")
		return
	}
	respond(c, http.StatusOK, projects, "")
}

// CreateProject handles POST /api/projects
// The caller manages the project unless managerId names someone else.
func (h *Handler) CreateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	p := models.Project{ID: uuid.NewString(), Name: req.Name, ManagerID: req.ManagerID}
	if p.ManagerID == "" {
		p.ManagerID = userID
	}
	if err := database.GetDB().WithContext(c.Request.Context()).Create(&p).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to create project")
		return
	}
	respond(c, http.StatusCreated, p, "Project created")
}

// GetProjectManagerID handles GET /api/projects/:id/manager_id
// data is the product owner's user id.
func (h *Handler) GetProjectManagerID(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	var p models.Project
	err := database.GetDB().WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "Project not found")
		} else {
			fail(c, http.StatusInternalServerError, "Failed to fetch project")
		}
		return
	}
	respond(c, http.StatusOK, p.ManagerID, "")
}
