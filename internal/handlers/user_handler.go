package handlers

import (
	"errors"
	"net/http"

	"task-board-sync/internal/database"
	"task-board-sync/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetAllUsers returns all users (protected)
// GET /api/users
func GetAllUsers(c *gin.Context) {
	var users []models.User
	if err := database.GetDB().WithContext(c.Request.Context()).Order("username asc").Find(&users).Error; err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch users")
		return
	}
	respond(c, http.StatusOK, users, "")
}

// GetMe returns the caller
// GET /api/users/me
func GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var u models.User
	err := database.GetDB().WithContext(c.Request.Context()).Where("id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, "User not found")
		} else {
			fail(c, http.StatusInternalServerError, "Failed to fetch user")
		}
		return
	}
	respond(c, http.StatusOK, u, "")
}
