package routes

import (
	"net/http"

	"task-board-sync/internal/handlers"
	"task-board-sync/internal/middleware"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Options carries what the router needs beyond the handlers.
type Options struct {
	CORSOrigin string
	Logger     *log.Logger
}

func SetupRoutes(h *handlers.Handler, opts Options) *gin.Engine {
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())
	if opts.Logger != nil {
		ginRouter.Use(middleware.RequestLogger(opts.Logger))
	}
	ginRouter.Use(middleware.CORS(opts.CORSOrigin))

	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Task board store is running",
		})
	})

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", handlers.Login)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		// Task endpoints
		protectedRoutes.GET("/tasks", h.GetTasks)
		protectedRoutes.GET("/tasks/:id", h.GetTaskByID)
		protectedRoutes.POST("/tasks", h.CreateTask)
		protectedRoutes.PUT("/tasks/:id", h.UpdateTask)
		protectedRoutes.DELETE("/tasks/:id", h.DeleteTask)
		protectedRoutes.GET("/tasks/project/:projectId/overdue", h.GetOverdueTasks)

		// Notification endpoints
		protectedRoutes.POST("/notifications/create", h.CreateNotification)
		protectedRoutes.GET("/notifications", h.ListNotifications)
		protectedRoutes.DELETE("/notifications/task/:id/overdue", h.ClearTaskOverdue)

		// Project endpoints
		protectedRoutes.GET("/projects", h.GetProjects)
		protectedRoutes.POST("/projects", h.CreateProject)
		protectedRoutes.GET("/projects/:id/manager_id", h.GetProjectManagerID)

		// Users endpoints
		protectedRoutes.GET("/users", handlers.GetAllUsers)
		protectedRoutes.GET("/users/me", handlers.GetMe)

		protectedRoutes.GET("/ws", h.WebSocket)
	}

	return ginRouter
}
