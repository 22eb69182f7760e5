package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"task-board-sync/internal/auth"
	"task-board-sync/internal/database"
	"task-board-sync/internal/middleware"
	"task-board-sync/internal/models"
	"task-board-sync/internal/realtime"
	"task-board-sync/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	hub    *realtime.Hub
	h      *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	logger, _ := test.NewNullLogger()
	hub := realtime.NewHub()
	h := New(hub, nil, logger)

	r := gin.New()
	r.POST("/api/login", Login)
	api := r.Group("/api")
	api.Use(middleware.JWTAuthMiddleware())
	api.GET("/tasks", h.GetTasks)
	api.GET("/tasks/:id", h.GetTaskByID)
	api.POST("/tasks", h.CreateTask)
	api.PUT("/tasks/:id", h.UpdateTask)
	api.DELETE("/tasks/:id", h.DeleteTask)
	api.GET("/tasks/project/:projectId/overdue", h.GetOverdueTasks)
	api.POST("/notifications/create", h.CreateNotification)
	api.GET("/notifications", h.ListNotifications)
	api.DELETE("/notifications/task/:id/overdue", h.ClearTaskOverdue)
	api.GET("/projects", h.GetProjects)
	api.POST("/projects", h.CreateProject)
	api.GET("/projects/:id/manager_id", h.GetProjectManagerID)
	api.GET("/users", GetAllUsers)
	api.GET("/users/me", GetMe)

	return &testServer{router: r, db: db, hub: hub, h: h}
}

// seed creates users U1..U4, project P managed by U3 and task A created by
// U1 and assigned to U2.
func (s *testServer) seed(t *testing.T) {
	t.Helper()
	for _, u := range []models.User{
		{ID: "U1", Username: "alice"},
		{ID: "U2", Username: "bob"},
		{ID: "U3", Username: "carol"},
		{ID: "U4", Username: "dave", IsAdmin: true},
	} {
		require.NoError(t, s.db.Create(&u).Error)
	}
	require.NoError(t, s.db.Create(&models.Project{ID: "P", Name: "Apollo", ManagerID: "U3"}).Error)
	require.NoError(t, s.db.Create(&models.Task{
		ID: "A", Title: "Ship it", Status: models.StatusTodo, CreatedBy: "U1",
		AssigneeID: models.StringPtr("U2"), ProjectID: "P", Priority: models.PriorityMedium,
	}).Error)
}

func (s *testServer) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := auth.GenerateToken(userID, userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

type notifyEnvelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type captureClient struct {
	msgs [][]byte
}

func (c *captureClient) Send(message []byte) bool {
	c.msgs = append(c.msgs, message)
	return true
}

func (c *captureClient) Close() {}

func (c *captureClient) events(t *testing.T) []realtime.Event {
	t.Helper()
	out := make([]realtime.Event, len(c.msgs))
	for i, m := range c.msgs {
		require.NoError(t, json.Unmarshal(m, &out[i]))
	}
	return out
}
