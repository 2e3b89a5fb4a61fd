package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"taskflow/backend/internal/handlers"
	"taskflow/backend/internal/middleware"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockTaskService struct {
	err          error
	lastQuery    services.TaskQuery
	lastRequest  services.TaskRequest
	lastCreator  string
	lastTaskID   uuid.UUID
	lastUserID   uuid.UUID
	deleteCalled bool
}

func (m *MockTaskService) task(id uuid.UUID, title string) *services.TaskResponse {
	return &services.TaskResponse{
		ID:            id,
		Title:         title,
		Status:        models.StatusTodo,
		Priority:      models.PriorityMedium,
		AssignedUsers: []services.UserResponse{},
	}
}

func (m *MockTaskService) ListTasks(ctx context.Context, query services.TaskQuery) (*services.PageResponse[services.TaskResponse], error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	content := []services.TaskResponse{
		*m.task(uuid.Must(uuid.NewV4()), "Task 1"),
		*m.task(uuid.Must(uuid.NewV4()), "Task 2"),
	}
	return services.NewPageResponse(content, query.Page, query.Size, 2), nil
}

func (m *MockTaskService) CreateTask(ctx context.Context, req services.TaskRequest, creatorEmail string) (*services.TaskResponse, error) {
	m.lastRequest = req
	m.lastCreator = creatorEmail
	if m.err != nil {
		return nil, m.err
	}
	return m.task(uuid.Must(uuid.NewV4()), req.Title), nil
}

func (m *MockTaskService) GetTask(ctx context.Context, id uuid.UUID) (*services.TaskResponse, error) {
	m.lastTaskID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.task(id, "Test Task"), nil
}

func (m *MockTaskService) UpdateTask(ctx context.Context, id uuid.UUID, req services.TaskRequest) (*services.TaskResponse, error) {
	m.lastTaskID = id
	m.lastRequest = req
	if m.err != nil {
		return nil, m.err
	}
	return m.task(id, req.Title), nil
}

func (m *MockTaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	m.lastTaskID = id
	m.deleteCalled = true
	return m.err
}

func (m *MockTaskService) AssignUser(ctx context.Context, taskID, userID uuid.UUID) (*services.TaskResponse, error) {
	m.lastTaskID, m.lastUserID = taskID, userID
	if m.err != nil {
		return nil, m.err
	}
	return m.task(taskID, "Assigned"), nil
}

func (m *MockTaskService) UnassignUser(ctx context.Context, taskID, userID uuid.UUID) (*services.TaskResponse, error) {
	m.lastTaskID, m.lastUserID = taskID, userID
	if m.err != nil {
		return nil, m.err
	}
	return m.task(taskID, "Unassigned"), nil
}

func setupTaskHandler() (*MockTaskService, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	mockService := &MockTaskService{}
	handler := handlers.NewTaskHandler(mockService)
	router := gin.New()

	// stands in for AuthMiddleware
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserEmailKey, "creator@example.com")
		c.Next()
	})

	router.GET("/tasks", handler.ListTasks)
	router.POST("/tasks", handler.CreateTask)
	router.GET("/tasks/:id", handler.GetTask)
	router.PUT("/tasks/:id", handler.UpdateTask)
	router.DELETE("/tasks/:id", handler.DeleteTask)
	router.POST("/tasks/:id/assign/:userId", handler.AssignUser)
	router.DELETE("/tasks/:id/assign/:userId", handler.UnassignUser)

	return mockService, router
}

func doJSON(router *gin.Engine, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return serve(router, req)
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreateTask(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := doJSON(router, http.MethodPost, "/tasks", map[string]interface{}{
		"title":       "Write report",
		"description": "Quarterly numbers",
		"priority":    "HIGH",
		"dueDate":     "2026-11-01T09:00:00Z",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "creator@example.com", mockService.lastCreator)
	assert.Equal(t, "HIGH", mockService.lastRequest.Priority)
	require.NotNil(t, mockService.lastRequest.DueDate)
	assert.Nil(t, mockService.lastRequest.AssignedUserIDs)
	assert.Equal(t, "Write report", decodeBody(t, w)["title"])
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	_, router := setupTaskHandler()

	w := doJSON(router, http.MethodPost, "/tasks", "invalid json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeBody(t, w)["error"])
}

func TestCreateTaskMissingTitle(t *testing.T) {
	_, router := setupTaskHandler()

	w := doJSON(router, http.MethodPost, "/tasks", map[string]string{"description": "no title"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "validation_failed", body["error"])

	details, ok := body["details"].([]interface{})
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "title", details[0].(map[string]interface{})["field"])
}

func TestCreateTaskUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/tasks", handlers.NewTaskHandler(&MockTaskService{}).CreateTask)

	w := doJSON(router, http.MethodPost, "/tasks", map[string]string{"title": "x"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateTaskServiceValidationError(t *testing.T) {
	mockService, router := setupTaskHandler()
	mockService.err = services.NewValidationError("status", "unknown status %q", "LATER")

	w := doJSON(router, http.MethodPost, "/tasks", map[string]string{"title": "x", "status": "LATER"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_failed", decodeBody(t, w)["error"])
}

func TestGetTask(t *testing.T) {
	mockService, router := setupTaskHandler()
	taskID := uuid.Must(uuid.NewV4())

	w := doJSON(router, http.MethodGet, "/tasks/"+taskID.String(), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, taskID, mockService.lastTaskID)

	var task services.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "Test Task", task.Title)
}

func TestGetTaskNotFound(t *testing.T) {
	mockService, router := setupTaskHandler()
	mockService.err = services.ErrTaskNotFound

	w := doJSON(router, http.MethodGet, "/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeBody(t, w)["error"])
}

func TestGetTaskMalformedID(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := doJSON(router, http.MethodGet, "/tasks/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, uuid.Nil, mockService.lastTaskID)
}

func TestGetTaskInternalError(t *testing.T) {
	mockService, router := setupTaskHandler()
	mockService.err = gorm.ErrInvalidDB

	w := doJSON(router, http.MethodGet, "/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestListTasksDefaults(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := doJSON(router, http.MethodGet, "/tasks", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.TaskQuery{
		Page:          0,
		Size:          10,
		SortBy:        "createdAt",
		SortDirection: "DESC",
	}, mockService.lastQuery)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["totalElements"])
	assert.Len(t, body["content"], 2)
}

func TestListTasksParsesQuery(t *testing.T) {
	mockService, router := setupTaskHandler()
	creator := uuid.Must(uuid.NewV4())
	assignee := uuid.Must(uuid.NewV4())

	target := "/tasks?search=report&status=DONE&priority=LOW&page=2&size=5&sortBy=title&sortDirection=ASC" +
		"&creatorId=" + creator.String() + "&assignedUserId=" + assignee.String()
	w := doJSON(router, http.MethodGet, target, nil)

	require.Equal(t, http.StatusOK, w.Code)
	q := mockService.lastQuery
	assert.Equal(t, "report", q.Search)
	assert.Equal(t, "DONE", q.Status)
	assert.Equal(t, "LOW", q.Priority)
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 5, q.Size)
	assert.Equal(t, "title", q.SortBy)
	assert.Equal(t, "ASC", q.SortDirection)
	require.NotNil(t, q.CreatorID)
	assert.Equal(t, creator, *q.CreatorID)
	require.NotNil(t, q.AssignedUserID)
	assert.Equal(t, assignee, *q.AssignedUserID)
}

func TestListTasksRejectsBadParameters(t *testing.T) {
	tests := map[string]string{
		"non numeric page":   "/tasks?page=first",
		"non numeric size":   "/tasks?size=ten",
		"zero size":          "/tasks?size=0",
		"negative size":      "/tasks?size=-3",
		"malformed creator":  "/tasks?creatorId=abc",
		"malformed assignee": "/tasks?assignedUserId=abc",
	}

	for name, target := range tests {
		t.Run(name, func(t *testing.T) {
			mockService, router := setupTaskHandler()

			w := doJSON(router, http.MethodGet, target, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, services.TaskQuery{}, mockService.lastQuery)
		})
	}
}

func TestUpdateTask(t *testing.T) {
	mockService, router := setupTaskHandler()
	taskID := uuid.Must(uuid.NewV4())

	w := doJSON(router, http.MethodPut, "/tasks/"+taskID.String(), map[string]interface{}{
		"title":           "Updated Task",
		"status":          "IN_PROGRESS",
		"assignedUserIds": []string{},
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, taskID, mockService.lastTaskID)
	require.NotNil(t, mockService.lastRequest.AssignedUserIDs)
	assert.Empty(t, *mockService.lastRequest.AssignedUserIDs)
	assert.Equal(t, "Updated Task", decodeBody(t, w)["title"])
}

func TestUpdateTaskNotFound(t *testing.T) {
	mockService, router := setupTaskHandler()
	mockService.err = services.ErrTaskNotFound

	w := doJSON(router, http.MethodPut, "/tasks/"+uuid.Must(uuid.NewV4()).String(), map[string]string{"title": "x"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteTask(t *testing.T) {
	mockService, router := setupTaskHandler()

	w := doJSON(router, http.MethodDelete, "/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockService.deleteCalled)
	assert.Empty(t, w.Body.String())
}

func TestDeleteTaskNotFound(t *testing.T) {
	mockService, router := setupTaskHandler()
	mockService.err = services.ErrTaskNotFound

	w := doJSON(router, http.MethodDelete, "/tasks/"+uuid.Must(uuid.NewV4()).String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignAndUnassignUser(t *testing.T) {
	mockService, router := setupTaskHandler()
	taskID := uuid.Must(uuid.NewV4())
	userID := uuid.Must(uuid.NewV4())
	target := "/tasks/" + taskID.String() + "/assign/" + userID.String()

	w := doJSON(router, http.MethodPost, target, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Assigned", decodeBody(t, w)["title"])
	assert.Equal(t, taskID, mockService.lastTaskID)
	assert.Equal(t, userID, mockService.lastUserID)

	w = doJSON(router, http.MethodDelete, target, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Unassigned", decodeBody(t, w)["title"])
}

func TestAssignUserErrors(t *testing.T) {
	mockService, router := setupTaskHandler()
	taskID := uuid.Must(uuid.NewV4())

	w := doJSON(router, http.MethodPost, "/tasks/"+taskID.String()+"/assign/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mockService.err = services.ErrUserNotFound
	w = doJSON(router, http.MethodPost, "/tasks/"+taskID.String()+"/assign/"+uuid.Must(uuid.NewV4()).String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "user not found", decodeBody(t, w)["message"])
}
