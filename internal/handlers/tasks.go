package handlers

import (
	"context"
	"net/http"
	"strconv"

	"taskflow/backend/internal/middleware"
	"taskflow/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	email, ok := middleware.CurrentUserEmail(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "User not authenticated",
		})
		return
	}

	var req services.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), req, email)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListTasks serves GET /api/tasks. The query parameters pick the listing
// strategy; see services.TaskQuery.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	query, err := parseTaskQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.taskService.ListTasks(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *TaskHandler) AssignUser(c *gin.Context) {
	h.changeAssignment(c, h.taskService.AssignUser)
}

func (h *TaskHandler) UnassignUser(c *gin.Context) {
	h.changeAssignment(c, h.taskService.UnassignUser)
}

func (h *TaskHandler) changeAssignment(c *gin.Context, change func(ctx context.Context, taskID, userID uuid.UUID) (*services.TaskResponse, error)) {
	taskID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}

	task, err := change(c.Request.Context(), taskID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}

func parseTaskQuery(c *gin.Context) (services.TaskQuery, error) {
	q := services.TaskQuery{
		Search:        c.Query("search"),
		Status:        c.Query("status"),
		Priority:      c.Query("priority"),
		Page:          services.DefaultPage,
		Size:          services.DefaultPageSize,
		SortBy:        c.DefaultQuery("sortBy", services.DefaultSortBy),
		SortDirection: c.DefaultQuery("sortDirection", services.DefaultSortDirection),
	}

	var err error
	if q.CreatorID, err = queryUUID(c, "creatorId"); err != nil {
		return q, err
	}
	if q.AssignedUserID, err = queryUUID(c, "assignedUserId"); err != nil {
		return q, err
	}

	if raw, ok := c.GetQuery("page"); ok {
		if q.Page, err = strconv.Atoi(raw); err != nil {
			return q, services.NewValidationError("page", "must be an integer")
		}
	}
	if raw, ok := c.GetQuery("size"); ok {
		if q.Size, err = strconv.Atoi(raw); err != nil {
			return q, services.NewValidationError("size", "must be an integer")
		}
		if q.Size < 1 {
			return q, services.NewValidationError("size", "must be at least 1")
		}
	}

	return q, nil
}

func queryUUID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return nil, services.NewValidationError(name, "must be a valid UUID")
	}
	return &id, nil
}
