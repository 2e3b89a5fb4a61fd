package services

import (
	"time"

	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
)

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=100"`
	Username  string `json:"username" binding:"required,min=3,max=100"`
	Password  string `json:"password" binding:"required,min=6,max=72"`
	FirstName string `json:"firstName" binding:"max=50"`
	LastName  string `json:"lastName" binding:"max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token    string      `json:"token"`
	Type     string      `json:"type"`
	UserID   uuid.UUID   `json:"userId"`
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
}

type UserResponse struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
	Role      models.Role `json:"role"`
	Enabled   bool        `json:"enabled"`
	CreatedAt time.Time   `json:"createdAt"`
}

// TaskRequest is the body of create and update. A nil AssignedUserIDs
// means "not provided"; a pointer to an empty slice clears the assignees.
type TaskRequest struct {
	Title           string       `json:"title" binding:"required,max=200"`
	Description     *string      `json:"description"`
	Status          string       `json:"status"`
	Priority        string       `json:"priority"`
	DueDate         *time.Time   `json:"dueDate"`
	AssignedUserIDs *[]uuid.UUID `json:"assignedUserIds"`
}

type TaskResponse struct {
	ID            uuid.UUID           `json:"id"`
	Title         string              `json:"title"`
	Description   *string             `json:"description"`
	Status        models.TaskStatus   `json:"status"`
	Priority      models.TaskPriority `json:"priority"`
	DueDate       *time.Time          `json:"dueDate"`
	Creator       UserResponse        `json:"creator"`
	AssignedUsers []UserResponse      `json:"assignedUsers"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

const (
	DefaultPage          = 0
	DefaultPageSize      = 10
	DefaultSortBy        = "createdAt"
	DefaultSortDirection = "DESC"
)

// TaskQuery selects one listing strategy, in this order: Search, then
// AssignedUserID, then any of Status/Priority/CreatorID, then everything.
// Zero values of Size, SortBy and SortDirection mean the defaults.
type TaskQuery struct {
	Search         string     `json:"search,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	CreatorID      *uuid.UUID `json:"creatorId,omitempty"`
	AssignedUserID *uuid.UUID `json:"assignedUserId,omitempty"`
	Page           int        `json:"page"`
	Size           int        `json:"size"`
	SortBy         string     `json:"sortBy"`
	SortDirection  string     `json:"sortDirection"`
}

type PageResponse[T any] struct {
	Content          []T   `json:"content"`
	TotalElements    int64 `json:"totalElements"`
	TotalPages       int   `json:"totalPages"`
	Page             int   `json:"page"`
	Size             int   `json:"size"`
	NumberOfElements int   `json:"numberOfElements"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	Empty            bool  `json:"empty"`
}

func NewPageResponse[T any](content []T, page, size int, total int64) *PageResponse[T] {
	if content == nil {
		content = []T{}
	}

	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}

	return &PageResponse[T]{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Page:             page,
		Size:             size,
		NumberOfElements: len(content),
		First:            page == 0,
		Last:             page+1 >= totalPages,
		Empty:            len(content) == 0,
	}
}

func ToUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
	}
}

func ToTaskResponse(t *models.Task) TaskResponse {
	assigned := make([]UserResponse, 0, len(t.AssignedUsers))
	for i := range t.AssignedUsers {
		assigned = append(assigned, ToUserResponse(&t.AssignedUsers[i]))
	}

	return TaskResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		Priority:      t.Priority,
		DueDate:       t.DueDate,
		Creator:       ToUserResponse(&t.Creator),
		AssignedUsers: assigned,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
