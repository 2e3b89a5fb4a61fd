package models

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

var taskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusDone}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

var taskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh}

// ParseTaskStatus matches s against the known statuses, ignoring case.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	for _, st := range taskStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// ParseTaskPriority matches s against the known priorities, ignoring case.
func ParseTaskPriority(s string) (TaskPriority, bool) {
	for _, p := range taskPriorities {
		if strings.EqualFold(s, string(p)) {
			return p, true
		}
	}
	return "", false
}

func TaskStatuses() []TaskStatus {
	return append([]TaskStatus(nil), taskStatuses...)
}

func TaskPriorities() []TaskPriority {
	return append([]TaskPriority(nil), taskPriorities...)
}

type Task struct {
	ID          uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string       `json:"title" gorm:"size:200;not null"`
	Description *string      `json:"description" gorm:"type:text"`
	Status      TaskStatus   `json:"status" gorm:"size:20;not null;index"`
	Priority    TaskPriority `json:"priority" gorm:"size:20;not null;index"`
	DueDate     *time.Time   `json:"due_date"`
	CreatorID   uuid.UUID    `json:"creator_id" gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`

	Creator       User   `json:"creator" gorm:"foreignKey:CreatorID;constraint:OnDelete:CASCADE"`
	AssignedUsers []User `json:"assigned_users" gorm:"many2many:task_assignees;joinForeignKey:TaskID;joinReferences:UserID"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	return nil
}

// TaskAssignee is one row of the task/user assignment relation.
type TaskAssignee struct {
	TaskID    uuid.UUID `gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID `gorm:"primaryKey;type:uuid;index"`
	CreatedAt time.Time

	Task Task `json:"-" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	User User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
