package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User never carries the tasks it created or is assigned to; those are
// queried from the task side.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	Email     string    `json:"email" gorm:"size:100;uniqueIndex;not null"`
	Username  string    `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	FirstName string    `json:"first_name" gorm:"size:50"`
	LastName  string    `json:"last_name" gorm:"size:50"`
	Role      Role      `json:"role" gorm:"size:20;not null"`
	Enabled   bool      `json:"enabled" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		u.ID = id
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}
