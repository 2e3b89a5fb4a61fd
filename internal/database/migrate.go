package database

import (
	"fmt"

	"taskflow/backend/internal/models"

	"gorm.io/gorm"
)

// Migrate creates or updates the schema for users, tasks and the
// task_assignees join table.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Task{}, "AssignedUsers", &models.TaskAssignee{}); err != nil {
		return fmt.Errorf("setup task_assignees join table: %w", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Task{}, &models.TaskAssignee{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
