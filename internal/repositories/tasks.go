package repositories

import (
	"strings"
	"time"

	"taskflow/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskFilter holds the structured filter fields. Nil fields do not
// constrain the result.
type TaskFilter struct {
	Status    *models.TaskStatus
	Priority  *models.TaskPriority
	CreatorID *uuid.UUID
}

type TaskRepository struct{}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

func (r *TaskRepository) Create(db *gorm.DB, task *models.Task) error {
	return db.Omit(clause.Associations).Create(task).Error
}

func (r *TaskRepository) Save(db *gorm.DB, task *models.Task) error {
	return db.Omit(clause.Associations).Save(task).Error
}

// FindByID loads the task with its creator and assignees.
func (r *TaskRepository) FindByID(db *gorm.DB, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := db.Scopes(withRelations).Where("tasks.id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ExistsByID(db *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	if err := db.Model(&models.Task{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes the task and its assignment rows.
func (r *TaskRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if err := db.Where("task_id = ?", id).Delete(&models.TaskAssignee{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Task{}).Error
}

// AddAssignees links users to the task. Existing links are left untouched.
func (r *TaskRepository) AddAssignees(db *gorm.DB, taskID uuid.UUID, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}

	rows := make([]models.TaskAssignee, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, models.TaskAssignee{TaskID: taskID, UserID: uid})
	}

	return db.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&rows).Error
}

func (r *TaskRepository) RemoveAssignee(db *gorm.DB, taskID, userID uuid.UUID) error {
	return db.Where("task_id = ? AND user_id = ?", taskID, userID).Delete(&models.TaskAssignee{}).Error
}

// ReplaceAssignees makes userIDs the complete assignee set of the task.
func (r *TaskRepository) ReplaceAssignees(db *gorm.DB, taskID uuid.UUID, userIDs []uuid.UUID) error {
	if err := db.Where("task_id = ?", taskID).Delete(&models.TaskAssignee{}).Error; err != nil {
		return err
	}
	return r.AddAssignees(db, taskID, userIDs...)
}

// Touch bumps updated_at for mutations that only change assignment rows.
func (r *TaskRepository) Touch(db *gorm.DB, taskID uuid.UUID, at time.Time) error {
	return db.Model(&models.Task{}).Where("id = ?", taskID).UpdateColumn("updated_at", at).Error
}

// Search matches keyword case-insensitively against title or description.
func (r *TaskRepository) Search(db *gorm.DB, keyword string, page PageRequest) ([]models.Task, int64, error) {
	pattern := "%" + escapeLike(strings.ToLower(keyword)) + "%"
	scope := func(q *gorm.DB) *gorm.DB {
		return q.Where(`(LOWER(tasks.title) LIKE ? ESCAPE '\' OR LOWER(tasks.description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return r.paginate(db, scope, page)
}

// FindByAssignedUser lists tasks that have userID among their assignees.
func (r *TaskRepository) FindByAssignedUser(db *gorm.DB, userID uuid.UUID, page PageRequest) ([]models.Task, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		sub := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.TaskAssignee{}).
			Select("task_id").
			Where("user_id = ?", userID)
		return q.Where("tasks.id IN (?)", sub)
	}
	return r.paginate(db, scope, page)
}

// FindByFilters ANDs together whichever filter fields are set.
func (r *TaskRepository) FindByFilters(db *gorm.DB, filter TaskFilter, page PageRequest) ([]models.Task, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			q = q.Where("tasks.status = ?", *filter.Status)
		}
		if filter.Priority != nil {
			q = q.Where("tasks.priority = ?", *filter.Priority)
		}
		if filter.CreatorID != nil {
			q = q.Where("tasks.creator_id = ?", *filter.CreatorID)
		}
		return q
	}
	return r.paginate(db, scope, page)
}

func (r *TaskRepository) FindAll(db *gorm.DB, page PageRequest) ([]models.Task, int64, error) {
	return r.paginate(db, func(q *gorm.DB) *gorm.DB { return q }, page)
}

func (r *TaskRepository) paginate(db *gorm.DB, scope func(*gorm.DB) *gorm.DB, page PageRequest) ([]models.Task, int64, error) {
	var total int64
	if err := db.Model(&models.Task{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	tasks := []models.Task{}
	if total == 0 || int64(page.Offset()) >= total {
		return tasks, total, nil
	}

	sortColumn := page.SortColumn
	if sortColumn == "" {
		sortColumn = "created_at"
	}

	err := db.Model(&models.Task{}).
		Scopes(scope, withRelations).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{
			{Column: clause.Column{Table: "tasks", Name: sortColumn}, Desc: page.Desc},
			{Column: clause.Column{Table: "tasks", Name: "id"}},
		}}).
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Creator").
		Preload("AssignedUsers", func(q *gorm.DB) *gorm.DB {
			return q.Order("users.username ASC")
		})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
