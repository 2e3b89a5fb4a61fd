package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"taskflow/backend/internal/database"
	"taskflow/backend/internal/logger"
	"taskflow/backend/internal/models"
	"taskflow/backend/internal/repositories"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const maxTitleLength = 200

type TaskService interface {
	ListTasks(ctx context.Context, query TaskQuery) (*PageResponse[TaskResponse], error)
	CreateTask(ctx context.Context, req TaskRequest, creatorEmail string) (*TaskResponse, error)
	GetTask(ctx context.Context, id uuid.UUID) (*TaskResponse, error)
	UpdateTask(ctx context.Context, id uuid.UUID, req TaskRequest) (*TaskResponse, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	AssignUser(ctx context.Context, taskID, userID uuid.UUID) (*TaskResponse, error)
	UnassignUser(ctx context.Context, taskID, userID uuid.UUID) (*TaskResponse, error)
}

type TaskServiceImpl struct {
	db    *gorm.DB
	tasks *repositories.TaskRepository
	users *repositories.UserRepository
	now   func() time.Time
}

func NewTaskService(db *gorm.DB, tasks *repositories.TaskRepository, users *repositories.UserRepository) *TaskServiceImpl {
	return &TaskServiceImpl{
		db:    db,
		tasks: tasks,
		users: users,
		now:   time.Now,
	}
}

// NormalizeTaskQuery applies defaults, validates paging and sorting, and
// clears the fields the selected strategy ignores. Two queries that list
// the same page normalize to the same value.
func NormalizeTaskQuery(q TaskQuery) (TaskQuery, error) {
	if q.Page < 0 {
		return q, NewValidationError("page", "must not be negative")
	}
	if q.Size < 0 {
		return q, NewValidationError("size", "must be at least 1")
	}
	if q.Size == 0 {
		q.Size = DefaultPageSize
	}
	if q.Page > math.MaxInt/q.Size-1 {
		return q, NewValidationError("page", "is too large for page size %d", q.Size)
	}

	if strings.TrimSpace(q.SortBy) == "" {
		q.SortBy = DefaultSortBy
	}
	if _, ok := repositories.ResolveSortColumn(q.SortBy); !ok {
		return q, NewValidationError("sortBy", "unsupported sort field %q", q.SortBy)
	}

	switch strings.ToUpper(strings.TrimSpace(q.SortDirection)) {
	case "":
		q.SortDirection = DefaultSortDirection
	case "ASC":
		q.SortDirection = "ASC"
	case "DESC":
		q.SortDirection = "DESC"
	default:
		return q, NewValidationError("sortDirection", "must be ASC or DESC")
	}

	switch {
	case q.Search != "":
		q.Status, q.Priority, q.CreatorID, q.AssignedUserID = "", "", nil, nil
	case q.AssignedUserID != nil:
		q.Status, q.Priority, q.CreatorID = "", "", nil
	default:
		if q.Status != "" {
			st, ok := models.ParseTaskStatus(q.Status)
			if !ok {
				return q, NewValidationError("status", "unknown status %q", q.Status)
			}
			q.Status = string(st)
		}
		if q.Priority != "" {
			p, ok := models.ParseTaskPriority(q.Priority)
			if !ok {
				return q, NewValidationError("priority", "unknown priority %q", q.Priority)
			}
			q.Priority = string(p)
		}
	}

	return q, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, query TaskQuery) (*PageResponse[TaskResponse], error) {
	q, err := NormalizeTaskQuery(query)
	if err != nil {
		return nil, err
	}

	column, _ := repositories.ResolveSortColumn(q.SortBy)
	page := repositories.PageRequest{
		Page:       q.Page,
		Size:       q.Size,
		SortColumn: column,
		Desc:       q.SortDirection == "DESC",
	}

	db := s.db.WithContext(ctx)

	var (
		tasks []models.Task
		total int64
	)
	switch {
	case q.Search != "":
		tasks, total, err = s.tasks.Search(db, q.Search, page)
	case q.AssignedUserID != nil:
		tasks, total, err = s.tasks.FindByAssignedUser(db, *q.AssignedUserID, page)
	case q.Status != "" || q.Priority != "" || q.CreatorID != nil:
		tasks, total, err = s.tasks.FindByFilters(db, toFilter(q), page)
	default:
		tasks, total, err = s.tasks.FindAll(db, page)
	}
	if err != nil {
		return nil, err
	}

	content := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		content = append(content, ToTaskResponse(&tasks[i]))
	}

	return NewPageResponse(content, q.Page, q.Size, total), nil
}

func toFilter(q TaskQuery) repositories.TaskFilter {
	var f repositories.TaskFilter
	if q.Status != "" {
		st := models.TaskStatus(q.Status)
		f.Status = &st
	}
	if q.Priority != "" {
		p := models.TaskPriority(q.Priority)
		f.Priority = &p
	}
	f.CreatorID = q.CreatorID
	return f
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, req TaskRequest, creatorEmail string) (*TaskResponse, error) {
	fields, err := parseTaskFields(req)
	if err != nil {
		return nil, err
	}

	var resp TaskResponse
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		creator, err := s.users.FindByEmail(tx, normalizeEmail(creatorEmail))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		task := models.Task{CreatorID: creator.ID}
		fields.apply(&task)

		if err := s.tasks.Create(tx, &task); err != nil {
			return err
		}

		if req.AssignedUserIDs != nil {
			ids, err := s.existingUserIDs(tx, *req.AssignedUserIDs)
			if err != nil {
				return err
			}
			if err := s.tasks.AddAssignees(tx, task.ID, ids...); err != nil {
				return err
			}
		}

		resp, err = s.reload(tx, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l := logger.FromContext(ctx)
	l.Info().Str("task_id", resp.ID.String()).Str("creator", resp.Creator.Username).Msg("task created")

	return &resp, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*TaskResponse, error) {
	resp, err := s.reload(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTask replaces every scalar field. Assignees change only when the
// request carries AssignedUserIDs.
func (s *TaskServiceImpl) UpdateTask(ctx context.Context, id uuid.UUID, req TaskRequest) (*TaskResponse, error) {
	fields, err := parseTaskFields(req)
	if err != nil {
		return nil, err
	}

	var resp TaskResponse
	err = database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		task, err := s.findTask(tx, id)
		if err != nil {
			return err
		}

		fields.apply(task)
		if err := s.tasks.Save(tx, task); err != nil {
			return err
		}

		if req.AssignedUserIDs != nil {
			ids, err := s.existingUserIDs(tx, *req.AssignedUserIDs)
			if err != nil {
				return err
			}
			if err := s.tasks.ReplaceAssignees(tx, id, ids); err != nil {
				return err
			}
		}

		resp, err = s.reload(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, id uuid.UUID) error {
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		exists, err := s.tasks.ExistsByID(tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrTaskNotFound
		}
		return s.tasks.Delete(tx, id)
	})
	if err != nil {
		return err
	}

	l := logger.FromContext(ctx)
	l.Info().Str("task_id", id.String()).Msg("task deleted")
	return nil
}

func (s *TaskServiceImpl) AssignUser(ctx context.Context, taskID, userID uuid.UUID) (*TaskResponse, error) {
	return s.changeAssignment(ctx, taskID, userID, s.tasks.AddAssignees)
}

func (s *TaskServiceImpl) UnassignUser(ctx context.Context, taskID, userID uuid.UUID) (*TaskResponse, error) {
	return s.changeAssignment(ctx, taskID, userID, func(tx *gorm.DB, taskID uuid.UUID, userIDs ...uuid.UUID) error {
		return s.tasks.RemoveAssignee(tx, taskID, userIDs[0])
	})
}

func (s *TaskServiceImpl) changeAssignment(ctx context.Context, taskID, userID uuid.UUID, change func(*gorm.DB, uuid.UUID, ...uuid.UUID) error) (*TaskResponse, error) {
	var resp TaskResponse
	err := database.WithTransaction(ctx, s.db, func(tx *gorm.DB) error {
		exists, err := s.tasks.ExistsByID(tx, taskID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrTaskNotFound
		}

		if _, err := s.users.FindByID(tx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if err := change(tx, taskID, userID); err != nil {
			return err
		}
		if err := s.tasks.Touch(tx, taskID, s.now().UTC()); err != nil {
			return err
		}

		resp, err = s.reload(tx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *TaskServiceImpl) findTask(db *gorm.DB, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.FindByID(db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *TaskServiceImpl) reload(db *gorm.DB, id uuid.UUID) (TaskResponse, error) {
	task, err := s.findTask(db, id)
	if err != nil {
		return TaskResponse{}, err
	}
	return ToTaskResponse(task), nil
}

// existingUserIDs drops duplicates and ids with no matching user.
func (s *TaskServiceImpl) existingUserIDs(db *gorm.DB, ids []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := s.users.FindAllByIDs(db, unique)
	if err != nil {
		return nil, err
	}

	found := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		found = append(found, u.ID)
	}
	return found, nil
}

type taskFields struct {
	title       string
	description *string
	status      models.TaskStatus
	priority    models.TaskPriority
	dueDate     *time.Time
}

func (f taskFields) apply(t *models.Task) {
	t.Title = f.title
	t.Description = f.description
	t.Status = f.status
	t.Priority = f.priority
	t.DueDate = f.dueDate
}

func parseTaskFields(req TaskRequest) (taskFields, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return taskFields{}, NewValidationError("title", "is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return taskFields{}, NewValidationError("title", "must not exceed %d characters", maxTitleLength)
	}

	status := models.StatusTodo
	if req.Status != "" {
		st, ok := models.ParseTaskStatus(req.Status)
		if !ok {
			return taskFields{}, NewValidationError("status", "unknown status %q", req.Status)
		}
		status = st
	}

	priority := models.PriorityMedium
	if req.Priority != "" {
		p, ok := models.ParseTaskPriority(req.Priority)
		if !ok {
			return taskFields{}, NewValidationError("priority", "unknown priority %q", req.Priority)
		}
		priority = p
	}

	var due *time.Time
	if req.DueDate != nil {
		d := req.DueDate.UTC()
		due = &d
	}

	return taskFields{
		title:       title,
		description: req.Description,
		status:      status,
		priority:    priority,
		dueDate:     due,
	}, nil
}
