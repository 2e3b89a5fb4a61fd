package repositories

import (
	"testing"
	"time"

	"taskflow/backend/internal/models"
	"taskflow/backend/internal/testdb"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	users *UserRepository
	tasks *TaskRepository

	alice *models.User
	bob   *models.User
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) SetupTest() {
	s.db = testdb.New(s.T())
	s.users = NewUserRepository()
	s.tasks = NewTaskRepository()

	s.alice = s.createUser("alice")
	s.bob = s.createUser("bob")
}

func (s *RepositoryTestSuite) createUser(name string) *models.User {
	u := &models.User{
		Email:    name + "@example.com",
		Username: name,
		Password: "hash",
		Enabled:  true,
	}
	s.Require().NoError(s.users.Create(s.db, u))
	return u
}

func (s *RepositoryTestSuite) createTask(title, description string, status models.TaskStatus, priority models.TaskPriority, createdAt time.Time) *models.Task {
	t := &models.Task{
		Title:     title,
		Status:    status,
		Priority:  priority,
		CreatorID: s.alice.ID,
		CreatedAt: createdAt,
	}
	if description != "" {
		t.Description = &description
	}
	s.Require().NoError(s.tasks.Create(s.db, t))
	return t
}

func page(size int) PageRequest {
	return PageRequest{Page: 0, Size: size, SortColumn: "created_at", Desc: true}
}

func titles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func (s *RepositoryTestSuite) TestUserLookups() {
	found, err := s.users.FindByEmail(s.db, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(s.alice.ID, found.ID)
	s.Equal(models.RoleUser, found.Role)

	byID, err := s.users.FindByID(s.db, s.bob.ID)
	s.Require().NoError(err)
	s.Equal("bob", byID.Username)

	_, err = s.users.FindByEmail(s.db, "nobody@example.com")
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	exists, err := s.users.ExistsByEmail(s.db, "alice@example.com")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.users.ExistsByUsername(s.db, "carol")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *RepositoryTestSuite) TestUserUniqueEmail() {
	dup := &models.User{Email: "alice@example.com", Username: "alice2", Password: "hash", Enabled: true}
	s.Error(s.users.Create(s.db, dup))
}

func (s *RepositoryTestSuite) TestFindAllByIDsSkipsUnknown() {
	unknown := uuid.Must(uuid.NewV4())

	users, err := s.users.FindAllByIDs(s.db, []uuid.UUID{s.alice.ID, unknown, s.bob.ID})
	s.Require().NoError(err)
	s.Len(users, 2)

	users, err = s.users.FindAllByIDs(s.db, nil)
	s.Require().NoError(err)
	s.Empty(users)
}

func (s *RepositoryTestSuite) TestCreateAndFindByIDLoadsRelations() {
	task := s.createTask("Write report", "quarterly", models.StatusTodo, models.PriorityHigh, time.Now())
	s.Require().NoError(s.tasks.AddAssignees(s.db, task.ID, s.bob.ID, s.alice.ID))

	found, err := s.tasks.FindByID(s.db, task.ID)
	s.Require().NoError(err)
	s.Equal("Write report", found.Title)
	s.Equal("alice", found.Creator.Username)
	s.Require().Len(found.AssignedUsers, 2)
	s.Equal("alice", found.AssignedUsers[0].Username)
	s.Equal("bob", found.AssignedUsers[1].Username)

	_, err = s.tasks.FindByID(s.db, uuid.Must(uuid.NewV4()))
	s.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (s *RepositoryTestSuite) TestAddAssigneesIsIdempotent() {
	task := s.createTask("Idempotent", "", models.StatusTodo, models.PriorityLow, time.Now())

	s.Require().NoError(s.tasks.AddAssignees(s.db, task.ID, s.bob.ID))
	s.Require().NoError(s.tasks.AddAssignees(s.db, task.ID, s.bob.ID))

	var count int64
	s.Require().NoError(s.db.Model(&models.TaskAssignee{}).Where("task_id = ?", task.ID).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *RepositoryTestSuite) TestRemoveAndReplaceAssignees() {
	task := s.createTask("Shuffle", "", models.StatusTodo, models.PriorityLow, time.Now())
	s.Require().NoError(s.tasks.AddAssignees(s.db, task.ID, s.alice.ID, s.bob.ID))

	s.Require().NoError(s.tasks.RemoveAssignee(s.db, task.ID, s.alice.ID))
	found, err := s.tasks.FindByID(s.db, task.ID)
	s.Require().NoError(err)
	s.Require().Len(found.AssignedUsers, 1)
	s.Equal(s.bob.ID, found.AssignedUsers[0].ID)

	// removing a non-member is a no-op
	s.NoError(s.tasks.RemoveAssignee(s.db, task.ID, s.alice.ID))

	s.Require().NoError(s.tasks.ReplaceAssignees(s.db, task.ID, []uuid.UUID{s.alice.ID}))
	found, err = s.tasks.FindByID(s.db, task.ID)
	s.Require().NoError(err)
	s.Require().Len(found.AssignedUsers, 1)
	s.Equal(s.alice.ID, found.AssignedUsers[0].ID)

	s.Require().NoError(s.tasks.ReplaceAssignees(s.db, task.ID, []uuid.UUID{}))
	found, err = s.tasks.FindByID(s.db, task.ID)
	s.Require().NoError(err)
	s.Empty(found.AssignedUsers)
}

func (s *RepositoryTestSuite) TestDeleteRemovesAssignmentRows() {
	task := s.createTask("Doomed", "", models.StatusTodo, models.PriorityLow, time.Now())
	s.Require().NoError(s.tasks.AddAssignees(s.db, task.ID, s.bob.ID))

	s.Require().NoError(s.tasks.Delete(s.db, task.ID))

	exists, err := s.tasks.ExistsByID(s.db, task.ID)
	s.Require().NoError(err)
	s.False(exists)

	var count int64
	s.Require().NoError(s.db.Model(&models.TaskAssignee{}).Where("task_id = ?", task.ID).Count(&count).Error)
	s.Zero(count)

	// users survive task deletion
	_, err = s.users.FindByID(s.db, s.bob.ID)
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestDeletingCreatorCascadesToTasksAndAssignments() {
	owned := s.createTask("Alice's", "", models.StatusTodo, models.PriorityLow, time.Now())
	s.Require().NoError(s.tasks.AddAssignees(s.db, owned.ID, s.bob.ID))

	other := &models.Task{Title: "Bob's", Status: models.StatusTodo, Priority: models.PriorityLow, CreatorID: s.bob.ID}
	s.Require().NoError(s.tasks.Create(s.db, other))
	s.Require().NoError(s.tasks.AddAssignees(s.db, other.ID, s.alice.ID, s.bob.ID))

	s.Require().NoError(s.db.Delete(&models.User{}, "id = ?", s.alice.ID).Error)

	exists, err := s.tasks.ExistsByID(s.db, owned.ID)
	s.Require().NoError(err)
	s.False(exists, "tasks follow their creator")

	var count int64
	s.Require().NoError(s.db.Model(&models.TaskAssignee{}).Where("task_id = ?", owned.ID).Count(&count).Error)
	s.Zero(count)

	s.Require().NoError(s.db.Model(&models.TaskAssignee{}).Where("user_id = ?", s.alice.ID).Count(&count).Error)
	s.Zero(count, "assignments of the deleted user are dropped")

	found, err := s.tasks.FindByID(s.db, other.ID)
	s.Require().NoError(err)
	s.Require().Len(found.AssignedUsers, 1)
	s.Equal("bob", found.AssignedUsers[0].Username)
}

func (s *RepositoryTestSuite) TestTouchUpdatesTimestamp() {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task := s.createTask("Touch me", "", models.StatusTodo, models.PriorityLow, created)
	later := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.tasks.Touch(s.db, task.ID, later))

	found, err := s.tasks.FindByID(s.db, task.ID)
	s.Require().NoError(err)
	s.True(found.UpdatedAt.Equal(later), "updated_at = %v", found.UpdatedAt)
}

func (s *RepositoryTestSuite) TestSearchMatchesTitleOrDescriptionIgnoringCase() {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.createTask("Important Meeting", "", models.StatusTodo, models.PriorityHigh, base)
	s.createTask("Groceries", "buy milk before the meeting", models.StatusTodo, models.PriorityLow, base.Add(time.Hour))
	s.createTask("Gym", "leg day", models.StatusDone, models.PriorityLow, base.Add(2*time.Hour))

	tasks, total, err := s.tasks.Search(s.db, "MEETING", page(10))
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Equal([]string{"Groceries", "Important Meeting"}, titles(tasks))

	tasks, total, err = s.tasks.Search(s.db, "important", page(10))
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal([]string{"Important Meeting"}, titles(tasks))
}

func (s *RepositoryTestSuite) TestSearchTreatsWildcardsLiterally() {
	now := time.Now()
	s.createTask("100% done", "", models.StatusDone, models.PriorityLow, now)
	s.createTask("1000 things", "", models.StatusTodo, models.PriorityLow, now.Add(time.Second))
	s.createTask("snake_case", "", models.StatusTodo, models.PriorityLow, now.Add(2*time.Second))
	s.createTask("snakeXcase", "", models.StatusTodo, models.PriorityLow, now.Add(3*time.Second))

	tasks, _, err := s.tasks.Search(s.db, "100%", page(10))
	s.Require().NoError(err)
	s.Equal([]string{"100% done"}, titles(tasks))

	tasks, _, err = s.tasks.Search(s.db, "snake_", page(10))
	s.Require().NoError(err)
	s.Equal([]string{"snake_case"}, titles(tasks))
}

func (s *RepositoryTestSuite) TestFindByAssignedUser() {
	now := time.Now()
	t1 := s.createTask("Bob's first", "", models.StatusTodo, models.PriorityLow, now)
	t2 := s.createTask("Bob's second", "", models.StatusTodo, models.PriorityLow, now.Add(time.Minute))
	s.createTask("Nobody's", "", models.StatusTodo, models.PriorityLow, now.Add(2*time.Minute))

	s.Require().NoError(s.tasks.AddAssignees(s.db, t1.ID, s.bob.ID))
	s.Require().NoError(s.tasks.AddAssignees(s.db, t2.ID, s.bob.ID, s.alice.ID))

	tasks, total, err := s.tasks.FindByAssignedUser(s.db, s.bob.ID, page(10))
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Equal([]string{"Bob's second", "Bob's first"}, titles(tasks))
	s.Len(tasks[0].AssignedUsers, 2, "all assignees are loaded, not only the filtered one")
}

func (s *RepositoryTestSuite) TestFindByFiltersCombinesWithAnd() {
	now := time.Now()
	s.createTask("high todo", "", models.StatusTodo, models.PriorityHigh, now)
	s.createTask("low todo", "", models.StatusTodo, models.PriorityLow, now.Add(time.Second))
	s.createTask("high done", "", models.StatusDone, models.PriorityHigh, now.Add(2*time.Second))

	status := models.StatusTodo
	priority := models.PriorityHigh

	tasks, total, err := s.tasks.FindByFilters(s.db, TaskFilter{Status: &status, Priority: &priority}, page(10))
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal([]string{"high todo"}, titles(tasks))

	tasks, total, err = s.tasks.FindByFilters(s.db, TaskFilter{Status: &status}, page(10))
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(tasks, 2)

	other := s.bob.ID
	_, total, err = s.tasks.FindByFilters(s.db, TaskFilter{CreatorID: &other}, page(10))
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *RepositoryTestSuite) TestFindAllPaginatesAndSorts() {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"c", "a", "e", "b", "d"} {
		s.createTask(title, "", models.StatusTodo, models.PriorityLow, base.Add(time.Duration(i)*time.Hour))
	}

	tasks, total, err := s.tasks.FindAll(s.db, PageRequest{Page: 0, Size: 2, SortColumn: "title"})
	s.Require().NoError(err)
	s.Equal(int64(5), total)
	s.Equal([]string{"a", "b"}, titles(tasks))

	tasks, _, err = s.tasks.FindAll(s.db, PageRequest{Page: 2, Size: 2, SortColumn: "title"})
	s.Require().NoError(err)
	s.Equal([]string{"e"}, titles(tasks))

	tasks, _, err = s.tasks.FindAll(s.db, PageRequest{Page: 0, Size: 3, SortColumn: "created_at", Desc: true})
	s.Require().NoError(err)
	s.Equal([]string{"d", "b", "e"}, titles(tasks))

	tasks, total, err = s.tasks.FindAll(s.db, PageRequest{Page: 9, Size: 2, SortColumn: "title"})
	s.Require().NoError(err)
	s.Equal(int64(5), total)
	s.Empty(tasks)
}

func TestResolveSortColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"createdAt", "created_at", true},
		{"created_at", "created_at", true},
		{"dueDate", "due_date", true},
		{"TITLE", "title", true},
		{"updatedAt", "updated_at", true},
		{"password", "", false},
		{"title; DROP TABLE tasks", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ResolveSortColumn(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveSortColumn(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
