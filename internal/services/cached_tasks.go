package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"sync"
	"time"

	"taskflow/backend/internal/cache"
	"taskflow/backend/internal/logger"

	"github.com/gofrs/uuid"
)

const (
	taskKeyPrefix  = "task:"
	listKeyPrefix  = "tasks:list:"
	listKeyPattern = listKeyPrefix + "*"
	defaultTaskTTL = 30 * time.Minute
	defaultListTTL = 5 * time.Minute
)

// CachedTaskService is a read-through cache in front of a TaskService.
// Cache failures are logged and never fail the call.
// Across instances reads are eventually consistent: a peer's L1 copy may
// outlive a mutation here for up to its L1 TTL.
type CachedTaskService struct {
	taskService TaskService
	cache       cache.Cache
	taskTTL     time.Duration
	listTTL     time.Duration

	// gen counts invalidations. A read only populates the cache if no
	// invalidation ran while it was loading.
	mu  sync.RWMutex
	gen uint64
}

func NewCachedTaskService(taskService TaskService, c cache.Cache, taskTTL, listTTL time.Duration) *CachedTaskService {
	if taskTTL <= 0 {
		taskTTL = defaultTaskTTL
	}
	if listTTL <= 0 {
		listTTL = defaultListTTL
	}

	return &CachedTaskService{
		taskService: taskService,
		cache:       c,
		taskTTL:     taskTTL,
		listTTL:     listTTL,
	}
}

func taskKey(id uuid.UUID) string {
	return taskKeyPrefix + id.String()
}

// listKey encodes a normalized query. url.Values sorts by key, so the
// same query always yields the same key.
func listKey(q TaskQuery) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.Size))
	v.Set("sort", q.SortBy+","+q.SortDirection)
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Priority != "" {
		v.Set("priority", q.Priority)
	}
	if q.CreatorID != nil {
		v.Set("creator", q.CreatorID.String())
	}
	if q.AssignedUserID != nil {
		v.Set("assignee", q.AssignedUserID.String())
	}
	return listKeyPrefix + v.Encode()
}

func (s *CachedTaskService) ListTasks(ctx context.Context, query TaskQuery) (*PageResponse[TaskResponse], error) {
	q, err := NormalizeTaskQuery(query)
	if err != nil {
		return nil, err
	}

	key := listKey(q)

	var cached PageResponse[TaskResponse]
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.generation()
	page, err := s.taskService.ListTasks(ctx, q)
	if err != nil {
		return nil, err
	}

	s.store(ctx, gen, key, page, s.listTTL)
	return page, nil
}

func (s *CachedTaskService) GetTask(ctx context.Context, id uuid.UUID) (*TaskResponse, error) {
	key := taskKey(id)

	var cached TaskResponse
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.generation()
	task, err := s.taskService.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	s.store(ctx, gen, key, task, s.taskTTL)
	return task, nil
}

func (s *CachedTaskService) CreateTask(ctx context.Context, req TaskRequest, creatorEmail string) (*TaskResponse, error) {
	task, err := s.taskService.CreateTask(ctx, req, creatorEmail)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, task.ID)
	s.store(ctx, s.generation(), taskKey(task.ID), task, s.taskTTL)
	return task, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, id uuid.UUID, req TaskRequest) (*TaskResponse, error) {
	task, err := s.taskService.UpdateTask(ctx, id, req)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.taskService.DeleteTask(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *CachedTaskService) AssignUser(ctx context.Context, taskID, userID uuid.UUID) (*TaskResponse, error) {
	task, err := s.taskService.AssignUser(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, taskID)
	return task, nil
}

func (s *CachedTaskService) UnassignUser(ctx context.Context, taskID, userID uuid.UUID) (*TaskResponse, error) {
	task, err := s.taskService.UnassignUser(ctx, taskID, userID)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, taskID)
	return task, nil
}

func (s *CachedTaskService) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.warn(ctx, err, "cache read failed", key)
	}
	return false
}

func (s *CachedTaskService) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// store writes value unless an invalidation happened after gen was taken.
// The read lock is held across Set so a concurrent invalidate waits for it
// and then deletes what was written.
func (s *CachedTaskService) store(ctx context.Context, gen uint64, key string, value interface{}, ttl time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gen != gen {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.warn(ctx, err, "cache write failed", key)
	}
}

// invalidate drops the task entry and every cached listing, since any
// mutation can move a task in or out of a page.
func (s *CachedTaskService) invalidate(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()

	if err := s.cache.Delete(ctx, taskKey(id)); err != nil {
		s.warn(ctx, err, "cache invalidation failed", taskKey(id))
	}
	if err := s.cache.DeletePattern(ctx, listKeyPattern); err != nil {
		s.warn(ctx, err, "cache invalidation failed", listKeyPattern)
	}
}

func (s *CachedTaskService) warn(ctx context.Context, err error, msg, key string) {
	l := logger.FromContext(ctx)
	l.Warn().Err(err).Str("key", key).Msg(msg)
}
