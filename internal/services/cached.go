package services

import (
	"context"
	"log"
	"sync"
	"time"

	"task-tracker/internal/cache"
	"task-tracker/internal/models"

	"gorm.io/gorm"
)

const (
	busyEmployeesCacheKey  = "tracker:query:busy_employees"
	importantTasksCacheKey = "tracker:query:important_tasks"
	queryCachePattern      = "tracker:query:*"
)

// CachedQueryService serves derived query results from the cache until a write
// through CachedEmployeeService or CachedTaskService invalidates them.
type CachedQueryService struct {
	queries QueryService
	cache   cache.Cache
	ttl     time.Duration

	// generation advances on every invalidation. A result computed under an older
	// generation is never stored.
	mu         sync.Mutex
	generation uint64
}

func NewCachedQueryService(queries QueryService, c cache.Cache, ttl time.Duration) *CachedQueryService {
	return &CachedQueryService{queries: queries, cache: c, ttl: ttl}
}

func (s *CachedQueryService) BusyEmployees(db *gorm.DB) ([]models.Employee, error) {
	ctx := contextOf(db)

	var cached []models.Employee
	if err := s.cache.Get(ctx, busyEmployeesCacheKey, &cached); err == nil {
		return cached, nil
	}

	gen := s.currentGeneration()
	employees, err := s.queries.BusyEmployees(db)
	if err != nil {
		return nil, err
	}

	if err := s.store(ctx, gen, busyEmployeesCacheKey, employees); err != nil {
		log.Printf("⚠️ Failed to cache busy employees: %v", err)
	}
	return employees, nil
}

func (s *CachedQueryService) ImportantTasks(db *gorm.DB) ([]ImportantTask, error) {
	ctx := contextOf(db)

	var cached []ImportantTask
	if err := s.cache.Get(ctx, importantTasksCacheKey, &cached); err == nil {
		return cached, nil
	}

	gen := s.currentGeneration()
	tasks, err := s.queries.ImportantTasks(db)
	if err != nil {
		return nil, err
	}

	if err := s.store(ctx, gen, importantTasksCacheKey, tasks); err != nil {
		log.Printf("⚠️ Failed to cache important tasks: %v", err)
	}
	return tasks, nil
}

// Warm recomputes both derived results and replaces the cached copies. It reports
// false when a write invalidated the cache while the queries were running.
func (s *CachedQueryService) Warm(db *gorm.DB) (bool, error) {
	ctx := contextOf(db)
	gen := s.currentGeneration()

	employees, err := s.queries.BusyEmployees(db)
	if err != nil {
		return false, err
	}
	tasks, err := s.queries.ImportantTasks(db)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false, nil
	}
	if err := s.cache.Set(ctx, busyEmployeesCacheKey, employees, s.ttl); err != nil {
		return false, err
	}
	if err := s.cache.Set(ctx, importantTasksCacheKey, tasks, s.ttl); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate drops every cached derived result.
func (s *CachedQueryService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	if err := s.cache.DeletePattern(ctx, queryCachePattern); err != nil {
		log.Printf("⚠️ Failed to invalidate query cache: %v", err)
	}
}

func (s *CachedQueryService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *CachedQueryService) store(ctx context.Context, gen uint64, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return nil
	}
	return s.cache.Set(ctx, key, value, s.ttl)
}

func (s *CachedQueryService) CacheStats() map[string]interface{} {
	return s.cache.Stats()
}

// CachedEmployeeService invalidates derived query results after every employee write.
type CachedEmployeeService struct {
	EmployeeService
	queries *CachedQueryService
}

func NewCachedEmployeeService(employees EmployeeService, queries *CachedQueryService) *CachedEmployeeService {
	return &CachedEmployeeService{EmployeeService: employees, queries: queries}
}

func (s *CachedEmployeeService) CreateEmployee(db *gorm.DB, employee *models.Employee) error {
	if err := s.EmployeeService.CreateEmployee(db, employee); err != nil {
		return err
	}
	s.queries.Invalidate(contextOf(db))
	return nil
}

func (s *CachedEmployeeService) UpdateEmployee(db *gorm.DB, id uint, changes EmployeeChanges) (models.Employee, error) {
	employee, err := s.EmployeeService.UpdateEmployee(db, id, changes)
	if err != nil {
		return employee, err
	}
	s.queries.Invalidate(contextOf(db))
	return employee, nil
}

func (s *CachedEmployeeService) DeleteEmployee(db *gorm.DB, id uint) error {
	if err := s.EmployeeService.DeleteEmployee(db, id); err != nil {
		return err
	}
	s.queries.Invalidate(contextOf(db))
	return nil
}

// CachedTaskService invalidates derived query results after every task write.
type CachedTaskService struct {
	TaskService
	queries *CachedQueryService
}

func NewCachedTaskService(tasks TaskService, queries *CachedQueryService) *CachedTaskService {
	return &CachedTaskService{TaskService: tasks, queries: queries}
}

func (s *CachedTaskService) CreateTask(db *gorm.DB, task *models.Task) error {
	if err := s.TaskService.CreateTask(db, task); err != nil {
		return err
	}
	s.queries.Invalidate(contextOf(db))
	return nil
}

func (s *CachedTaskService) UpdateTask(db *gorm.DB, id uint, changes TaskChanges) (models.Task, error) {
	task, err := s.TaskService.UpdateTask(db, id, changes)
	if err != nil {
		return task, err
	}
	s.queries.Invalidate(contextOf(db))
	return task, nil
}

func (s *CachedTaskService) DeleteTask(db *gorm.DB, id uint) error {
	if err := s.TaskService.DeleteTask(db, id); err != nil {
		return err
	}
	s.queries.Invalidate(contextOf(db))
	return nil
}

func contextOf(db *gorm.DB) context.Context {
	if db != nil && db.Statement != nil && db.Statement.Context != nil {
		return db.Statement.Context
	}
	return context.Background()
}
