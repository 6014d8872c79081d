package services_test

import (
	"testing"
	"time"

	"task-tracker/internal/cache"
	"task-tracker/internal/models"
	"task-tracker/internal/services"
	"task-tracker/internal/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) BusyEmployees(db *gorm.DB) ([]models.Employee, error) {
	args := m.Called(db)
	return args.Get(0).([]models.Employee), args.Error(1)
}

func (m *MockQueryService) ImportantTasks(db *gorm.DB) ([]services.ImportantTask, error) {
	args := m.Called(db)
	return args.Get(0).([]services.ImportantTask), args.Error(1)
}

func TestCachedQueryService_ServesFromCache(t *testing.T) {
	queries := new(MockQueryService)
	queries.On("BusyEmployees", mock.Anything).
		Return([]models.Employee{{ID: 1, FullName: "Alice"}}, nil).Once()

	cached := services.NewCachedQueryService(queries, cache.NewMultiLevelCache(nil, nil), time.Minute)

	for i := 0; i < 3; i++ {
		employees, err := cached.BusyEmployees(nil)
		require.NoError(t, err)
		require.Len(t, employees, 1)
		assert.Equal(t, "Alice", employees[0].FullName)
	}

	queries.AssertExpectations(t)
}

func TestCachedQueryService_DoesNotCacheErrors(t *testing.T) {
	queries := new(MockQueryService)
	queries.On("ImportantTasks", mock.Anything).
		Return([]services.ImportantTask(nil), assert.AnError).Once()
	queries.On("ImportantTasks", mock.Anything).
		Return([]services.ImportantTask{}, nil).Once()

	cached := services.NewCachedQueryService(queries, cache.NewMultiLevelCache(nil, nil), time.Minute)

	_, err := cached.ImportantTasks(nil)
	assert.ErrorIs(t, err, assert.AnError)

	tasks, err := cached.ImportantTasks(nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	queries.AssertExpectations(t)
}

func TestCachedServices_WritesInvalidateQueries(t *testing.T) {
	db := testsupport.NewTestDB(t)
	c := cache.NewMultiLevelCache(nil, nil)

	policy := strictPolicy()
	queries := services.NewCachedQueryService(services.NewQueryService(), c, time.Minute)
	employees := services.NewCachedEmployeeService(services.NewEmployeeService(policy), queries)
	tasks := services.NewCachedTaskService(services.NewTaskService(policy), queries)

	busy, err := queries.BusyEmployees(db)
	require.NoError(t, err)
	assert.Empty(t, busy)

	alice := models.Employee{FullName: "Alice", Position: "Dev"}
	require.NoError(t, employees.CreateEmployee(db, &alice))

	task := models.Task{
		Name:       "Deploy",
		Deadline:   date("2024-07-01"),
		Status:     models.TaskStatusInProgress,
		EmployeeID: &alice.ID,
	}
	require.NoError(t, tasks.CreateTask(db, &task))

	busy, err = queries.BusyEmployees(db)
	require.NoError(t, err)
	require.Len(t, busy, 1, "task creation must invalidate the cached result")
	assert.Equal(t, alice.ID, busy[0].ID)

	_, err = tasks.UpdateTask(db, task.ID, services.TaskChanges{Status: statusPtr(models.TaskStatusCompleted)})
	require.NoError(t, err)

	busy, err = queries.BusyEmployees(db)
	require.NoError(t, err)
	assert.Empty(t, busy)

	stats := queries.CacheStats()
	assert.Contains(t, stats, "metrics")
}

func TestCachedServices_FailedWriteKeepsCache(t *testing.T) {
	db := testsupport.NewTestDB(t)
	c := cache.NewMultiLevelCache(nil, nil)
	queries := services.NewCachedQueryService(services.NewQueryService(), c, time.Minute)
	employees := services.NewCachedEmployeeService(services.NewEmployeeService(strictPolicy()), queries)

	var marker []models.Employee
	require.NoError(t, c.Set(t.Context(), "tracker:query:busy_employees", []models.Employee{{ID: 7}}, time.Minute))

	err := employees.DeleteEmployee(db, 404)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, c.Get(t.Context(), "tracker:query:busy_employees", &marker))
	assert.Len(t, marker, 1)
}

func TestCachedQueryService_WarmFillsCache(t *testing.T) {
	queries := new(MockQueryService)
	queries.On("BusyEmployees", mock.Anything).
		Return([]models.Employee{{ID: 3, FullName: "Carol"}}, nil).Once()
	queries.On("ImportantTasks", mock.Anything).
		Return([]services.ImportantTask{}, nil).Once()

	cached := services.NewCachedQueryService(queries, cache.NewMultiLevelCache(nil, nil), time.Minute)

	stored, err := cached.Warm(nil)
	require.NoError(t, err)
	assert.True(t, stored)

	employees, err := cached.BusyEmployees(nil)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "Carol", employees[0].FullName)

	tasks, err := cached.ImportantTasks(nil)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	queries.AssertExpectations(t)
}

func TestCachedQueryService_InvalidationDuringWarmDiscardsResult(t *testing.T) {
	queries := new(MockQueryService)
	var cached *services.CachedQueryService

	queries.On("BusyEmployees", mock.Anything).
		Run(func(mock.Arguments) { cached.Invalidate(t.Context()) }).
		Return([]models.Employee{{ID: 1, FullName: "Stale"}}, nil).Once()
	queries.On("ImportantTasks", mock.Anything).
		Return([]services.ImportantTask{}, nil).Once()
	queries.On("BusyEmployees", mock.Anything).
		Return([]models.Employee{}, nil).Once()

	cached = services.NewCachedQueryService(queries, cache.NewMultiLevelCache(nil, nil), time.Minute)

	stored, err := cached.Warm(nil)
	require.NoError(t, err)
	assert.False(t, stored)

	employees, err := cached.BusyEmployees(nil)
	require.NoError(t, err)
	assert.Empty(t, employees)

	queries.AssertExpectations(t)
}

func TestCachedQueryService_WarmPropagatesErrors(t *testing.T) {
	queries := new(MockQueryService)
	queries.On("BusyEmployees", mock.Anything).
		Return([]models.Employee(nil), assert.AnError).Once()

	cached := services.NewCachedQueryService(queries, cache.NewMultiLevelCache(nil, nil), time.Minute)

	stored, err := cached.Warm(nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, stored)
}
