// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"testing"
	"time"

	"task-tracker/internal/database"
	"task-tracker/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database with foreign keys enforced.
// A single pooled connection keeps the in-memory database alive for the whole test.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	return openTestDB(t, ":memory:?_foreign_keys=on")
}

// NewTestDBWithoutForeignKeys matches a plain SQLite file database, where ON DELETE
// clauses are ignored and the services must clear references themselves.
func NewTestDBWithoutForeignKeys(t testing.TB) *gorm.DB {
	t.Helper()
	return openTestDB(t, ":memory:?_foreign_keys=off")
}

func openTestDB(t testing.TB, dsn string) *gorm.DB {
	t.Helper()

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:       database.DriverSQLite,
		DSN:          dsn,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	require.NoError(t, pool.Migrate())
	return pool.DB
}

func CreateEmployee(t testing.TB, db *gorm.DB, fullName, position string) models.Employee {
	t.Helper()

	employee := models.Employee{FullName: fullName, Position: position}
	require.NoError(t, db.Create(&employee).Error)
	return employee
}

type TaskFixture struct {
	Name     string
	Parent   *models.Task
	Employee *models.Employee
	Deadline models.Date
	Status   models.TaskStatus
}

func CreateTask(t testing.TB, db *gorm.DB, fixture TaskFixture) models.Task {
	t.Helper()

	task := models.Task{
		Name:     fixture.Name,
		Deadline: fixture.Deadline,
		Status:   fixture.Status,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusNotStarted
	}
	if task.Deadline.IsZero() {
		task.Deadline = models.DateOf(time.Now().AddDate(0, 1, 0))
	}
	if fixture.Parent != nil {
		parentID := fixture.Parent.ID
		task.ParentTaskID = &parentID
	}
	if fixture.Employee != nil {
		employeeID := fixture.Employee.ID
		task.EmployeeID = &employeeID
	}

	require.NoError(t, db.Create(&task).Error)
	return task
}
