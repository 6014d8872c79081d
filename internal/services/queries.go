package services

import (
	"context"
	"fmt"

	"task-tracker/internal/models"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// ImportantTask is a task that blocks in-progress subtasks, with suggested assignees.
type ImportantTask struct {
	Task      models.Task       `json:"task"`
	Deadline  models.Date       `json:"deadline"`
	Employees []models.Employee `json:"employees"`
}

// EmployeeLoad is an employee together with the total number of tasks assigned to it.
type EmployeeLoad struct {
	models.Employee
	TaskCount int `db:"task_count"`
}

type QueryService interface {
	BusyEmployees(db *gorm.DB) ([]models.Employee, error)
	ImportantTasks(db *gorm.DB) ([]ImportantTask, error)
}

// QueryServiceImpl runs the aggregate reads with sqlx on the connection pool owned by gorm.
type QueryServiceImpl struct{}

func NewQueryService() *QueryServiceImpl {
	return &QueryServiceImpl{}
}

const employeeColumns = "e.id, e.full_name, e.position, e.created_at"

const taskColumns = "t.id, t.name, t.parent_task_id, t.employee_id, t.deadline, t.status, t.created_at"

var busyEmployeesQuery = `
SELECT ` + employeeColumns + `
FROM employees e
JOIN tasks t ON t.employee_id = e.id
WHERE t.status = ?
GROUP BY ` + employeeColumns + `
ORDER BY COUNT(t.id) DESC, e.full_name ASC, e.id ASC`

var employeeLoadsQuery = `
SELECT ` + employeeColumns + `, COUNT(t.id) AS task_count
FROM employees e
LEFT JOIN tasks t ON t.employee_id = e.id
GROUP BY ` + employeeColumns + `
ORDER BY e.full_name ASC, e.id ASC`

var blockingTasksQuery = `
SELECT ` + taskColumns + `
FROM tasks t
WHERE t.status IN (?)
  AND EXISTS (
    SELECT 1 FROM tasks s
    WHERE s.parent_task_id = t.id AND s.status = ?
  )
ORDER BY t.deadline ASC, t.id ASC`

const parentAssigneesQuery = `SELECT id, employee_id FROM tasks WHERE id IN (?)`

func sqlxFromGorm(db *gorm.DB) (*sqlx.DB, context.Context, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("get database handle: %w", err)
	}

	driverName := "sqlite3"
	if db.Dialector.Name() == "postgres" {
		driverName = "postgres"
	}

	return sqlx.NewDb(sqlDB, driverName), contextOf(db), nil
}

// BusyEmployees returns employees with at least one in-progress task, busiest first.
func (s *QueryServiceImpl) BusyEmployees(db *gorm.DB) ([]models.Employee, error) {
	x, ctx, err := sqlxFromGorm(db)
	if err != nil {
		return nil, err
	}

	employees := []models.Employee{}
	if err := x.SelectContext(ctx, &employees, x.Rebind(busyEmployeesQuery), models.TaskStatusInProgress); err != nil {
		return nil, fmt.Errorf("query busy employees: %w", err)
	}
	return employees, nil
}

// ImportantTasks returns not-started or completed tasks that have an in-progress subtask,
// each with the least-loaded employees as candidate assignees.
func (s *QueryServiceImpl) ImportantTasks(db *gorm.DB) ([]ImportantTask, error) {
	x, ctx, err := sqlxFromGorm(db)
	if err != nil {
		return nil, err
	}

	query, args, err := sqlx.In(blockingTasksQuery,
		[]models.TaskStatus{models.TaskStatusNotStarted, models.TaskStatusCompleted},
		models.TaskStatusInProgress)
	if err != nil {
		return nil, err
	}

	var tasks []models.Task
	if err := x.SelectContext(ctx, &tasks, x.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query important tasks: %w", err)
	}

	result := make([]ImportantTask, 0, len(tasks))
	if len(tasks) == 0 {
		return result, nil
	}

	var loads []EmployeeLoad
	if err := x.SelectContext(ctx, &loads, employeeLoadsQuery); err != nil {
		return nil, fmt.Errorf("query employee loads: %w", err)
	}

	parentAssignees, err := loadParentAssignees(ctx, x, tasks)
	if err != nil {
		return nil, err
	}

	for _, task := range tasks {
		var parentEmployeeID *uint
		if task.ParentTaskID != nil {
			parentEmployeeID = parentAssignees[*task.ParentTaskID]
		}

		result = append(result, ImportantTask{
			Task:      task,
			Deadline:  task.Deadline,
			Employees: SuggestAssignees(loads, parentEmployeeID),
		})
	}

	return result, nil
}

func loadParentAssignees(ctx context.Context, x *sqlx.DB, tasks []models.Task) (map[uint]*uint, error) {
	assignees := map[uint]*uint{}

	var parentIDs []uint
	for _, task := range tasks {
		if task.ParentTaskID != nil {
			parentIDs = append(parentIDs, *task.ParentTaskID)
		}
	}
	if len(parentIDs) == 0 {
		return assignees, nil
	}

	query, args, err := sqlx.In(parentAssigneesQuery, parentIDs)
	if err != nil {
		return nil, err
	}

	var parents []struct {
		ID         uint  `db:"id"`
		EmployeeID *uint `db:"employee_id"`
	}
	if err := x.SelectContext(ctx, &parents, x.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query parent tasks: %w", err)
	}

	for _, parent := range parents {
		assignees[parent.ID] = parent.EmployeeID
	}
	return assignees, nil
}

// SuggestAssignees returns the employees sharing the minimum task count, followed by
// the parent task's assignee when it is not among them but holds at most two tasks
// more than the minimum. No employees yields an empty list.
func SuggestAssignees(loads []EmployeeLoad, parentEmployeeID *uint) []models.Employee {
	suggested := []models.Employee{}
	if len(loads) == 0 {
		return suggested
	}

	minCount := loads[0].TaskCount
	for _, load := range loads[1:] {
		if load.TaskCount < minCount {
			minCount = load.TaskCount
		}
	}

	for _, load := range loads {
		if load.TaskCount == minCount {
			suggested = append(suggested, load.Employee)
		}
	}

	if parentEmployeeID == nil {
		return suggested
	}

	for _, load := range loads {
		if load.ID != *parentEmployeeID {
			continue
		}
		if load.TaskCount != minCount && load.TaskCount <= minCount+2 {
			suggested = append(suggested, load.Employee)
		}
		break
	}

	return suggested
}
