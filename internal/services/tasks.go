package services

import (
	"errors"
	"fmt"
	"strings"

	"task-tracker/internal/models"

	"gorm.io/gorm"
)

// TaskChanges is a partial task update; nil pointers and unset references are left untouched.
type TaskChanges struct {
	Name       *string
	ParentTask models.OptionalID
	Employee   models.OptionalID
	Deadline   *models.Date
	Status     *models.TaskStatus
}

type TaskService interface {
	CreateTask(db *gorm.DB, task *models.Task) error
	GetTaskByID(db *gorm.DB, id uint) (models.Task, error)
	GetTasks(db *gorm.DB) ([]models.Task, error)
	UpdateTask(db *gorm.DB, id uint, changes TaskChanges) (models.Task, error)
	DeleteTask(db *gorm.DB, id uint) error
}

type TaskServiceImpl struct {
	policy ValidationPolicy
}

func NewTaskService(policy ValidationPolicy) *TaskServiceImpl {
	return &TaskServiceImpl{policy: policy}
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, task *models.Task) error {
	if task.Status == "" {
		task.Status = models.TaskStatusNotStarted
	}

	errs := ValidationErrors{}
	s.validateFields(errs, &task.Name, &task.Deadline, &task.Status)
	if err := errs.err(); err != nil {
		return err
	}

	task.ID = 0
	return db.Transaction(func(tx *gorm.DB) error {
		if err := checkReferences(tx, 0, task.ParentTaskID, task.EmployeeID); err != nil {
			return err
		}
		return tx.Create(task).Error
	})
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, id uint) (models.Task, error) {
	var task models.Task
	err := db.First(&task, id).Error
	return task, err
}

func (s *TaskServiceImpl) GetTasks(db *gorm.DB) ([]models.Task, error) {
	tasks := []models.Task{}
	err := db.Order("deadline ASC").Order("id ASC").Find(&tasks).Error
	return tasks, err
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, id uint, changes TaskChanges) (models.Task, error) {
	var task models.Task

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}

		// An unchanged deadline is not re-checked, so tasks already past due stay editable.
		deadline := changes.Deadline
		if deadline != nil && deadline.Equal(task.Deadline) {
			deadline = nil
		}

		errs := ValidationErrors{}
		s.validateFields(errs, changes.Name, deadline, changes.Status)
		if err := errs.err(); err != nil {
			return err
		}

		parentID := task.ParentTaskID
		if changes.ParentTask.Set {
			parentID = changes.ParentTask.ID
		}
		employeeID := task.EmployeeID
		if changes.Employee.Set {
			employeeID = changes.Employee.ID
		}
		if err := checkReferences(tx, task.ID, parentID, employeeID); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if changes.Name != nil {
			updates["name"] = *changes.Name
		}
		if changes.ParentTask.Set {
			updates["parent_task_id"] = changes.ParentTask.ID
		}
		if changes.Employee.Set {
			updates["employee_id"] = changes.Employee.ID
		}
		if changes.Deadline != nil {
			updates["deadline"] = *changes.Deadline
		}
		if changes.Status != nil {
			updates["status"] = *changes.Status
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&task, id).Error
	})

	return task, err
}

// DeleteTask removes the task and detaches its subtasks, which become top-level tasks.
func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var task models.Task
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Task{}).Where("parent_task_id = ?", id).Update("parent_task_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&task).Error
	})
}

func (s *TaskServiceImpl) validateFields(errs ValidationErrors, name *string, deadline *models.Date, status *models.TaskStatus) {
	if name != nil && strings.TrimSpace(*name) == "" {
		errs.add("name", "this field may not be blank")
	}

	if deadline != nil {
		switch {
		case deadline.IsZero():
			errs.add("deadline", "this field is required")
		case s.policy.Strict && deadline.Before(models.DateOf(s.policy.today())):
			errs.add("deadline", "deadline cannot be in the past")
		}
	}

	if status != nil && !status.Valid() {
		errs.add("status", fmt.Sprintf("%q is not a valid choice", *status))
	}
}

// checkReferences verifies that the referenced employee and parent task exist and that
// the parent chain starting at parentID does not lead back to taskID.
func checkReferences(tx *gorm.DB, taskID uint, parentID, employeeID *uint) error {
	errs := ValidationErrors{}

	if employeeID != nil {
		var count int64
		if err := tx.Model(&models.Employee{}).Where("id = ?", *employeeID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			errs.add("employee", fmt.Sprintf("invalid pk %d - employee does not exist", *employeeID))
		}
	}

	if parentID != nil {
		if err := checkParentChain(tx, errs, taskID, *parentID); err != nil {
			return err
		}
	}

	return errs.err()
}

func checkParentChain(tx *gorm.DB, errs ValidationErrors, taskID, parentID uint) error {
	if taskID != 0 && parentID == taskID {
		errs.add("parent_task", "a task cannot be its own parent")
		return nil
	}

	visited := map[uint]bool{}
	current := parentID
	for {
		var ancestor models.Task
		err := tx.Select("id", "parent_task_id").First(&ancestor, current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if current == parentID {
				errs.add("parent_task", fmt.Sprintf("invalid pk %d - task does not exist", parentID))
			}
			return nil
		}
		if err != nil {
			return err
		}

		visited[current] = true
		if ancestor.ParentTaskID == nil || visited[*ancestor.ParentTaskID] {
			return nil
		}

		current = *ancestor.ParentTaskID
		if taskID != 0 && current == taskID {
			errs.add("parent_task", "parent_task would create a cycle")
			return nil
		}
	}
}
