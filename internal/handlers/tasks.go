package handlers

import (
	"net/http"

	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const taskEntity = "task"

type taskRequest struct {
	Name       string            `json:"name" binding:"required,max=255"`
	ParentTask models.OptionalID `json:"parent_task"`
	Employee   models.OptionalID `json:"employee"`
	Deadline   *models.Date      `json:"deadline" binding:"required"`
	Status     models.TaskStatus `json:"status" binding:"omitempty,oneof=not_started in_progress completed"`
}

type taskPatchRequest struct {
	Name       *string            `json:"name" binding:"omitempty,max=255"`
	ParentTask models.OptionalID  `json:"parent_task"`
	Employee   models.OptionalID  `json:"employee"`
	Deadline   *models.Date       `json:"deadline"`
	Status     *models.TaskStatus `json:"status" binding:"omitempty,oneof=not_started in_progress completed"`
}

type TaskHandler struct {
	db           *gorm.DB
	taskService  services.TaskService
	queryService services.QueryService
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService, queryService services.QueryService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService, queryService: queryService}
}

func (h *TaskHandler) dbFor(c *gin.Context) *gorm.DB {
	if h.db == nil {
		return nil
	}
	return h.db.WithContext(c.Request.Context())
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	tasks, err := h.taskService.GetTasks(h.dbFor(c))
	if err != nil {
		handleServiceError(c, taskEntity, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := parseID(c, taskEntity)
	if !ok {
		return
	}

	task, err := h.taskService.GetTaskByID(h.dbFor(c), id)
	if err != nil {
		handleServiceError(c, taskEntity, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var input taskRequest
	if !bindJSON(c, &input) {
		return
	}

	task := models.Task{
		Name:         input.Name,
		ParentTaskID: input.ParentTask.ID,
		EmployeeID:   input.Employee.ID,
		Deadline:     *input.Deadline,
		Status:       input.Status,
	}
	if err := h.taskService.CreateTask(h.dbFor(c), &task); err != nil {
		handleServiceError(c, taskEntity, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PUT: name and deadline are required, omitted references stay as they are.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := parseID(c, taskEntity)
	if !ok {
		return
	}

	var input taskRequest
	if !bindJSON(c, &input) {
		return
	}

	changes := services.TaskChanges{
		Name:       &input.Name,
		ParentTask: input.ParentTask,
		Employee:   input.Employee,
		Deadline:   input.Deadline,
	}
	if input.Status != "" {
		changes.Status = &input.Status
	}
	h.applyChanges(c, id, changes)
}

func (h *TaskHandler) PatchTask(c *gin.Context) {
	id, ok := parseID(c, taskEntity)
	if !ok {
		return
	}

	var input taskPatchRequest
	if !bindJSON(c, &input) {
		return
	}

	h.applyChanges(c, id, services.TaskChanges{
		Name:       input.Name,
		ParentTask: input.ParentTask,
		Employee:   input.Employee,
		Deadline:   input.Deadline,
		Status:     input.Status,
	})
}

func (h *TaskHandler) applyChanges(c *gin.Context, id uint, changes services.TaskChanges) {
	task, err := h.taskService.UpdateTask(h.dbFor(c), id, changes)
	if err != nil {
		handleServiceError(c, taskEntity, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := parseID(c, taskEntity)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(h.dbFor(c), id); err != nil {
		handleServiceError(c, taskEntity, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportantTasks lists unstarted or completed tasks blocking in-progress subtasks.
func (h *TaskHandler) ImportantTasks(c *gin.Context) {
	tasks, err := h.queryService.ImportantTasks(h.dbFor(c))
	if err != nil {
		handleServiceError(c, taskEntity, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
