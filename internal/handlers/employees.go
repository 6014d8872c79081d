package handlers

import (
	"net/http"

	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const employeeEntity = "employee"

type employeeRequest struct {
	FullName string `json:"full_name" binding:"required,max=150"`
	Position string `json:"position" binding:"required,max=100"`
}

type employeePatchRequest struct {
	FullName *string `json:"full_name" binding:"omitempty,max=150"`
	Position *string `json:"position" binding:"omitempty,max=100"`
}

type EmployeeHandler struct {
	db              *gorm.DB
	employeeService services.EmployeeService
	queryService    services.QueryService
}

func NewEmployeeHandler(db *gorm.DB, employeeService services.EmployeeService, queryService services.QueryService) *EmployeeHandler {
	return &EmployeeHandler{db: db, employeeService: employeeService, queryService: queryService}
}

func (h *EmployeeHandler) dbFor(c *gin.Context) *gorm.DB {
	if h.db == nil {
		return nil
	}
	return h.db.WithContext(c.Request.Context())
}

func (h *EmployeeHandler) GetEmployees(c *gin.Context) {
	employees, err := h.employeeService.GetEmployees(h.dbFor(c))
	if err != nil {
		handleServiceError(c, employeeEntity, err)
		return
	}
	c.JSON(http.StatusOK, employees)
}

func (h *EmployeeHandler) GetEmployeeByID(c *gin.Context) {
	id, ok := parseID(c, employeeEntity)
	if !ok {
		return
	}

	employee, err := h.employeeService.GetEmployeeByID(h.dbFor(c), id)
	if err != nil {
		handleServiceError(c, employeeEntity, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (h *EmployeeHandler) CreateEmployee(c *gin.Context) {
	var input employeeRequest
	if !bindJSON(c, &input) {
		return
	}

	employee := models.Employee{FullName: input.FullName, Position: input.Position}
	if err := h.employeeService.CreateEmployee(h.dbFor(c), &employee); err != nil {
		handleServiceError(c, employeeEntity, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

// UpdateEmployee handles PUT, which replaces both fields.
func (h *EmployeeHandler) UpdateEmployee(c *gin.Context) {
	id, ok := parseID(c, employeeEntity)
	if !ok {
		return
	}

	var input employeeRequest
	if !bindJSON(c, &input) {
		return
	}

	h.applyChanges(c, id, services.EmployeeChanges{FullName: &input.FullName, Position: &input.Position})
}

func (h *EmployeeHandler) PatchEmployee(c *gin.Context) {
	id, ok := parseID(c, employeeEntity)
	if !ok {
		return
	}

	var input employeePatchRequest
	if !bindJSON(c, &input) {
		return
	}

	h.applyChanges(c, id, services.EmployeeChanges{FullName: input.FullName, Position: input.Position})
}

func (h *EmployeeHandler) applyChanges(c *gin.Context, id uint, changes services.EmployeeChanges) {
	employee, err := h.employeeService.UpdateEmployee(h.dbFor(c), id, changes)
	if err != nil {
		handleServiceError(c, employeeEntity, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (h *EmployeeHandler) DeleteEmployee(c *gin.Context) {
	id, ok := parseID(c, employeeEntity)
	if !ok {
		return
	}

	if err := h.employeeService.DeleteEmployee(h.dbFor(c), id); err != nil {
		handleServiceError(c, employeeEntity, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// BusyEmployees lists employees with in-progress work, busiest first.
func (h *EmployeeHandler) BusyEmployees(c *gin.Context) {
	employees, err := h.queryService.BusyEmployees(h.dbFor(c))
	if err != nil {
		handleServiceError(c, employeeEntity, err)
		return
	}
	c.JSON(http.StatusOK, employees)
}
