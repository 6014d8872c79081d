package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"task-tracker/internal/models"

	"gorm.io/gorm"
)

type EmployeeChanges struct {
	FullName *string
	Position *string
}

type EmployeeService interface {
	CreateEmployee(db *gorm.DB, employee *models.Employee) error
	GetEmployeeByID(db *gorm.DB, id uint) (models.Employee, error)
	GetEmployees(db *gorm.DB) ([]models.Employee, error)
	UpdateEmployee(db *gorm.DB, id uint, changes EmployeeChanges) (models.Employee, error)
	DeleteEmployee(db *gorm.DB, id uint) error
}

type EmployeeServiceImpl struct {
	policy ValidationPolicy
}

func NewEmployeeService(policy ValidationPolicy) *EmployeeServiceImpl {
	return &EmployeeServiceImpl{policy: policy}
}

func (s *EmployeeServiceImpl) validate(changes EmployeeChanges) error {
	errs := ValidationErrors{}

	if changes.FullName != nil {
		name := strings.TrimSpace(*changes.FullName)
		switch {
		case name == "":
			errs.add("full_name", "this field may not be blank")
		case s.policy.Strict && utf8.RuneCountInString(name) < s.policy.MinFullNameLength:
			errs.add("full_name", fmt.Sprintf("must contain at least %d characters", s.policy.MinFullNameLength))
		}
	}

	if changes.Position != nil && strings.TrimSpace(*changes.Position) == "" {
		errs.add("position", "this field may not be blank")
	}

	return errs.err()
}

func (s *EmployeeServiceImpl) CreateEmployee(db *gorm.DB, employee *models.Employee) error {
	if err := s.validate(EmployeeChanges{FullName: &employee.FullName, Position: &employee.Position}); err != nil {
		return err
	}

	employee.ID = 0
	return db.Create(employee).Error
}

func (s *EmployeeServiceImpl) GetEmployeeByID(db *gorm.DB, id uint) (models.Employee, error) {
	var employee models.Employee
	err := db.First(&employee, id).Error
	return employee, err
}

func (s *EmployeeServiceImpl) GetEmployees(db *gorm.DB) ([]models.Employee, error) {
	employees := []models.Employee{}
	err := db.Order("full_name ASC").Order("id ASC").Find(&employees).Error
	return employees, err
}

func (s *EmployeeServiceImpl) UpdateEmployee(db *gorm.DB, id uint, changes EmployeeChanges) (models.Employee, error) {
	var employee models.Employee

	if err := s.validate(changes); err != nil {
		return employee, err
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&employee, id).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if changes.FullName != nil {
			updates["full_name"] = *changes.FullName
		}
		if changes.Position != nil {
			updates["position"] = *changes.Position
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&employee).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&employee, id).Error
	})

	return employee, err
}

// DeleteEmployee removes the employee and unassigns every task that referenced it.
func (s *EmployeeServiceImpl) DeleteEmployee(db *gorm.DB, id uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var employee models.Employee
		if err := tx.First(&employee, id).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Task{}).Where("employee_id = ?", id).Update("employee_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&employee).Error
	})
}
