package models

import (
	"encoding/json"
	"reflect"
	"time"
)

type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "not_started"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

var TaskStatuses = []TaskStatus{TaskStatusNotStarted, TaskStatusInProgress, TaskStatusCompleted}

func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Task struct {
	ID           uint       `json:"id" db:"id" gorm:"primaryKey"`
	Name         string     `json:"name" db:"name" gorm:"type:varchar(255);not null"`
	ParentTaskID *uint      `json:"parent_task" db:"parent_task_id" gorm:"index"`
	EmployeeID   *uint      `json:"employee" db:"employee_id" gorm:"index"`
	Deadline     Date       `json:"deadline" db:"deadline" gorm:"not null;index"`
	Status       TaskStatus `json:"status" db:"status" gorm:"type:varchar(20);not null;default:'not_started';index"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at" gorm:"not null;autoCreateTime"`

	Subtasks []Task `json:"-" db:"-" gorm:"foreignKey:ParentTaskID;constraint:OnDelete:SET NULL"`
}

// OptionalID is a nullable reference in a partial update. Set reports whether the
// key was present in the payload; ID is nil when it was an explicit null.
type OptionalID struct {
	Set bool
	ID  *uint
}

func SomeID(id uint) OptionalID {
	return OptionalID{Set: true, ID: &id}
}

func NullID() OptionalID {
	return OptionalID{Set: true}
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.ID = nil
		return nil
	}
	var id uint
	if err := json.Unmarshal(data, &id); err != nil || id == 0 {
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf(id)}
	}
	o.ID = &id
	return nil
}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.ID == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.ID)
}
