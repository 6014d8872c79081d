package models

import "time"

type Employee struct {
	ID        uint      `json:"id" db:"id" gorm:"primaryKey"`
	FullName  string    `json:"full_name" db:"full_name" gorm:"type:varchar(150);not null;index"`
	Position  string    `json:"position" db:"position" gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"not null;autoCreateTime"`

	Tasks []Task `json:"-" db:"-" gorm:"foreignKey:EmployeeID;constraint:OnDelete:SET NULL"`
}
