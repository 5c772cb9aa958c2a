package models

import "time"

// User roles. Patients book tests and view their own results, staff
// record results and manage stations, admins manage everything.
const (
	RolePatient = "patient"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FullName  string    `gorm:"type:varchar(255); not null" json:"full_name"`
	Email     string    `gorm:"type:varchar(255); unique;not null" json:"email"`
	Password  string    `gorm:"type:varchar(255); not null" json:"-"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone"`
	Role      string    `gorm:"type:varchar(20); not null;default:'patient'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
