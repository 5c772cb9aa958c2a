package models

import "time"

type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);not null" json:"email"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone"`
	Subject   string    `gorm:"type:varchar(255)" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Resolved  bool      `gorm:"default:false" json:"resolved"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
