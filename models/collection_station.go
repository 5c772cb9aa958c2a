package models

import "time"

// CollectionStation is a sample-draw station at the lab. Stations are
// sanitized between patients, tracked through CleaningLog.
type CollectionStation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StationNumber string    `gorm:"type:varchar(50);not null" json:"station_number"`
	Status        string    `gorm:"type:varchar(50);not null;default:'available'" json:"status"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}
