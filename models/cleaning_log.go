package models

import (
	"time"
)

// CleaningLog records sanitation of a sample-collection station
// between patients.
type CleaningLog struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	CleanerID uint              `gorm:"not null" json:"cleaner_id"`
	Cleaner   User              `gorm:"foreignKey:CleanerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	StationID uint              `gorm:"not null" json:"station_id"`
	Station   CollectionStation `gorm:"foreignKey:StationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"station"`
	Status    string            `gorm:"type:varchar(15);not null;default:'pending'" json:"status"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}
