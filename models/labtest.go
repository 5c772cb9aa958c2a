package models

import "time"

type LabTest struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	CategoryID      uint         `gorm:"not null" json:"category_id"`
	Category        TestCategory `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"category"`
	Name            string       `gorm:"type:varchar(255); not null" json:"name"`
	Code            string       `gorm:"type:varchar(20);uniqueIndex;not null" json:"code"`
	Price           float64      `gorm:"type:decimal(12,2); not null" json:"price"`
	SampleType      string       `gorm:"type:varchar(50)" json:"sample_type"`
	TurnaroundHours int          `gorm:"default:24" json:"turnaround_hours"`
	Description     string       `gorm:"type:text" json:"description"`
	Active          bool         `gorm:"default:true" json:"active"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}
