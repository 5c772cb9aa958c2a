package models

import "time"

// Test result statuses. A result is only visible to the patient once
// staff release it.
const (
	ResultStatusPending  = "pending"
	ResultStatusReady    = "ready"
	ResultStatusReleased = "released"
)

type TestResult struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	BookingID  uint       `gorm:"not null;index" json:"booking_id"`
	Booking    Booking    `gorm:"foreignKey:BookingID" json:"-"`
	LabTestID  uint       `gorm:"not null" json:"lab_test_id"`
	LabTest    LabTest    `gorm:"foreignKey:LabTestID" json:"lab_test"`
	PatientID  uint       `gorm:"not null;index" json:"patient_id"`
	Status     string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Summary    string     `gorm:"type:varchar(255)" json:"summary"`
	Details    string     `gorm:"type:text" json:"details"`
	ReportURL  string     `gorm:"type:varchar(255)" json:"report_url,omitempty"`
	RecordedBy *uint      `json:"recorded_by,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}
