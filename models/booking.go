package models

import (
	"time"
)

// Booking statuses follow the visit lifecycle: payment first, then the
// sample is collected and processed until results are out.
const (
	BookingStatusPendingPayment  = "pending_payment"
	BookingStatusConfirmed       = "confirmed"
	BookingStatusSampleCollected = "sample_collected"
	BookingStatusProcessing      = "processing"
	BookingStatusCompleted       = "completed"
	BookingStatusCancelled       = "cancelled"
)

// Booking payment statuses, kept separate from the visit status so a
// refund does not erase the visit history.
const (
	BookingPaymentUnpaid   = "unpaid"
	BookingPaymentPaid     = "paid"
	BookingPaymentRefunded = "refunded"
)

type Booking struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	BookingNumber string             `gorm:"type:varchar(50);uniqueIndex;not null" json:"booking_number"`
	PatientID     uint               `gorm:"not null;index" json:"patient_id"`
	Patient       User               `gorm:"foreignKey:PatientID" json:"patient"`
	Status        string             `gorm:"type:varchar(20);not null;default:'pending_payment'" json:"status"`
	PaymentStatus string             `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_status"`
	TotalAmount   float64            `gorm:"type:decimal(12,2);not null;default:0.00" json:"total_amount"`
	ScheduledAt   *time.Time         `json:"scheduled_at,omitempty"`
	StationID     *uint              `gorm:"index" json:"station_id,omitempty"`
	Station       *CollectionStation `gorm:"foreignKey:StationID" json:"station,omitempty"`
	Notes         string             `gorm:"type:text" json:"notes,omitempty"`
	Items         []BookingItem      `gorm:"foreignKey:BookingID" json:"items"`
	CreatedAt     time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"not null" json:"updated_at"`
}

type BookingItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookingID uint      `gorm:"not null;index" json:"booking_id"`
	LabTestID uint      `gorm:"not null" json:"lab_test_id"`
	LabTest   LabTest   `gorm:"foreignKey:LabTestID" json:"lab_test"`
	Quantity  int       `gorm:"not null;default:1" json:"quantity"`
	UnitPrice float64   `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal  float64   `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Notes     string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
