package models

import "time"

type Receipt struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	BookingID uint    `json:"booking_id"`
	Booking   Booking `gorm:"foreignKey:BookingID" json:"booking"`
	PaymentID uint    `gorm:"uniqueIndex" json:"payment_id"`
	Payment   Payment `gorm:"foreignKey:PaymentID" json:"payment"`

	ReceiptNumber string `gorm:"type:varchar(50);uniqueIndex" json:"receipt_number"`
	PatientName   string `gorm:"type:varchar(255);not null" json:"patient_name"`
	PatientEmail  string `gorm:"type:varchar(255)" json:"patient_email"`

	Total            float64 `gorm:"type:decimal(12,2);not null" json:"total"`
	Currency         string  `gorm:"type:varchar(3);not null;default:'NGN'" json:"currency"`
	PaymentMethod    string  `gorm:"type:varchar(50);not null" json:"payment_method"`
	PaymentReference string  `gorm:"type:varchar(100)" json:"payment_reference"`

	ReceiptItems []ReceiptItem `gorm:"foreignKey:ReceiptID" json:"receipt_items"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

type ReceiptItem struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ReceiptID uint    `gorm:"not null" json:"receipt_id"`
	Receipt   Receipt `gorm:"-" json:"-"`

	LabTestID uint    `gorm:"not null" json:"lab_test_id"`
	TestName  string  `gorm:"type:varchar(255);not null" json:"test_name"`
	TestCode  string  `gorm:"type:varchar(20)" json:"test_code"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	UnitPrice float64 `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal  float64 `gorm:"type:decimal(12,2);not null" json:"subtotal"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
