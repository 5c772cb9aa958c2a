package models

import (
	"time"
)

// Payment statuses. A payment that reached completed can only move to
// refunded; failed and cancelled never overwrite completed.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusCancelled  = "cancelled"
	PaymentStatusRefunded   = "refunded"
)

// Payment methods accepted at checkout. cash is settled at the front
// desk and never reaches Paystack.
const (
	PaymentMethodCard         = "card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodUSSD         = "ussd"
	PaymentMethodQR           = "qr"
	PaymentMethodMobileMoney  = "mobile_money"
	PaymentMethodCash         = "cash"
)

// SupportedCurrencies lists the ISO codes Paystack accepts for this
// account. NGN is the default.
var SupportedCurrencies = map[string]bool{
	"NGN": true,
	"USD": true,
	"EUR": true,
	"GBP": true,
}

// Payment represents a payment transaction for a booking
type Payment struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	BookingID uint    `json:"booking_id" gorm:"not null;index"`
	Booking   Booking `json:"booking" gorm:"foreignKey:BookingID"`
	PatientID uint    `json:"patient_id" gorm:"index"`
	Patient   User    `json:"-" gorm:"foreignKey:PatientID"`

	Reference     string  `json:"reference" gorm:"type:varchar(100);uniqueIndex;not null"`
	TransactionID string  `json:"transaction_id" gorm:"type:varchar(64);index"` // Paystack transaction id
	Amount        float64 `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency      string  `json:"currency" gorm:"type:varchar(3);not null;default:'NGN'"`
	PaymentMethod string  `json:"payment_method" gorm:"type:varchar(20);not null;default:'card'"`
	Status        string  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`

	AuthorizationURL string `json:"authorization_url,omitempty" gorm:"type:varchar(255)"` // Paystack checkout URL
	AccessCode       string `json:"access_code,omitempty" gorm:"type:varchar(100)"`

	ProviderResponse string `json:"-" gorm:"type:text"` // raw gateway payload kept for audit
	FailureReason    string `json:"failure_reason,omitempty" gorm:"type:varchar(255)"`
	RetryCount       int    `json:"retry_count" gorm:"default:0"`
	Verified         bool   `json:"verified" gorm:"default:false"`

	PaidAt     *time.Time `json:"paid_at"`
	VerifiedAt *time.Time `json:"verified_at"`
	RefundedAt *time.Time `json:"refunded_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsFinal reports whether the payment can no longer accept gateway
// transitions. refunded is the end of the line; completed still allows
// a refund.
func (p *Payment) IsFinal() bool {
	return p.Status == PaymentStatusRefunded || p.Status == PaymentStatusCancelled
}
