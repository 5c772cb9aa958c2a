package models

import "time"

// WebhookEvent is the audit trail for every webhook delivery that
// passed signature verification, whether or not it changed a payment.
type WebhookEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Provider    string     `gorm:"type:varchar(20);not null;default:'paystack';index" json:"provider"`
	EventType   string     `gorm:"type:varchar(50);not null" json:"event_type"`
	Reference   string     `gorm:"type:varchar(100);index" json:"reference"`
	Payload     string     `gorm:"type:text" json:"-"`
	Processed   bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	LastError   string     `gorm:"type:varchar(255)" json:"last_error,omitempty"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
}
