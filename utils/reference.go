package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewPaymentReference returns a unique transaction reference for
// Paystack. Paystack only accepts [a-zA-Z0-9-=.] in references, so the
// UUID is stripped of dashes and truncated.
// Example: GB-20250115-9f86d081884c
func NewPaymentReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("GB-%s-%s", time.Now().Format("20060102"), id[:12])
}

// NewReceiptNumber returns a unique receipt number for a completed
// payment. Example: RCP-20250115-3A7F21
func NewReceiptNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("RCP-%s-%s", time.Now().Format("20060102"), id[:6])
}

// NewBookingNumber returns a unique booking number shown to patients.
// Example: BK-20250115-7C21A9
func NewBookingNumber() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("BK-%s-%s", time.Now().Format("20060102"), id[:6])
}
