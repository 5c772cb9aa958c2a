package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

// activePaymentStatuses block a new payment for the same booking. A
// failed, cancelled or refunded payment does not.
var activePaymentStatuses = []string{
	models.PaymentStatusPending,
	models.PaymentStatusProcessing,
	models.PaymentStatusCompleted,
}

// PaymentService drives every payment state transition. Transitions
// are conditional UPDATEs: the row filter is the only concurrency
// control, so a verify call and a webhook racing on the same reference
// cannot double-apply a transition.
type PaymentService struct {
	db       *gorm.DB
	gateway  *PaystackService
	bookings *BookingService
	receipts *ReceiptService
}

// NewPaymentService creates a PaymentService on the shared Paystack client.
func NewPaymentService(db *gorm.DB) *PaymentService {
	return NewPaymentServiceWithGateway(db, GetPaystackService())
}

// NewPaymentServiceWithGateway wires an explicit gateway client, used
// by tests to point the service at a local Paystack stand-in.
func NewPaymentServiceWithGateway(db *gorm.DB, gateway *PaystackService) *PaymentService {
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		bookings: NewBookingService(db),
		receipts: NewReceiptService(db),
	}
}

// InitializePaymentInput carries the checkout request.
type InitializePaymentInput struct {
	BookingID     uint
	Amount        float64 // major units; 0 means the booking total
	PaymentMethod string
	Currency      string
	CallbackURL   string
}

// InitializePayment creates a payment for a booking and, for online
// methods, opens a Paystack checkout session. Cash payments stay
// pending and are reconciled at the front desk. If Paystack rejects
// the initialization the record is removed again so the booking is
// not left blocked by a payment that never reached checkout.
func (s *PaymentService) InitializePayment(input InitializePaymentInput) (*models.Payment, error) {
	var booking models.Booking
	if err := s.db.Preload("Patient").First(&booking, input.BookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("booking not found")
		}
		return nil, err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, utils.NewDomainError("cannot pay for a cancelled booking")
	}

	if !validPaymentMethod(input.PaymentMethod) {
		return nil, utils.NewValidationError("unsupported payment method: " + input.PaymentMethod)
	}

	currency := input.Currency
	if currency == "" {
		currency = "NGN"
	}
	if !models.SupportedCurrencies[currency] {
		return nil, utils.NewValidationError("unsupported currency: " + currency)
	}

	amount := input.Amount
	if amount == 0 {
		amount = booking.TotalAmount
	}
	if amount <= 0 {
		return nil, utils.NewValidationError("amount must be greater than zero")
	}
	if math.Abs(amount-booking.TotalAmount) > 0.009 {
		return nil, utils.NewValidationError("amount does not match the booking total")
	}

	var active int64
	if err := s.db.Model(&models.Payment{}).
		Where("booking_id = ? AND status IN ?", booking.ID, activePaymentStatuses).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, utils.NewConflictError("an active payment already exists for this booking")
	}

	payment := models.Payment{
		BookingID:     booking.ID,
		PatientID:     booking.PatientID,
		Reference:     utils.NewPaymentReference(),
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: input.PaymentMethod,
		Status:        models.PaymentStatusPending,
	}
	if err := s.db.Create(&payment).Error; err != nil {
		return nil, err
	}

	if input.PaymentMethod == models.PaymentMethodCash {
		log.Printf("Cash payment %s recorded for booking %s, awaiting front desk",
			payment.Reference, booking.BookingNumber)
		live.BroadcastPaymentPending(payment)
		return &payment, nil
	}

	tx, err := s.gateway.InitializeTransaction(InitializeRequest{
		Reference:   payment.Reference,
		Email:       booking.Patient.Email,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Channels:    ChannelsForMethod(payment.PaymentMethod),
		CallbackURL: input.CallbackURL,
		Metadata: map[string]interface{}{
			"booking_id":     booking.ID,
			"booking_number": booking.BookingNumber,
			"patient_id":     booking.PatientID,
		},
	})
	if err != nil {
		if delErr := s.db.Delete(&payment).Error; delErr != nil {
			log.Printf("Error removing payment %s after failed initialization: %v",
				payment.Reference, delErr)
		}
		return nil, utils.NewProviderError("failed to initialize transaction with Paystack", err)
	}

	updates := map[string]interface{}{
		"status":            models.PaymentStatusProcessing,
		"authorization_url": tx.AuthorizationURL,
		"access_code":       tx.AccessCode,
	}
	if len(tx.Raw) > 0 {
		updates["provider_response"] = string(tx.Raw)
	}
	if err := s.db.Model(&payment).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := s.db.First(&payment, payment.ID).Error; err != nil {
		return nil, err
	}

	log.Printf("Payment %s initialized for booking %s, checkout at %s",
		payment.Reference, booking.BookingNumber, payment.AuthorizationURL)
	live.BroadcastPaymentPending(payment)
	return &payment, nil
}

// VerifyPayment re-checks a reference against Paystack and applies the
// outcome: provider success completes the payment, anything else fails
// it. A success webhook arriving later can still complete a payment
// that a premature verify marked failed; the reverse never happens.
func (s *PaymentService) VerifyPayment(reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("payment not found")
		}
		return nil, err
	}
	if payment.PaymentMethod == models.PaymentMethodCash {
		return nil, utils.NewDomainError("cash payments are reconciled at the front desk, not with Paystack")
	}
	if payment.IsFinal() {
		return nil, utils.NewDomainError("payment is " + payment.Status + " and takes no further gateway transitions")
	}

	tx, err := s.gateway.VerifyTransaction(reference)
	if err != nil {
		return nil, utils.NewProviderError("failed to verify transaction with Paystack", err)
	}

	if tx.Status == "success" {
		updated, _, err := s.MarkPaymentCompleted(reference, tx)
		return updated, err
	}

	reason := tx.GatewayResponse
	if reason == "" {
		reason = "provider reported status " + tx.Status
	}
	updated, _, err := s.MarkPaymentFailed(reference, reason, tx)
	return updated, err
}

// MarkPaymentCompleted moves a payment to completed exactly once. The
// conditional UPDATE ignores rows already completed, refunded or
// cancelled, so duplicate webhooks and racing verify calls are no-ops.
// paidAt, verified and verifiedAt are written only by the invocation
// that wins the transition; that invocation also runs the booking
// linkage and receipt side effects.
func (s *PaymentService) MarkPaymentCompleted(reference string, tx *PaystackTransaction) (*models.Payment, bool, error) {
	var payment models.Payment
	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, utils.NewNotFoundError("payment not found")
		}
		return nil, false, err
	}

	now := time.Now()
	paidAt := now
	updates := map[string]interface{}{
		"status":      models.PaymentStatusCompleted,
		"verified":    true,
		"verified_at": now,
	}
	if tx != nil {
		if t := tx.PaidAtTime(); t != nil {
			paidAt = *t
		}
		if tx.ID != 0 {
			updates["transaction_id"] = fmt.Sprintf("%d", tx.ID)
		}
		if len(tx.Raw) > 0 {
			updates["provider_response"] = string(tx.Raw)
		}
		if method := methodForChannel(tx.Channel); method != "" {
			updates["payment_method"] = method
		}
		if tx.Amount > 0 && tx.Amount != ToSubunits(payment.Amount) {
			log.Printf("WARNING: payment %s amount mismatch: recorded %.2f, provider settled %d subunits",
				reference, payment.Amount, tx.Amount)
		}
	}
	updates["paid_at"] = paidAt

	res := s.db.Model(&models.Payment{}).
		Where("reference = ? AND status NOT IN ?", reference, []string{
			models.PaymentStatusCompleted,
			models.PaymentStatusRefunded,
			models.PaymentStatusCancelled,
		}).
		Updates(updates)
	if res.Error != nil {
		return nil, false, res.Error
	}
	transitioned := res.RowsAffected > 0

	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, false, err
	}

	if transitioned {
		log.Printf("Payment %s completed for booking %d", reference, payment.BookingID)
		s.applyCompletionSideEffects(&payment)
	}
	return &payment, transitioned, nil
}

// MarkPaymentFailed moves an open payment to failed and counts the
// failure. Completed is sticky: a late failure event for a payment
// that already completed changes nothing.
func (s *PaymentService) MarkPaymentFailed(reference, reason string, tx *PaystackTransaction) (*models.Payment, bool, error) {
	var payment models.Payment
	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, utils.NewNotFoundError("payment not found")
		}
		return nil, false, err
	}

	updates := map[string]interface{}{
		"status":         models.PaymentStatusFailed,
		"failure_reason": reason,
		"retry_count":    gorm.Expr("retry_count + 1"),
	}
	if tx != nil && len(tx.Raw) > 0 {
		updates["provider_response"] = string(tx.Raw)
	}

	res := s.db.Model(&models.Payment{}).
		Where("reference = ? AND status IN ?", reference, []string{
			models.PaymentStatusPending,
			models.PaymentStatusProcessing,
		}).
		Updates(updates)
	if res.Error != nil {
		return nil, false, res.Error
	}
	transitioned := res.RowsAffected > 0

	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, false, err
	}

	if transitioned {
		log.Printf("Payment %s failed: %s", reference, reason)
		live.BroadcastPaymentFailed(payment)
	}
	return &payment, transitioned, nil
}

// HandleWebhookEvent records the delivery and routes it to the right
// transition. Unknown references are a no-op rather than an error so
// reconciliation noise from other systems never triggers provider
// retry storms. The returned error is internal only; the HTTP handler
// acknowledges authenticated, well-formed deliveries regardless.
func (s *PaymentService) HandleWebhookEvent(event *PaystackWebhookEvent, rawBody []byte) error {
	audit := models.WebhookEvent{
		Provider:  "paystack",
		EventType: event.Event,
		Reference: event.Data.Reference,
		Payload:   string(rawBody),
		Attempts:  1,
	}
	if err := s.db.Create(&audit).Error; err != nil {
		log.Printf("Error recording webhook event: %v", err)
	}

	event.Data.Raw = rawBody

	var procErr error
	switch event.Event {
	case WebhookChargeSuccess:
		if _, _, err := s.MarkPaymentCompleted(event.Data.Reference, &event.Data); err != nil {
			if utils.IsKind(err, utils.ErrKindNotFound) {
				log.Printf("Webhook %s for unknown reference %s ignored", event.Event, event.Data.Reference)
			} else {
				procErr = err
			}
		}
	case WebhookChargeFailed:
		reason := event.Data.GatewayResponse
		if reason == "" {
			reason = "charge failed"
		}
		if _, _, err := s.MarkPaymentFailed(event.Data.Reference, reason, &event.Data); err != nil {
			if utils.IsKind(err, utils.ErrKindNotFound) {
				log.Printf("Webhook %s for unknown reference %s ignored", event.Event, event.Data.Reference)
			} else {
				procErr = err
			}
		}
	default:
		log.Printf("Ignoring unhandled webhook event %s", event.Event)
	}

	if audit.ID != 0 {
		now := time.Now()
		auditUpdates := map[string]interface{}{
			"processed":    procErr == nil,
			"processed_at": now,
		}
		if procErr != nil {
			auditUpdates["last_error"] = procErr.Error()
		}
		if err := s.db.Model(&audit).Updates(auditUpdates).Error; err != nil {
			log.Printf("Error updating webhook event record: %v", err)
		}
	}
	return procErr
}

// RefundPayment is administrative. Only a completed payment can be
// refunded and never for more than was paid.
func (s *PaymentService) RefundPayment(reference string, refundAmount float64) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("payment not found")
		}
		return nil, err
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, utils.NewDomainError("only completed payments can be refunded")
	}
	if refundAmount == 0 {
		refundAmount = payment.Amount
	}
	if refundAmount < 0 || refundAmount > payment.Amount {
		return nil, utils.NewDomainError("refund amount exceeds the paid amount")
	}

	now := time.Now()
	res := s.db.Model(&models.Payment{}).
		Where("reference = ? AND status = ?", reference, models.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"status":      models.PaymentStatusRefunded,
			"refunded_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("payment is no longer refundable")
	}

	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, err
	}

	if err := s.bookings.MarkBookingRefunded(payment.BookingID); err != nil {
		log.Printf("Error flagging booking %d as refunded: %v", payment.BookingID, err)
	}
	log.Printf("Payment %s refunded (%s)", reference,
		utils.FormatMoney(payment.Currency, refundAmount))
	live.BroadcastStaffNotification(fmt.Sprintf("Payment %s refunded", reference))
	return &payment, nil
}

// CancelPayment is administrative and only touches open payments.
func (s *PaymentService) CancelPayment(reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("payment not found")
		}
		return nil, err
	}

	res := s.db.Model(&models.Payment{}).
		Where("reference = ? AND status IN ?", reference, []string{
			models.PaymentStatusPending,
			models.PaymentStatusProcessing,
		}).
		Update("status", models.PaymentStatusCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("only pending or processing payments can be cancelled")
	}

	if err := s.db.Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, err
	}
	log.Printf("Payment %s cancelled", reference)
	return &payment, nil
}

// GetPaymentByReference loads a payment with its booking.
func (s *PaymentService) GetPaymentByReference(reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Preload("Booking").Where("reference = ?", reference).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

// GetPaymentByID loads a payment by primary key.
func (s *PaymentService) GetPaymentByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("payment not found")
		}
		return nil, err
	}
	return &payment, nil
}

// ListPaymentsForBooking returns every payment attempt for a booking,
// newest first.
func (s *PaymentService) ListPaymentsForBooking(bookingID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := s.db.Where("booking_id = ?", bookingID).
		Order("created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// applyCompletionSideEffects runs once per completed payment, on the
// invocation that won the transition. Everything here is best effort:
// the payment record is the source of truth for money received, so
// side-effect failures are logged and never roll it back.
func (s *PaymentService) applyCompletionSideEffects(payment *models.Payment) {
	if err := s.bookings.ConfirmBookingPaid(payment.BookingID); err != nil {
		log.Printf("Error confirming booking %d after payment %s: %v",
			payment.BookingID, payment.Reference, err)
	}
	if _, err := s.receipts.GenerateForPayment(payment.ID); err != nil {
		log.Printf("Error generating receipt for payment %s: %v", payment.Reference, err)
	}
	live.BroadcastPaymentCompleted(*payment)
}

func validPaymentMethod(method string) bool {
	switch method {
	case models.PaymentMethodCard,
		models.PaymentMethodBankTransfer,
		models.PaymentMethodUSSD,
		models.PaymentMethodQR,
		models.PaymentMethodMobileMoney,
		models.PaymentMethodCash:
		return true
	}
	return false
}

// methodForChannel maps the channel Paystack settled on back to a
// payment method, so the record reflects how the patient actually paid.
func methodForChannel(channel string) string {
	switch channel {
	case "card":
		return models.PaymentMethodCard
	case "bank", "bank_transfer":
		return models.PaymentMethodBankTransfer
	case "ussd":
		return models.PaymentMethodUSSD
	case "qr":
		return models.PaymentMethodQR
	case "mobile_money":
		return models.PaymentMethodMobileMoney
	}
	return ""
}
