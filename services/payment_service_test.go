package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/onpointkonceptz/goldbond/config"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	os.Exit(m.Run())
}

func newPaymentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.TestCategory{},
		&models.LabTest{},
		&models.Booking{},
		&models.BookingItem{},
		&models.Payment{},
		&models.WebhookEvent{},
		&models.Receipt{},
		&models.ReceiptItem{},
		&models.Notification{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// seedBookingFixture creates a patient, a catalog test priced at total
// and an unpaid booking for it. tag keeps unique columns apart when
// tests share the in-memory database.
func seedBookingFixture(t *testing.T, db *gorm.DB, tag string, total float64) models.Booking {
	t.Helper()

	patient := models.User{
		FullName: "Chinwe Okafor",
		Email:    tag + "@example.com",
		Password: "hashed-password",
		Role:     models.RolePatient,
	}
	if err := db.Create(&patient).Error; err != nil {
		t.Fatalf("failed to create patient: %v", err)
	}

	category := models.TestCategory{Name: "Haematology " + tag}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	labTest := models.LabTest{
		CategoryID: category.ID,
		Name:       "Full Blood Count " + tag,
		Code:       strings.ToUpper(tag),
		Price:      total,
		SampleType: "blood",
		Active:     true,
	}
	if err := db.Create(&labTest).Error; err != nil {
		t.Fatalf("failed to create lab test: %v", err)
	}

	booking := models.Booking{
		BookingNumber: "GBL-" + tag,
		PatientID:     patient.ID,
		Status:        models.BookingStatusPendingPayment,
		PaymentStatus: models.BookingPaymentUnpaid,
		TotalAmount:   total,
		Items: []models.BookingItem{{
			LabTestID: labTest.ID,
			Quantity:  1,
			UnitPrice: total,
			Subtotal:  total,
		}},
	}
	if err := db.Create(&booking).Error; err != nil {
		t.Fatalf("failed to create booking: %v", err)
	}
	return booking
}

// newPaystackStub runs a local stand-in for the Paystack API and
// returns a gateway client pointed at it. verifyStatus controls what
// the verify endpoint reports for any reference.
func newPaystackStub(t *testing.T, verifyStatus, verifyPaidAt string) *PaystackService {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/transaction/initialize":
			fmt.Fprint(w, `{"status":true,"message":"Authorization URL created","data":{
				"authorization_url":"https://checkout.paystack.com/stub",
				"access_code":"stub_access","reference":"stub"}}`)
		case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
			paidAt := ""
			if verifyPaidAt != "" {
				paidAt = fmt.Sprintf(`,"paid_at":%q`, verifyPaidAt)
			}
			fmt.Fprintf(w, `{"status":true,"message":"Verification successful","data":{
				"id":7001,"status":%q,"reference":%q,"amount":0,"currency":"NGN",
				"gateway_response":"stub response","channel":"card"%s}}`,
				verifyStatus, reference, paidAt)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return NewPaystackService(&config.PaystackConfig{
		SecretKey: "sk_test_secret",
		BaseURL:   server.URL,
	})
}

func chargeWebhookBody(event, reference string, amountSubunits int64, paidAt string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"data":{
		"id":8002,"reference":%q,"status":"success","amount":%d,
		"currency":"NGN","channel":"card","gateway_response":"Successful",
		"paid_at":%q}}`, event, reference, amountSubunits, paidAt))
}

func TestInitializePayment_CardOpensCheckout(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "init-card", 25000)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", ""))

	payment, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("InitializePayment() error = %v", err)
	}

	if payment.Status != models.PaymentStatusProcessing {
		t.Errorf("status = %s, want processing", payment.Status)
	}
	if payment.AuthorizationURL != "https://checkout.paystack.com/stub" {
		t.Errorf("authorization_url = %s", payment.AuthorizationURL)
	}
	if payment.AccessCode != "stub_access" {
		t.Errorf("access_code = %s", payment.AccessCode)
	}
	if payment.Amount != booking.TotalAmount {
		t.Errorf("amount = %.2f, want booking total %.2f", payment.Amount, booking.TotalAmount)
	}
	if payment.Currency != "NGN" {
		t.Errorf("currency = %s, want NGN", payment.Currency)
	}
	if payment.Reference == "" {
		t.Error("reference not generated")
	}

	// a second attempt while the first is still open must be refused
	_, err = svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if !utils.IsKind(err, utils.ErrKindConflict) {
		t.Fatalf("second initialize error = %v, want conflict", err)
	}
}

func TestInitializePayment_CashStaysPending(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "init-cash", 12000)

	// cash must never call the gateway
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected gateway call: %s", r.URL.Path)
	}))
	t.Cleanup(server.Close)
	gateway := NewPaystackService(&config.PaystackConfig{SecretKey: "sk_test_secret", BaseURL: server.URL})
	svc := NewPaymentServiceWithGateway(db, gateway)

	payment, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("InitializePayment() error = %v", err)
	}
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("status = %s, want pending", payment.Status)
	}
	if payment.AuthorizationURL != "" {
		t.Errorf("cash payment has checkout URL %s", payment.AuthorizationURL)
	}

	// and cash references cannot be verified against Paystack
	if _, err := svc.VerifyPayment(payment.Reference); !utils.IsKind(err, utils.ErrKindDomain) {
		t.Fatalf("verify cash error = %v, want domain error", err)
	}
}

func TestInitializePayment_Rejections(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "init-bad", 9000)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", ""))

	cancelled := seedBookingFixture(t, db, "init-bad-cxl", 9000)
	if err := db.Model(&models.Booking{}).Where("id = ?", cancelled.ID).
		Update("status", models.BookingStatusCancelled).Error; err != nil {
		t.Fatalf("failed to cancel booking: %v", err)
	}

	tests := []struct {
		name     string
		input    InitializePaymentInput
		wantKind utils.ErrorKind
	}{
		{
			name:     "unknown booking",
			input:    InitializePaymentInput{BookingID: 999999, PaymentMethod: models.PaymentMethodCard},
			wantKind: utils.ErrKindNotFound,
		},
		{
			name:     "cancelled booking",
			input:    InitializePaymentInput{BookingID: cancelled.ID, PaymentMethod: models.PaymentMethodCard},
			wantKind: utils.ErrKindDomain,
		},
		{
			name:     "unsupported method",
			input:    InitializePaymentInput{BookingID: booking.ID, PaymentMethod: "cheque"},
			wantKind: utils.ErrKindValidation,
		},
		{
			name:     "unsupported currency",
			input:    InitializePaymentInput{BookingID: booking.ID, PaymentMethod: models.PaymentMethodCard, Currency: "KES"},
			wantKind: utils.ErrKindValidation,
		},
		{
			name:     "amount mismatch",
			input:    InitializePaymentInput{BookingID: booking.ID, PaymentMethod: models.PaymentMethodCard, Amount: 100},
			wantKind: utils.ErrKindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.InitializePayment(tt.input); !utils.IsKind(err, tt.wantKind) {
				t.Errorf("error = %v, want kind %s", err, tt.wantKind)
			}
		})
	}
}

func TestInitializePayment_GatewayDownLeavesNoRecord(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "init-down", 7500)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":false,"message":"Service unavailable"}`)
	}))
	t.Cleanup(server.Close)
	gateway := NewPaystackService(&config.PaystackConfig{SecretKey: "sk_test_secret", BaseURL: server.URL})
	svc := NewPaymentServiceWithGateway(db, gateway)

	_, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if !utils.IsKind(err, utils.ErrKindProvider) {
		t.Fatalf("error = %v, want provider error", err)
	}

	// the aborted attempt must not block a retry
	var count int64
	db.Model(&models.Payment{}).Where("booking_id = ?", booking.ID).Count(&count)
	if count != 0 {
		t.Fatalf("payments left after failed initialization = %d, want 0", count)
	}
}

func TestWebhookChargeSuccess_CompletesPaymentOnce(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "wh-success", 15000)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", ""))

	payment, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("InitializePayment() error = %v", err)
	}

	paidAt := "2025-08-01T10:30:00Z"
	body := chargeWebhookBody(WebhookChargeSuccess, payment.Reference, 1500000, paidAt)
	event, err := ParseWebhookEvent(body)
	if err != nil {
		t.Fatalf("ParseWebhookEvent() error = %v", err)
	}
	if err := svc.HandleWebhookEvent(event, body); err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v", err)
	}

	var updated models.Payment
	if err := db.Where("reference = ?", payment.Reference).First(&updated).Error; err != nil {
		t.Fatalf("failed to reload payment: %v", err)
	}
	if updated.Status != models.PaymentStatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if !updated.Verified {
		t.Error("payment not flagged verified")
	}
	if updated.TransactionID != "8002" {
		t.Errorf("transaction_id = %s, want 8002", updated.TransactionID)
	}
	wantPaidAt, _ := time.Parse(time.RFC3339, paidAt)
	if updated.PaidAt == nil || !updated.PaidAt.UTC().Equal(wantPaidAt) {
		t.Errorf("paid_at = %v, want %v", updated.PaidAt, wantPaidAt)
	}
	if updated.ProviderResponse == "" {
		t.Error("provider payload not retained")
	}

	var paidBooking models.Booking
	if err := db.First(&paidBooking, booking.ID).Error; err != nil {
		t.Fatalf("failed to reload booking: %v", err)
	}
	if paidBooking.PaymentStatus != models.BookingPaymentPaid {
		t.Errorf("booking payment_status = %s, want paid", paidBooking.PaymentStatus)
	}
	if paidBooking.Status != models.BookingStatusConfirmed {
		t.Errorf("booking status = %s, want confirmed", paidBooking.Status)
	}

	var receipts int64
	db.Model(&models.Receipt{}).Where("payment_id = ?", updated.ID).Count(&receipts)
	if receipts != 1 {
		t.Fatalf("receipts = %d, want 1", receipts)
	}

	// replayed delivery: acknowledged, nothing changes, no second receipt
	if err := svc.HandleWebhookEvent(event, body); err != nil {
		t.Fatalf("replayed HandleWebhookEvent() error = %v", err)
	}
	var replayed models.Payment
	db.Where("reference = ?", payment.Reference).First(&replayed)
	if replayed.PaidAt == nil || !replayed.PaidAt.Equal(*updated.PaidAt) {
		t.Errorf("replay moved paid_at from %v to %v", updated.PaidAt, replayed.PaidAt)
	}
	db.Model(&models.Receipt{}).Where("payment_id = ?", updated.ID).Count(&receipts)
	if receipts != 1 {
		t.Errorf("receipts after replay = %d, want 1", receipts)
	}

	var audits int64
	db.Model(&models.WebhookEvent{}).
		Where("reference = ? AND processed = ?", payment.Reference, true).
		Count(&audits)
	if audits != 2 {
		t.Errorf("processed webhook audit rows = %d, want 2", audits)
	}
}

func TestVerifyPayment_FailureThenLateSuccessWebhook(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "vf-late", 18000)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "abandoned", ""))

	payment, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("InitializePayment() error = %v", err)
	}

	failed, err := svc.VerifyPayment(payment.Reference)
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if failed.Status != models.PaymentStatusFailed {
		t.Errorf("status = %s, want failed", failed.Status)
	}
	if failed.FailureReason != "stub response" {
		t.Errorf("failure_reason = %s", failed.FailureReason)
	}
	if failed.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", failed.RetryCount)
	}

	// verifying again finds the payment already failed; the counter
	// only moves when a transition actually happens
	again, err := svc.VerifyPayment(payment.Reference)
	if err != nil {
		t.Fatalf("second VerifyPayment() error = %v", err)
	}
	if again.RetryCount != 1 {
		t.Errorf("retry_count after no-op = %d, want 1", again.RetryCount)
	}

	// the success webhook can still land after a premature failure
	body := chargeWebhookBody(WebhookChargeSuccess, payment.Reference, 1800000, "2025-08-02T09:00:00Z")
	event, _ := ParseWebhookEvent(body)
	if err := svc.HandleWebhookEvent(event, body); err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v", err)
	}

	var recovered models.Payment
	db.Where("reference = ?", payment.Reference).First(&recovered)
	if recovered.Status != models.PaymentStatusCompleted {
		t.Errorf("status after late success = %s, want completed", recovered.Status)
	}
	var paidBooking models.Booking
	db.First(&paidBooking, booking.ID)
	if paidBooking.PaymentStatus != models.BookingPaymentPaid {
		t.Errorf("booking payment_status = %s, want paid", paidBooking.PaymentStatus)
	}
}

func TestWebhookChargeFailed_NeverOverridesCompleted(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "wh-sticky", 20000)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", "2025-08-03T12:00:00Z"))

	payment, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("InitializePayment() error = %v", err)
	}
	if _, err := svc.VerifyPayment(payment.Reference); err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}

	body := chargeWebhookBody(WebhookChargeFailed, payment.Reference, 2000000, "")
	event, _ := ParseWebhookEvent(body)
	if err := svc.HandleWebhookEvent(event, body); err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v", err)
	}

	var updated models.Payment
	db.Where("reference = ?", payment.Reference).First(&updated)
	if updated.Status != models.PaymentStatusCompleted {
		t.Errorf("status = %s, completed must stick", updated.Status)
	}
	if updated.RetryCount != 0 {
		t.Errorf("retry_count = %d, want 0", updated.RetryCount)
	}
}

func TestHandleWebhookEvent_UnknownReferenceIsAcknowledged(t *testing.T) {
	db := newPaymentTestDB(t)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", ""))

	body := chargeWebhookBody(WebhookChargeSuccess, "GB-never-issued", 5000, "2025-08-04T08:00:00Z")
	event, _ := ParseWebhookEvent(body)
	if err := svc.HandleWebhookEvent(event, body); err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v, unknown references must not fail", err)
	}

	// the delivery is still on the audit trail
	var audit models.WebhookEvent
	if err := db.Where("reference = ?", "GB-never-issued").First(&audit).Error; err != nil {
		t.Fatalf("audit row missing: %v", err)
	}
	if !audit.Processed {
		t.Error("audit row not marked processed")
	}
	if audit.EventType != WebhookChargeSuccess {
		t.Errorf("audit event_type = %s", audit.EventType)
	}
}

func TestRefundPayment(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "refund", 30000)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", "2025-08-05T15:00:00Z"))

	payment, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("InitializePayment() error = %v", err)
	}

	// can't refund before the money arrived
	if _, err := svc.RefundPayment(payment.Reference, 0); !utils.IsKind(err, utils.ErrKindDomain) {
		t.Fatalf("refund of open payment error = %v, want domain error", err)
	}

	if _, err := svc.VerifyPayment(payment.Reference); err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}

	// can't refund more than was paid
	if _, err := svc.RefundPayment(payment.Reference, payment.Amount+500); !utils.IsKind(err, utils.ErrKindDomain) {
		t.Fatalf("over-refund error = %v, want domain error", err)
	}

	refunded, err := svc.RefundPayment(payment.Reference, 0)
	if err != nil {
		t.Fatalf("RefundPayment() error = %v", err)
	}
	if refunded.Status != models.PaymentStatusRefunded {
		t.Errorf("status = %s, want refunded", refunded.Status)
	}
	if refunded.RefundedAt == nil {
		t.Error("refunded_at not set")
	}

	var refundedBooking models.Booking
	db.First(&refundedBooking, booking.ID)
	if refundedBooking.PaymentStatus != models.BookingPaymentRefunded {
		t.Errorf("booking payment_status = %s, want refunded", refundedBooking.PaymentStatus)
	}

	// refunded is final
	if _, err := svc.RefundPayment(payment.Reference, 0); !utils.IsKind(err, utils.ErrKindDomain) {
		t.Fatalf("double refund error = %v, want domain error", err)
	}
}

func TestCancelPayment(t *testing.T) {
	db := newPaymentTestDB(t)
	booking := seedBookingFixture(t, db, "cancel", 11000)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", ""))

	payment, err := svc.InitializePayment(InitializePaymentInput{
		BookingID:     booking.ID,
		PaymentMethod: models.PaymentMethodCard,
	})
	if err != nil {
		t.Fatalf("InitializePayment() error = %v", err)
	}

	cancelled, err := svc.CancelPayment(payment.Reference)
	if err != nil {
		t.Fatalf("CancelPayment() error = %v", err)
	}
	if cancelled.Status != models.PaymentStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	// cancelled payments take no further gateway transitions
	body := chargeWebhookBody(WebhookChargeSuccess, payment.Reference, 1100000, "2025-08-06T10:00:00Z")
	event, _ := ParseWebhookEvent(body)
	if err := svc.HandleWebhookEvent(event, body); err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v", err)
	}
	var after models.Payment
	db.Where("reference = ?", payment.Reference).First(&after)
	if after.Status != models.PaymentStatusCancelled {
		t.Errorf("status after webhook = %s, want cancelled", after.Status)
	}

	// and cancelling again reports the conflict
	if _, err := svc.CancelPayment(payment.Reference); !utils.IsKind(err, utils.ErrKindConflict) {
		t.Fatalf("double cancel error = %v, want conflict", err)
	}

	// a cancelled reference is not worth a gateway round trip either
	if _, err := svc.VerifyPayment(payment.Reference); !utils.IsKind(err, utils.ErrKindDomain) {
		t.Fatalf("verify cancelled error = %v, want domain error", err)
	}
}

func TestVerifyPayment_UnknownReference(t *testing.T) {
	db := newPaymentTestDB(t)
	svc := NewPaymentServiceWithGateway(db, newPaystackStub(t, "success", ""))

	if _, err := svc.VerifyPayment("GB-nope"); !utils.IsKind(err, utils.ErrKindNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}
