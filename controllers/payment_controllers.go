package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/services"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type PaymentController struct {
	DB       *gorm.DB
	payments *services.PaymentService
	gateway  *services.PaystackService
}

func NewPaymentController(db *gorm.DB) *PaymentController {
	return &PaymentController{
		DB:       db,
		payments: services.NewPaymentService(db),
		gateway:  services.GetPaystackService(),
	}
}

// NewPaymentControllerWithServices wires explicit services, used by tests.
func NewPaymentControllerWithServices(db *gorm.DB, payments *services.PaymentService, gateway *services.PaystackService) *PaymentController {
	return &PaymentController{DB: db, payments: payments, gateway: gateway}
}

// InitializePayment opens a checkout session for a booking. Patients can
// only pay for their own bookings; staff can initialize for anyone.
func (pc *PaymentController) InitializePayment(c *gin.Context) {
	var req struct {
		BookingID     uint    `json:"booking_id" binding:"required"`
		Amount        float64 `json:"amount"`
		PaymentMethod string  `json:"payment_method"`
		Currency      string  `json:"currency"`
		CallbackURL   string  `json:"callback_url"`
	}
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	role, _ := c.Get("role")
	if role != models.RoleStaff && role != models.RoleAdmin {
		var booking models.Booking
		if err := pc.DB.First(&booking, req.BookingID).Error; err != nil {
			utils.RespondError(c, http.StatusNotFound, errors.New("booking not found"))
			return
		}
		userID, _ := c.Get("user_id")
		if id, ok := userID.(uint); !ok || id != booking.PatientID {
			utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
			return
		}
	}

	payment, err := pc.payments.InitializePayment(services.InitializePaymentInput{
		BookingID:     req.BookingID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Currency:      req.Currency,
		CallbackURL:   req.CallbackURL,
	})
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.InfoLogger.Printf("Payment %s initialized for booking %d (%s)",
		payment.Reference, payment.BookingID, payment.PaymentMethod)

	utils.RespondJSON(c, http.StatusCreated, "Payment initialized", gin.H{
		"payment":           payment,
		"reference":         payment.Reference,
		"authorization_url": payment.AuthorizationURL,
		"access_code":       payment.AccessCode,
	})
}

// VerifyPayment re-checks a reference against Paystack and applies the
// outcome. Called by the frontend when the customer returns from checkout.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		utils.RespondError(c, http.StatusBadRequest, errors.New("reference is required"))
		return
	}

	existing, err := pc.payments.GetPaymentByReference(reference)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}
	if !canAccessPayment(c, existing) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	payment, err := pc.payments.VerifyPayment(reference)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment verified", gin.H{
		"payment":  payment,
		"status":   payment.Status,
		"verified": payment.Verified,
	})
}

// HandlePaystackWebhook receives charge events from Paystack. The raw
// body is authenticated with HMAC-SHA512 before anything is parsed.
// After authentication and parsing succeed the response is always 200,
// otherwise Paystack keeps retrying a delivery we already have.
func (pc *PaymentController) HandlePaystackWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("unable to read request body"))
		return
	}

	signature := c.GetHeader("x-paystack-signature")
	if !pc.gateway.ValidateWebhookSignature(body, signature) {
		utils.ErrorLogger.Printf("Webhook rejected: bad signature from %s", c.ClientIP())
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid webhook signature"))
		return
	}

	event, err := services.ParseWebhookEvent(body)
	if err != nil {
		utils.ErrorLogger.Printf("Webhook rejected: malformed payload: %v", err)
		utils.RespondError(c, http.StatusBadRequest, errors.New("malformed webhook payload"))
		return
	}

	if err := pc.payments.HandleWebhookEvent(event, body); err != nil {
		// Still 200: the delivery was authentic and parseable, retrying
		// the same payload will not fix an internal failure.
		utils.ErrorLogger.Printf("Webhook %s (%s) processing error: %v",
			event.Event, event.Data.Reference, err)
	}

	utils.RespondJSON(c, http.StatusOK, "Webhook received", nil)
}

// GetPaystackConfig exposes the public key and supported options to the
// checkout frontend.
func (pc *PaymentController) GetPaystackConfig(c *gin.Context) {
	currencies := make([]string, 0, len(models.SupportedCurrencies))
	for code := range models.SupportedCurrencies {
		currencies = append(currencies, code)
	}

	utils.RespondJSON(c, http.StatusOK, "Payment configuration", gin.H{
		"public_key":       pc.gateway.PublicKey(),
		"currencies":       currencies,
		"default_currency": "NGN",
		"payment_methods": []string{
			models.PaymentMethodCard,
			models.PaymentMethodBankTransfer,
			models.PaymentMethodUSSD,
			models.PaymentMethodQR,
			models.PaymentMethodMobileMoney,
			models.PaymentMethodCash,
		},
	})
}

// GetPaymentByReference returns one payment. Patients see only their own.
func (pc *PaymentController) GetPaymentByReference(c *gin.Context) {
	payment, err := pc.payments.GetPaymentByReference(c.Param("reference"))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	if !canAccessPayment(c, payment) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}

// GetPayments lists payments with optional filters. Staff/admin.
func (pc *PaymentController) GetPayments(c *gin.Context) {
	var payments []models.Payment
	query := pc.DB.Preload("Booking").Order("created_at DESC")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if method := c.Query("payment_method"); method != "" {
		query = query.Where("payment_method = ?", method)
	}
	if bookingID := c.Query("booking_id"); bookingID != "" {
		query = query.Where("booking_id = ?", bookingID)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("DATE(created_at) = ?", date)
	}

	if err := query.Limit(200).Find(&payments).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of payments", payments)
}

// ListBookingPayments returns the payment history of one booking.
func (pc *PaymentController) ListBookingPayments(c *gin.Context) {
	var booking models.Booking
	if err := pc.DB.First(&booking, c.Param("booking_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("booking not found"))
		return
	}

	if !canAccessBooking(c, &booking) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	payments, err := pc.payments.ListPaymentsForBooking(booking.ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Booking payments", payments)
}

// GetPaymentDetail returns one payment by ID for the back office.
func (pc *PaymentController) GetPaymentDetail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("payment_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid payment_id"))
		return
	}

	payment, err := pc.payments.GetPaymentByID(uint(id))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}

// RefundPayment marks a completed payment refunded. Admin only; the
// money movement itself happens on the Paystack dashboard.
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	roleInterface, _ := c.Get("role")
	if roleInterface != models.RoleAdmin {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	id, err := strconv.ParseUint(c.Param("payment_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid payment_id"))
		return
	}

	var input struct {
		Amount float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && err.Error() != "EOF" {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	existing, err := pc.payments.GetPaymentByID(uint(id))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	payment, err := pc.payments.RefundPayment(existing.Reference, input.Amount)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.InfoLogger.Printf("Payment %s refunded by admin", payment.Reference)
	utils.RespondJSON(c, http.StatusOK, "Payment refunded", payment)
}

// CancelPayment voids an open payment attempt. Admin only.
func (pc *PaymentController) CancelPayment(c *gin.Context) {
	roleInterface, _ := c.Get("role")
	if roleInterface != models.RoleAdmin {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	id, err := strconv.ParseUint(c.Param("payment_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid payment_id"))
		return
	}

	existing, err := pc.payments.GetPaymentByID(uint(id))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	payment, err := pc.payments.CancelPayment(existing.Reference)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment cancelled", payment)
}

// canAccessPayment allows staff, admin and the paying patient.
func canAccessPayment(c *gin.Context, payment *models.Payment) bool {
	role, _ := c.Get("role")
	if role == models.RoleStaff || role == models.RoleAdmin {
		return true
	}
	userID, _ := c.Get("user_id")
	id, ok := userID.(uint)
	return ok && id == payment.PatientID
}
