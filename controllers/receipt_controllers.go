package controllers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/services"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type ReceiptController struct {
	DB       *gorm.DB
	receipts *services.ReceiptService
	payments *services.PaymentService
}

func NewReceiptController(db *gorm.DB) *ReceiptController {
	return &ReceiptController{
		DB:       db,
		receipts: services.NewReceiptService(db),
		payments: services.NewPaymentService(db),
	}
}

// GenerateReceipt issues (or returns the existing) receipt for a
// completed payment.
func (rc *ReceiptController) GenerateReceipt(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("payment_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid payment_id"))
		return
	}

	payment, err := rc.payments.GetPaymentByID(uint(id))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	if !canAccessPayment(c, payment) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	receipt, err := rc.receipts.GenerateForPayment(payment.ID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Receipt generated", receipt)
}

// GetReceiptByID returns one receipt with its line items.
func (rc *ReceiptController) GetReceiptByID(c *gin.Context) {
	var receipt models.Receipt
	if err := rc.DB.Preload("Booking").Preload("ReceiptItems").
		First(&receipt, c.Param("receipt_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("receipt not found"))
		return
	}

	if !canAccessBooking(c, &receipt.Booking) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Receipt detail", receipt)
}

// PrintReceipt formats a receipt for the frontend's print view.
func (rc *ReceiptController) PrintReceipt(c *gin.Context) {
	var receipt models.Receipt
	if err := rc.DB.Preload("Booking").Preload("ReceiptItems").
		First(&receipt, c.Param("receipt_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("receipt not found"))
		return
	}

	if !canAccessBooking(c, &receipt.Booking) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	type printItem struct {
		Name      string `json:"name"`
		Code      string `json:"code,omitempty"`
		Quantity  int    `json:"quantity"`
		UnitPrice string `json:"unit_price"`
		Subtotal  string `json:"subtotal"`
	}

	payload := struct {
		LabInfo struct {
			Name    string `json:"name"`
			Address string `json:"address"`
			Phone   string `json:"phone"`
		} `json:"lab_info"`
		ReceiptInfo struct {
			Number        string    `json:"number"`
			DateTime      time.Time `json:"date_time"`
			BookingNumber string    `json:"booking_number"`
			PatientName   string    `json:"patient_name"`
		} `json:"receipt_info"`
		Items          []printItem `json:"items"`
		Total          string      `json:"total"`
		PaymentDetails struct {
			Method    string `json:"method"`
			Reference string `json:"reference"`
			Currency  string `json:"currency"`
		} `json:"payment_details"`
		Footer struct {
			ThankYouNote string `json:"thank_you_note"`
			Terms        string `json:"terms"`
		} `json:"footer"`
	}{}

	payload.LabInfo.Name = envOrDefault("LAB_NAME", "Goldbond Diagnostics")
	payload.LabInfo.Address = envOrDefault("LAB_ADDRESS", "14 Adeola Odeku Street, Victoria Island, Lagos")
	payload.LabInfo.Phone = envOrDefault("LAB_PHONE", "+234 800 000 0000")

	payload.ReceiptInfo.Number = receipt.ReceiptNumber
	payload.ReceiptInfo.DateTime = receipt.CreatedAt
	payload.ReceiptInfo.BookingNumber = receipt.Booking.BookingNumber
	payload.ReceiptInfo.PatientName = receipt.PatientName

	payload.Items = make([]printItem, len(receipt.ReceiptItems))
	for i, item := range receipt.ReceiptItems {
		payload.Items[i] = printItem{
			Name:      item.TestName,
			Code:      item.TestCode,
			Quantity:  item.Quantity,
			UnitPrice: utils.FormatMoney(receipt.Currency, item.UnitPrice),
			Subtotal:  utils.FormatMoney(receipt.Currency, item.Subtotal),
		}
	}

	payload.Total = utils.FormatMoney(receipt.Currency, receipt.Total)
	payload.PaymentDetails.Method = receipt.PaymentMethod
	payload.PaymentDetails.Reference = receipt.PaymentReference
	payload.PaymentDetails.Currency = receipt.Currency

	payload.Footer.ThankYouNote = "Thank you for choosing " + payload.LabInfo.Name
	payload.Footer.Terms = "This receipt is valid proof of payment"

	utils.RespondJSON(c, http.StatusOK, "Receipt print data", payload)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
