package services

import (
	"errors"
	"log"

	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type ReceiptService struct {
	db *gorm.DB
}

func NewReceiptService(db *gorm.DB) *ReceiptService {
	return &ReceiptService{db: db}
}

// GenerateForPayment issues the receipt for a completed payment. One
// receipt per payment: a second call returns the existing one, and the
// unique index on payment_id backstops concurrent callers.
func (s *ReceiptService) GenerateForPayment(paymentID uint) (*models.Receipt, error) {
	var existing models.Receipt
	err := s.db.Where("payment_id = ?", paymentID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var payment models.Payment
	if err := s.db.Preload("Booking").
		Preload("Booking.Patient").
		Preload("Booking.Items").
		Preload("Booking.Items.LabTest").
		First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("payment not found")
		}
		return nil, err
	}
	if payment.Status != models.PaymentStatusCompleted && payment.Status != models.PaymentStatusRefunded {
		return nil, utils.NewDomainError("receipts are only issued for completed payments")
	}

	receipt := models.Receipt{
		BookingID:        payment.BookingID,
		PaymentID:        payment.ID,
		ReceiptNumber:    utils.NewReceiptNumber(),
		PatientName:      payment.Booking.Patient.FullName,
		PatientEmail:     payment.Booking.Patient.Email,
		Total:            payment.Amount,
		Currency:         payment.Currency,
		PaymentMethod:    payment.PaymentMethod,
		PaymentReference: payment.Reference,
	}
	for _, item := range payment.Booking.Items {
		receipt.ReceiptItems = append(receipt.ReceiptItems, models.ReceiptItem{
			LabTestID: item.LabTestID,
			TestName:  item.LabTest.Name,
			TestCode:  item.LabTest.Code,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal,
		})
	}

	if err := s.db.Create(&receipt).Error; err != nil {
		// a concurrent completion may have won the insert
		if lookupErr := s.db.Where("payment_id = ?", paymentID).First(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
		return nil, err
	}

	log.Printf("Receipt %s issued for payment %s (%s)",
		receipt.ReceiptNumber, payment.Reference,
		utils.FormatMoney(receipt.Currency, receipt.Total))
	live.BroadcastReceiptGenerated(receipt)
	return &receipt, nil
}
