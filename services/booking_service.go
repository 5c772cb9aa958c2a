package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

// allowedBookingTransitions lists the legal visit-status edges.
var allowedBookingTransitions = map[string][]string{
	models.BookingStatusPendingPayment:  {models.BookingStatusConfirmed, models.BookingStatusCancelled},
	models.BookingStatusConfirmed:       {models.BookingStatusSampleCollected, models.BookingStatusCancelled},
	models.BookingStatusSampleCollected: {models.BookingStatusProcessing},
	models.BookingStatusProcessing:      {models.BookingStatusCompleted},
}

// BookingService owns the visit lifecycle. Payment state lives in
// PaymentService; this service only reacts to its outcomes.
type BookingService struct {
	db *gorm.DB
}

func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{db: db}
}

// BookingItemInput selects one catalog test for a booking.
type BookingItemInput struct {
	LabTestID uint `json:"lab_test_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

// CreateBooking creates a booking priced from the catalog, never from
// client-supplied amounts.
func (s *BookingService) CreateBooking(patientID uint, scheduledAt *time.Time, notes string, items []BookingItemInput) (*models.Booking, error) {
	if len(items) == 0 {
		return nil, utils.NewValidationError("a booking needs at least one lab test")
	}

	var patient models.User
	if err := s.db.First(&patient, patientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("patient not found")
		}
		return nil, err
	}

	booking := models.Booking{
		BookingNumber: utils.NewBookingNumber(),
		PatientID:     patientID,
		Status:        models.BookingStatusPendingPayment,
		PaymentStatus: models.BookingPaymentUnpaid,
		ScheduledAt:   scheduledAt,
		Notes:         notes,
	}

	var total float64
	for _, item := range items {
		quantity := item.Quantity
		if quantity == 0 {
			quantity = 1
		}
		if quantity < 0 {
			return nil, utils.NewValidationError("item quantity cannot be negative")
		}

		var test models.LabTest
		if err := s.db.Where("id = ? AND active = ?", item.LabTestID, true).First(&test).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, utils.NewNotFoundError(fmt.Sprintf("lab test %d not found or inactive", item.LabTestID))
			}
			return nil, err
		}

		subtotal := test.Price * float64(quantity)
		total += subtotal
		booking.Items = append(booking.Items, models.BookingItem{
			LabTestID: test.ID,
			Quantity:  quantity,
			UnitPrice: test.Price,
			Subtotal:  subtotal,
		})
	}
	booking.TotalAmount = total

	if err := s.db.Create(&booking).Error; err != nil {
		return nil, err
	}
	if err := s.db.Preload("Patient").Preload("Items.LabTest").First(&booking, booking.ID).Error; err != nil {
		return nil, err
	}

	log.Printf("Booking %s created for patient %d, total %s",
		booking.BookingNumber, patientID, utils.FormatCurrencyNGN(total))
	live.BroadcastBookingUpdate(booking)
	return &booking, nil
}

// ConfirmBookingPaid marks a booking paid after its payment completed.
// It may be invoked twice for one payment when a verify call and a
// webhook race; confirming an already-paid booking is a no-op.
func (s *BookingService) ConfirmBookingPaid(bookingID uint) error {
	var booking models.Booking
	if err := s.db.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("booking not found")
		}
		return err
	}

	res := s.db.Model(&models.Booking{}).
		Where("id = ? AND payment_status <> ?", bookingID, models.BookingPaymentPaid).
		Update("payment_status", models.BookingPaymentPaid)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}

	// only lift the visit out of pending_payment, never rewind it
	if err := s.db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusPendingPayment).
		Update("status", models.BookingStatusConfirmed).Error; err != nil {
		return err
	}

	if err := s.db.First(&booking, bookingID).Error; err != nil {
		return err
	}

	title := "Booking confirmed"
	notif := models.Notification{
		UserID:  &booking.PatientID,
		Title:   &title,
		Message: fmt.Sprintf("Your booking %s is confirmed. We look forward to seeing you.", booking.BookingNumber),
	}
	if err := s.db.Create(&notif).Error; err != nil {
		log.Printf("Error creating confirmation notification: %v", err)
	}

	log.Printf("Booking %s confirmed after payment", booking.BookingNumber)
	live.BroadcastBookingConfirmed(booking)
	return nil
}

// MarkBookingRefunded flags the booking money as returned. The visit
// status is left alone: refund and cancellation are separate decisions.
func (s *BookingService) MarkBookingRefunded(bookingID uint) error {
	res := s.db.Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("payment_status", models.BookingPaymentRefunded)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("booking not found")
	}
	return nil
}

// UpdateBookingStatus applies one staff-driven step of the visit flow.
func (s *BookingService) UpdateBookingStatus(bookingID uint, newStatus string) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("booking not found")
		}
		return nil, err
	}

	if !transitionAllowed(booking.Status, newStatus) {
		return nil, utils.NewDomainError(fmt.Sprintf("cannot move booking from %s to %s", booking.Status, newStatus))
	}

	res := s.db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, booking.Status).
		Update("status", newStatus)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("booking was updated by someone else, reload and retry")
	}

	if newStatus == models.BookingStatusSampleCollected && booking.StationID != nil {
		s.sendStationForCleaning(*booking.StationID)
	}

	if err := s.db.Preload("Patient").Preload("Items.LabTest").First(&booking, bookingID).Error; err != nil {
		return nil, err
	}
	log.Printf("Booking %s moved to %s", booking.BookingNumber, newStatus)
	live.BroadcastBookingUpdate(booking)
	return &booking, nil
}

// AssignStation seats a confirmed booking at a free collection station.
func (s *BookingService) AssignStation(bookingID, stationID uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("booking not found")
		}
		return nil, err
	}
	if booking.Status != models.BookingStatusConfirmed {
		return nil, utils.NewDomainError("only confirmed bookings can be assigned a station")
	}

	res := s.db.Model(&models.CollectionStation{}).
		Where("id = ? AND status = ?", stationID, "available").
		Update("status", "occupied")
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("station is not available")
	}

	if err := s.db.Model(&booking).Update("station_id", stationID).Error; err != nil {
		return nil, err
	}

	var station models.CollectionStation
	if err := s.db.First(&station, stationID).Error; err == nil {
		live.BroadcastStationUpdate(station)
	}
	if err := s.db.Preload("Patient").Preload("Station").First(&booking, bookingID).Error; err != nil {
		return nil, err
	}
	live.BroadcastBookingUpdate(booking)
	return &booking, nil
}

// CancelBooking cancels an unpaid visit and closes any open payment
// for it. Paid bookings must be refunded first.
func (s *BookingService) CancelBooking(bookingID uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.db.First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("booking not found")
		}
		return nil, err
	}
	if booking.PaymentStatus == models.BookingPaymentPaid {
		return nil, utils.NewDomainError("refund the payment before cancelling this booking")
	}
	if !transitionAllowed(booking.Status, models.BookingStatusCancelled) {
		return nil, utils.NewDomainError(fmt.Sprintf("cannot cancel a booking in status %s", booking.Status))
	}

	res := s.db.Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, booking.Status).
		Update("status", models.BookingStatusCancelled)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("booking was updated by someone else, reload and retry")
	}

	if err := s.db.Model(&models.Payment{}).
		Where("booking_id = ? AND status IN ?", bookingID, []string{
			models.PaymentStatusPending,
			models.PaymentStatusProcessing,
		}).
		Update("status", models.PaymentStatusCancelled).Error; err != nil {
		log.Printf("Error cancelling open payments for booking %d: %v", bookingID, err)
	}

	if booking.StationID != nil {
		s.releaseStation(*booking.StationID)
	}

	if err := s.db.First(&booking, bookingID).Error; err != nil {
		return nil, err
	}
	log.Printf("Booking %s cancelled", booking.BookingNumber)
	live.BroadcastBookingUpdate(booking)
	return &booking, nil
}

func (s *BookingService) sendStationForCleaning(stationID uint) {
	if err := s.db.Model(&models.CollectionStation{}).
		Where("id = ?", stationID).
		Update("status", "cleaning").Error; err != nil {
		log.Printf("Error sending station %d for cleaning: %v", stationID, err)
		return
	}
	var station models.CollectionStation
	if err := s.db.First(&station, stationID).Error; err == nil {
		live.BroadcastStationUpdate(station)
	}
}

func (s *BookingService) releaseStation(stationID uint) {
	if err := s.db.Model(&models.CollectionStation{}).
		Where("id = ?", stationID).
		Update("status", "available").Error; err != nil {
		log.Printf("Error releasing station %d: %v", stationID, err)
		return
	}
	var station models.CollectionStation
	if err := s.db.First(&station, stationID).Error; err == nil {
		live.BroadcastStationUpdate(station)
	}
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range allowedBookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
