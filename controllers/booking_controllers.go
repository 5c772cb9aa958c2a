package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/services"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type BookingController struct {
	DB       *gorm.DB
	bookings *services.BookingService
}

func NewBookingController(db *gorm.DB) *BookingController {
	return &BookingController{
		DB:       db,
		bookings: services.NewBookingService(db),
	}
}

// CreateBooking books one or more lab tests for the authenticated patient.
func (bc *BookingController) CreateBooking(c *gin.Context) {
	userIDValue, exists := c.Get("user_id")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}
	patientID, ok := userIDValue.(uint)
	if !ok {
		utils.RespondError(c, http.StatusInternalServerError, errors.New("invalid user id type"))
		return
	}

	var input struct {
		ScheduledAt *time.Time                  `json:"scheduled_at"`
		Notes       string                      `json:"notes"`
		Items       []services.BookingItemInput `json:"items" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	booking, err := bc.bookings.CreateBooking(patientID, input.ScheduledAt, input.Notes, input.Items)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.InfoLogger.Printf("Booking %s created for patient %d (total %s)",
		booking.BookingNumber, patientID, utils.FormatCurrencyNGN(booking.TotalAmount))

	utils.RespondJSON(c, http.StatusCreated, "Booking created", booking)
}

// GetMyBookings lists the authenticated patient's bookings.
func (bc *BookingController) GetMyBookings(c *gin.Context) {
	userIDValue, _ := c.Get("user_id")
	patientID, ok := userIDValue.(uint)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var bookings []models.Booking
	query := bc.DB.Preload("Items").Preload("Items.LabTest").
		Where("patient_id = ?", patientID).
		Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&bookings).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of bookings", bookings)
}

// GetAllBookings lists every booking with optional filters. Staff/admin.
func (bc *BookingController) GetAllBookings(c *gin.Context) {
	var bookings []models.Booking
	query := bc.DB.Preload("Patient").Preload("Items").Preload("Items.LabTest").
		Order("created_at DESC")

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if payStatus := c.Query("payment_status"); payStatus != "" {
		query = query.Where("payment_status = ?", payStatus)
	}
	if date := c.Query("date"); date != "" {
		query = query.Where("DATE(created_at) = ?", date)
	}

	if err := query.Find(&bookings).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of bookings", bookings)
}

// GetBookingByID returns one booking. Patients can only read their own.
func (bc *BookingController) GetBookingByID(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("booking_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid booking_id"))
		return
	}

	var booking models.Booking
	if err := bc.DB.Preload("Patient").Preload("Items").Preload("Items.LabTest").
		Preload("Station").First(&booking, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("booking not found"))
		return
	}

	if !canAccessBooking(c, &booking) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Booking detail", booking)
}

// UpdateBookingStatus moves a booking along the workflow. Staff/admin.
func (bc *BookingController) UpdateBookingStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("booking_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid booking_id"))
		return
	}

	var input struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	booking, err := bc.bookings.UpdateBookingStatus(uint(id), input.Status)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Booking status updated", booking)
}

// AssignStation seats a confirmed booking at a collection station. Staff/admin.
func (bc *BookingController) AssignStation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("booking_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid booking_id"))
		return
	}

	var input struct {
		StationID uint `json:"station_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	booking, err := bc.bookings.AssignStation(uint(id), input.StationID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Station assigned", booking)
}

// CancelBooking cancels a booking. Patients can cancel their own unpaid
// bookings; paid bookings must be refunded first.
func (bc *BookingController) CancelBooking(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("booking_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid booking_id"))
		return
	}

	var booking models.Booking
	if err := bc.DB.First(&booking, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("booking not found"))
		return
	}

	if !canAccessBooking(c, &booking) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	cancelled, err := bc.bookings.CancelBooking(uint(id))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Booking cancelled", cancelled)
}

// canAccessBooking allows staff, admin and the owning patient.
func canAccessBooking(c *gin.Context, booking *models.Booking) bool {
	role, _ := c.Get("role")
	if role == models.RoleStaff || role == models.RoleAdmin {
		return true
	}
	userID, _ := c.Get("user_id")
	id, ok := userID.(uint)
	return ok && id == booking.PatientID
}
