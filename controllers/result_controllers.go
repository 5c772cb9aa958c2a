package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type ResultController struct {
	DB *gorm.DB
}

func NewResultController(db *gorm.DB) *ResultController {
	return &ResultController{DB: db}
}

// RecordResult captures or updates a result for one test on a booking.
// Staff only. Recording does not release the result to the patient.
func (rc *ResultController) RecordResult(c *gin.Context) {
	bookingID, err := strconv.ParseUint(c.Param("booking_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid booking_id"))
		return
	}

	var input struct {
		LabTestID uint   `json:"lab_test_id" binding:"required"`
		Summary   string `json:"summary" binding:"required"`
		Details   string `json:"details"`
		ReportURL string `json:"report_url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var booking models.Booking
	if err := rc.DB.First(&booking, bookingID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("booking not found"))
		return
	}

	var item models.BookingItem
	if err := rc.DB.Where("booking_id = ? AND lab_test_id = ?", booking.ID, input.LabTestID).
		First(&item).Error; err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("test is not part of this booking"))
		return
	}

	staffIDValue, _ := c.Get("user_id")
	staffID, _ := staffIDValue.(uint)

	var result models.TestResult
	lookupErr := rc.DB.Where("booking_id = ? AND lab_test_id = ?", booking.ID, input.LabTestID).
		First(&result).Error
	switch {
	case errors.Is(lookupErr, gorm.ErrRecordNotFound):
		result = models.TestResult{
			BookingID:  booking.ID,
			LabTestID:  input.LabTestID,
			PatientID:  booking.PatientID,
			Status:     models.ResultStatusReady,
			Summary:    input.Summary,
			Details:    input.Details,
			ReportURL:  input.ReportURL,
			RecordedBy: &staffID,
		}
		if err := rc.DB.Create(&result).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	case lookupErr != nil:
		utils.RespondError(c, http.StatusInternalServerError, lookupErr)
		return
	default:
		if result.Status == models.ResultStatusReleased {
			utils.RespondError(c, http.StatusConflict, errors.New("result already released, amendments are not allowed"))
			return
		}
		updates := map[string]interface{}{
			"summary":     input.Summary,
			"details":     input.Details,
			"report_url":  input.ReportURL,
			"status":      models.ResultStatusReady,
			"recorded_by": staffID,
		}
		if err := rc.DB.Model(&result).Updates(updates).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}

	utils.InfoLogger.Printf("Result recorded for booking %d test %d by staff %d",
		booking.ID, input.LabTestID, staffID)

	utils.RespondJSON(c, http.StatusOK, "Result recorded", result)
}

// GetAllResults lists every result for the back office, optionally by
// status. Staff/admin.
func (rc *ResultController) GetAllResults(c *gin.Context) {
	query := rc.DB.Preload("LabTest").Order("updated_at DESC").Limit(200)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if bookingID := c.Query("booking_id"); bookingID != "" {
		query = query.Where("booking_id = ?", bookingID)
	}

	var results []models.TestResult
	if err := query.Find(&results).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "All results", results)
}

// ReleaseResult makes a ready result visible to the patient and notifies
// them. Staff only.
func (rc *ResultController) ReleaseResult(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("result_id"), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid result_id"))
		return
	}

	var result models.TestResult
	if err := rc.DB.Preload("LabTest").First(&result, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("result not found"))
		return
	}

	now := time.Now()
	update := rc.DB.Model(&models.TestResult{}).
		Where("id = ? AND status = ?", result.ID, models.ResultStatusReady).
		Updates(map[string]interface{}{
			"status":      models.ResultStatusReleased,
			"released_at": now,
		})
	if update.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, update.Error)
		return
	}
	if update.RowsAffected == 0 {
		utils.RespondError(c, http.StatusConflict,
			errors.New("result is not ready for release"))
		return
	}

	result.Status = models.ResultStatusReleased
	result.ReleasedAt = &now

	title := "Your test result is ready"
	notification := models.Notification{
		UserID:  &result.PatientID,
		Title:   &title,
		Message: "Your result for " + result.LabTest.Name + " has been released. Log in to view it.",
	}
	if err := rc.DB.Create(&notification).Error; err != nil {
		utils.ErrorLogger.Printf("Failed to create result notification: %v", err)
	}

	live.BroadcastResultReady(result)

	utils.InfoLogger.Printf("Result %d released to patient %d", result.ID, result.PatientID)
	utils.RespondJSON(c, http.StatusOK, "Result released", result)
}

// GetMyResults lists the authenticated patient's released results.
func (rc *ResultController) GetMyResults(c *gin.Context) {
	userIDValue, _ := c.Get("user_id")
	patientID, ok := userIDValue.(uint)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var results []models.TestResult
	if err := rc.DB.Preload("LabTest").
		Where("patient_id = ? AND status = ?", patientID, models.ResultStatusReleased).
		Order("released_at DESC").
		Find(&results).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of results", results)
}

// GetBookingResults lists every result on a booking. Staff see all
// statuses; the owning patient sees only released ones.
func (rc *ResultController) GetBookingResults(c *gin.Context) {
	var booking models.Booking
	if err := rc.DB.First(&booking, c.Param("booking_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("booking not found"))
		return
	}

	if !canAccessBooking(c, &booking) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	query := rc.DB.Preload("LabTest").Where("booking_id = ?", booking.ID)

	role, _ := c.Get("role")
	if role != models.RoleStaff && role != models.RoleAdmin {
		query = query.Where("status = ?", models.ResultStatusReleased)
	}

	var results []models.TestResult
	if err := query.Find(&results).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Booking results", results)
}

// GetResultByID returns one result. Patients can only see their own
// released results.
func (rc *ResultController) GetResultByID(c *gin.Context) {
	var result models.TestResult
	if err := rc.DB.Preload("LabTest").First(&result, c.Param("result_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, errors.New("result not found"))
		return
	}

	role, _ := c.Get("role")
	if role == models.RoleStaff || role == models.RoleAdmin {
		utils.RespondJSON(c, http.StatusOK, "Result detail", result)
		return
	}

	userID, _ := c.Get("user_id")
	id, ok := userID.(uint)
	if !ok || id != result.PatientID || result.Status != models.ResultStatusReleased {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Result detail", result)
}
