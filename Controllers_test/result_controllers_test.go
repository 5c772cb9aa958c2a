package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/onpointkonceptz/goldbond/controllers"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
)

// seedCollectedBooking builds a paid booking that already had its sample
// taken, which is where result entry starts.
func seedCollectedBooking(db *gorm.DB, patientID uint, tag string) (models.Booking, models.LabTest) {
	category := models.TestCategory{Name: "Histopathology " + tag}
	db.Create(&category)
	labTest := models.LabTest{
		CategoryID: category.ID,
		Name:       "Biopsy Review " + tag,
		Code:       strings.ToUpper(tag),
		Price:      25000,
		Active:     true,
	}
	db.Create(&labTest)

	booking := models.Booking{
		BookingNumber: "GBL-" + tag,
		PatientID:     patientID,
		Status:        models.BookingStatusSampleCollected,
		PaymentStatus: models.BookingPaymentPaid,
		TotalAmount:   labTest.Price,
		Items: []models.BookingItem{{
			LabTestID: labTest.ID,
			Quantity:  1,
			UnitPrice: labTest.Price,
			Subtotal:  labTest.Price,
		}},
	}
	db.Create(&booking)
	return booking, labTest
}

func setupResultRouter(db *gorm.DB, user models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	resultCtrl := controllers.NewResultController(db)

	authed := router.Group("/", asRole(user.ID, user.Role))
	authed.GET("/results", resultCtrl.GetMyResults)
	authed.GET("/results/:result_id", resultCtrl.GetResultByID)
	authed.GET("/bookings/:booking_id/results", resultCtrl.GetBookingResults)
	if user.Role == models.RoleStaff || user.Role == models.RoleAdmin {
		authed.POST("/admin/bookings/:booking_id/results", resultCtrl.RecordResult)
		authed.GET("/admin/results", resultCtrl.GetAllResults)
		authed.POST("/admin/results/:result_id/release", resultCtrl.ReleaseResult)
	}
	return router
}

func TestRecordResultEndpoint(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "rs-record@example.com", "patientPass12", models.RolePatient)
	staff := seedTestUser(db, "rs-record-staff@example.com", "staffPass1234", models.RoleStaff)
	booking, labTest := seedCollectedBooking(db, patient.ID, "rs-record")
	router := setupResultRouter(db, staff)

	url := fmt.Sprintf("/admin/bookings/%d/results", booking.ID)
	body, _ := json.Marshal(map[string]interface{}{
		"lab_test_id": labTest.ID,
		"summary":     "No malignant cells seen",
		"details":     "Sections show benign tissue rs-record.",
	})
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, models.ResultStatusReady, data["status"])
	assert.Equal(t, float64(staff.ID), data["recorded_by"])

	// re-recording before release amends in place
	amended, _ := json.Marshal(map[string]interface{}{
		"lab_test_id": labTest.ID,
		"summary":     "No malignant cells seen, amended",
	})
	req, _ = http.NewRequest("POST", url, bytes.NewBuffer(amended))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	db.Model(&models.TestResult{}).Where("booking_id = ?", booking.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// a test the booking never included is refused
	stranger, _ := json.Marshal(map[string]interface{}{
		"lab_test_id": 99999,
		"summary":     "Should not land",
	})
	req, _ = http.NewRequest("POST", url, bytes.NewBuffer(stranger))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReleaseResultEndpoint(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "rs-release@example.com", "patientPass12", models.RolePatient)
	staff := seedTestUser(db, "rs-release-staff@example.com", "staffPass1234", models.RoleStaff)
	booking, labTest := seedCollectedBooking(db, patient.ID, "rs-release")

	result := models.TestResult{
		BookingID: booking.ID,
		LabTestID: labTest.ID,
		PatientID: patient.ID,
		Status:    models.ResultStatusReady,
		Summary:   "Within normal limits rs-release",
	}
	db.Create(&result)

	staffRouter := setupResultRouter(db, staff)
	url := fmt.Sprintf("/admin/results/%d/release", result.ID)

	req, _ := http.NewRequest("POST", url, nil)
	w := httptest.NewRecorder()
	staffRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var released models.TestResult
	db.First(&released, result.ID)
	assert.Equal(t, models.ResultStatusReleased, released.Status)
	assert.NotNil(t, released.ReleasedAt)

	// the patient is told about it
	var notifCount int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND message LIKE ?", patient.ID, "%"+labTest.Name+"%").
		Count(&notifCount)
	assert.Equal(t, int64(1), notifCount)

	// releasing twice is refused
	req, _ = http.NewRequest("POST", url, nil)
	w = httptest.NewRecorder()
	staffRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	// and so is amending after release
	amend, _ := json.Marshal(map[string]interface{}{
		"lab_test_id": labTest.ID,
		"summary":     "Too late to change",
	})
	req, _ = http.NewRequest("POST", fmt.Sprintf("/admin/bookings/%d/results", booking.ID), bytes.NewBuffer(amend))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	staffRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPatientResultVisibility(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "rs-vis@example.com", "patientPass12", models.RolePatient)
	intruder := seedTestUser(db, "rs-vis-intruder@example.com", "patientPass12", models.RolePatient)
	booking, labTest := seedCollectedBooking(db, patient.ID, "rs-vis")

	pending := models.TestResult{
		BookingID: booking.ID,
		LabTestID: labTest.ID,
		PatientID: patient.ID,
		Status:    models.ResultStatusReady,
		Summary:   "Unreleased rs-vis",
	}
	db.Create(&pending)

	patientRouter := setupResultRouter(db, patient)

	// nothing surfaces before release
	req, _ := http.NewRequest("GET", "/results", nil)
	w := httptest.NewRecorder()
	patientRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Data []models.TestResult `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &listResp)
	assert.Len(t, listResp.Data, 0)

	// fetching the unreleased result directly is forbidden
	req, _ = http.NewRequest("GET", fmt.Sprintf("/results/%d", pending.ID), nil)
	w = httptest.NewRecorder()
	patientRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// booking view hides it too
	req, _ = http.NewRequest("GET", fmt.Sprintf("/bookings/%d/results", booking.ID), nil)
	w = httptest.NewRecorder()
	patientRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	json.Unmarshal(w.Body.Bytes(), &listResp)
	assert.Len(t, listResp.Data, 0)

	db.Model(&pending).Updates(map[string]interface{}{"status": models.ResultStatusReleased})

	req, _ = http.NewRequest("GET", "/results", nil)
	w = httptest.NewRecorder()
	patientRouter.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &listResp)
	assert.Len(t, listResp.Data, 1)
	assert.Equal(t, "Unreleased rs-vis", listResp.Data[0].Summary)

	// another patient still sees nothing of it
	intruderRouter := setupResultRouter(db, intruder)
	req, _ = http.NewRequest("GET", fmt.Sprintf("/results/%d", pending.ID), nil)
	w = httptest.NewRecorder()
	intruderRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req, _ = http.NewRequest("GET", fmt.Sprintf("/bookings/%d/results", booking.ID), nil)
	w = httptest.NewRecorder()
	intruderRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBackOfficeResultQueue(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "rs-queue@example.com", "patientPass12", models.RolePatient)
	staff := seedTestUser(db, "rs-queue-staff@example.com", "staffPass1234", models.RoleStaff)
	booking, labTest := seedCollectedBooking(db, patient.ID, "rs-queue")

	db.Create(&models.TestResult{
		BookingID: booking.ID,
		LabTestID: labTest.ID,
		PatientID: patient.ID,
		Status:    models.ResultStatusReady,
		Summary:   "Queued rs-queue",
	})

	router := setupResultRouter(db, staff)
	req, _ := http.NewRequest("GET", fmt.Sprintf("/admin/results?status=ready&booking_id=%d", booking.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []models.TestResult `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, models.ResultStatusReady, resp.Data[0].Status)

	// staff see every status on the booking view
	req, _ = http.NewRequest("GET", fmt.Sprintf("/bookings/%d/results", booking.ID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Len(t, resp.Data, 1)
}
