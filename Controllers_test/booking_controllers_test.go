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

// seedCatalogTest puts one active test in the catalogue.
func seedCatalogTest(db *gorm.DB, tag string, price float64) models.LabTest {
	category := models.TestCategory{Name: "Microbiology " + tag}
	db.Create(&category)
	labTest := models.LabTest{
		CategoryID: category.ID,
		Name:       "Widal Test " + tag,
		Code:       strings.ToUpper(tag),
		Price:      price,
		Active:     true,
	}
	db.Create(&labTest)
	return labTest
}

func setupBookingRouter(db *gorm.DB, user models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	bookingCtrl := controllers.NewBookingController(db)

	authed := router.Group("/", asRole(user.ID, user.Role))
	authed.POST("/bookings", bookingCtrl.CreateBooking)
	authed.GET("/bookings", bookingCtrl.GetMyBookings)
	authed.GET("/bookings/:booking_id", bookingCtrl.GetBookingByID)
	authed.DELETE("/bookings/:booking_id", bookingCtrl.CancelBooking)
	return router
}

func TestCreateBookingEndpoint(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "bk-create@example.com", "patientPass12", models.RolePatient)
	labTest := seedCatalogTest(db, "bk-create", 4500)
	router := setupBookingRouter(db, patient)

	payload := map[string]interface{}{
		"notes": "morning appointment please",
		"items": []map[string]interface{}{
			{"lab_test_id": labTest.ID, "quantity": 2},
		},
	}
	payloadBytes, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", "/bookings", bytes.NewBuffer(payloadBytes))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	assert.NotEmpty(t, data["booking_number"])
	assert.Equal(t, "pending_payment", data["status"])
	assert.Equal(t, "unpaid", data["payment_status"])
	// price comes from the catalogue: 2 x 4500
	assert.Equal(t, 9000.0, data["total_amount"])

	// a booking without tests is rejected by binding
	empty, _ := json.Marshal(map[string]interface{}{"items": []map[string]interface{}{}})
	req, _ = http.NewRequest("POST", "/bookings", bytes.NewBuffer(empty))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingAccessControl(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	owner := seedTestUser(db, "bk-owner@example.com", "ownerPass1234", models.RolePatient)
	intruder := seedTestUser(db, "bk-intruder@example.com", "introPass1234", models.RolePatient)
	staff := seedTestUser(db, "bk-staff@example.com", "staffPass1234", models.RoleStaff)
	labTest := seedCatalogTest(db, "bk-access", 3000)

	ownerRouter := setupBookingRouter(db, owner)
	intruderRouter := setupBookingRouter(db, intruder)
	staffRouter := setupBookingRouter(db, staff)

	payload, _ := json.Marshal(map[string]interface{}{
		"items": []map[string]interface{}{{"lab_test_id": labTest.ID}},
	})
	req, _ := http.NewRequest("POST", "/bookings", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ownerRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &createResp)
	bookingID := uint(createResp["data"].(map[string]interface{})["id"].(float64))
	url := fmt.Sprintf("/bookings/%d", bookingID)

	// the owner reads it
	req, _ = http.NewRequest("GET", url, nil)
	w = httptest.NewRecorder()
	ownerRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// another patient does not
	req, _ = http.NewRequest("GET", url, nil)
	w = httptest.NewRecorder()
	intruderRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// staff see everything
	req, _ = http.NewRequest("GET", url, nil)
	w = httptest.NewRecorder()
	staffRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// listings are scoped to the caller
	req, _ = http.NewRequest("GET", "/bookings", nil)
	w = httptest.NewRecorder()
	intruderRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Data []map[string]interface{} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &listResp)
	assert.Len(t, listResp.Data, 0)
}

func TestCancelBookingEndpoint(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "bk-cancel@example.com", "cancelPass123", models.RolePatient)
	labTest := seedCatalogTest(db, "bk-cancel", 2500)
	router := setupBookingRouter(db, patient)

	payload, _ := json.Marshal(map[string]interface{}{
		"items": []map[string]interface{}{{"lab_test_id": labTest.ID}},
	})
	req, _ := http.NewRequest("POST", "/bookings", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &createResp)
	bookingID := uint(createResp["data"].(map[string]interface{})["id"].(float64))
	url := fmt.Sprintf("/bookings/%d", bookingID)

	req, _ = http.NewRequest("DELETE", url, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cancelResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &cancelResp)
	data := cancelResp["data"].(map[string]interface{})
	assert.Equal(t, "cancelled", data["status"])

	// cancelling twice is a workflow violation
	req, _ = http.NewRequest("DELETE", url, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBookingWorkflowEndpoints(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "bk-flow@example.com", "flowPass12345", models.RolePatient)
	staff := seedTestUser(db, "bk-flow-staff@example.com", "staffPass1234", models.RoleStaff)
	labTest := seedCatalogTest(db, "bk-flow", 5000)

	booking := models.Booking{
		BookingNumber: "GBL-bk-flow",
		PatientID:     patient.ID,
		Status:        models.BookingStatusConfirmed,
		PaymentStatus: models.BookingPaymentPaid,
		TotalAmount:   5000,
		Items:         []models.BookingItem{{LabTestID: labTest.ID, Quantity: 1, UnitPrice: 5000, Subtotal: 5000}},
	}
	db.Create(&booking)
	station := models.CollectionStation{StationNumber: "BK-FLOW-1", Status: "available"}
	db.Create(&station)

	gin.SetMode(gin.TestMode)
	router := gin.Default()
	bookingCtrl := controllers.NewBookingController(db)
	staffGroup := router.Group("/admin", asRole(staff.ID, staff.Role))
	staffGroup.PATCH("/bookings/:booking_id/status", bookingCtrl.UpdateBookingStatus)
	staffGroup.POST("/bookings/:booking_id/station", bookingCtrl.AssignStation)

	// seat the patient
	assignBody, _ := json.Marshal(map[string]interface{}{"station_id": station.ID})
	req, _ := http.NewRequest("POST", fmt.Sprintf("/admin/bookings/%d/station", booking.ID), bytes.NewBuffer(assignBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// collect the sample; the station goes off for cleaning
	statusBody, _ := json.Marshal(map[string]interface{}{"status": models.BookingStatusSampleCollected})
	req, _ = http.NewRequest("PATCH", fmt.Sprintf("/admin/bookings/%d/status", booking.ID), bytes.NewBuffer(statusBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cleaned models.CollectionStation
	db.First(&cleaned, station.ID)
	assert.Equal(t, "cleaning", cleaned.Status)

	// a step that skips the workflow is refused
	badBody, _ := json.Marshal(map[string]interface{}{"status": models.BookingStatusConfirmed})
	req, _ = http.NewRequest("PATCH", fmt.Sprintf("/admin/bookings/%d/status", booking.ID), bytes.NewBuffer(badBody))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
