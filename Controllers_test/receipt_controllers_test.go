package Controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/onpointkonceptz/goldbond/controllers"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
)

// seedSettledPayment builds a paid booking with its completed payment,
// ready for receipt generation.
func seedSettledPayment(db *gorm.DB, patientID uint, tag string, total float64) models.Payment {
	category := models.TestCategory{Name: "Immunology " + tag}
	db.Create(&category)
	labTest := models.LabTest{
		CategoryID: category.ID,
		Name:       "Allergy Panel " + tag,
		Code:       "RC-" + tag,
		Price:      total,
		Active:     true,
	}
	db.Create(&labTest)

	booking := models.Booking{
		BookingNumber: "GBL-" + tag,
		PatientID:     patientID,
		Status:        models.BookingStatusConfirmed,
		PaymentStatus: models.BookingPaymentPaid,
		TotalAmount:   total,
		Items: []models.BookingItem{{
			LabTestID: labTest.ID,
			Quantity:  1,
			UnitPrice: total,
			Subtotal:  total,
		}},
	}
	db.Create(&booking)

	payment := models.Payment{
		BookingID:     booking.ID,
		PatientID:     patientID,
		Reference:     "GB-" + tag,
		Amount:        total,
		Currency:      "NGN",
		PaymentMethod: models.PaymentMethodCard,
		Status:        models.PaymentStatusCompleted,
		Verified:      true,
	}
	db.Create(&payment)
	return payment
}

func setupReceiptRouter(db *gorm.DB, user models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	receiptCtrl := controllers.NewReceiptController(db)

	authed := router.Group("/", asRole(user.ID, user.Role))
	authed.POST("/payments/:payment_id/receipt", receiptCtrl.GenerateReceipt)
	authed.GET("/receipts/:receipt_id", receiptCtrl.GetReceiptByID)
	authed.GET("/receipts/:receipt_id/print", receiptCtrl.PrintReceipt)
	return router
}

func TestGenerateReceiptEndpoint(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "rcpt-gen@example.com", "patientPass12", models.RolePatient)
	payment := seedSettledPayment(db, patient.ID, "rcpt-gen", 18000)
	router := setupReceiptRouter(db, patient)

	url := fmt.Sprintf("/payments/%d/receipt", payment.ID)
	req, _ := http.NewRequest("POST", url, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	data := resp["data"].(map[string]interface{})
	receiptNumber := data["receipt_number"].(string)
	assert.NotEmpty(t, receiptNumber)
	assert.Equal(t, 18000.0, data["total"])

	// asking again returns the same receipt, not a second one
	req, _ = http.NewRequest("POST", url, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, receiptNumber, resp["data"].(map[string]interface{})["receipt_number"])

	var count int64
	db.Model(&models.Receipt{}).Where("payment_id = ?", payment.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestGenerateReceiptOwnership(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	owner := seedTestUser(db, "rcpt-own@example.com", "patientPass12", models.RolePatient)
	intruder := seedTestUser(db, "rcpt-own-intr@example.com", "patientPass12", models.RolePatient)
	payment := seedSettledPayment(db, owner.ID, "rcpt-own", 9500)

	intruderRouter := setupReceiptRouter(db, intruder)
	req, _ := http.NewRequest("POST", fmt.Sprintf("/payments/%d/receipt", payment.ID), nil)
	w := httptest.NewRecorder()
	intruderRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// staff can issue it on the patient's behalf
	staff := seedTestUser(db, "rcpt-own-staff@example.com", "staffPass1234", models.RoleStaff)
	staffRouter := setupReceiptRouter(db, staff)
	req, _ = http.NewRequest("POST", fmt.Sprintf("/payments/%d/receipt", payment.ID), nil)
	w = httptest.NewRecorder()
	staffRouter.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPrintReceiptEndpoint(t *testing.T) {
	utils.InitLogger()
	db := setupTestDB()
	patient := seedTestUser(db, "rcpt-print@example.com", "patientPass12", models.RolePatient)
	payment := seedSettledPayment(db, patient.ID, "rcpt-print", 21000)
	router := setupReceiptRouter(db, patient)

	req, _ := http.NewRequest("POST", fmt.Sprintf("/payments/%d/receipt", payment.ID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var genResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &genResp)
	receiptID := uint(genResp["data"].(map[string]interface{})["id"].(float64))

	req, _ = http.NewRequest("GET", fmt.Sprintf("/receipts/%d/print", receiptID), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var printResp struct {
		Data struct {
			LabInfo struct {
				Name string `json:"name"`
			} `json:"lab_info"`
			ReceiptInfo struct {
				Number        string `json:"number"`
				BookingNumber string `json:"booking_number"`
				PatientName   string `json:"patient_name"`
			} `json:"receipt_info"`
			Items []struct {
				Name     string `json:"name"`
				Subtotal string `json:"subtotal"`
			} `json:"items"`
			Total          string `json:"total"`
			PaymentDetails struct {
				Method   string `json:"method"`
				Currency string `json:"currency"`
			} `json:"payment_details"`
		} `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &printResp)
	assert.Equal(t, "Goldbond Diagnostics", printResp.Data.LabInfo.Name)
	assert.Equal(t, "GBL-rcpt-print", printResp.Data.ReceiptInfo.BookingNumber)
	assert.Len(t, printResp.Data.Items, 1)
	assert.Equal(t, "NGN 21,000.00", printResp.Data.Total)
	assert.Equal(t, "card", printResp.Data.PaymentDetails.Method)
}
