package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/live"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/services"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

type AdminController struct {
	DB *gorm.DB
}

func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{DB: db}
}

// GetDashboardStats aggregates the numbers shown on the admin dashboard.
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	roleInterface, exists := c.Get("role")
	if !exists {
		log.Printf("No role found in context")
		utils.RespondError(c, http.StatusUnauthorized, errors.New("no role found"))
		return
	}

	role, ok := roleInterface.(string)
	if !ok {
		log.Printf("Role is not a string: %T", roleInterface)
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid role format"))
		return
	}

	if role != models.RoleAdmin {
		log.Printf("Unauthorized role access attempt: %s", role)
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	today := time.Now().Format("2006-01-02")

	var stats struct {
		TotalBookings int64   `json:"total_bookings"`
		TodayBookings int64   `json:"today_bookings"`
		TotalPatients int64   `json:"total_patients"`
		TotalRevenue  float64 `json:"total_revenue"`
		TodayRevenue  float64 `json:"today_revenue"`
		BookingStats  struct {
			PendingPayment  int64 `json:"pending_payment"`
			Confirmed       int64 `json:"confirmed"`
			SampleCollected int64 `json:"sample_collected"`
			Processing      int64 `json:"processing"`
			Completed       int64 `json:"completed"`
			Cancelled       int64 `json:"cancelled"`
		} `json:"booking_stats"`
		PaymentStats struct {
			Pending    int64   `json:"pending"`
			Processing int64   `json:"processing"`
			Completed  int64   `json:"completed"`
			Failed     int64   `json:"failed"`
			Refunded   int64   `json:"refunded"`
			Total      float64 `json:"total"`
			Today      float64 `json:"today"`
		} `json:"payment_stats"`
		ResultStats struct {
			Pending  int64 `json:"pending"`
			Ready    int64 `json:"ready"`
			Released int64 `json:"released"`
		} `json:"result_stats"`
		StationStats struct {
			Available int64 `json:"available"`
			Occupied  int64 `json:"occupied"`
			Cleaning  int64 `json:"cleaning"`
		} `json:"station_stats"`
		MonitorStats services.PaymentMetrics `json:"monitor_stats"`
	}

	ac.DB.Model(&models.Booking{}).Count(&stats.TotalBookings)
	ac.DB.Model(&models.Booking{}).Where("DATE(created_at) = ?", today).Count(&stats.TodayBookings)
	ac.DB.Model(&models.User{}).Where("role = ?", models.RolePatient).Count(&stats.TotalPatients)

	ac.DB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusPendingPayment).Count(&stats.BookingStats.PendingPayment)
	ac.DB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusConfirmed).Count(&stats.BookingStats.Confirmed)
	ac.DB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusSampleCollected).Count(&stats.BookingStats.SampleCollected)
	ac.DB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusProcessing).Count(&stats.BookingStats.Processing)
	ac.DB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusCompleted).Count(&stats.BookingStats.Completed)
	ac.DB.Model(&models.Booking{}).Where("status = ?", models.BookingStatusCancelled).Count(&stats.BookingStats.Cancelled)

	ac.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusPending).Count(&stats.PaymentStats.Pending)
	ac.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusProcessing).Count(&stats.PaymentStats.Processing)
	ac.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusCompleted).Count(&stats.PaymentStats.Completed)
	ac.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusFailed).Count(&stats.PaymentStats.Failed)
	ac.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusRefunded).Count(&stats.PaymentStats.Refunded)

	ac.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&stats.PaymentStats.Total)
	ac.DB.Model(&models.Payment{}).
		Where("status = ? AND DATE(paid_at) = ?", models.PaymentStatusCompleted, today).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&stats.PaymentStats.Today)

	ac.DB.Model(&models.TestResult{}).Where("status = ?", models.ResultStatusPending).Count(&stats.ResultStats.Pending)
	ac.DB.Model(&models.TestResult{}).Where("status = ?", models.ResultStatusReady).Count(&stats.ResultStats.Ready)
	ac.DB.Model(&models.TestResult{}).Where("status = ?", models.ResultStatusReleased).Count(&stats.ResultStats.Released)

	ac.DB.Model(&models.CollectionStation{}).Where("status = ?", "available").Count(&stats.StationStats.Available)
	ac.DB.Model(&models.CollectionStation{}).Where("status = ?", "occupied").Count(&stats.StationStats.Occupied)
	ac.DB.Model(&models.CollectionStation{}).Where("status = ?", "cleaning").Count(&stats.StationStats.Cleaning)

	stats.TotalRevenue = stats.PaymentStats.Total
	stats.TodayRevenue = stats.PaymentStats.Today

	if monitor := services.RegisteredPaymentMonitor(); monitor != nil {
		stats.MonitorStats = monitor.GetMetrics()
	}

	live.BroadcastDashboardUpdate(stats)

	utils.RespondJSON(c, http.StatusOK, "Dashboard stats retrieved successfully", gin.H{
		"data": stats,
	})
}

// MonitorPaymentFlow shows everything currently in flight: open
// payments, unpaid bookings and recent webhook deliveries.
func (ac *AdminController) MonitorPaymentFlow(c *gin.Context) {
	roleInterface, _ := c.Get("role")
	if roleInterface != models.RoleAdmin {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	var flow struct {
		OpenPayments   []models.Payment      `json:"open_payments"`
		UnpaidBookings []models.Booking      `json:"unpaid_bookings"`
		RecentWebhooks []models.WebhookEvent `json:"recent_webhooks"`
	}

	ac.DB.Preload("Booking").
		Where("status IN ?", []string{models.PaymentStatusPending, models.PaymentStatusProcessing}).
		Order("created_at DESC").Limit(100).
		Find(&flow.OpenPayments)

	ac.DB.Preload("Items").Preload("Items.LabTest").
		Where("payment_status = ?", models.BookingPaymentUnpaid).
		Order("created_at DESC").Limit(100).
		Find(&flow.UnpaidBookings)

	ac.DB.Order("created_at DESC").Limit(50).Find(&flow.RecentWebhooks)

	utils.RespondJSON(c, http.StatusOK, "Payment flow status", gin.H{
		"data": gin.H{
			"payment_flow": flow,
		},
	})
}

// GetRevenueReport summarises completed payments and the best selling
// tests.
func (ac *AdminController) GetRevenueReport(c *gin.Context) {
	roleInterface, _ := c.Get("role")
	if roleInterface != models.RoleAdmin {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	var report struct {
		TotalRevenue   float64 `json:"total_revenue"`
		TotalBookings  int64   `json:"total_bookings"`
		AverageBooking float64 `json:"average_booking"`
		TopTests       []struct {
			LabTestID uint    `json:"lab_test_id"`
			Name      string  `json:"name"`
			Quantity  int     `json:"quantity"`
			Revenue   float64 `json:"revenue"`
		} `json:"top_tests"`
	}

	ac.DB.Model(&models.Payment{}).Where("status = ?", models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&report.TotalRevenue)
	ac.DB.Model(&models.Booking{}).Where("payment_status = ?", models.BookingPaymentPaid).
		Count(&report.TotalBookings)

	if report.TotalBookings > 0 {
		report.AverageBooking = report.TotalRevenue / float64(report.TotalBookings)
	}

	rows, err := ac.DB.Model(&models.BookingItem{}).
		Select("booking_items.lab_test_id, lab_tests.name, SUM(booking_items.quantity) AS quantity, SUM(booking_items.subtotal) AS revenue").
		Joins("JOIN lab_tests ON lab_tests.id = booking_items.lab_test_id").
		Joins("JOIN bookings ON bookings.id = booking_items.booking_id").
		Where("bookings.payment_status = ?", models.BookingPaymentPaid).
		Group("booking_items.lab_test_id, lab_tests.name").
		Order("revenue DESC").
		Limit(10).
		Rows()
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var entry struct {
				LabTestID uint    `json:"lab_test_id"`
				Name      string  `json:"name"`
				Quantity  int     `json:"quantity"`
				Revenue   float64 `json:"revenue"`
			}
			var qty sql.NullInt64
			var revenue sql.NullFloat64
			if err := rows.Scan(&entry.LabTestID, &entry.Name, &qty, &revenue); err != nil {
				continue
			}
			entry.Quantity = int(qty.Int64)
			entry.Revenue = revenue.Float64
			report.TopTests = append(report.TopTests, entry)
		}
	}

	utils.RespondJSON(c, http.StatusOK, "Revenue report", gin.H{
		"data": gin.H{
			"report": report,
		},
	})
}

// GetPaymentMonitorMetrics exposes the background reconciliation
// counters.
func (ac *AdminController) GetPaymentMonitorMetrics(c *gin.Context) {
	roleInterface, _ := c.Get("role")
	if roleInterface != models.RoleAdmin {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	monitor := services.RegisteredPaymentMonitor()
	if monitor == nil {
		utils.RespondJSON(c, http.StatusOK, "Payment monitor not running", services.PaymentMetrics{})
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment monitor metrics", monitor.GetMetrics())
}
