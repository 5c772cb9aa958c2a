package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/controllers"
	"github.com/onpointkonceptz/goldbond/middlewares"
	"github.com/onpointkonceptz/goldbond/models"
	"gorm.io/gorm"
)

// SetupRouter builds the full route table. Extra global middleware must be
// passed in here: gin snapshots each route's handler chain at registration,
// so Use() calls made after this returns never run for these routes.
func SetupRouter(db *gorm.DB, globals ...gin.HandlerFunc) *gin.Engine {
	r := gin.Default()

	// Apply security middlewares
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(globals...)

	userCtrl := controllers.NewUserController(db)
	categoryCtrl := controllers.NewTestCategoryController(db)
	testCtrl := controllers.NewLabTestController(db)
	bookingCtrl := controllers.NewBookingController(db)
	paymentCtrl := controllers.NewPaymentController(db)
	resultCtrl := controllers.NewResultController(db)
	receiptCtrl := controllers.NewReceiptController(db)
	stationCtrl := controllers.NewStationController(db)
	cleanLogCtrl := controllers.NewCleaningLogController(db)
	notificationCtrl := controllers.NewNotificationController(db)
	adminCtrl := controllers.NewAdminController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  true,
			"message": "Goldbond Diagnostics API",
		})
	})

	// Rate limiter for credential and contact endpoints
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
		public.POST("/contact", controllers.SubmitContactMessage)
	}

	// Test catalogue is browsable without an account
	r.GET("/categories", categoryCtrl.GetAllCategories)
	r.GET("/tests", testCtrl.GetAllTests)
	r.GET("/tests/:test_id", testCtrl.GetTestByID)

	// Paystack calls this; authentication is the HMAC signature on the body
	r.POST("/payments/webhook/paystack", paymentCtrl.HandlePaystackWebhook)
	r.GET("/payments/config/public-key", paymentCtrl.GetPaystackConfig)

	// ----------------------------------------------------------------
	//                      PATIENT ROUTES (authenticated)
	// ----------------------------------------------------------------
	authd := r.Group("/")
	authd.Use(middlewares.EnhancedAuthMiddleware())
	{
		authd.POST("/logout", userCtrl.Logout)

		authd.POST("/bookings", bookingCtrl.CreateBooking)
		authd.GET("/bookings", bookingCtrl.GetMyBookings)
		authd.GET("/bookings/:booking_id", bookingCtrl.GetBookingByID)
		authd.DELETE("/bookings/:booking_id", bookingCtrl.CancelBooking)
		authd.GET("/bookings/:booking_id/result", resultCtrl.GetBookingResults)
		authd.GET("/bookings/:booking_id/payments", paymentCtrl.ListBookingPayments)

		authd.GET("/results", resultCtrl.GetMyResults)
		authd.GET("/results/:result_id", resultCtrl.GetResultByID)

		authd.GET("/receipts/:receipt_id", receiptCtrl.GetReceiptByID)
		authd.GET("/receipts/:receipt_id/print", receiptCtrl.PrintReceipt)

		authd.GET("/notifications", notificationCtrl.GetMyNotifications)
		authd.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkNotificationRead)

		// Checkout endpoints carry their own hardening
		pay := authd.Group("/payments")
		pay.Use(middlewares.PaymentSecurityHeaders())
		pay.Use(middlewares.PaymentRateLimiter())
		pay.Use(middlewares.LogPaymentRequest())
		{
			pay.POST("/initialize", middlewares.ValidatePaymentRequest(), paymentCtrl.InitializePayment)
			pay.POST("/verify/:reference", paymentCtrl.VerifyPayment)
			pay.GET("/:reference", paymentCtrl.GetPaymentByReference)
		}
	}

	// ----------------------------------------------------------------
	//                      BACK OFFICE ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.EnhancedAuthMiddleware())

	// Profile works for every authenticated role
	auth.GET("/profile", userCtrl.GetProfile)
	auth.PATCH("/profile", userCtrl.UpdateProfile)

	// Admin only (controllers enforce the role)
	auth.GET("/users", userCtrl.GetAllUsers)
	auth.POST("/users", userCtrl.CreateStaff)
	auth.GET("/dashboard/stats", adminCtrl.GetDashboardStats)
	auth.GET("/payments/flow", adminCtrl.MonitorPaymentFlow)
	auth.GET("/reports/revenue", adminCtrl.GetRevenueReport)
	auth.GET("/monitor/payments", adminCtrl.GetPaymentMonitorMetrics)
	auth.POST("/payments/:payment_id/refund", paymentCtrl.RefundPayment)
	auth.POST("/payments/:payment_id/cancel", paymentCtrl.CancelPayment)

	// Staff and admin
	staff := auth.Group("/")
	staff.Use(middlewares.RequireRoles(models.RoleStaff))
	{
		// Catalogue management
		staff.POST("/tests", testCtrl.CreateTest)
		staff.PATCH("/tests/:test_id", testCtrl.UpdateTest)
		staff.DELETE("/tests/:test_id", testCtrl.DeleteTest)
		staff.POST("/categories", categoryCtrl.CreateCategory)
		staff.GET("/categories/:cat_id", categoryCtrl.GetCategoryByID)
		staff.PATCH("/categories/:cat_id", categoryCtrl.UpdateCategory)
		staff.DELETE("/categories/:cat_id", categoryCtrl.DeleteCategory)

		// Bookings
		staff.GET("/bookings", bookingCtrl.GetAllBookings)
		staff.GET("/bookings/:booking_id", bookingCtrl.GetBookingByID)
		staff.PATCH("/bookings/:booking_id/status", bookingCtrl.UpdateBookingStatus)
		staff.POST("/bookings/:booking_id/station", bookingCtrl.AssignStation)
		staff.DELETE("/bookings/:booking_id", bookingCtrl.CancelBooking)

		// Results
		staff.POST("/bookings/:booking_id/result", resultCtrl.RecordResult)
		staff.GET("/results", resultCtrl.GetAllResults)
		staff.POST("/results/:result_id/release", resultCtrl.ReleaseResult)

		// Payments
		staff.GET("/payments", paymentCtrl.GetPayments)
		staff.GET("/payments/:payment_id", paymentCtrl.GetPaymentDetail)

		// Receipts with the dedicated audit logger
		receiptGroup := staff.Group("/payments")
		receiptGroup.Use(middlewares.ReceiptLoggerMiddleware())
		{
			receiptGroup.POST("/:payment_id/receipt", receiptCtrl.GenerateReceipt)
		}

		// Collection stations and sanitation
		staff.GET("/stations", stationCtrl.GetAllStations)
		staff.POST("/stations", stationCtrl.CreateStation)
		staff.GET("/stations/:station_id", stationCtrl.GetStationByID)
		staff.PATCH("/stations/:station_id", stationCtrl.UpdateStationStatus)
		staff.PATCH("/stations/:station_id/clean", stationCtrl.MarkStationClean)
		staff.DELETE("/stations/:station_id", stationCtrl.DeleteStation)

		staff.GET("/cleaning-logs", cleanLogCtrl.GetAllCleaningLogs)
		staff.POST("/cleaning-logs", cleanLogCtrl.CreateCleaningLog)
		staff.GET("/cleaning-logs/:clean_id", cleanLogCtrl.GetCleaningLogByID)
		staff.PATCH("/cleaning-logs/:clean_id", cleanLogCtrl.UpdateCleaningLog)
		staff.DELETE("/cleaning-logs/:clean_id", cleanLogCtrl.DeleteCleaningLog)

		// Enquiries
		staff.GET("/contact-messages", controllers.GetContactMessages)
		staff.PATCH("/contact-messages/:message_id/resolve", controllers.ResolveContactMessage)

		// Notifications
		staff.POST("/notifications", notificationCtrl.CreateNotification)
		staff.GET("/notifications/:notif_id", notificationCtrl.GetNotificationByID)
		staff.DELETE("/notifications/:notif_id", notificationCtrl.DeleteNotification)
	}

	// WebSocket endpoint for realtime dashboards
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/:role", middlewares.RoleCheck(), controllers.LiveHandler)
	}

	return r
}
