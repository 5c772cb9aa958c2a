package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/onpointkonceptz/goldbond/config"
	"github.com/onpointkonceptz/goldbond/middlewares"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/router"
	"github.com/onpointkonceptz/goldbond/services"
	"github.com/onpointkonceptz/goldbond/utils"
	"gorm.io/gorm"
)

func init() {
	// Load .env before anything reads the environment
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	// Warn early about missing Paystack configuration; the server still
	// boots so cash-only operation keeps working
	requiredEnvVars := []string{
		"PAYSTACK_SECRET_KEY",
		"PAYSTACK_PUBLIC_KEY",
		"PAYSTACK_CALLBACK_URL",
	}
	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" {
			log.Printf("Warning: environment variable %s is not set", envVar)
		}
	}

	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}

	// Share the connection with package-level handlers
	utils.InitDB(db)

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	// Rate limiter (50 requests per second per IP)
	rateLimiter := middlewares.NewRateLimiter(50, time.Second)

	// Background reconciliation of stuck payments
	paymentMonitor := services.NewPaymentMonitor(db)
	paymentMonitor.Start()
	defer paymentMonitor.Stop()
	services.RegisterPaymentMonitor(paymentMonitor)

	// Prune expired tokens from the logout blacklist
	utils.StartBlacklistCleanup()

	r := router.SetupRouter(db,
		rateLimiter.RateLimit(),
		func(c *gin.Context) {
			c.Header("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; connect-src 'self' https://api.paystack.co; frame-ancestors 'self'")
			c.Next()
		},
	)

	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.TestCategory{},
		&models.LabTest{},
		&models.CollectionStation{},
		&models.CleaningLog{},
		&models.Booking{},
		&models.BookingItem{},
		&models.Payment{},
		&models.WebhookEvent{},
		&models.TestResult{},
		&models.Notification{},
		&models.Receipt{},
		&models.ReceiptItem{},
		&models.ContactMessage{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")
}
