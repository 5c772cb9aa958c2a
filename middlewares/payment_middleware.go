package middlewares

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/onpointkonceptz/goldbond/models"
	"github.com/onpointkonceptz/goldbond/utils"
	"golang.org/x/time/rate"
)

// PaymentSecurityHeaders hardens payment endpoints: responses carry
// payment data and must never be cached.
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		c.Writer.Header().Set("Pragma", "no-cache")
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Next()
	}
}

// PaymentRateLimiter caps checkout traffic with a shared token bucket.
func PaymentRateLimiter() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Second/10), 20)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			utils.RespondError(c, http.StatusTooManyRequests, errors.New("too many payment requests"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ValidatePaymentRequest rejects malformed checkout bodies before they
// reach the controller. ShouldBindBodyWith buffers the body so the
// controller can bind it again.
func ValidatePaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			BookingID     uint    `json:"booking_id" binding:"required"`
			Amount        float64 `json:"amount"`
			PaymentMethod string  `json:"payment_method"`
			Currency      string  `json:"currency"`
		}

		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			utils.RespondError(c, http.StatusBadRequest, errors.New("invalid payment request: "+err.Error()))
			c.Abort()
			return
		}

		if req.Amount < 0 {
			utils.RespondError(c, http.StatusBadRequest, errors.New("amount cannot be negative"))
			c.Abort()
			return
		}

		if req.PaymentMethod != "" {
			switch req.PaymentMethod {
			case models.PaymentMethodCard, models.PaymentMethodBankTransfer, models.PaymentMethodUSSD,
				models.PaymentMethodQR, models.PaymentMethodMobileMoney, models.PaymentMethodCash:
			default:
				utils.RespondError(c, http.StatusBadRequest, errors.New("unsupported payment method: "+req.PaymentMethod))
				c.Abort()
				return
			}
		}

		if req.Currency != "" {
			if _, ok := models.SupportedCurrencies[req.Currency]; !ok {
				utils.RespondError(c, http.StatusBadRequest, errors.New("unsupported currency: "+req.Currency))
				c.Abort()
				return
			}
		}

		c.Next()
	}
}

// LogPaymentRequest records every payment call for the audit trail.
func LogPaymentRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		utils.InfoLogger.Printf("[PAYMENT] %s %s | %d | %s | ip=%s",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
			c.ClientIP(),
		)
	}
}
