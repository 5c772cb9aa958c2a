package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/utils"
)

// ReceiptLoggerMiddleware traces receipt generation by payment id.
func ReceiptLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		paymentID := c.Param("payment_id")

		utils.InfoLogger.Printf("[RECEIPT] request for payment %s from %s", paymentID, c.ClientIP())

		c.Next()

		utils.InfoLogger.Printf("[RECEIPT] payment %s | %d | %s",
			paymentID, c.Writer.Status(), time.Since(start))
	}
}
