package services

import (
	"log"
	"sync"
	"time"

	"github.com/onpointkonceptz/goldbond/models"
	"gorm.io/gorm"
)

// PaymentMetrics counts what the monitor has observed since startup.
type PaymentMetrics struct {
	SweepsRun             int64
	PaymentsChecked       int64
	CompletedOnRecheck    int64
	FailedOnRecheck       int64
	StalePendingCancelled int64
}

// PaymentMonitor periodically re-verifies payments stuck in processing
// against Paystack, covering webhooks that never arrived, and cancels
// stale pending records whose checkout was never opened. Cash payments
// are left alone: the front desk settles those.
type PaymentMonitor struct {
	db       *gorm.DB
	payments *PaymentService

	Interval   time.Duration
	StuckAfter time.Duration
	MaxRetries int

	metrics PaymentMetrics
	mutex   sync.Mutex
	stop    chan struct{}
}

// NewPaymentMonitor creates a monitor on the shared Paystack client.
func NewPaymentMonitor(db *gorm.DB) *PaymentMonitor {
	return NewPaymentMonitorWithService(db, NewPaymentService(db))
}

// NewPaymentMonitorWithService wires an explicit payment service, used
// by tests to point the recheck at a local Paystack stand-in.
func NewPaymentMonitorWithService(db *gorm.DB, payments *PaymentService) *PaymentMonitor {
	return &PaymentMonitor{
		db:         db,
		payments:   payments,
		Interval:   5 * time.Minute,
		StuckAfter: 30 * time.Minute,
		MaxRetries: 5,
		stop:       make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (pm *PaymentMonitor) Start() {
	go pm.run()
	log.Println("Payment monitor started")
}

// Stop ends the sweep loop.
func (pm *PaymentMonitor) Stop() {
	close(pm.stop)
}

func (pm *PaymentMonitor) run() {
	ticker := time.NewTicker(pm.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pm.Sweep()
		case <-pm.stop:
			return
		}
	}
}

// Sweep runs one reconciliation pass. Exported so tests and admin
// tooling can trigger a pass without waiting for the ticker.
func (pm *PaymentMonitor) Sweep() {
	cutoff := time.Now().Add(-pm.StuckAfter)

	// online payments that never reached checkout hold no gateway
	// handle; cancel them so their bookings are payable again
	res := pm.db.Model(&models.Payment{}).
		Where("status = ? AND payment_method <> ? AND authorization_url = ? AND created_at < ?",
			models.PaymentStatusPending, models.PaymentMethodCash, "", cutoff).
		Update("status", models.PaymentStatusCancelled)
	if res.Error != nil {
		log.Printf("Error cancelling stale pending payments: %v", res.Error)
	} else if res.RowsAffected > 0 {
		log.Printf("Cancelled %d stale pending payments", res.RowsAffected)
		pm.addStaleCancelled(res.RowsAffected)
	}

	var stuck []models.Payment
	if err := pm.db.Where("status = ? AND updated_at < ? AND retry_count < ?",
		models.PaymentStatusProcessing, cutoff, pm.MaxRetries).
		Find(&stuck).Error; err != nil {
		log.Printf("Error loading stuck payments: %v", err)
		return
	}

	for _, payment := range stuck {
		pm.recheck(payment)
	}

	pm.mutex.Lock()
	pm.metrics.SweepsRun++
	pm.metrics.PaymentsChecked += int64(len(stuck))
	pm.mutex.Unlock()
}

// recheck asks Paystack for the current state of one stuck payment.
// Unlike a client-driven verify, an inconclusive provider status here
// leaves the payment open for the next sweep.
func (pm *PaymentMonitor) recheck(payment models.Payment) {
	tx, err := pm.payments.gateway.VerifyTransaction(payment.Reference)
	if err != nil {
		log.Printf("Error rechecking payment %s: %v", payment.Reference, err)
		return
	}

	switch MapTransactionStatus(tx.Status) {
	case models.PaymentStatusCompleted:
		if _, transitioned, err := pm.payments.MarkPaymentCompleted(payment.Reference, tx); err != nil {
			log.Printf("Error completing rechecked payment %s: %v", payment.Reference, err)
		} else if transitioned {
			log.Printf("Payment %s completed on recheck, webhook never arrived", payment.Reference)
			pm.mutex.Lock()
			pm.metrics.CompletedOnRecheck++
			pm.mutex.Unlock()
		}
	case models.PaymentStatusFailed:
		reason := tx.GatewayResponse
		if reason == "" {
			reason = "provider reported status " + tx.Status
		}
		if _, transitioned, err := pm.payments.MarkPaymentFailed(payment.Reference, reason, tx); err != nil {
			log.Printf("Error failing rechecked payment %s: %v", payment.Reference, err)
		} else if transitioned {
			pm.mutex.Lock()
			pm.metrics.FailedOnRecheck++
			pm.mutex.Unlock()
		}
	default:
		// still in flight; push the next recheck out one window
		if err := pm.db.Model(&models.Payment{}).
			Where("reference = ?", payment.Reference).
			UpdateColumn("updated_at", time.Now()).Error; err != nil {
			log.Printf("Error touching payment %s: %v", payment.Reference, err)
		}
	}
}

func (pm *PaymentMonitor) addStaleCancelled(n int64) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	pm.metrics.StalePendingCancelled += n
}

// GetMetrics returns a snapshot of the monitor counters.
func (pm *PaymentMonitor) GetMetrics() PaymentMetrics {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	return pm.metrics
}

var (
	registeredMonitor   *PaymentMonitor
	registeredMonitorMu sync.RWMutex
)

// RegisterPaymentMonitor exposes the running monitor to HTTP handlers.
func RegisterPaymentMonitor(pm *PaymentMonitor) {
	registeredMonitorMu.Lock()
	defer registeredMonitorMu.Unlock()
	registeredMonitor = pm
}

// RegisteredPaymentMonitor returns the running monitor, or nil before startup.
func RegisteredPaymentMonitor() *PaymentMonitor {
	registeredMonitorMu.RLock()
	defer registeredMonitorMu.RUnlock()
	return registeredMonitor
}
