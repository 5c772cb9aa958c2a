package live

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/onpointkonceptz/goldbond/models"
)

// Event types
const (
	EventBookingUpdate    = "booking_update"
	EventBookingConfirmed = "booking_confirmed"
	EventStationUpdate    = "station_update"
	EventStaffNotif       = "staff_notification"
	EventPaymentUpdate    = "payment_update"
	EventPaymentPending   = "payment_pending"
	EventPaymentCompleted = "payment_completed"
	EventPaymentFailed    = "payment_failed"
	EventReceiptUpdate    = "receipt_generated"
	EventResultReady      = "result_ready"
	EventDashboardUpdate  = "dashboard_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub holds every connected dashboard client (patient, staff, admin)
// keyed by connection, with the role it authenticated as.
type Hub struct {
	clients map[*websocket.Conn]string // conn -> role
	mutex   sync.Mutex
}

var liveHub = Hub{
	clients: make(map[*websocket.Conn]string),
}

// RegisterClient adds a connection with its role.
func RegisterClient(conn *websocket.Conn, role string) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()
	liveHub.clients[conn] = role
}

// UnregisterClient drops a connection and closes it.
func UnregisterClient(conn *websocket.Conn) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()
	delete(liveHub.clients, conn)
	conn.Close()
}

// BroadcastBookingUpdate pushes a booking change to every client.
func BroadcastBookingUpdate(booking models.Booking) {
	broadcast(Message{
		Event: EventBookingUpdate,
		Data:  booking,
	})
}

// BroadcastBookingConfirmed announces a booking whose payment settled.
func BroadcastBookingConfirmed(booking models.Booking) {
	broadcast(Message{
		Event: EventBookingConfirmed,
		Data:  booking,
	})
}

// BroadcastStationUpdate pushes a collection-station status change.
func BroadcastStationUpdate(station models.CollectionStation) {
	broadcast(Message{
		Event: EventStationUpdate,
		Data:  station,
	})
}

// BroadcastStaffNotification sends a plain text notice to staff dashboards.
func BroadcastStaffNotification(message string) {
	broadcast(Message{
		Event: EventStaffNotif,
		Data:  message,
	})
}

// BroadcastPaymentUpdate pushes a payment change together with its booking.
func BroadcastPaymentUpdate(payment models.Payment, booking models.Booking) {
	broadcast(Message{
		Event: EventPaymentUpdate,
		Data: map[string]interface{}{
			"payment": payment,
			"booking": booking,
		},
	})
}

// BroadcastPaymentPending announces a freshly initialized payment.
func BroadcastPaymentPending(payment models.Payment) {
	broadcast(Message{
		Event: EventPaymentPending,
		Data:  payment,
	})
}

// BroadcastPaymentCompleted announces a payment confirmed by the gateway.
func BroadcastPaymentCompleted(payment models.Payment) {
	broadcast(Message{
		Event: EventPaymentCompleted,
		Data:  payment,
	})
}

// BroadcastPaymentFailed announces a payment the gateway declined.
func BroadcastPaymentFailed(payment models.Payment) {
	broadcast(Message{
		Event: EventPaymentFailed,
		Data:  payment,
	})
}

// BroadcastReceiptGenerated announces a new receipt.
func BroadcastReceiptGenerated(receipt models.Receipt) {
	broadcast(Message{
		Event: EventReceiptUpdate,
		Data:  receipt,
	})
}

// BroadcastResultReady announces a released test result.
func BroadcastResultReady(result models.TestResult) {
	broadcast(Message{
		Event: EventResultReady,
		Data:  result,
	})
}

// BroadcastDashboardUpdate pushes aggregate dashboard figures.
func BroadcastDashboardUpdate(data interface{}) {
	broadcast(Message{
		Event: EventDashboardUpdate,
		Data:  data,
	})
}

// BroadcastMessage broadcasts an arbitrary message.
func BroadcastMessage(msg Message) {
	broadcast(msg)
}

func broadcast(msg Message) {
	liveHub.mutex.Lock()
	defer liveHub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	for conn := range liveHub.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Error sending message to client: %v", err)
			continue
		}
	}
}
