package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/onpointkonceptz/goldbond/config"
	"github.com/onpointkonceptz/goldbond/models"
)

// Webhook event types Paystack delivers for card and transfer charges.
const (
	WebhookChargeSuccess = "charge.success"
	WebhookChargeFailed  = "charge.failed"
)

// PaystackService handles Paystack API interactions
type PaystackService struct {
	config     *config.PaystackConfig
	httpClient *http.Client
}

var (
	paystackService *PaystackService
	paystackOnce    sync.Once
)

// GetPaystackService returns singleton instance of PaystackService
func GetPaystackService() *PaystackService {
	paystackOnce.Do(func() {
		cfg, err := config.LoadPaystackConfig()
		if err != nil {
			log.Printf("WARNING: %v, Paystack calls will fail until configured", err)
			cfg = &config.PaystackConfig{}
		}
		paystackService = NewPaystackService(cfg)
	})
	return paystackService
}

// NewPaystackService creates a new instance of PaystackService
func NewPaystackService(cfg *config.PaystackConfig) *PaystackService {
	return &PaystackService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PublicKey exposes the key the frontend embeds in its checkout widget.
func (ps *PaystackService) PublicKey() string {
	return ps.config.PublicKey
}

// PaystackResponse is the envelope every Paystack endpoint returns.
type PaystackResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// PaystackTransaction covers the data object of both the initialize
// and the verify endpoints; unused fields stay zero.
type PaystackTransaction struct {
	ID               int64  `json:"id"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
	Status           string `json:"status"`
	Amount           int64  `json:"amount"` // subunits (kobo for NGN)
	Currency         string `json:"currency"`
	GatewayResponse  string `json:"gateway_response"`
	Channel          string `json:"channel"`
	PaidAt           string `json:"paid_at"`

	Raw []byte `json:"-"` // unparsed data payload, kept for audit
}

// PaidAtTime parses the paid_at timestamp, nil when absent or malformed.
func (t *PaystackTransaction) PaidAtTime() *time.Time {
	if t.PaidAt == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, t.PaidAt)
	if err != nil {
		return nil
	}
	return &parsed
}

// PaystackWebhookEvent is the body Paystack posts to the webhook URL.
type PaystackWebhookEvent struct {
	Event string              `json:"event"`
	Data  PaystackTransaction `json:"data"`
}

// InitializeRequest carries the fields sent to POST /transaction/initialize.
type InitializeRequest struct {
	Reference   string
	Email       string
	Amount      float64 // major units
	Currency    string
	Channels    []string
	Metadata    map[string]interface{}
	CallbackURL string
}

// InitializeTransaction creates a checkout session on Paystack and
// returns the authorization URL the patient is redirected to.
func (ps *PaystackService) InitializeTransaction(initReq InitializeRequest) (*PaystackTransaction, error) {
	if ps.config.SecretKey == "" {
		return nil, fmt.Errorf("paystack secret key is not configured")
	}

	payload := map[string]interface{}{
		"email":     initReq.Email,
		"amount":    ToSubunits(initReq.Amount),
		"reference": initReq.Reference,
		"currency":  initReq.Currency,
	}
	callbackURL := initReq.CallbackURL
	if callbackURL == "" {
		callbackURL = ps.config.CallbackURL
	}
	if callbackURL != "" {
		payload["callback_url"] = callbackURL
	}
	if len(initReq.Channels) > 0 {
		payload["channels"] = initReq.Channels
	}
	if initReq.Metadata != nil {
		payload["metadata"] = initReq.Metadata
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}

	url := fmt.Sprintf("%s/transaction/initialize", ps.getBaseURL())
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ps.config.SecretKey)

	log.Printf("Initializing Paystack transaction %s for %s %s",
		initReq.Reference, initReq.Currency, fmt.Sprintf("%.2f", initReq.Amount))

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %v", err)
	}

	return parseTransactionResponse(resp.StatusCode, body)
}

// VerifyTransaction asks Paystack for the current state of a
// transaction by reference.
func (ps *PaystackService) VerifyTransaction(reference string) (*PaystackTransaction, error) {
	if ps.config.SecretKey == "" {
		return nil, fmt.Errorf("paystack secret key is not configured")
	}

	url := fmt.Sprintf("%s/transaction/verify/%s", ps.getBaseURL(), reference)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+ps.config.SecretKey)

	log.Printf("Verifying Paystack transaction %s", reference)

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %v", err)
	}

	return parseTransactionResponse(resp.StatusCode, body)
}

func parseTransactionResponse(statusCode int, body []byte) (*PaystackTransaction, error) {
	if statusCode != http.StatusOK {
		return nil, fmt.Errorf("Paystack API error: %s", string(body))
	}

	var envelope PaystackResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}
	if !envelope.Status {
		return nil, fmt.Errorf("Paystack API error: %s", envelope.Message)
	}

	var tx PaystackTransaction
	if err := json.Unmarshal(envelope.Data, &tx); err != nil {
		return nil, fmt.Errorf("error unmarshaling transaction data: %v", err)
	}
	tx.Raw = envelope.Data
	return &tx, nil
}

// ValidateWebhookSignature checks the x-paystack-signature header, a
// hex HMAC-SHA512 of the raw body keyed with the secret key. A missing
// secret rejects every delivery instead of accepting every delivery.
func (ps *PaystackService) ValidateWebhookSignature(body []byte, signature string) bool {
	if ps.config.SecretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(ps.config.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseWebhookEvent decodes a webhook body after its signature passed.
func ParseWebhookEvent(body []byte) (*PaystackWebhookEvent, error) {
	var event PaystackWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("error unmarshaling webhook payload: %v", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("webhook payload missing event type")
	}
	return &event, nil
}

// MapTransactionStatus maps a Paystack transaction status to the
// internal payment status. Anything that is not clearly terminal maps
// to processing so the reconciler leaves the payment open.
func MapTransactionStatus(status string) string {
	switch status {
	case "success":
		return models.PaymentStatusCompleted
	case "failed", "abandoned", "reversed":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusProcessing
	}
}

// ChannelsForMethod maps a payment method to the channels parameter of
// the initialize call. cash has no channel: it never reaches Paystack.
func ChannelsForMethod(method string) []string {
	switch method {
	case models.PaymentMethodCard:
		return []string{"card"}
	case models.PaymentMethodBankTransfer:
		return []string{"bank_transfer"}
	case models.PaymentMethodUSSD:
		return []string{"ussd"}
	case models.PaymentMethodQR:
		return []string{"qr"}
	case models.PaymentMethodMobileMoney:
		return []string{"mobile_money"}
	default:
		return nil
	}
}

// ToSubunits converts a major-unit amount to the integer subunits
// Paystack expects (kobo for NGN).
func ToSubunits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromSubunits converts Paystack subunits back to major units.
func FromSubunits(subunits int64) float64 {
	return float64(subunits) / 100
}

func (ps *PaystackService) getBaseURL() string {
	if ps.config.BaseURL != "" {
		return ps.config.BaseURL
	}
	return "https://api.paystack.co"
}
