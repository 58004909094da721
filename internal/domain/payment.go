package domain

import (
	"context"
	"time"
)

// Payment methods
const (
	PaymentMethodCIB      = "chargily_cib"
	PaymentMethodEdahabia = "chargily_edahabia"
	PaymentMethodBalance  = "balance"
)

// MinimumTopUp is the smallest amount the gateway accepts for a checkout
var MinimumTopUp = MoneyFromMajor(75)

// IsGatewayMethod reports whether method is settled through the gateway
func IsGatewayMethod(method string) bool {
	return method == PaymentMethodCIB || method == PaymentMethodEdahabia
}

// PaymentMetadata is request context captured when a payment is created
type PaymentMetadata struct {
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	UserAgent   string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	IPAddress   string `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
}

// Payment is either a gateway checkout or a synchronous balance payment.
// A payment leaves pending at most once.
type Payment struct {
	ID              string          `bson:"_id,omitempty" json:"id"`
	PaymentID       string          `bson:"payment_id" json:"payment_id"`
	UserID          string          `bson:"user_id" json:"user_id"`
	OrderID         string          `bson:"order_id,omitempty" json:"order_id,omitempty"`
	Amount          Money           `bson:"amount" json:"amount"`
	Currency        string          `bson:"currency" json:"currency"`
	Method          string          `bson:"method" json:"method"`
	Status          string          `bson:"status" json:"status"`
	CheckoutID      string          `bson:"checkout_id,omitempty" json:"checkout_id,omitempty"`
	CheckoutURL     string          `bson:"checkout_url,omitempty" json:"checkout_url,omitempty"`
	GatewayResponse map[string]any  `bson:"gateway_response,omitempty" json:"-"`
	WebhookData     map[string]any  `bson:"webhook_data,omitempty" json:"-"`
	FailureReason   string          `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	Metadata        PaymentMetadata `bson:"metadata" json:"metadata"`
	PaidAt          *time.Time      `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updated_at"`
}

// PaymentTransition is a terminal outcome applied to a pending payment
type PaymentTransition struct {
	Status        string
	FailureReason string
	WebhookData   map[string]any
	At            time.Time
}

// PaymentRepository defines operations for managing payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]*Payment, int64, error)
	// AttachCheckout stores the gateway checkout on a payment, whatever its status
	AttachCheckout(ctx context.Context, paymentID, checkoutID, checkoutURL string, response map[string]any) error
	// Transition moves a pending payment to a terminal status. It returns the
	// updated payment and false without error when the payment is no longer pending.
	Transition(ctx context.Context, paymentID string, t PaymentTransition) (*Payment, bool, error)
	// ListStalePending returns gateway payments still pending since before cutoff
	ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]*Payment, error)
}

// Webhook event types handled by settlement
const (
	WebhookCheckoutPaid   = "checkout.paid"
	WebhookCheckoutFailed = "checkout.failed"
)

// WebhookEvent marks a gateway event as processed
type WebhookEvent struct {
	ID         string    `bson:"_id" json:"id"`
	Type       string    `bson:"type" json:"type"`
	PaymentID  string    `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	ReceivedAt time.Time `bson:"received_at" json:"received_at"`
}

// WebhookEventRepository records processed gateway events
type WebhookEventRepository interface {
	// Record inserts the marker and returns ErrDuplicateEvent when the id is known
	Record(ctx context.Context, event *WebhookEvent) error
}

// PayloadArchive stores raw gateway payloads for later inspection
type PayloadArchive interface {
	Store(ctx context.Context, key string, payload []byte) error
}
