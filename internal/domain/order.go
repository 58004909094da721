package domain

import (
	"context"
	"fmt"
	"time"
)

// Order status constants
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusPartial    = "partial"
	OrderStatusRefunded   = "refunded"
)

// Payment status constants shared by orders and payments
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// orderTransitions lists the statuses reachable from each status.
// Statuses absent from the map are terminal.
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusInProgress, OrderStatusCompleted, OrderStatusPartial, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusPartial, OrderStatusCancelled},
	OrderStatusCompleted:  {OrderStatusRefunded},
	OrderStatusPartial:    {OrderStatusRefunded},
}

// OrderStatuses lists every known order status
var OrderStatuses = []string{
	OrderStatusPending, OrderStatusProcessing, OrderStatusInProgress, OrderStatusCompleted,
	OrderStatusCancelled, OrderStatusPartial, OrderStatusRefunded,
}

// IsValidOrderStatus reports whether status is a known order status
func IsValidOrderStatus(status string) bool {
	return contains(OrderStatuses, status)
}

// IsTerminalOrderStatus reports whether no transition leaves status
func IsTerminalOrderStatus(status string) bool {
	_, ok := orderTransitions[status]
	return !ok
}

// CanTransition reports whether an order may move from one status to another.
// Staying in the same non-terminal status is allowed.
func CanTransition(from, to string) bool {
	if from == to {
		return !IsTerminalOrderStatus(from)
	}
	return contains(orderTransitions[from], to)
}

// ServiceSummary is the part of a service copied onto an order
type ServiceSummary struct {
	ID           string `bson:"id" json:"id"`
	Name         string `bson:"name" json:"name"`
	Platform     string `bson:"platform" json:"platform"`
	Category     string `bson:"category" json:"category"`
	DeliveryTime string `bson:"delivery_time" json:"delivery_time"`
	Icon         string `bson:"icon,omitempty" json:"icon,omitempty"`
}

// Order is one purchase of a service by a user
type Order struct {
	ID            string         `bson:"_id,omitempty" json:"id"`
	OrderNumber   string         `bson:"order_number" json:"order_number"`
	UserID        string         `bson:"user_id" json:"user_id"`
	ServiceID     string         `bson:"service_id" json:"service_id"`
	Service       ServiceSummary `bson:"service" json:"service"`
	Quantity      int64          `bson:"quantity" json:"quantity"`
	TotalAmount   Money          `bson:"total_amount" json:"total_amount"`
	Currency      string         `bson:"currency" json:"currency"`
	TargetURL     string         `bson:"target_url" json:"target_url"`
	StartCount    int64          `bson:"start_count" json:"start_count"`
	Remains       int64          `bson:"remains" json:"remains"`
	Delivered     int64          `bson:"delivered" json:"delivered"`
	Status        string         `bson:"status" json:"status"`
	PaymentStatus string         `bson:"payment_status" json:"payment_status"`
	PaymentID     string         `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	Notes         string         `bson:"notes,omitempty" json:"notes,omitempty"`
	RefundAmount  Money          `bson:"refund_amount" json:"refund_amount"`
	CompletedAt   *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

// FormatOrderNumber renders the public order number for a placement time and sequence
func FormatOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("DEV-%d-%04d", at.UnixMilli(), seq%10000)
}

// OrderStatusUpdate is an admin status change with optional progress counters
type OrderStatusUpdate struct {
	Status     string  `json:"status"`
	StartCount *int64  `json:"start_count"`
	Delivered  *int64  `json:"delivered"`
	Remains    *int64  `json:"remains"`
	Notes      *string `json:"notes"`
}

// OrderGuard is the state an order was read in. A status write only lands
// while the stored order still has the same status and refunded amount, so
// two writers working from the same read cannot both refund.
type OrderGuard struct {
	Status       string
	RefundAmount Money
}

// Guard captures the current guard of the order
func (o *Order) Guard() OrderGuard {
	return OrderGuard{Status: o.Status, RefundAmount: o.RefundAmount}
}

// ApplyStatusUpdate moves the order to u.Status and returns the amount to
// refund to the buyer's balance as a consequence. The order is not modified
// when an error is returned.
func (o *Order) ApplyStatusUpdate(u OrderStatusUpdate, now time.Time) (Money, error) {
	if !IsValidOrderStatus(u.Status) {
		return 0, NewValidationError("status", "unknown order status").With("allowed", OrderStatuses)
	}
	if !CanTransition(o.Status, u.Status) {
		return 0, ErrInvalidTransition.
			With("from", o.Status).
			With("to", u.Status).
			With("allowed", orderTransitions[o.Status])
	}
	for field, v := range map[string]*int64{"start_count": u.StartCount, "delivered": u.Delivered, "remains": u.Remains} {
		if v != nil && *v < 0 {
			return 0, NewValidationError(field, field+" must not be negative")
		}
	}

	if u.StartCount != nil {
		o.StartCount = *u.StartCount
	}
	if u.Delivered != nil {
		o.Delivered = *u.Delivered
	}
	if u.Remains != nil {
		o.Remains = *u.Remains
	}
	if u.Notes != nil {
		o.Notes = *u.Notes
	}

	o.Status = u.Status
	o.UpdatedAt = now
	if o.Status == OrderStatusCompleted {
		o.Delivered = o.Quantity
		o.Remains = 0
		if o.CompletedAt == nil {
			completed := now
			o.CompletedAt = &completed
		}
	}

	refund := o.refundDue()
	if refund > 0 {
		o.RefundAmount += refund
		if o.RefundAmount >= o.TotalAmount {
			o.PaymentStatus = PaymentStatusRefunded
		}
	}
	return refund, nil
}

// refundDue is the not-yet-refunded amount owed for the current status.
// Only orders that were actually paid are refunded.
func (o *Order) refundDue() Money {
	if o.PaymentStatus != PaymentStatusPaid {
		return 0
	}
	var owed Money
	switch o.Status {
	case OrderStatusCancelled, OrderStatusRefunded:
		owed = o.TotalAmount
	case OrderStatusPartial:
		remains := o.Remains
		if remains > o.Quantity {
			remains = o.Quantity
		}
		owed = Share(o.TotalAmount, remains, o.Quantity)
	default:
		return 0
	}
	if owed <= o.RefundAmount {
		return 0
	}
	return owed - o.RefundAmount
}

// OrderFilter narrows order listings
type OrderFilter struct {
	UserID string
	Status string
}

// StatusBreakdown is a count and amount for one order status
type StatusBreakdown struct {
	Status string `bson:"_id" json:"status"`
	Count  int64  `bson:"count" json:"count"`
	Amount Money  `bson:"amount" json:"amount"`
}

// OrderStats summarises a user's orders
type OrderStats struct {
	ByStatus     []StatusBreakdown `json:"by_status"`
	TotalOrders  int64             `json:"total_orders"`
	TotalAmount  Money             `json:"total_amount"`
	RecentOrders []*Order          `json:"recent_orders"`
	MonthOrders  int64             `json:"month_orders"`
	MonthAmount  Money             `json:"month_amount"`
}

// OrderRepository defines operations for managing orders
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, filter OrderFilter, page Page) ([]*Order, int64, error)
	// UpdateStatus persists the status fields of order, only if the stored
	// order still matches the guard it was read with.
	UpdateStatus(ctx context.Context, order *Order, guard OrderGuard) error
	// SetPaymentOutcome records a gateway outcome on an order that is not already paid.
	SetPaymentOutcome(ctx context.Context, orderID, paymentStatus, status string) error
	NextSequence(ctx context.Context) (int64, error)
	StatusBreakdown(ctx context.Context, userID string, since *time.Time) ([]StatusBreakdown, error)
}
