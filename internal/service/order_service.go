package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/telemetry"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	defaultOrderPageSize      = 10
	defaultAdminOrderPageSize = 20
	recentOrdersLimit         = 5
)

// OrderService places orders against the balance and drives their lifecycle
type OrderService struct {
	tx       domain.TxManager
	orders   domain.OrderRepository
	payments domain.PaymentRepository
	ledger   *LedgerService
	catalog  *CatalogService
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(
	tx domain.TxManager,
	orders domain.OrderRepository,
	payments domain.PaymentRepository,
	ledger *LedgerService,
	catalog *CatalogService,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		tx:       tx,
		orders:   orders,
		payments: payments,
		ledger:   ledger,
		catalog:  catalog,
		metrics:  metrics,
		logger:   logger.Named("orders"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrderRequest is a buyer's order for quantity units of a service
type PlaceOrderRequest struct {
	ServiceID string `json:"service_id"`
	Quantity  int64  `json:"quantity"`
	TargetURL string `json:"target_url"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// PlaceOrder debits the order total from the buyer's balance and stores the
// order as paid and processing. Debit and order creation commit together or
// not at all.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (*domain.Order, error) {
	if req.ServiceID == "" {
		return nil, domain.NewValidationError("service_id", "service is required")
	}
	target, err := validateTargetURL(req.TargetURL)
	if err != nil {
		return nil, err
	}

	service, err := s.catalog.LookupActive(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrServiceUnavailable.With("service_id", req.ServiceID)
		}
		return nil, err
	}
	if !service.AcceptsQuantity(req.Quantity) {
		return nil, domain.NewQuantityOutOfRangeError(service.MinQuantity, service.MaxQuantity)
	}

	total := domain.OrderTotal(service.Price, req.Quantity)
	if total <= 0 {
		return nil, domain.NewValidationError("quantity", "order total must be positive")
	}

	// Allocated outside the transaction so retries don't contend on the counter
	seq, err := s.orders.NextSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate order number: %w", err)
	}

	now := s.now()
	var order *domain.Order

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if _, err := s.ledger.Debit(txCtx, userID, total); err != nil {
			return err
		}

		order = &domain.Order{
			ID:            primitive.NewObjectID().Hex(),
			OrderNumber:   domain.FormatOrderNumber(now, seq),
			UserID:        userID,
			ServiceID:     service.ID,
			Service:       service.Summary(),
			Quantity:      req.Quantity,
			TotalAmount:   total,
			Currency:      domain.DefaultCurrency,
			TargetURL:     target,
			Remains:       req.Quantity,
			Status:        domain.OrderStatusProcessing,
			PaymentStatus: domain.PaymentStatusPaid,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		payment := &domain.Payment{
			PaymentID: newPaymentID(),
			UserID:    userID,
			OrderID:   order.ID,
			Amount:    total,
			Currency:  domain.DefaultCurrency,
			Method:    domain.PaymentMethodBalance,
			Status:    domain.PaymentStatusPaid,
			Metadata: domain.PaymentMetadata{
				Description: fmt.Sprintf("Commande %s", order.OrderNumber),
				UserAgent:   req.UserAgent,
				IPAddress:   req.IPAddress,
			},
			PaidAt:    &now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.payments.Create(txCtx, payment); err != nil {
			return fmt.Errorf("failed to record balance payment: %w", err)
		}
		order.PaymentID = payment.PaymentID

		if err := s.orders.Create(txCtx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderPlaced(ctx, service.Platform, total.Minor())
	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.String("service_id", service.ID),
		zap.Int64("quantity", order.Quantity),
		zap.Stringer("total", total),
	)
	return order, nil
}

// ListOrders returns the user's own orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID, status string, page, limit int64) (*domain.PagedResult[*domain.Order], error) {
	if status != "" && !domain.IsValidOrderStatus(status) {
		return nil, domain.NewValidationError("status", "unknown order status")
	}
	p := domain.NewPage(page, limit, defaultOrderPageSize)
	orders, total, err := s.orders.List(ctx, domain.OrderFilter{UserID: userID, Status: status}, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPagedResult(orders, p, total), nil
}

// ListAll returns every user's orders for admins
func (s *OrderService) ListAll(ctx context.Context, status string, page, limit int64) (*domain.PagedResult[*domain.Order], error) {
	if status != "" && !domain.IsValidOrderStatus(status) {
		return nil, domain.NewValidationError("status", "unknown order status")
	}
	p := domain.NewPage(page, limit, defaultAdminOrderPageSize)
	orders, total, err := s.orders.List(ctx, domain.OrderFilter{Status: status}, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPagedResult(orders, p, total), nil
}

// GetOrder returns one of the user's own orders. Someone else's order is
// reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "order not found")
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.NewError(domain.KindNotFound, "order not found")
	}
	return order, nil
}

// UserStats summarises a user's orders
func (s *OrderService) UserStats(ctx context.Context, userID string) (*domain.OrderStats, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	byStatus, err := s.orders.StatusBreakdown(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	month, err := s.orders.StatusBreakdown(ctx, userID, &monthStart)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.orders.List(ctx, domain.OrderFilter{UserID: userID}, domain.Page{Page: 1, Limit: recentOrdersLimit})
	if err != nil {
		return nil, err
	}
	if recent == nil {
		recent = []*domain.Order{}
	}
	if byStatus == nil {
		byStatus = []domain.StatusBreakdown{}
	}

	stats := &domain.OrderStats{ByStatus: byStatus, RecentOrders: recent}
	for _, b := range byStatus {
		stats.TotalOrders += b.Count
		stats.TotalAmount += b.Amount
	}
	for _, b := range month {
		stats.MonthOrders += b.Count
		stats.MonthAmount += b.Amount
	}
	return stats, nil
}

// UpdateOrderStatus applies an admin status change. Any refund it implies is
// credited back to the buyer in the same transaction as the status write.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, update domain.OrderStatusUpdate) (*domain.Order, error) {
	update.Status = strings.TrimSpace(update.Status)
	if update.Status == "" {
		return nil, domain.NewValidationError("status", "status is required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "order not found")
		}
		return nil, err
	}

	guard := order.Guard()
	previous := order.Status
	refund, err := order.ApplyStatusUpdate(update, s.now())
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.UpdateStatus(txCtx, order, guard); err != nil {
			return err
		}
		if refund > 0 {
			if _, err := s.ledger.Refund(txCtx, order.UserID, refund); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if refund > 0 {
		s.metrics.Refunded(ctx, refund.Minor())
	}
	s.logger.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", previous),
		zap.String("to", order.Status),
		zap.Stringer("refund", refund),
	)
	return order, nil
}

func validateTargetURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.NewValidationError("target_url", "target URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", domain.NewValidationError("target_url", "target URL must be an http(s) link")
	}
	return raw, nil
}
