package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/telemetry"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const (
	defaultPaymentPageSize = 10
	archiveTimeout         = 30 * time.Second
	defaultFailureReason   = "Paiement échoué"
)

// Webhook processing outcomes, reported in logs and metrics
const (
	WebhookOutcomeSettled         = "settled"
	WebhookOutcomeDuplicate       = "duplicate"
	WebhookOutcomeAlreadySettled  = "already_settled"
	WebhookOutcomePaymentNotFound = "payment_not_found"
	WebhookOutcomeIgnored         = "ignored"
	WebhookOutcomeMalformed       = "malformed"
	WebhookOutcomeError           = "error"
)

// PaymentURLs are the public addresses handed to the gateway
type PaymentURLs struct {
	FrontendURL string
	BackendURL  string
}

// PaymentService opens gateway checkouts and settles them
type PaymentService struct {
	tx       domain.TxManager
	payments domain.PaymentRepository
	orders   domain.OrderRepository
	users    domain.UserRepository
	events   domain.WebhookEventRepository
	ledger   *LedgerService
	gateway  PaymentGateway
	archive  domain.PayloadArchive
	metrics  *telemetry.Metrics
	urls     PaymentURLs
	logger   *zap.Logger
	now      func() time.Time

	archiving sync.WaitGroup
}

func NewPaymentService(
	tx domain.TxManager,
	payments domain.PaymentRepository,
	orders domain.OrderRepository,
	users domain.UserRepository,
	events domain.WebhookEventRepository,
	ledger *LedgerService,
	gateway PaymentGateway,
	urls PaymentURLs,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		tx:       tx,
		payments: payments,
		orders:   orders,
		users:    users,
		events:   events,
		ledger:   ledger,
		gateway:  gateway,
		metrics:  metrics,
		urls: PaymentURLs{
			FrontendURL: strings.TrimRight(urls.FrontendURL, "/"),
			BackendURL:  strings.TrimRight(urls.BackendURL, "/"),
		},
		logger: logger.Named("payments"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithArchive enables background archiving of raw webhook payloads
func (s *PaymentService) WithArchive(archive domain.PayloadArchive) *PaymentService {
	s.archive = archive
	return s
}

// Close waits for in-flight payload archiving to finish
func (s *PaymentService) Close() {
	s.archiving.Wait()
}

// CreateCheckoutRequest is a buyer's request to pay through the gateway
type CreateCheckoutRequest struct {
	Amount      domain.Money `json:"amount"`
	Description string       `json:"description"`
	Method      string       `json:"method"`
	OrderID     string       `json:"order_id,omitempty"`
	UserAgent   string       `json:"-"`
	IPAddress   string       `json:"-"`
}

// AddFundsRequest tops up the balance without an order
type AddFundsRequest struct {
	Amount    domain.Money `json:"amount"`
	Method    string       `json:"method"`
	UserAgent string       `json:"-"`
	IPAddress string       `json:"-"`
}

// CheckoutResult is what the buyer needs to complete a payment
type CheckoutResult struct {
	PaymentID   string       `json:"payment_id"`
	Amount      domain.Money `json:"amount"`
	Currency    string       `json:"currency"`
	Status      string       `json:"status"`
	CheckoutURL string       `json:"checkout_url"`
}

// CreateCheckout records a pending payment and opens a gateway checkout for
// it. Nothing is credited until the gateway confirms the payment.
func (s *PaymentService) CreateCheckout(ctx context.Context, userID string, req CreateCheckoutRequest) (*CheckoutResult, error) {
	if req.Amount < domain.MinimumTopUp {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("amount must be at least %s %s", domain.MinimumTopUp, domain.DefaultCurrency))
	}
	if !domain.IsGatewayMethod(req.Method) {
		return nil, domain.NewValidationError("method", "unsupported payment method").
			With("allowed", []string{domain.PaymentMethodCIB, domain.PaymentMethodEdahabia})
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, domain.NewValidationError("description", "description is required")
	}

	if req.OrderID != "" {
		order, err := s.orders.GetByID(ctx, req.OrderID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if order == nil || order.UserID != userID {
			return nil, domain.NewError(domain.KindNotFound, "order not found")
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			return nil, domain.ErrAlreadyPaid.With("order_id", order.ID)
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payment := &domain.Payment{
		PaymentID: newPaymentID(),
		UserID:    userID,
		OrderID:   req.OrderID,
		Amount:    req.Amount,
		Currency:  domain.DefaultCurrency,
		Method:    req.Method,
		Status:    domain.PaymentStatusPending,
		Metadata: domain.PaymentMetadata{
			Description: req.Description,
			UserAgent:   req.UserAgent,
			IPAddress:   req.IPAddress,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	session, err := s.openCheckout(ctx, user, payment)
	if err != nil {
		s.logger.Error("gateway checkout failed",
			zap.String("payment_id", payment.PaymentID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		_, _, markErr := s.payments.Transition(ctx, payment.PaymentID, domain.PaymentTransition{
			Status:        domain.PaymentStatusFailed,
			FailureReason: err.Error(),
			At:            s.now(),
		})
		if markErr != nil {
			s.logger.Error("failed to mark payment failed", zap.String("payment_id", payment.PaymentID), zap.Error(markErr))
		}
		return nil, domain.WrapError(domain.KindGateway, "failed to create payment link", err).
			With("payment_id", payment.PaymentID)
	}

	if err := s.payments.AttachCheckout(ctx, payment.PaymentID, session.ID, session.URL, session.Raw); err != nil {
		return nil, err
	}

	s.metrics.PaymentCreated(ctx, payment.Method)
	s.logger.Info("checkout created",
		zap.String("payment_id", payment.PaymentID),
		zap.String("checkout_id", session.ID),
		zap.String("user_id", userID),
		zap.Stringer("amount", payment.Amount),
	)

	return &CheckoutResult{
		PaymentID:   payment.PaymentID,
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Status:      payment.Status,
		CheckoutURL: session.URL,
	}, nil
}

// AddFunds opens a checkout that credits the balance once paid
func (s *PaymentService) AddFunds(ctx context.Context, userID string, req AddFundsRequest) (*CheckoutResult, error) {
	return s.CreateCheckout(ctx, userID, CreateCheckoutRequest{
		Amount:      req.Amount,
		Description: fmt.Sprintf("Ajout de fonds au compte - %s %s", req.Amount, domain.DefaultCurrency),
		Method:      req.Method,
		UserAgent:   req.UserAgent,
		IPAddress:   req.IPAddress,
	})
}

func (s *PaymentService) openCheckout(ctx context.Context, user *domain.User, payment *domain.Payment) (*CheckoutSession, error) {
	customerID, err := s.gateway.CreateCustomer(ctx, CustomerRequest{
		Name:  user.FullName(),
		Email: user.Email,
		Phone: user.Phone,
		Metadata: map[string]string{
			"userId":    user.ID,
			"paymentId": payment.PaymentID,
		},
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		"paymentId": payment.PaymentID,
		"userId":    user.ID,
	}
	if payment.OrderID != "" {
		metadata["orderId"] = payment.OrderID
	}

	return s.gateway.CreateCheckout(ctx, CheckoutRequest{
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Method:      payment.Method,
		Description: payment.Metadata.Description,
		CustomerID:  customerID,
		SuccessURL:  fmt.Sprintf("%s/payment/success?payment=%s", s.urls.FrontendURL, payment.PaymentID),
		FailureURL:  fmt.Sprintf("%s/payment/failed?payment=%s", s.urls.FrontendURL, payment.PaymentID),
		WebhookURL:  s.urls.BackendURL + "/api/payments/webhook",
		Metadata:    metadata,
	})
}

// webhookEnvelope is the part of a gateway event settlement reads
type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID            string          `json:"id"`
		Status        string          `json:"status"`
		Metadata      json.RawMessage `json:"metadata"`
		FailureReason string          `json:"failure_reason"`
	} `json:"data"`
}

// WebhookResult describes what a webhook delivery did
type WebhookResult struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	PaymentID string `json:"payment_id,omitempty"`
	Outcome   string `json:"outcome"`
}

// HandleWebhook verifies and settles a gateway event. The only error it
// returns is invalid_signature: once the signature checks out the delivery is
// acknowledged whatever processing finds, and problems are logged instead.
func (s *PaymentService) HandleWebhook(ctx context.Context, signature string, payload []byte) (*WebhookResult, error) {
	if signature == "" || !s.gateway.VerifyWebhookSignature(payload, signature) {
		s.logger.Warn("webhook rejected: invalid signature", zap.Int("payload_bytes", len(payload)))
		s.metrics.WebhookProcessed(ctx, "unknown", "invalid_signature")
		return nil, domain.ErrInvalidSignature
	}

	result := &WebhookResult{}
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		result.Outcome = WebhookOutcomeMalformed
		s.logger.Error("webhook payload is not valid JSON", zap.Error(err))
		s.metrics.WebhookProcessed(ctx, "unknown", result.Outcome)
		return result, nil
	}
	result.EventID = envelope.ID
	result.Type = envelope.Type
	s.archivePayload(envelope.ID, payload)

	var status string
	switch envelope.Type {
	case domain.WebhookCheckoutPaid:
		status = domain.PaymentStatusPaid
	case domain.WebhookCheckoutFailed:
		status = domain.PaymentStatusFailed
	default:
		result.Outcome = WebhookOutcomeIgnored
		s.logger.Info("webhook event ignored", zap.String("event_id", envelope.ID), zap.String("type", envelope.Type))
		s.metrics.WebhookProcessed(ctx, envelope.Type, result.Outcome)
		return result, nil
	}

	metadata := decodeMetadata(envelope.Data.Metadata)
	result.PaymentID = metadata["paymentId"]
	if result.PaymentID == "" {
		result.Outcome = WebhookOutcomeMalformed
		s.logger.Error("webhook without paymentId metadata", zap.String("event_id", envelope.ID), zap.String("type", envelope.Type))
		s.metrics.WebhookProcessed(ctx, envelope.Type, result.Outcome)
		return result, nil
	}

	var raw struct {
		Data map[string]any `json:"data"`
	}
	_ = json.Unmarshal(payload, &raw)

	failureReason := envelope.Data.FailureReason
	if status == domain.PaymentStatusFailed && failureReason == "" {
		failureReason = defaultFailureReason
	}

	outcome, err := s.settle(ctx, envelope.ID, envelope.Type, result.PaymentID, domain.PaymentTransition{
		Status:        status,
		FailureReason: failureReason,
		WebhookData:   raw.Data,
		At:            s.now(),
	})
	result.Outcome = outcome
	if err != nil {
		s.logger.Error("webhook settlement failed",
			zap.String("event_id", envelope.ID),
			zap.String("payment_id", result.PaymentID),
			zap.Error(err),
		)
	} else {
		s.logger.Info("webhook processed",
			zap.String("event_id", envelope.ID),
			zap.String("type", envelope.Type),
			zap.String("payment_id", result.PaymentID),
			zap.String("outcome", outcome),
		)
	}
	s.metrics.WebhookProcessed(ctx, envelope.Type, outcome)
	return result, nil
}

// settle applies a terminal gateway outcome to a pending payment exactly
// once. eventID, when set, is recorded so that a replayed event is a no-op.
func (s *PaymentService) settle(ctx context.Context, eventID, eventType, paymentID string, t domain.PaymentTransition) (string, error) {
	outcome := WebhookOutcomeSettled

	err := s.tx.WithinTx(ctx, func(txCtx context.Context) error {
		outcome = WebhookOutcomeSettled

		if eventID != "" {
			err := s.events.Record(txCtx, &domain.WebhookEvent{
				ID:         eventID,
				Type:       eventType,
				PaymentID:  paymentID,
				ReceivedAt: t.At,
			})
			if err != nil {
				return err
			}
		}

		payment, transitioned, err := s.payments.Transition(txCtx, paymentID, t)
		if err != nil {
			return err
		}
		if !transitioned {
			outcome = WebhookOutcomeAlreadySettled
			return nil
		}

		switch t.Status {
		case domain.PaymentStatusPaid:
			if _, err := s.ledger.Credit(txCtx, payment.UserID, payment.Amount); err != nil {
				return err
			}
			if payment.OrderID != "" {
				return s.orders.SetPaymentOutcome(txCtx, payment.OrderID, domain.PaymentStatusPaid, domain.OrderStatusProcessing)
			}
		case domain.PaymentStatusFailed:
			if payment.OrderID != "" {
				return s.orders.SetPaymentOutcome(txCtx, payment.OrderID, domain.PaymentStatusFailed, domain.OrderStatusCancelled)
			}
		}
		return nil
	})

	switch {
	case err == nil:
		return outcome, nil
	case errors.Is(err, domain.ErrDuplicateEvent):
		return WebhookOutcomeDuplicate, nil
	case errors.Is(err, domain.ErrNotFound):
		return WebhookOutcomePaymentNotFound, nil
	default:
		return WebhookOutcomeError, err
	}
}

func (s *PaymentService) archivePayload(eventID string, payload []byte) {
	if s.archive == nil {
		return
	}
	if eventID == "" {
		eventID = ulid.Make().String()
	}
	key := fmt.Sprintf("webhooks/%s/%s.json", s.now().Format("2006/01/02"), eventID)
	body := append([]byte(nil), payload...)

	s.archiving.Add(1)
	go func() {
		defer s.archiving.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := s.archive.Store(ctx, key, body); err != nil {
			s.logger.Warn("failed to archive webhook payload", zap.String("key", key), zap.Error(err))
		}
	}()
}

// decodeMetadata accepts metadata as an object or as a list of objects
func decodeMetadata(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return stringMetadata(obj)
	}

	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			for k, v := range stringMetadata(item) {
				out[k] = v
			}
		}
	}
	return out
}

// SyncPayment asks the gateway for the checkout state and settles the
// payment if the gateway reports a final outcome.
func (s *PaymentService) SyncPayment(ctx context.Context, userID, paymentID string) (*domain.Payment, error) {
	payment, err := s.GetPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, err
	}
	return s.syncFromGateway(ctx, payment)
}

func (s *PaymentService) syncFromGateway(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	if payment.Status != domain.PaymentStatusPending || payment.CheckoutID == "" {
		return payment, nil
	}

	session, err := s.gateway.GetCheckout(ctx, payment.CheckoutID)
	if err != nil {
		return nil, domain.WrapError(domain.KindGateway, "failed to fetch checkout", err).
			With("payment_id", payment.PaymentID)
	}
	if session.Status == domain.PaymentStatusPending {
		return payment, nil
	}

	t := domain.PaymentTransition{
		Status:      session.Status,
		WebhookData: session.Raw,
		At:          s.now(),
	}
	if t.Status == domain.PaymentStatusFailed {
		t.FailureReason = defaultFailureReason
	}
	outcome, err := s.settle(ctx, "", "checkout.sync", payment.PaymentID, t)
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment synced from gateway",
		zap.String("payment_id", payment.PaymentID),
		zap.String("status", session.Status),
		zap.String("outcome", outcome),
	)
	return s.payments.GetByPaymentID(ctx, payment.PaymentID)
}

// ReconcileReport summarises a reconciliation run
type ReconcileReport struct {
	Checked int `json:"checked"`
	Paid    int `json:"paid"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
	Errors  int `json:"errors"`
}

// ReconcilePending syncs gateway payments left pending for longer than olderThan
func (s *PaymentService) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int64) (*ReconcileReport, error) {
	payments, err := s.payments.ListStalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	for _, p := range payments {
		report.Checked++
		synced, err := s.syncFromGateway(ctx, p)
		if err != nil {
			report.Errors++
			s.logger.Warn("reconcile failed", zap.String("payment_id", p.PaymentID), zap.Error(err))
			continue
		}
		switch synced.Status {
		case domain.PaymentStatusPaid:
			report.Paid++
		case domain.PaymentStatusFailed:
			report.Failed++
		default:
			report.Pending++
		}
	}
	return report, nil
}

// History returns the user's payments, newest first
func (s *PaymentService) History(ctx context.Context, userID string, page, limit int64) (*domain.PagedResult[*domain.Payment], error) {
	p := domain.NewPage(page, limit, defaultPaymentPageSize)
	payments, total, err := s.payments.ListByUser(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPagedResult(payments, p, total), nil
}

// GetPayment returns one of the user's own payments
func (s *PaymentService) GetPayment(ctx context.Context, userID, paymentID string) (*domain.Payment, error) {
	payment, err := s.payments.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewError(domain.KindNotFound, "payment not found")
		}
		return nil, err
	}
	if payment.UserID != userID {
		return nil, domain.NewError(domain.KindNotFound, "payment not found")
	}
	return payment, nil
}

// GatewayBalance returns the merchant wallets held at the gateway
func (s *PaymentService) GatewayBalance(ctx context.Context) ([]GatewayWallet, error) {
	wallets, err := s.gateway.GetBalance(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.KindGateway, "failed to fetch gateway balance", err)
	}
	return wallets, nil
}

func newPaymentID() string {
	return "pay_" + ulid.Make().String()
}
