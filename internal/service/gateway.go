package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/config"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/infrastructure/chargily"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// CustomerRequest identifies the buyer to the gateway
type CustomerRequest struct {
	Name     string
	Email    string
	Phone    string
	Metadata map[string]string
}

// CheckoutRequest opens a hosted checkout for Amount
type CheckoutRequest struct {
	Amount      domain.Money
	Currency    string
	Method      string
	Description string
	CustomerID  string
	SuccessURL  string
	FailureURL  string
	WebhookURL  string
	Metadata    map[string]string
}

// CheckoutSession is a gateway checkout as seen by the panel
type CheckoutSession struct {
	ID       string
	Status   string // a domain payment status
	URL      string
	Metadata map[string]string
	Raw      map[string]any
}

// GatewayWallet is the merchant balance in one currency
type GatewayWallet struct {
	Currency       string       `json:"currency"`
	Balance        domain.Money `json:"balance"`
	ReadyForPayout domain.Money `json:"ready_for_payout"`
	OnHold         domain.Money `json:"on_hold"`
}

// PaymentGateway defines the interface for payment gateway integrations
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckout(ctx context.Context, checkoutID string) (*CheckoutSession, error)
	GetBalance(ctx context.Context) ([]GatewayWallet, error)
	// VerifyWebhookSignature checks signature against the exact raw body bytes
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// NewPaymentGateway returns the Chargily adapter, or an in-process mock when
// no API key is configured.
func NewPaymentGateway(cfg config.ChargilyConfig, appCfg config.AppConfig, logger *zap.Logger) PaymentGateway {
	if cfg.APIKey == "" {
		logger.Warn("using mock payment gateway (no CHARGILY_API_KEY configured)")
		return NewMockGateway(cfg.SecretKey, appCfg.FrontendURL)
	}

	client := chargily.NewClient(chargily.Config{
		APIKey:    cfg.APIKey,
		SecretKey: cfg.SecretKey,
		Mode:      cfg.Mode,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
	}, logger)
	logger.Info("using Chargily payment gateway", zap.String("mode", cfg.Mode), zap.String("base_url", client.BaseURL()))

	return &ChargilyGatewayAdapter{client: client}
}

// =============================================================================
// Chargily
// =============================================================================

// ChargilyGatewayAdapter adapts chargily.Client to PaymentGateway
type ChargilyGatewayAdapter struct {
	client *chargily.Client
}

func NewChargilyGatewayAdapter(client *chargily.Client) *ChargilyGatewayAdapter {
	return &ChargilyGatewayAdapter{client: client}
}

func (a *ChargilyGatewayAdapter) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	customer, err := a.client.CreateCustomer(ctx, chargily.CreateCustomerRequest{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Metadata: req.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("payment provider error: %w", err)
	}
	return customer.ID, nil
}

func (a *ChargilyGatewayAdapter) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	checkout, err := a.client.CreateCheckout(ctx, chargily.CreateCheckoutRequest{
		Amount:          req.Amount.Minor(),
		Currency:        strings.ToLower(req.Currency),
		PaymentMethod:   chargilyMethod(req.Method),
		SuccessURL:      req.SuccessURL,
		FailureURL:      req.FailureURL,
		WebhookEndpoint: req.WebhookURL,
		Description:     req.Description,
		CustomerID:      req.CustomerID,
		Metadata:        req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("payment provider error: %w", err)
	}
	return toCheckoutSession(checkout), nil
}

func (a *ChargilyGatewayAdapter) GetCheckout(ctx context.Context, checkoutID string) (*CheckoutSession, error) {
	checkout, err := a.client.GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("payment provider error: %w", err)
	}
	return toCheckoutSession(checkout), nil
}

func (a *ChargilyGatewayAdapter) GetBalance(ctx context.Context) ([]GatewayWallet, error) {
	balance, err := a.client.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("payment provider error: %w", err)
	}
	wallets := make([]GatewayWallet, 0, len(balance.Wallets))
	for _, w := range balance.Wallets {
		wallets = append(wallets, GatewayWallet{
			Currency:       strings.ToUpper(w.Currency),
			Balance:        domain.Money(w.Balance),
			ReadyForPayout: domain.Money(w.ReadyForPayout),
			OnHold:         domain.Money(w.OnHold),
		})
	}
	return wallets, nil
}

func (a *ChargilyGatewayAdapter) VerifyWebhookSignature(payload []byte, signature string) bool {
	return a.client.VerifyWebhookSignature(payload, signature)
}

func chargilyMethod(method string) string {
	switch method {
	case domain.PaymentMethodCIB:
		return "cib"
	case domain.PaymentMethodEdahabia:
		return "edahabia"
	}
	return ""
}

func toCheckoutSession(c *chargily.Checkout) *CheckoutSession {
	return &CheckoutSession{
		ID:       c.ID,
		Status:   paymentStatusFromCheckout(c.Status),
		URL:      c.CheckoutURL,
		Metadata: stringMetadata(c.Metadata),
		Raw:      c.Raw,
	}
}

// paymentStatusFromCheckout maps a gateway checkout status to a payment status
func paymentStatusFromCheckout(status string) string {
	switch status {
	case chargily.CheckoutStatusPaid:
		return domain.PaymentStatusPaid
	case chargily.CheckoutStatusFailed, chargily.CheckoutStatusCanceled, chargily.CheckoutStatusExpired:
		return domain.PaymentStatusFailed
	}
	return domain.PaymentStatusPending
}

func stringMetadata(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// =============================================================================
// Mock
// =============================================================================

// MockGateway is an in-memory gateway for development and tests. Checkouts
// stay pending until SetCheckoutStatus is called.
type MockGateway struct {
	secret      string
	frontendURL string

	mu        sync.Mutex
	checkouts map[string]*CheckoutSession
	fail      error
}

func NewMockGateway(secret, frontendURL string) *MockGateway {
	return &MockGateway{
		secret:      secret,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		checkouts:   make(map[string]*CheckoutSession),
	}
}

// FailWith makes every subsequent gateway call return err (nil resets)
func (m *MockGateway) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// SetCheckoutStatus simulates the buyer completing or abandoning a checkout
func (m *MockGateway) SetCheckoutStatus(checkoutID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.checkouts[checkoutID]; ok {
		c.Status = status
	}
}

func (m *MockGateway) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return "", m.fail
	}
	return "cus_mock_" + ulid.Make().String(), nil
}

func (m *MockGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}

	id := "ck_mock_" + ulid.Make().String()
	session := &CheckoutSession{
		ID:       id,
		Status:   domain.PaymentStatusPending,
		URL:      fmt.Sprintf("%s/payment/mock/%s", m.frontendURL, id),
		Metadata: req.Metadata,
		Raw: map[string]any{
			"id":         id,
			"amount":     req.Amount.Minor(),
			"currency":   strings.ToLower(req.Currency),
			"status":     chargily.CheckoutStatusPending,
			"livemode":   false,
			"created_at": time.Now().Unix(),
		},
	}
	m.checkouts[id] = session

	copied := *session
	return &copied, nil
}

func (m *MockGateway) GetCheckout(ctx context.Context, checkoutID string) (*CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	c, ok := m.checkouts[checkoutID]
	if !ok {
		return nil, fmt.Errorf("payment provider error: checkout %s not found", checkoutID)
	}
	copied := *c
	return &copied, nil
}

func (m *MockGateway) GetBalance(ctx context.Context) ([]GatewayWallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	return []GatewayWallet{{Currency: domain.DefaultCurrency}}, nil
}

func (m *MockGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return chargily.VerifySignature(m.secret, payload, signature)
}
