// Package chargily is a client for the Chargily Pay v2 REST API.
package chargily

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	TestBaseURL = "https://pay.chargily.net/test/api/v2"
	LiveBaseURL = "https://pay.chargily.net/api/v2"
)

// Checkout statuses reported by the gateway
const (
	CheckoutStatusPending  = "pending"
	CheckoutStatusPaid     = "paid"
	CheckoutStatusFailed   = "failed"
	CheckoutStatusCanceled = "canceled"
	CheckoutStatusExpired  = "expired"
)

// Config holds Chargily API configuration
type Config struct {
	APIKey    string        // Bearer key for API calls
	SecretKey string        // Key used to sign webhooks
	Mode      string        // "test" or "live"
	BaseURL   string        // Overrides the mode's base URL when set
	Timeout   time.Duration // HTTP timeout, 30s when zero
}

// Client is the Chargily Pay API client
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Address is a customer postal address
type Address struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	Address string `json:"address,omitempty"`
}

// CreateCustomerRequest is the body of POST /customers
type CreateCustomerRequest struct {
	Name     string            `json:"name"`
	Email    string            `json:"email,omitempty"`
	Phone    string            `json:"phone,omitempty"`
	Address  *Address          `json:"address,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Customer is a gateway customer
type Customer struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Metadata map[string]any `json:"metadata"`
}

// CreateCheckoutRequest is the body of POST /checkouts. Amount is in minor units.
type CreateCheckoutRequest struct {
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	PaymentMethod   string            `json:"payment_method,omitempty"`
	SuccessURL      string            `json:"success_url"`
	FailureURL      string            `json:"failure_url,omitempty"`
	WebhookEndpoint string            `json:"webhook_endpoint,omitempty"`
	Description     string            `json:"description,omitempty"`
	Locale          string            `json:"locale,omitempty"`
	CustomerID      string            `json:"customer_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Checkout is a gateway checkout session
type Checkout struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Description   string         `json:"description"`
	PaymentMethod string         `json:"payment_method"`
	CustomerID    string         `json:"customer_id"`
	CheckoutURL   string         `json:"checkout_url"`
	Metadata      map[string]any `json:"metadata"`
	Livemode      bool           `json:"livemode"`
	CreatedAt     int64          `json:"created_at"`
	UpdatedAt     int64          `json:"updated_at"`

	// Raw is the full decoded response body
	Raw map[string]any `json:"-"`
}

// Wallet is the balance of one currency
type Wallet struct {
	Currency       string `json:"currency"`
	Balance        int64  `json:"balance"`
	ReadyForPayout int64  `json:"ready_for_payout"`
	OnHold         int64  `json:"on_hold"`
}

// Balance is the merchant account balance
type Balance struct {
	Livemode bool     `json:"livemode"`
	Wallets  []Wallet `json:"wallets"`
}

// APIError is a non-2xx answer from the gateway
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chargily API error (status %d): %s", e.StatusCode, e.Message)
}

// NewClient creates a new Chargily client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = TestBaseURL
		if cfg.Mode == "live" {
			baseURL = LiveBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:  cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("chargily"),
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateCustomer registers a customer with the gateway
func (c *Client) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	var customer Customer
	if _, err := c.do(ctx, http.MethodPost, "/customers", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CreateCheckout opens a hosted checkout session
func (c *Client) CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*Checkout, error) {
	var checkout Checkout
	raw, err := c.do(ctx, http.MethodPost, "/checkouts", req, &checkout)
	if err != nil {
		return nil, err
	}
	checkout.Raw = raw
	return &checkout, nil
}

// GetCheckout fetches a checkout by id
func (c *Client) GetCheckout(ctx context.Context, checkoutID string) (*Checkout, error) {
	var checkout Checkout
	raw, err := c.do(ctx, http.MethodGet, "/checkouts/"+url.PathEscape(checkoutID), nil, &checkout)
	if err != nil {
		return nil, err
	}
	checkout.Raw = raw
	return &checkout, nil
}

// GetBalance fetches the merchant balance
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var balance Balance
	if _, err := c.do(ctx, http.MethodGet, "/balance", nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of the raw request body
// against the signature header, in constant time.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	return VerifySignature(c.config.SecretKey, payload, signature)
}

// VerifySignature checks a hex HMAC-SHA256 signature of payload under secret
func VerifySignature(secret string, payload []byte, signature string) bool {
	// Anyone can compute an HMAC under an empty key
	if secret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, computeMAC(secret, payload))
}

// Sign returns the hex signature the gateway would send for payload
func Sign(secret string, payload []byte) string {
	return hex.EncodeToString(computeMAC(secret, payload))
}

func computeMAC(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// do performs an authenticated JSON request, decodes a 2xx body into out and
// returns the body as a generic map as well.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errBody struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Message != "" {
			apiErr.Message = errBody.Message
		}
		c.logger.Warn("gateway rejected request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	var raw map[string]any
	_ = json.Unmarshal(respBody, &raw)
	return raw, nil
}
