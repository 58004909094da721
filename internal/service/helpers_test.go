package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/config"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/mansoorceksport/smmpanel/internal/infrastructure/chargily"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testWebhookSecret = "whsec_test"

var testJWTConfig = config.JWTConfig{
	Secret:             "test-secret-key-for-tokens",
	AccessTokenExpiry:  15 * time.Minute,
	RefreshTokenExpiry: 24 * time.Hour,
}

type testEnv struct {
	store    *memStore
	tx       *memTx
	users    memUserRepo
	services memServiceRepo
	orders   memOrderRepo
	payments memPaymentRepo
	gateway  *MockGateway

	ledger     *LedgerService
	catalog    *CatalogService
	tokens     *TokenService
	auth       *AuthService
	userSvc    *UserService
	orderSvc   *OrderService
	paymentSvc *PaymentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := newMemStore()
	env := &testEnv{
		store:    store,
		tx:       &memTx{store: store},
		users:    memUserRepo{store},
		services: memServiceRepo{store},
		orders:   memOrderRepo{store},
		payments: memPaymentRepo{store},
		gateway:  NewMockGateway(testWebhookSecret, "http://panel.test"),
	}

	env.ledger = NewLedgerService(env.users, logger)
	env.catalog = NewCatalogService(env.services, logger)
	env.tokens = NewTokenService(testJWTConfig, memTokenRepo{store}, env.users)
	env.auth = NewAuthService(env.users, env.tokens, logger)
	env.userSvc = NewUserService(env.users, env.ledger, env.tokens, logger)
	env.orderSvc = NewOrderService(env.tx, env.orders, env.payments, env.ledger, env.catalog, nil, logger)
	env.paymentSvc = NewPaymentService(
		env.tx, env.payments, env.orders, env.users, memEventRepo{store}, env.ledger, env.gateway,
		PaymentURLs{FrontendURL: "http://panel.test/", BackendURL: "http://api.panel.test"},
		nil, logger,
	)
	t.Cleanup(env.paymentSvc.Close)
	return env
}

func (e *testEnv) seedUser(t *testing.T, username string, balance domain.Money) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		Balance:   balance,
	}
	user.ApplyDefaults()
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

func (e *testEnv) seedService(t *testing.T, mutate func(s *domain.Service)) *domain.Service {
	t.Helper()
	svc := &domain.Service{
		Name:         "Instagram Followers",
		Platform:     domain.PlatformInstagram,
		Category:     domain.CategoryFollowers,
		Price:        domain.MoneyFromMajor(1500),
		MinQuantity:  100,
		MaxQuantity:  10000,
		DeliveryTime: "0-24h",
		IsActive:     true,
	}
	if mutate != nil {
		mutate(svc)
	}
	svc.ApplyDefaults()
	require.NoError(t, e.services.Create(context.Background(), svc))
	return svc
}

func (e *testEnv) balanceOf(t *testing.T, userID string) *domain.Balance {
	t.Helper()
	b, err := e.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) paymentByID(t *testing.T, paymentID string) *domain.Payment {
	t.Helper()
	p, err := e.payments.GetByPaymentID(context.Background(), paymentID)
	require.NoError(t, err)
	return p
}

// webhookPayload builds a gateway event body and its signature
func webhookPayload(t *testing.T, eventID, eventType string, metadata any) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":     eventID,
		"entity": "event",
		"type":   eventType,
		"data": map[string]any{
			"id":       "ck_" + eventID,
			"status":   "paid",
			"metadata": metadata,
		},
	})
	require.NoError(t, err)
	return body, chargily.Sign(testWebhookSecret, body)
}

func (e *testEnv) deliver(t *testing.T, eventID, eventType, paymentID string) *WebhookResult {
	t.Helper()
	body, sig := webhookPayload(t, eventID, eventType, map[string]string{"paymentId": paymentID})
	result, err := e.paymentSvc.HandleWebhook(context.Background(), sig, body)
	require.NoError(t, err)
	return result
}

func signFor(body []byte) string {
	return chargily.Sign(testWebhookSecret, body)
}
