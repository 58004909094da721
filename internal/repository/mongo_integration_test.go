package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createUser(t *testing.T, repo *MongoUserRepository, username string, balance domain.Money) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:  username,
		Email:     username + "@example.com",
		FirstName: "Test",
		LastName:  "User",
		Balance:   balance,
	}
	user.ApplyDefaults()
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestMongoIntegration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	users := NewMongoUserRepository(db)
	orders := NewMongoOrderRepository(db)
	payments := NewMongoPaymentRepository(db)
	events := NewMongoWebhookEventRepository(db)
	tx := NewMongoTxManager(db.Client())

	t.Run("unique email and username", func(t *testing.T) {
		createUser(t, users, "unique", 0)
		dup := &domain.User{Username: "unique", Email: "other@example.com"}
		assert.True(t, errors.Is(users.Create(ctx, dup), domain.ErrConflict))
	})

	t.Run("ledger", func(t *testing.T) {
		user := createUser(t, users, "ledger", domain.MoneyFromMajor(1000))

		b, err := users.Debit(ctx, user.ID, domain.MoneyFromMajor(400))
		require.NoError(t, err)
		assert.Equal(t, domain.MoneyFromMajor(600), b.Balance)

		_, err = users.Debit(ctx, user.ID, domain.MoneyFromMajor(601))
		assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

		b, err = users.Credit(ctx, user.ID, domain.MoneyFromMajor(100))
		require.NoError(t, err)
		assert.Equal(t, domain.MoneyFromMajor(700), b.Balance)
		assert.Equal(t, domain.MoneyFromMajor(100), b.TotalSpent)

		b, err = users.Refund(ctx, user.ID, domain.MoneyFromMajor(50))
		require.NoError(t, err)
		assert.Equal(t, domain.MoneyFromMajor(750), b.Balance)
		assert.Equal(t, domain.MoneyFromMajor(100), b.TotalSpent)

		_, err = users.SetActive(ctx, user.ID, false)
		require.NoError(t, err)
		_, err = users.Debit(ctx, user.ID, domain.MoneyFromMajor(1))
		assert.True(t, errors.Is(err, domain.ErrForbidden))
	})

	t.Run("concurrent debits in transactions", func(t *testing.T) {
		user := createUser(t, users, "racer", domain.MoneyFromMajor(2250))

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			ok, nope int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := tx.WithinTx(ctx, func(txCtx context.Context) error {
					_, err := users.Debit(txCtx, user.ID, domain.MoneyFromMajor(750))
					return err
				})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if errors.Is(err, domain.ErrInsufficientFunds) {
					nope++
				} else {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 3, ok)
		assert.Equal(t, 5, nope)
		b, err := users.GetBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(0), b.Balance)
	})

	t.Run("transaction rollback", func(t *testing.T) {
		user := createUser(t, users, "rollback", domain.MoneyFromMajor(1000))
		boom := errors.New("order insert failed")

		err := tx.WithinTx(ctx, func(txCtx context.Context) error {
			if _, err := users.Debit(txCtx, user.ID, domain.MoneyFromMajor(750)); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		b, err := users.GetBalance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MoneyFromMajor(1000), b.Balance)
	})

	t.Run("order sequence and guarded status update", func(t *testing.T) {
		first, err := orders.NextSequence(ctx)
		require.NoError(t, err)
		second, err := orders.NextSequence(ctx)
		require.NoError(t, err)
		assert.Equal(t, first+1, second)

		order := &domain.Order{
			OrderNumber:   domain.FormatOrderNumber(time.Now(), second),
			UserID:        "u1",
			Status:        domain.OrderStatusProcessing,
			PaymentStatus: domain.PaymentStatusPaid,
			TotalAmount:   domain.MoneyFromMajor(750),
			Quantity:      500,
		}
		require.NoError(t, orders.Create(ctx, order))

		// Two writers read the order as processing with nothing refunded
		read := order.Guard()
		order.Status = domain.OrderStatusPartial
		order.Remains = 100
		order.RefundAmount = domain.MoneyFromMajor(150)
		require.NoError(t, orders.UpdateStatus(ctx, order, read))

		err = orders.UpdateStatus(ctx, order, domain.OrderGuard{Status: domain.OrderStatusPartial, RefundAmount: 0})
		assert.True(t, errors.Is(err, domain.ErrConflict), "stale refund amount")

		read = order.Guard()
		order.Status = domain.OrderStatusCompleted
		require.NoError(t, orders.UpdateStatus(ctx, order, read))

		order.Status = domain.OrderStatusCancelled
		err = orders.UpdateStatus(ctx, order, read)
		assert.True(t, errors.Is(err, domain.ErrConflict), "stale expected status")

		// A paid order keeps its payment status
		require.NoError(t, orders.SetPaymentOutcome(ctx, order.ID, domain.PaymentStatusFailed, domain.OrderStatusCancelled))
		stored, err := orders.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)
		assert.Equal(t, domain.OrderStatusCompleted, stored.Status)

		breakdown, err := orders.StatusBreakdown(ctx, "u1", nil)
		require.NoError(t, err)
		require.Len(t, breakdown, 1)
		assert.Equal(t, domain.MoneyFromMajor(750), breakdown[0].Amount)
	})

	t.Run("payment transitions once", func(t *testing.T) {
		payment := &domain.Payment{
			PaymentID: "pay_once",
			UserID:    "u1",
			Amount:    domain.MoneyFromMajor(2000),
			Currency:  domain.DefaultCurrency,
			Method:    domain.PaymentMethodCIB,
			Status:    domain.PaymentStatusPending,
			CreatedAt: time.Now().Add(-time.Hour),
		}
		require.NoError(t, payments.Create(ctx, payment))
		require.NoError(t, payments.AttachCheckout(ctx, "pay_once", "ck_1", "https://pay.test/ck_1", map[string]any{"id": "ck_1"}))

		stale, err := payments.ListStalePending(ctx, time.Now().Add(-time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "ck_1", stale[0].CheckoutID)

		now := time.Now().UTC().Truncate(time.Millisecond)
		got, moved, err := payments.Transition(ctx, "pay_once", domain.PaymentTransition{Status: domain.PaymentStatusPaid, At: now})
		require.NoError(t, err)
		assert.True(t, moved)
		assert.Equal(t, domain.PaymentStatusPaid, got.Status)
		require.NotNil(t, got.PaidAt)

		got, moved, err = payments.Transition(ctx, "pay_once", domain.PaymentTransition{Status: domain.PaymentStatusFailed, At: now})
		require.NoError(t, err)
		assert.False(t, moved)
		assert.Equal(t, domain.PaymentStatusPaid, got.Status)

		_, _, err = payments.Transition(ctx, "pay_missing", domain.PaymentTransition{Status: domain.PaymentStatusPaid, At: now})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("webhook event replay", func(t *testing.T) {
		event := &domain.WebhookEvent{ID: "evt_1", Type: domain.WebhookCheckoutPaid, PaymentID: "pay_once"}
		require.NoError(t, events.Record(ctx, event))
		assert.ErrorIs(t, events.Record(ctx, event), domain.ErrDuplicateEvent)
	})
}

func TestCachedServiceRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewCachedServiceRepository(NewMongoServiceRepository(db), NewRedisCacheRepository(client), time.Minute)

	svc := &domain.Service{
		Name:         "Followers TikTok",
		Platform:     domain.PlatformTikTok,
		Category:     domain.CategoryFollowers,
		Price:        domain.MoneyFromMajor(1200),
		MinQuantity:  100,
		MaxQuantity:  1000,
		DeliveryTime: "1-12h",
		IsActive:     true,
	}
	svc.ApplyDefaults()
	require.NoError(t, repo.Create(ctx, svc))

	got, err := repo.GetByID(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, svc.Name, got.Name)
	assert.True(t, mr.Exists(serviceByIDKeyPrefix+svc.ID))

	platforms, err := repo.Platforms(ctx)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.True(t, mr.Exists(platformsKey))

	require.NoError(t, repo.SetActive(ctx, svc.ID, false))
	assert.False(t, mr.Exists(serviceByIDKeyPrefix+svc.ID))
	assert.False(t, mr.Exists(platformsKey))

	got, err = repo.GetByID(ctx, svc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, total, err := repo.ListActive(ctx, domain.ServiceFilter{}, domain.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, int64(0), total)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Seeding drops everything cached under the catalog prefix
	require.NoError(t, mr.Set(serviceByIDKeyPrefix+"left-over", "{}"))
	_, err = repo.Platforms(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(platformsKey))

	seeded := &domain.Service{
		Name:         "Vues YouTube",
		Platform:     domain.PlatformYouTube,
		Category:     domain.CategoryViews,
		Price:        domain.MoneyFromMajor(400),
		MinQuantity:  100,
		MaxQuantity:  1000,
		DeliveryTime: "1-6h",
		IsActive:     true,
	}
	seeded.ApplyDefaults()
	require.NoError(t, repo.CreateMany(ctx, []*domain.Service{seeded}))
	assert.False(t, mr.Exists(serviceByIDKeyPrefix+"left-over"))
	assert.False(t, mr.Exists(platformsKey))
}
