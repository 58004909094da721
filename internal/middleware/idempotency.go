package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/smmpanel/internal/domain"
	"github.com/redis/go-redis/v9"
)

// IdempotencyHeader carries the client chosen key of a mutating request
const IdempotencyHeader = "X-Idempotency-Key"

const (
	idempotencyLockTTL = 30 * time.Second
	redisOpTimeout     = 2 * time.Second
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware replays the stored response of a POST carrying an
// already seen X-Idempotency-Key for the same user. Only 2xx responses are
// stored, so a failed attempt can be retried with the same key. Must run
// after Authenticate.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		idempotencyKey := c.Get(IdempotencyHeader)
		if idempotencyKey == "" {
			// No key = no idempotency check
			return c.Next()
		}
		if len(idempotencyKey) > 128 {
			return domain.NewValidationError(IdempotencyHeader, "idempotency key is too long")
		}

		userID := "anonymous"
		if user := CurrentUser(c); user != nil {
			userID = user.ID
		}
		key := fmt.Sprintf("idempotency:%s:%s:%s", userID, c.Path(), idempotencyKey)
		lockKey := key + ":lock"

		ctx, cancel := context.WithTimeout(c.UserContext(), redisOpTimeout)
		defer cancel()

		// Check if we have a cached response
		if raw, err := redisClient.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			var cached cachedResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				c.Set("X-Idempotent-Replay", "true")
				if cached.ContentType != "" {
					c.Set(fiber.HeaderContentType, cached.ContentType)
				}
				return c.Status(cached.Status).Send(cached.Body)
			}
		}

		acquired, err := redisClient.SetNX(ctx, lockKey, "1", idempotencyLockTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire idempotency lock: %w", err)
		}
		if !acquired {
			return domain.NewError(domain.KindConflict, "a request with this idempotency key is already in progress")
		}

		nextErr := c.Next()

		storeCtx, storeCancel := context.WithTimeout(context.Background(), redisOpTimeout)
		defer storeCancel()

		status := c.Response().StatusCode()
		if nextErr == nil && status >= 200 && status < 300 {
			payload, err := json.Marshal(cachedResponse{
				Status:      status,
				ContentType: string(c.Response().Header.ContentType()),
				Body:        append([]byte(nil), c.Response().Body()...),
			})
			if err == nil {
				redisClient.Set(storeCtx, key, payload, ttl)
			}
		}
		redisClient.Del(storeCtx, lockKey)

		return nextErr
	}
}
