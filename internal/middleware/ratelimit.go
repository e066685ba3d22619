package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/identity"
)

const rateLimitPrefix = "rl:"

// RateLimit caps requests per caller per minute in a fixed window kept in
// Redis. Callers are keyed by user id, or by IP before authentication. It is
// a no-op without Redis and fails open on Redis errors.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, logger *zap.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		subject := c.IP()
		if caller, ok := identity.FromLocals(c); ok {
			subject = "user:" + caller.UserID
		}
		key := rateLimitPrefix + scope + ":" + subject

		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			logger.Warn("rate limit lookup failed", zap.String("key", key), zap.Error(err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}

		remaining := maxPerMin - int(cnt)
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(maxPerMin))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if cnt > int64(maxPerMin) {
			retry := time.Minute
			if ttl, err := cache.TTL(c.UserContext(), key).Result(); err == nil && ttl > 0 {
				retry = ttl
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Round(time.Second).Seconds())))
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}
