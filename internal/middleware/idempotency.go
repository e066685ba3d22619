package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/congo-pay/wallet_ledger/internal/identity"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	maxIdempotencyKeyLen = 255
	replayedHeader       = "Idempotent-Replayed"
	cacheOpTimeout       = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// IdempotencyConfig configures response replay.
type IdempotencyConfig struct {
	TTL time.Duration
	// Required rejects requests that carry no Idempotency-Key.
	Required bool
}

// Idempotency replays the stored response of a previous request carrying the
// same Idempotency-Key. Keys are scoped to the authenticated caller. Only
// successful responses are stored; a failed request releases its key so the
// caller may retry.
func Idempotency(cache *redis.Client, cfg IdempotencyConfig, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" {
			if cfg.Required {
				return fiber.NewError(http.StatusBadRequest, "missing Idempotency-Key header")
			}
			return c.Next()
		}
		if len(key) > maxIdempotencyKeyLen {
			return fiber.NewError(http.StatusBadRequest, "Idempotency-Key header too long")
		}
		if cache == nil {
			return c.Next()
		}

		scope := c.IP()
		if caller, ok := identity.FromLocals(c); ok {
			scope = caller.UserID
		}
		cacheKey := idempotencyPrefix + scope + ":" + c.Path() + ":" + key
		log := logger.With(zap.String("idempotency_key", key), zap.String("request_id", RequestIDFrom(c)))

		ctx, cancel := context.WithTimeout(c.UserContext(), cacheOpTimeout)
		defer cancel()

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, cfg.TTL).Result()
		if err != nil {
			log.Error("idempotency reservation failed", zap.Error(err))
			return fiber.NewError(http.StatusServiceUnavailable, "idempotency store unavailable")
		}
		if !reserved {
			return replay(ctx, c, cache, cacheKey, log)
		}

		if err := c.Next(); err != nil {
			release(c.UserContext(), cache, cacheKey, log)
			return err
		}
		if c.Response().StatusCode() >= http.StatusBadRequest {
			release(c.UserContext(), cache, cacheKey, log)
			return nil
		}

		stored := storedResponse{
			Status:  c.Response().StatusCode(),
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			stored.Headers[string(k)] = string(v)
		})

		payload, err := json.Marshal(stored)
		if err != nil {
			log.Error("failed to encode idempotent response", zap.Error(err))
			release(c.UserContext(), cache, cacheKey, log)
			return nil
		}

		persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), cacheOpTimeout)
		defer persistCancel()
		if err := cache.Set(persistCtx, cacheKey, payload, cfg.TTL).Err(); err != nil {
			// The operation has committed; report success and let the key expire.
			log.Error("failed to persist idempotent response", zap.Error(err))
		}
		return nil
	}
}

func replay(ctx context.Context, c *fiber.Ctx, cache *redis.Client, cacheKey string, log *zap.Logger) error {
	cached, err := cache.Get(ctx, cacheKey).Result()
	if errors.Is(err, redis.Nil) {
		// Released between SetNX and Get: the first attempt failed.
		return fiber.NewError(http.StatusConflict, "duplicate request, retry")
	}
	if err != nil {
		log.Error("idempotency lookup failed", zap.Error(err))
		return fiber.NewError(http.StatusServiceUnavailable, "idempotency store unavailable")
	}
	if cached == inProgressMarker {
		return fiber.NewError(http.StatusConflict, "duplicate request currently processing")
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		log.Warn("failed to decode stored idempotent response", zap.Error(err))
		return fiber.NewError(http.StatusConflict, "duplicate request")
	}
	for header, value := range stored.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	c.Set(replayedHeader, "true")
	return c.Status(stored.Status).SendString(stored.Body)
}

func release(ctx context.Context, cache *redis.Client, cacheKey string, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	if err := cache.Del(ctx, cacheKey).Err(); err != nil {
		log.Warn("failed to release idempotency key", zap.Error(err))
	}
}
