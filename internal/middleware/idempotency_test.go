package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/wallet_ledger/internal/identity"
	"github.com/congo-pay/wallet_ledger/internal/ledger"
	"github.com/congo-pay/wallet_ledger/internal/logging"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// asUser stands in for JWTAuth.
func asUser(c *fiber.Ctx) error {
	if uid := c.Get("X-Test-User"); uid != "" {
		identity.Store(c, identity.Identity{UserID: uid})
	}
	return c.Next()
}

type idemApp struct {
	app   *fiber.App
	calls atomic.Int32
	fail  atomic.Bool
}

func setupIdempotencyApp(t *testing.T, cache *redis.Client, required bool) *idemApp {
	t.Helper()
	a := &idemApp{}
	a.app = fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	a.app.Post("/resource", asUser, Idempotency(cache, IdempotencyConfig{TTL: time.Minute, Required: required}, logging.Discard()),
		func(c *fiber.Ctx) error {
			n := a.calls.Add(1)
			if a.fail.Load() {
				return ledger.ErrInsufficientFunds
			}
			return c.Status(http.StatusCreated).JSON(fiber.Map{"call": n})
		})
	return a
}

func post(t *testing.T, app *fiber.App, user, key string) (int, string, http.Header) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestIdempotencyRequiresHeaderWhenConfigured(t *testing.T) {
	_, cache := newRedis(t)
	a := setupIdempotencyApp(t, cache, true)

	status, body, _ := post(t, a.app, "user-a", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body, "Idempotency-Key")
	assert.Zero(t, a.calls.Load())
}

func TestIdempotencyOptionalHeaderPassesThrough(t *testing.T) {
	_, cache := newRedis(t)
	a := setupIdempotencyApp(t, cache, false)

	status, _, _ := post(t, a.app, "user-a", "")
	assert.Equal(t, http.StatusCreated, status)
	status, _, _ = post(t, a.app, "user-a", "")
	assert.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 2, a.calls.Load())
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	_, cache := newRedis(t)
	a := setupIdempotencyApp(t, cache, true)

	status, first, _ := post(t, a.app, "user-a", "abc123")
	require.Equal(t, http.StatusCreated, status)

	status, second, headers := post(t, a.app, "user-a", "abc123")
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, first, second)
	assert.Equal(t, "true", headers.Get(replayedHeader))
	assert.EqualValues(t, 1, a.calls.Load(), "handler must run once")
}

func TestIdempotencyKeysAreScopedPerUser(t *testing.T) {
	_, cache := newRedis(t)
	a := setupIdempotencyApp(t, cache, true)

	post(t, a.app, "user-a", "shared")
	status, _, headers := post(t, a.app, "user-b", "shared")
	assert.Equal(t, http.StatusCreated, status)
	assert.Empty(t, headers.Get(replayedHeader))
	assert.EqualValues(t, 2, a.calls.Load())
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	mr, cache := newRedis(t)
	a := setupIdempotencyApp(t, cache, true)

	a.fail.Store(true)
	status, body, _ := post(t, a.app, "user-a", "retry-me")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, body, "insufficient_funds")
	assert.Empty(t, mr.Keys())

	a.fail.Store(false)
	status, _, _ = post(t, a.app, "user-a", "retry-me")
	assert.Equal(t, http.StatusCreated, status)
	assert.EqualValues(t, 2, a.calls.Load())
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	mr, cache := newRedis(t)
	a := setupIdempotencyApp(t, cache, true)

	require.NoError(t, mr.Set(idempotencyPrefix+"user-a:/resource:busy", inProgressMarker))
	status, _, _ := post(t, a.app, "user-a", "busy")
	assert.Equal(t, http.StatusConflict, status)
	assert.Zero(t, a.calls.Load())
}

func TestIdempotencyStoreOutageIsUnavailable(t *testing.T) {
	mr, cache := newRedis(t)
	a := setupIdempotencyApp(t, cache, true)
	mr.Close()

	status, _, _ := post(t, a.app, "user-a", "k1")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Zero(t, a.calls.Load())
}

func TestErrorHandlerMapsLedgerKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
		{ledger.ErrSelfTransfer, http.StatusBadRequest, "self_transfer"},
		{ledger.ErrDuplicateReference, http.StatusConflict, "duplicate_reference"},
		{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
		{fmt.Errorf("%w: deadlock detected (40P01)", ledger.ErrStoreConflict), http.StatusServiceUnavailable, "store_conflict"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "unexpected"},
		{fiber.NewError(http.StatusTeapot, "short and stout"), http.StatusTeapot, "http"},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
			app.Get("/", func(*fiber.Ctx) error { return tc.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Contains(t, string(body), `"kind":"`+tc.kind+`"`)
			if tc.kind == "unexpected" {
				assert.NotContains(t, string(body), "connection refused")
			}
			if tc.kind == "store_conflict" {
				assert.Equal(t, "1", resp.Header.Get(fiber.HeaderRetryAfter))
				assert.Contains(t, string(body), conflictMessage)
				assert.NotContains(t, string(body), "40P01")
			}
		})
	}
}
