package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pagePrefix       = "history:v1:"
	generationPrefix = "history:v1:gen:"
)

// Cache is a read-through page cache in Redis. Pages are keyed by the
// wallet's generation counter; bumping the counter orphans every cached page
// of that wallet, and the TTL reclaims them. A nil *Cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns nil when client is nil or ttl is not positive.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) generation(ctx context.Context, walletID string) (int64, error) {
	gen, err := c.client.Get(ctx, generationPrefix+walletID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func pageKey(walletID string, gen int64, page, limit int) string {
	return fmt.Sprintf("%s%s:%d:%d:%d", pagePrefix, walletID, gen, page, limit)
}

// get returns the cached page and the generation it was looked up under.
// A miss returns ok=false with a nil error.
func (c *Cache) get(ctx context.Context, walletID string, page, limit int) (p Page, gen int64, ok bool, err error) {
	if c == nil {
		return Page{}, 0, false, nil
	}
	if gen, err = c.generation(ctx, walletID); err != nil {
		return Page{}, 0, false, err
	}
	raw, err := c.client.Get(ctx, pageKey(walletID, gen, page, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Page{}, gen, false, nil
	}
	if err != nil {
		return Page{}, gen, false, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Page{}, gen, false, fmt.Errorf("decode cached page: %w", err)
	}
	return p, gen, true, nil
}

// put stores p under the generation observed before the store read. If a
// commit bumped the generation in between, the page lands under a stale key
// that is never read again.
func (c *Cache) put(ctx context.Context, walletID string, gen int64, p Page) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return c.client.Set(ctx, pageKey(walletID, gen, p.Page, p.Limit), payload, c.ttl).Err()
}

// Invalidate bumps the generation of every wallet touched by a commit.
func (c *Cache) Invalidate(ctx context.Context, walletIDs ...string) error {
	if c == nil || len(walletIDs) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range walletIDs {
			pipe.Incr(ctx, generationPrefix+id)
		}
		return nil
	})
	return err
}
