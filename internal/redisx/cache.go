package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/redis/go-redis/v9"
)

type StatusEntry struct {
	OrderID int64         `json:"order_id"`
	Status  orders.Status `json:"status"`
}

// Cache wraps the keys the HTTP layer reads and writes. A nil *Cache is valid
// and behaves as an always-empty cache.
type Cache struct {
	RDB *redis.Client
}

func (c *Cache) enabled() bool { return c != nil && c.RDB != nil }

func (c *Cache) SetStatus(ctx context.Context, orderID int64, s orders.Status) error {
	if !c.enabled() {
		return nil
	}
	b, err := json.Marshal(StatusEntry{OrderID: orderID, Status: s})
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyRequestStatus, orderID), b, TTLStatusCache).Err()
}

// Status returns the cached entry, ok=false on a miss.
func (c *Cache) Status(ctx context.Context, orderID int64) (StatusEntry, bool, error) {
	var e StatusEntry
	if !c.enabled() {
		return e, false, nil
	}
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyRequestStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, false, err
	}
	return e, true, nil
}

// ErrInFlight means another create holding the same idempotency key has not
// finished yet.
var ErrInFlight = errors.New("idempotency key in use")

const claimPlaceholder = "pending"

// ClaimRequest reserves idemKey before a create. claimed is true when the
// caller owns the key and must create the request. Otherwise orderID is the
// request created earlier under the key, or err is ErrInFlight.
func (c *Cache) ClaimRequest(ctx context.Context, idemKey string) (claimed bool, orderID int64, err error) {
	if !c.enabled() || idemKey == "" {
		return true, 0, nil
	}
	key := fmt.Sprintf(KeyIdemRequestCreate, idemKey)
	ok, err := c.RDB.SetNX(ctx, key, claimPlaceholder, TTLIdemClaim).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	id, found, err := c.RequestFor(ctx, idemKey)
	switch {
	case err != nil:
		return false, 0, err
	case !found:
		// the claim expired between SetNX and Get
		return c.ClaimRequest(ctx, idemKey)
	}
	return false, id, nil
}

// ReleaseRequest drops a claim whose create failed.
func (c *Cache) ReleaseRequest(ctx context.Context, idemKey string) error {
	if !c.enabled() || idemKey == "" {
		return nil
	}
	return c.RDB.Del(ctx, fmt.Sprintf(KeyIdemRequestCreate, idemKey)).Err()
}

// RememberRequest stores the created order under idemKey, replacing the claim.
func (c *Cache) RememberRequest(ctx context.Context, idemKey string, orderID int64) error {
	if !c.enabled() || idemKey == "" {
		return nil
	}
	return c.RDB.Set(ctx, fmt.Sprintf(KeyIdemRequestCreate, idemKey), orderID, TTLIdempotency).Err()
}

// RequestFor looks up the order created earlier under idemKey. It returns
// ErrInFlight while the key is only claimed.
func (c *Cache) RequestFor(ctx context.Context, idemKey string) (int64, bool, error) {
	if !c.enabled() || idemKey == "" {
		return 0, false, nil
	}
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemRequestCreate, idemKey)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if s == claimPlaceholder {
		return 0, false, ErrInFlight
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
