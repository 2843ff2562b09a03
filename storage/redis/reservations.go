package redisstore

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/redis/go-redis/v9"
)

// ReservationCache holds a short-lived checkout reservation per
// (account, item) pair so only one provider session can be open for a pair
// at a time. The hold is taken with SET NX and expires on its own; redis
// owns the TTL so a crashed checkout never wedges the pair.
type ReservationCache struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewReservationCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *ReservationCache {
	if keyPrefix == "" {
		keyPrefix = "purchase:checkout:hold:"
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ReservationCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (c *ReservationCache) key(accountID, itemID uuid.UUID) string {
	return c.keyNS + accountID.String() + ":" + itemID.String()
}

// Acquire takes the hold. ttl <= 0 falls back to the cache default. Returns
// false when another checkout already holds the pair.
func (c *ReservationCache) Acquire(ctx context.Context, accountID, itemID uuid.UUID, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.rdb.SetNX(ctx, c.key(accountID, itemID), holdToken(), ttl).Result()
}

func (c *ReservationCache) Release(ctx context.Context, accountID, itemID uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(accountID, itemID)).Err()
}

// holdToken tags the hold value for debugging (KEYS/GET during incident
// response); correctness only depends on key existence.
func holdToken() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "hold"
	}
	return base58.Encode(b)
}
