package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReservationCache is an in-memory checkout hold with TTL. A background
// goroutine drops expired holds every minute.
type ReservationCache struct {
	mu     sync.Mutex
	data   map[string]time.Time
	closed chan struct{}
}

func NewReservationCache() *ReservationCache {
	c := &ReservationCache{data: make(map[string]time.Time), closed: make(chan struct{})}
	go c.cleanupLoop()
	return c
}

func resKey(accountID, itemID uuid.UUID) string {
	return accountID.String() + ":" + itemID.String()
}

// Acquire takes the hold for (account, item). It returns false when a live
// hold already exists.
func (c *ReservationCache) Acquire(ctx context.Context, accountID, itemID uuid.UUID, ttl time.Duration) (bool, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	k := resKey(accountID, itemID)
	if exp, ok := c.data[k]; ok && time.Now().Before(exp) {
		return false, nil
	}
	c.data[k] = time.Now().Add(ttl)
	return true, nil
}

func (c *ReservationCache) Release(ctx context.Context, accountID, itemID uuid.UUID) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, resKey(accountID, itemID))
	return nil
}

func (c *ReservationCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.closed:
			return
		}
	}
}

func (c *ReservationCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, exp := range c.data {
		if now.After(exp) {
			delete(c.data, k)
		}
	}
}

// Close stops the background cleanup goroutine.
func (c *ReservationCache) Close() error {
	close(c.closed)
	return nil
}
