package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionStatus tracks a logged checkout session's lifecycle.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionCompleted SessionStatus = "completed"
	SessionExpired   SessionStatus = "expired"
)

// CheckoutSession records a provider session we opened. The log is
// observability only: fulfillment never depends on it, and the webhook must
// fulfill sessions it has no row for.
type CheckoutSession struct {
	ID          string        `json:"id"`
	AccountID   uuid.UUID     `json:"account_id"`
	ItemID      uuid.UUID     `json:"item_id"`
	AmountCents int64         `json:"amount_cents"`
	Status      SessionStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SessionLog persists opened checkout sessions.
type SessionLog interface {
	Insert(ctx context.Context, s CheckoutSession) error
	Get(ctx context.Context, sessionID string) (CheckoutSession, bool, error)
	// MarkCompleted flips an open session to completed. Unknown ids are a
	// no-op; the provider may fulfill sessions we failed to log.
	MarkCompleted(ctx context.Context, sessionID string) error
	// ExpireOlderThan flips open sessions created before cutoff to expired
	// and returns how many rows changed.
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
