package entitlements

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement is durable proof that an account paid for an item. Rows are
// written exactly once, by webhook fulfillment, and never mutated.
type Entitlement struct {
	ID               uuid.UUID `json:"id"`
	AccountID        uuid.UUID `json:"account_id"`
	ItemID           uuid.UUID `json:"item_id"`
	PaymentSessionID string    `json:"payment_session_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// InsertResult reports the outcome of Store.InsertIfAbsent. When Created is
// false, Row is the pre-existing entitlement that won the race.
type InsertResult struct {
	Created bool
	Row     Entitlement
}
