package entitlements

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for entitlements. It is the single
// source of truth for "has this account paid for this item"; callers never
// cache entitlement state across requests.
type Store interface {
	// Exists reports whether any entitlement exists for (account, item).
	Exists(ctx context.Context, accountID, itemID uuid.UUID) (bool, error)

	// FindBySession looks up the entitlement created for a payment session.
	FindBySession(ctx context.Context, paymentSessionID string) (Entitlement, bool, error)

	// InsertIfAbsent inserts e unless an entitlement with the same payment
	// session id (or the same account/item pair) already exists, in which
	// case the existing row is returned with Created=false. The check and
	// insert are atomic with respect to concurrent callers.
	InsertIfAbsent(ctx context.Context, e Entitlement) (InsertResult, error)

	// ListByAccount returns the account's entitlements, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Entitlement, error)
}
