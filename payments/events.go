// Package payments models the external payment provider: the pushed event
// stream, its signature scheme, the checkout-session API, and the receiver
// that turns completed payments into entitlements.
package payments

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the closed set of event shapes we decode. Anything
// the provider sends outside this set decodes to KindIgnored; fields of
// unknown events are never touched.
type EventKind string

const (
	KindCheckoutCompleted EventKind = "checkout.session.completed"
	KindIgnored           EventKind = "ignored"
)

// Event is a decoded provider push. Completed is set only when Kind is
// KindCheckoutCompleted.
type Event struct {
	ID        string
	Kind      EventKind
	Completed *CompletedCheckout
}

// CompletedCheckout carries the fulfillment-relevant fields of a completed
// checkout session. Account and item ids stay raw strings here; the receiver
// owns validation so a bad uuid surfaces as a metadata reject, not a decode
// error.
type CompletedCheckout struct {
	SessionID string
	AccountID string
	ItemID    string
}

type wireEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// DecodeEvent parses a raw webhook body into the event union.
func DecodeEvent(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, fmt.Errorf("payments: decode event: %w", err)
	}
	if w.Type != string(KindCheckoutCompleted) {
		return Event{ID: w.ID, Kind: KindIgnored}, nil
	}
	return Event{
		ID:   w.ID,
		Kind: KindCheckoutCompleted,
		Completed: &CompletedCheckout{
			SessionID: w.Data.Object.ID,
			AccountID: w.Data.Object.Metadata["account_id"],
			ItemID:    w.Data.Object.Metadata["item_id"],
		},
	}, nil
}
