// Package testing provides utilities for testing applications built on
// purchasekit: a payment-provider simulator that signs webhook payloads and
// serves the checkout-session API, and bearer-token helpers for the
// authenticated RPCs.
//
// Example usage:
//
//	provider := kittest.NewProvider("whsec_test")
//	defer provider.Close()
//
//	body, sig := provider.CompletedCheckout("cs_1", accountID, itemID)
//	outcome, err := receiver.Receive(ctx, body, sig)
package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/payments"
)

// Provider simulates the external payment provider for tests. It signs
// webhook payloads with the shared secret and runs an httptest server
// implementing the checkout-session API.
type Provider struct {
	secret string
	server *httptest.Server

	mu       sync.Mutex
	nextID   int
	sessions []SessionRecord
}

// SessionRecord is one session the simulated API opened.
type SessionRecord struct {
	ID        string
	AccountID string
	ItemID    string
	Amount    string
}

// NewProvider starts a simulator signing with the given webhook secret.
// Call Close when done.
func NewProvider(secret string) *Provider {
	p := &Provider{secret: secret}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/checkout/sessions", p.handleCreateSession)
	p.server = httptest.NewServer(mux)
	return p
}

// URL returns the simulated API base URL for payments.NewClient.
func (p *Provider) URL() string { return p.server.URL }

// Close shuts down the API server.
func (p *Provider) Close() { p.server.Close() }

// Sessions returns the sessions opened against the simulated API.
func (p *Provider) Sessions() []SessionRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SessionRecord, len(p.sessions))
	copy(out, p.sessions)
	return out
}

func (p *Provider) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.nextID++
	rec := SessionRecord{
		ID:        fmt.Sprintf("cs_test_%d", p.nextID),
		AccountID: r.PostFormValue("metadata[account_id]"),
		ItemID:    r.PostFormValue("metadata[item_id]"),
		Amount:    r.PostFormValue("line_items[0][amount]"),
	}
	p.sessions = append(p.sessions, rec)
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"id":  rec.ID,
		"url": "https://pay.example.com/c/" + rec.ID,
	})
}

// CompletedCheckout builds a signed checkout.session.completed delivery for
// the session, returning the raw body and the signature header.
func (p *Provider) CompletedCheckout(sessionID string, accountID, itemID uuid.UUID) ([]byte, string) {
	body := p.Event("checkout.session.completed", sessionID, map[string]string{
		"account_id": accountID.String(),
		"item_id":    itemID.String(),
	})
	return body, p.Signature(body)
}

// Event builds a raw provider event body of any kind.
func (p *Provider) Event(kind, sessionID string, metadata map[string]string) []byte {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.mu.Unlock()
	payload := map[string]any{
		"id":   fmt.Sprintf("evt_test_%d", id),
		"type": kind,
		"data": map[string]any{
			"object": map[string]any{
				"id":       sessionID,
				"metadata": metadata,
			},
		},
	}
	b, _ := json.Marshal(payload)
	return b
}

// Signature signs a payload as the provider would, timestamped now.
func (p *Provider) Signature(body []byte) string {
	return payments.Sign(body, p.secret, time.Now())
}

// SignatureAt signs a payload with an arbitrary timestamp, for tolerance
// tests.
func (p *Provider) SignatureAt(body []byte, at time.Time) string {
	return payments.Sign(body, p.secret, at)
}
