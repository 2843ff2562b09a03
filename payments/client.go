package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrProvider marks transient provider API failures. Callers surface it so
// the buyer can retry; nothing retries automatically.
var ErrProvider = errors.New("payments: provider unavailable")

// SessionParams describes the one-item checkout session to open. AccountID
// and ItemID travel as opaque correlation metadata and come back on the
// completed-payment event.
type SessionParams struct {
	AccountID   uuid.UUID
	ItemID      uuid.UUID
	Title       string
	Description string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Session is the provider's view of an opened checkout.
type Session struct {
	ID  string
	URL string
}

// Client calls the provider's checkout-session API over HTTP with a bearer
// API key.
type Client struct {
	apiKey  string
	baseURL string
	hc      *http.Client
}

func NewClient(apiKey, baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// CreateSession opens a payment session for exactly one item at its exact
// price.
func (c *Client) CreateSession(ctx context.Context, p SessionParams) (Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][name]", p.Title)
	if p.Description != "" {
		form.Set("line_items[0][description]", p.Description)
	}
	form.Set("line_items[0][amount]", strconv.FormatInt(p.AmountCents, 10))
	form.Set("line_items[0][currency]", currency(p.Currency))
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[account_id]", p.AccountID.String())
	form.Set("metadata[item_id]", p.ItemID.String())
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, fmt.Errorf("payments: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("%w: read response: %v", ErrProvider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Session{}, fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}
	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Session{}, fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if out.ID == "" || out.URL == "" {
		return Session{}, fmt.Errorf("%w: incomplete session response", ErrProvider)
	}
	return Session{ID: out.ID, URL: out.URL}, nil
}

func currency(c string) string {
	if c == "" {
		return "usd"
	}
	return strings.ToLower(c)
}
