// Package checkout opens provider payment sessions for one (account, item)
// pair at a time.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/catalog"
	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/payments"
)

var (
	// ErrAlreadyEntitled blocks a checkout for an already-purchased item.
	ErrAlreadyEntitled = errors.New("checkout: already entitled")
	// ErrCheckoutPending blocks a second concurrent checkout for the same
	// pair while a reservation is live.
	ErrCheckoutPending = errors.New("checkout: a checkout for this item is already in progress")
	// ErrItemNotFound means the item id resolves to nothing in the catalog.
	ErrItemNotFound = errors.New("checkout: item not found")
)

// ItemReader is the slice of the catalog the initiator needs.
type ItemReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (catalog.Item, bool, error)
}

// SessionOpener opens a session with the external payment provider.
type SessionOpener interface {
	CreateSession(ctx context.Context, p payments.SessionParams) (payments.Session, error)
}

// ReservationCache serializes checkout initiation per (account, item).
type ReservationCache interface {
	Acquire(ctx context.Context, accountID, itemID uuid.UUID, ttl time.Duration) (bool, error)
	Release(ctx context.Context, accountID, itemID uuid.UUID) error
}

// Service is the checkout session initiator.
type Service struct {
	items    ItemReader
	store    entitlements.Store
	provider SessionOpener
	holds    ReservationCache
	sessions entitlements.SessionLog
	baseURL  string
	currency string
	holdTTL  time.Duration
	log      *logrus.Logger
}

// Config wires a Service. Holds and Sessions are optional; without Holds the
// pre-check alone guards duplicate checkouts, and the store's pair index
// still prevents double entitlements.
type Config struct {
	Items         ItemReader
	Store         entitlements.Store
	Provider      SessionOpener
	Holds         ReservationCache
	Sessions      entitlements.SessionLog
	PublicBaseURL string
	Currency      string
	HoldTTL       time.Duration
	Logger        *logrus.Logger
}

func NewService(cfg Config) *Service {
	s := &Service{
		items:    cfg.Items,
		store:    cfg.Store,
		provider: cfg.Provider,
		holds:    cfg.Holds,
		sessions: cfg.Sessions,
		baseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		currency: cfg.Currency,
		holdTTL:  cfg.HoldTTL,
		log:      cfg.Logger,
	}
	if s.holdTTL <= 0 {
		s.holdTTL = 30 * time.Minute
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// Initiate opens a payment session and returns the buyer's redirect URL.
//
// The entitlement pre-check and the reservation both run before the provider
// call; between the reservation's TTL and the store's (account, item) unique
// index, at most one entitlement can ever result even if the provider ends
// up holding two open sessions for the pair.
func (s *Service) Initiate(ctx context.Context, accountID, itemID uuid.UUID) (string, error) {
	item, ok, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("checkout: load item: %w", err)
	}
	if !ok {
		return "", ErrItemNotFound
	}

	entitled, err := s.store.Exists(ctx, accountID, itemID)
	if err != nil {
		return "", fmt.Errorf("checkout: entitlement pre-check: %w", err)
	}
	if entitled {
		return "", ErrAlreadyEntitled
	}

	if s.holds != nil {
		acquired, err := s.holds.Acquire(ctx, accountID, itemID, s.holdTTL)
		if err != nil {
			return "", fmt.Errorf("checkout: acquire reservation: %w", err)
		}
		if !acquired {
			return "", ErrCheckoutPending
		}
	}

	sess, err := s.provider.CreateSession(ctx, payments.SessionParams{
		AccountID:   accountID,
		ItemID:      itemID,
		Title:       item.Title,
		AmountCents: item.PriceCents,
		Currency:    s.currency,
		SuccessURL:  s.baseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.baseURL,
	})
	if err != nil {
		if s.holds != nil {
			if rerr := s.holds.Release(ctx, accountID, itemID); rerr != nil {
				s.log.WithError(rerr).Warn("reservation release after provider failure failed")
			}
		}
		return "", err
	}

	if s.sessions != nil {
		logErr := s.sessions.Insert(ctx, entitlements.CheckoutSession{
			ID:          sess.ID,
			AccountID:   accountID,
			ItemID:      itemID,
			AmountCents: item.PriceCents,
			Status:      entitlements.SessionOpen,
		})
		if logErr != nil {
			// Observability only; the session is live either way.
			s.log.WithError(logErr).WithField("session_id", sess.ID).Warn("checkout session log insert failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"account_id": accountID,
		"item_id":    itemID,
	}).Info("checkout session opened")
	return sess.URL, nil
}
