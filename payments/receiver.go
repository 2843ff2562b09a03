package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/entitlements"
)

// ErrMissingMetadata rejects completed events whose correlation metadata is
// absent or not valid ids. The provider will retry but fail identically, so
// these deliveries are logged loudly.
var ErrMissingMetadata = errors.New("payments: event missing correlation metadata")

// ErrMalformedEvent rejects bodies that authenticated but do not decode.
var ErrMalformedEvent = errors.New("payments: malformed event payload")

// Outcome classifies an accepted delivery.
type Outcome int

const (
	// OutcomeIgnored acks an event kind outside the fulfillment set.
	OutcomeIgnored Outcome = iota
	// OutcomeFulfilled means this delivery created the entitlement.
	OutcomeFulfilled
	// OutcomeDuplicate acks a redelivery of an already-fulfilled session.
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFulfilled:
		return "fulfilled"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "ignored"
	}
}

// ReservationReleaser drops the checkout hold for a pair once its purchase
// settles.
type ReservationReleaser interface {
	Release(ctx context.Context, accountID, itemID uuid.UUID) error
}

// Receiver consumes provider-pushed payment events. It is stateless and safe
// under concurrent invocation for the same session id: all dedup happens in
// the store's atomic InsertIfAbsent, never in handler memory.
type Receiver struct {
	secret    string
	tolerance time.Duration
	store     entitlements.Store
	sessions  entitlements.SessionLog
	holds     ReservationReleaser
	log       *logrus.Logger
	now       func() time.Time
}

// ReceiverOpt configures a Receiver.
type ReceiverOpt func(*Receiver)

// WithSessionLog marks logged checkout sessions completed on fulfillment.
func WithSessionLog(l entitlements.SessionLog) ReceiverOpt {
	return func(r *Receiver) { r.sessions = l }
}

// WithReservations releases the checkout hold once a session settles.
func WithReservations(h ReservationReleaser) ReceiverOpt {
	return func(r *Receiver) { r.holds = h }
}

// WithTolerance overrides the signature timestamp tolerance.
func WithTolerance(d time.Duration) ReceiverOpt {
	return func(r *Receiver) { r.tolerance = d }
}

// WithLogger sets the receiver's logger.
func WithLogger(log *logrus.Logger) ReceiverOpt {
	return func(r *Receiver) { r.log = log }
}

// WithClock overrides time for tests.
func WithClock(now func() time.Time) ReceiverOpt {
	return func(r *Receiver) { r.now = now }
}

func NewReceiver(secret string, store entitlements.Store, opts ...ReceiverOpt) *Receiver {
	r := &Receiver{
		secret:    secret,
		tolerance: DefaultTolerance,
		store:     store,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Receive authenticates and processes one webhook delivery.
//
// A nil error means ack (2xx): the event was fulfilled, was already
// fulfilled, or is an irrelevant kind. A returned error means reject;
// ErrBadSignature / ErrMalformedEvent / ErrMissingMetadata are permanent
// (4xx-class), anything else is a transient store failure the provider
// should redeliver after (5xx-class). Signature verification runs before any
// parsing or store access.
func (r *Receiver) Receive(ctx context.Context, rawBody []byte, sigHeader string) (Outcome, error) {
	if err := VerifySignature(rawBody, sigHeader, r.secret, r.tolerance, r.now()); err != nil {
		r.log.WithError(err).Warn("webhook rejected: bad signature")
		return 0, err
	}

	ev, err := DecodeEvent(rawBody)
	if err != nil {
		r.log.WithError(err).Warn("webhook rejected: undecodable body")
		return 0, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Kind != KindCheckoutCompleted {
		r.log.WithField("event_id", ev.ID).Debug("webhook ignored: irrelevant event kind")
		return OutcomeIgnored, nil
	}

	accountID, itemID, err := parseCorrelation(ev.Completed)
	if err != nil {
		r.log.WithField("event_id", ev.ID).Warn("webhook rejected: missing metadata")
		return 0, err
	}

	res, err := r.store.InsertIfAbsent(ctx, entitlements.Entitlement{
		AccountID:        accountID,
		ItemID:           itemID,
		PaymentSessionID: ev.Completed.SessionID,
	})
	if err != nil {
		// Transient: the provider retries on non-2xx and the insert is
		// idempotent, so redelivery is safe.
		r.log.WithError(err).WithField("session_id", ev.Completed.SessionID).Error("webhook fulfillment: store write failed")
		return 0, fmt.Errorf("payments: store entitlement: %w", err)
	}

	r.settle(ctx, ev.Completed.SessionID, accountID, itemID)

	if !res.Created {
		r.log.WithField("session_id", ev.Completed.SessionID).Info("webhook fulfillment: already recorded")
		return OutcomeDuplicate, nil
	}
	r.log.WithFields(logrus.Fields{
		"session_id": ev.Completed.SessionID,
		"account_id": accountID,
		"item_id":    itemID,
	}).Info("webhook fulfillment: entitlement granted")
	return OutcomeFulfilled, nil
}

// settle performs the best-effort bookkeeping around a settled session. The
// ack decision never depends on it.
func (r *Receiver) settle(ctx context.Context, sessionID string, accountID, itemID uuid.UUID) {
	if r.sessions != nil {
		if err := r.sessions.MarkCompleted(ctx, sessionID); err != nil {
			r.log.WithError(err).WithField("session_id", sessionID).Warn("session log update failed")
		}
	}
	if r.holds != nil {
		if err := r.holds.Release(ctx, accountID, itemID); err != nil {
			r.log.WithError(err).Warn("reservation release failed")
		}
	}
}

func parseCorrelation(c *CompletedCheckout) (uuid.UUID, uuid.UUID, error) {
	if c == nil || c.AccountID == "" || c.ItemID == "" || c.SessionID == "" {
		return uuid.Nil, uuid.Nil, ErrMissingMetadata
	}
	accountID, err := uuid.Parse(c.AccountID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: account_id", ErrMissingMetadata)
	}
	itemID, err := uuid.Parse(c.ItemID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: item_id", ErrMissingMetadata)
	}
	return accountID, itemID, nil
}
