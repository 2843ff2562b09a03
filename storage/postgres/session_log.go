package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-rails/purchasekit/entitlements"
)

// SessionLog is the pgx-backed entitlements.SessionLog.
type SessionLog struct {
	pg     *pgxpool.Pool
	schema string
}

func NewSessionLog(pg *pgxpool.Pool, schema string) *SessionLog {
	if schema == "" {
		schema = "purchases"
	}
	return &SessionLog{pg: pg, schema: schema}
}

func (l *SessionLog) table() string { return l.schema + ".checkout_sessions" }

func (l *SessionLog) Insert(ctx context.Context, s entitlements.CheckoutSession) error {
	if l.pg == nil {
		return errors.New("pgstore: nil pool")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = entitlements.SessionOpen
	}
	_, err := l.pg.Exec(ctx,
		`INSERT INTO `+l.table()+` (id, account_id, item_id, amount_cents, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		s.ID, s.AccountID, s.ItemID, s.AmountCents, s.Status, s.CreatedAt)
	return err
}

func (l *SessionLog) Get(ctx context.Context, sessionID string) (entitlements.CheckoutSession, bool, error) {
	if l.pg == nil {
		return entitlements.CheckoutSession{}, false, errors.New("pgstore: nil pool")
	}
	var s entitlements.CheckoutSession
	err := l.pg.QueryRow(ctx,
		`SELECT id, account_id, item_id, amount_cents, status, created_at FROM `+l.table()+` WHERE id=$1 LIMIT 1`,
		sessionID).Scan(&s.ID, &s.AccountID, &s.ItemID, &s.AmountCents, &s.Status, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entitlements.CheckoutSession{}, false, nil
	}
	if err != nil {
		return entitlements.CheckoutSession{}, false, err
	}
	return s, true, nil
}

func (l *SessionLog) MarkCompleted(ctx context.Context, sessionID string) error {
	if l.pg == nil {
		return errors.New("pgstore: nil pool")
	}
	_, err := l.pg.Exec(ctx,
		`UPDATE `+l.table()+` SET status=$2 WHERE id=$1 AND status=$3`,
		sessionID, entitlements.SessionCompleted, entitlements.SessionOpen)
	return err
}

func (l *SessionLog) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if l.pg == nil {
		return 0, errors.New("pgstore: nil pool")
	}
	tag, err := l.pg.Exec(ctx,
		`UPDATE `+l.table()+` SET status=$1 WHERE status=$2 AND created_at < $3`,
		entitlements.SessionExpired, entitlements.SessionOpen, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
