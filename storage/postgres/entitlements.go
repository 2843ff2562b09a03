// Package pgstore implements the entitlement store and checkout session log
// on PostgreSQL via pgx. The uniqueness indexes on payment_session_id and on
// (account_id, item_id) are the synchronization points for the whole
// pipeline; all dedup flows through InsertIfAbsent.
package pgstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/open-rails/purchasekit/entitlements"
)

// EntitlementStore is the pgx-backed entitlements.Store.
type EntitlementStore struct {
	pg     *pgxpool.Pool
	schema string
}

func NewEntitlementStore(pg *pgxpool.Pool, schema string) *EntitlementStore {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "purchases"
	}
	return &EntitlementStore{pg: pg, schema: s}
}

func (s *EntitlementStore) table() string { return s.schema + ".entitlements" }

func (s *EntitlementStore) Exists(ctx context.Context, accountID, itemID uuid.UUID) (bool, error) {
	if s.pg == nil {
		return false, errors.New("pgstore: nil pool")
	}
	var one int
	err := s.pg.QueryRow(ctx, `SELECT 1 FROM `+s.table()+` WHERE account_id=$1 AND item_id=$2 LIMIT 1`, accountID, itemID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *EntitlementStore) FindBySession(ctx context.Context, paymentSessionID string) (entitlements.Entitlement, bool, error) {
	if s.pg == nil {
		return entitlements.Entitlement{}, false, errors.New("pgstore: nil pool")
	}
	var e entitlements.Entitlement
	err := s.pg.QueryRow(ctx,
		`SELECT id, account_id, item_id, payment_session_id, created_at FROM `+s.table()+` WHERE payment_session_id=$1 LIMIT 1`,
		paymentSessionID).Scan(&e.ID, &e.AccountID, &e.ItemID, &e.PaymentSessionID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entitlements.Entitlement{}, false, nil
	}
	if err != nil {
		return entitlements.Entitlement{}, false, err
	}
	return e, true, nil
}

// InsertIfAbsent races concurrent writers on the unique indexes rather than
// locking. ON CONFLICT DO NOTHING returns no row when another writer won, in
// which case the surviving row is fetched and returned with Created=false.
// A conflict on (account_id, item_id) with a different session id means a
// second provider session slipped past the checkout pre-check; the existing
// row still wins and the duplicate charge is refunded out of band.
func (s *EntitlementStore) InsertIfAbsent(ctx context.Context, e entitlements.Entitlement) (entitlements.InsertResult, error) {
	if s.pg == nil {
		return entitlements.InsertResult{}, errors.New("pgstore: nil pool")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	row := s.pg.QueryRow(ctx,
		`INSERT INTO `+s.table()+` (id, account_id, item_id, payment_session_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING
		 RETURNING id, account_id, item_id, payment_session_id, created_at`,
		e.ID, e.AccountID, e.ItemID, e.PaymentSessionID, e.CreatedAt)
	var ins entitlements.Entitlement
	err := row.Scan(&ins.ID, &ins.AccountID, &ins.ItemID, &ins.PaymentSessionID, &ins.CreatedAt)
	if err == nil {
		return entitlements.InsertResult{Created: true, Row: ins}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return entitlements.InsertResult{}, err
	}

	// Lost the race. Prefer the session-id match; fall back to the
	// account/item pair for the cross-session duplicate case.
	if existing, ok, ferr := s.FindBySession(ctx, e.PaymentSessionID); ferr != nil {
		return entitlements.InsertResult{}, ferr
	} else if ok {
		return entitlements.InsertResult{Created: false, Row: existing}, nil
	}
	var dup entitlements.Entitlement
	err = s.pg.QueryRow(ctx,
		`SELECT id, account_id, item_id, payment_session_id, created_at FROM `+s.table()+` WHERE account_id=$1 AND item_id=$2 LIMIT 1`,
		e.AccountID, e.ItemID).Scan(&dup.ID, &dup.AccountID, &dup.ItemID, &dup.PaymentSessionID, &dup.CreatedAt)
	if err != nil {
		return entitlements.InsertResult{}, err
	}
	return entitlements.InsertResult{Created: false, Row: dup}, nil
}

func (s *EntitlementStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]entitlements.Entitlement, error) {
	if s.pg == nil {
		return nil, errors.New("pgstore: nil pool")
	}
	rows, err := s.pg.Query(ctx,
		`SELECT id, account_id, item_id, payment_session_id, created_at FROM `+s.table()+` WHERE account_id=$1 ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entitlements.Entitlement
	for rows.Next() {
		var e entitlements.Entitlement
		if err := rows.Scan(&e.ID, &e.AccountID, &e.ItemID, &e.PaymentSessionID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
