// Package memorystore provides in-memory implementations of the persistence
// contracts for tests and single-process development.
package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/entitlements"
)

// EntitlementStore is an in-memory entitlements.Store. InsertIfAbsent holds
// the mutex across check and insert, matching the atomicity the postgres
// unique indexes provide.
type EntitlementStore struct {
	mu        sync.Mutex
	bySession map[string]entitlements.Entitlement
	byPair    map[pairKey]string // (account,item) -> session id
}

type pairKey struct {
	account uuid.UUID
	item    uuid.UUID
}

func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{
		bySession: make(map[string]entitlements.Entitlement),
		byPair:    make(map[pairKey]string),
	}
}

func (s *EntitlementStore) Exists(ctx context.Context, accountID, itemID uuid.UUID) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byPair[pairKey{accountID, itemID}]
	return ok, nil
}

func (s *EntitlementStore) FindBySession(ctx context.Context, paymentSessionID string) (entitlements.Entitlement, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.bySession[paymentSessionID]
	return e, ok, nil
}

func (s *EntitlementStore) InsertIfAbsent(ctx context.Context, e entitlements.Entitlement) (entitlements.InsertResult, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.bySession[e.PaymentSessionID]; ok {
		return entitlements.InsertResult{Created: false, Row: existing}, nil
	}
	pk := pairKey{e.AccountID, e.ItemID}
	if sid, ok := s.byPair[pk]; ok {
		return entitlements.InsertResult{Created: false, Row: s.bySession[sid]}, nil
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.bySession[e.PaymentSessionID] = e
	s.byPair[pk] = e.PaymentSessionID
	return entitlements.InsertResult{Created: true, Row: e}, nil
}

func (s *EntitlementStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]entitlements.Entitlement, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entitlements.Entitlement
	for _, e := range s.bySession {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
