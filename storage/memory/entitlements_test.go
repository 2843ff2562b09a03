package memorystore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/entitlements"
)

func TestInsertIfAbsentDedupesBySession(t *testing.T) {
	store := NewEntitlementStore()
	accountID, itemID := uuid.New(), uuid.New()

	first, err := store.InsertIfAbsent(context.Background(), entitlements.Entitlement{
		AccountID: accountID, ItemID: itemID, PaymentSessionID: "cs_1",
	})
	if err != nil || !first.Created {
		t.Fatalf("first insert: created=%v err=%v", first.Created, err)
	}

	second, err := store.InsertIfAbsent(context.Background(), entitlements.Entitlement{
		AccountID: accountID, ItemID: itemID, PaymentSessionID: "cs_1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Created {
		t.Error("duplicate session insert reported created")
	}
	if second.Row.ID != first.Row.ID {
		t.Error("duplicate insert returned a different row")
	}
}

func TestInsertIfAbsentDedupesByPair(t *testing.T) {
	store := NewEntitlementStore()
	accountID, itemID := uuid.New(), uuid.New()

	if _, err := store.InsertIfAbsent(context.Background(), entitlements.Entitlement{
		AccountID: accountID, ItemID: itemID, PaymentSessionID: "cs_1",
	}); err != nil {
		t.Fatal(err)
	}

	// A second provider session slipped past the pre-check: same pair,
	// different session id. The existing row must win.
	second, err := store.InsertIfAbsent(context.Background(), entitlements.Entitlement{
		AccountID: accountID, ItemID: itemID, PaymentSessionID: "cs_2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Created {
		t.Error("cross-session duplicate reported created")
	}
	if second.Row.PaymentSessionID != "cs_1" {
		t.Errorf("surviving row session = %q, want cs_1", second.Row.PaymentSessionID)
	}
	if len(store.bySession) != 1 {
		t.Errorf("%d rows stored, want 1", len(store.bySession))
	}
}

func TestListByAccountNewestFirst(t *testing.T) {
	store := NewEntitlementStore()
	accountID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := store.InsertIfAbsent(context.Background(), entitlements.Entitlement{
			AccountID:        accountID,
			ItemID:           uuid.New(),
			PaymentSessionID: uuid.NewString(),
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := store.ListByAccount(context.Background(), accountID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("%d rows, want 3", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].CreatedAt.After(rows[i-1].CreatedAt) {
			t.Errorf("rows out of order at %d", i)
		}
	}
}

func TestReservationCacheAcquireRelease(t *testing.T) {
	holds := NewReservationCache()
	defer holds.Close()
	accountID, itemID := uuid.New(), uuid.New()

	ok, err := holds.Acquire(context.Background(), accountID, itemID, time.Hour)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = holds.Acquire(context.Background(), accountID, itemID, time.Hour)
	if err != nil || ok {
		t.Fatalf("second acquire while held: ok=%v err=%v", ok, err)
	}
	if err := holds.Release(context.Background(), accountID, itemID); err != nil {
		t.Fatal(err)
	}
	ok, err = holds.Acquire(context.Background(), accountID, itemID, time.Hour)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestReservationCacheExpiry(t *testing.T) {
	holds := NewReservationCache()
	defer holds.Close()
	accountID, itemID := uuid.New(), uuid.New()

	if ok, _ := holds.Acquire(context.Background(), accountID, itemID, 10*time.Millisecond); !ok {
		t.Fatal("first acquire failed")
	}
	time.Sleep(20 * time.Millisecond)
	ok, err := holds.Acquire(context.Background(), accountID, itemID, time.Hour)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}
}
