package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/catalog"
	"github.com/open-rails/purchasekit/checkout"
	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/payments"
	memorystore "github.com/open-rails/purchasekit/storage/memory"
	kittest "github.com/open-rails/purchasekit/testing"
)

type stubItems map[uuid.UUID]catalog.Item

func (s stubItems) GetByID(_ context.Context, id uuid.UUID) (catalog.Item, bool, error) {
	it, ok := s[id]
	return it, ok, nil
}

func testItem() catalog.Item {
	return catalog.Item{
		ID:         uuid.New(),
		Title:      "Midnight Keys",
		PriceCents: 999,
		AssetURL:   "loops/midnight-keys.mp3",
	}
}

func newService(t *testing.T, provider *kittest.Provider, item catalog.Item, store entitlements.Store, holds checkout.ReservationCache) (*checkout.Service, *memorystore.SessionLog) {
	t.Helper()
	sessions := memorystore.NewSessionLog()
	svc := checkout.NewService(checkout.Config{
		Items:         stubItems{item.ID: item},
		Store:         store,
		Provider:      payments.NewClient("sk_test", provider.URL(), nil),
		Holds:         holds,
		Sessions:      sessions,
		PublicBaseURL: "https://shop.example.com",
		HoldTTL:       time.Hour,
	})
	return svc, sessions
}

func TestInitiateOpensProviderSession(t *testing.T) {
	provider := kittest.NewProvider("whsec_test")
	defer provider.Close()
	item := testItem()
	svc, sessions := newService(t, provider, item, memorystore.NewEntitlementStore(), nil)
	accountID := uuid.New()

	url, err := svc.Initiate(context.Background(), accountID, item.ID)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if url == "" {
		t.Fatal("empty redirect url")
	}

	opened := provider.Sessions()
	if len(opened) != 1 {
		t.Fatalf("%d provider sessions opened, want 1", len(opened))
	}
	if opened[0].AccountID != accountID.String() || opened[0].ItemID != item.ID.String() {
		t.Errorf("correlation metadata = %q/%q", opened[0].AccountID, opened[0].ItemID)
	}
	if opened[0].Amount != "999" {
		t.Errorf("session amount = %q, want item price", opened[0].Amount)
	}

	logged, ok, _ := sessions.Get(context.Background(), opened[0].ID)
	if !ok {
		t.Fatal("checkout session not logged")
	}
	if logged.Status != entitlements.SessionOpen {
		t.Errorf("logged status = %q, want open", logged.Status)
	}
}

func TestInitiateRefusesWhenAlreadyEntitled(t *testing.T) {
	provider := kittest.NewProvider("whsec_test")
	defer provider.Close()
	item := testItem()
	store := memorystore.NewEntitlementStore()
	accountID := uuid.New()
	if _, err := store.InsertIfAbsent(context.Background(), entitlements.Entitlement{
		AccountID: accountID, ItemID: item.ID, PaymentSessionID: "cs_prior",
	}); err != nil {
		t.Fatal(err)
	}
	svc, _ := newService(t, provider, item, store, nil)

	_, err := svc.Initiate(context.Background(), accountID, item.ID)
	if !errors.Is(err, checkout.ErrAlreadyEntitled) {
		t.Fatalf("err = %v, want ErrAlreadyEntitled", err)
	}
	if len(provider.Sessions()) != 0 {
		t.Error("provider session opened despite existing entitlement")
	}
}

func TestInitiateUnknownItem(t *testing.T) {
	provider := kittest.NewProvider("whsec_test")
	defer provider.Close()
	svc, _ := newService(t, provider, testItem(), memorystore.NewEntitlementStore(), nil)

	_, err := svc.Initiate(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, checkout.ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func TestInitiateSerializesPerPair(t *testing.T) {
	provider := kittest.NewProvider("whsec_test")
	defer provider.Close()
	item := testItem()
	holds := memorystore.NewReservationCache()
	defer holds.Close()
	svc, _ := newService(t, provider, item, memorystore.NewEntitlementStore(), holds)
	accountID := uuid.New()

	if _, err := svc.Initiate(context.Background(), accountID, item.ID); err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	_, err := svc.Initiate(context.Background(), accountID, item.ID)
	if !errors.Is(err, checkout.ErrCheckoutPending) {
		t.Fatalf("second initiate err = %v, want ErrCheckoutPending", err)
	}
	if got := len(provider.Sessions()); got != 1 {
		t.Errorf("%d provider sessions opened, want 1", got)
	}

	// A different account is unaffected.
	if _, err := svc.Initiate(context.Background(), uuid.New(), item.ID); err != nil {
		t.Errorf("other account blocked: %v", err)
	}
}

func TestInitiateProviderDownReleasesHold(t *testing.T) {
	provider := kittest.NewProvider("whsec_test")
	item := testItem()
	holds := memorystore.NewReservationCache()
	defer holds.Close()
	svc, _ := newService(t, provider, item, memorystore.NewEntitlementStore(), holds)
	provider.Close() // provider unreachable from here on
	accountID := uuid.New()

	_, err := svc.Initiate(context.Background(), accountID, item.ID)
	if !errors.Is(err, payments.ErrProvider) {
		t.Fatalf("err = %v, want ErrProvider", err)
	}

	// The hold must not outlive the failed attempt.
	ok, err := holds.Acquire(context.Background(), accountID, item.ID, time.Hour)
	if err != nil || !ok {
		t.Errorf("hold leaked after provider failure: ok=%v err=%v", ok, err)
	}
}
