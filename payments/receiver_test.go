package payments_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/purchasekit/entitlements"
	"github.com/open-rails/purchasekit/payments"
	memorystore "github.com/open-rails/purchasekit/storage/memory"
	kittest "github.com/open-rails/purchasekit/testing"
)

const secret = "whsec_test"

func newReceiver(t *testing.T, store entitlements.Store, opts ...payments.ReceiverOpt) *payments.Receiver {
	t.Helper()
	return payments.NewReceiver(secret, store, opts...)
}

func TestReceiveRejectsBadSignatureBeforeStoreAccess(t *testing.T) {
	provider := kittest.NewProvider(secret)
	defer provider.Close()
	store := &countingStore{Store: memorystore.NewEntitlementStore()}
	rcv := newReceiver(t, store)

	body, _ := provider.CompletedCheckout("cs_1", uuid.New(), uuid.New())

	_, err := rcv.Receive(context.Background(), body, "t=1,v1=deadbeef")
	if !errors.Is(err, payments.ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
	if store.calls != 0 {
		t.Errorf("store touched %d times before signature check", store.calls)
	}
}

func TestReceiveIgnoresIrrelevantKinds(t *testing.T) {
	provider := kittest.NewProvider(secret)
	defer provider.Close()
	store := memorystore.NewEntitlementStore()
	rcv := newReceiver(t, store)

	body := provider.Event("charge.refunded", "cs_1", nil)
	outcome, err := rcv.Receive(context.Background(), body, provider.Signature(body))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if outcome != payments.OutcomeIgnored {
		t.Fatalf("outcome = %v, want ignored", outcome)
	}
}

func TestReceiveRejectsMissingMetadata(t *testing.T) {
	provider := kittest.NewProvider(secret)
	defer provider.Close()
	rcv := newReceiver(t, memorystore.NewEntitlementStore())

	cases := map[string]map[string]string{
		"no metadata":  nil,
		"no item":      {"account_id": uuid.NewString()},
		"bad account":  {"account_id": "not-a-uuid", "item_id": uuid.NewString()},
		"empty values": {"account_id": "", "item_id": ""},
	}
	for name, md := range cases {
		body := provider.Event("checkout.session.completed", "cs_1", md)
		_, err := rcv.Receive(context.Background(), body, provider.Signature(body))
		if !errors.Is(err, payments.ErrMissingMetadata) {
			t.Errorf("%s: err = %v, want ErrMissingMetadata", name, err)
		}
	}
}

func TestReceiveFulfillsOnceThenAcksDuplicates(t *testing.T) {
	provider := kittest.NewProvider(secret)
	defer provider.Close()
	store := memorystore.NewEntitlementStore()
	sessions := memorystore.NewSessionLog()
	rcv := newReceiver(t, store, payments.WithSessionLog(sessions))

	accountID, itemID := uuid.New(), uuid.New()
	_ = sessions.Insert(context.Background(), entitlements.CheckoutSession{
		ID: "cs_1", AccountID: accountID, ItemID: itemID, AmountCents: 500,
	})
	body, sig := provider.CompletedCheckout("cs_1", accountID, itemID)

	outcome, err := rcv.Receive(context.Background(), body, sig)
	if err != nil || outcome != payments.OutcomeFulfilled {
		t.Fatalf("first delivery: outcome=%v err=%v", outcome, err)
	}
	// Network retry: same body, same signature.
	outcome, err = rcv.Receive(context.Background(), body, sig)
	if err != nil || outcome != payments.OutcomeDuplicate {
		t.Fatalf("redelivery: outcome=%v err=%v", outcome, err)
	}

	e, ok, err := store.FindBySession(context.Background(), "cs_1")
	if err != nil || !ok {
		t.Fatalf("entitlement missing after fulfillment: ok=%v err=%v", ok, err)
	}
	if e.AccountID != accountID || e.ItemID != itemID {
		t.Errorf("entitlement row = %+v", e)
	}
	s, _, _ := sessions.Get(context.Background(), "cs_1")
	if s.Status != entitlements.SessionCompleted {
		t.Errorf("session status = %q, want completed", s.Status)
	}
}

func TestReceiveConcurrentDuplicatesCreateOneRow(t *testing.T) {
	provider := kittest.NewProvider(secret)
	defer provider.Close()
	store := memorystore.NewEntitlementStore()
	rcv := newReceiver(t, store)

	accountID, itemID := uuid.New(), uuid.New()
	body, sig := provider.CompletedCheckout("cs_parallel", accountID, itemID)

	const deliveries = 16
	outcomes := make([]payments.Outcome, deliveries)
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = rcv.Receive(context.Background(), body, sig)
		}(i)
	}
	wg.Wait()

	fulfilled := 0
	for i := 0; i < deliveries; i++ {
		if errs[i] != nil {
			t.Fatalf("delivery %d: %v", i, errs[i])
		}
		if outcomes[i] == payments.OutcomeFulfilled {
			fulfilled++
		}
	}
	if fulfilled != 1 {
		t.Errorf("fulfilled %d deliveries, want exactly 1", fulfilled)
	}
	rows, err := store.ListByAccount(context.Background(), accountID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("%d entitlement rows for session, want 1", len(rows))
	}
}

func TestReceiveStoreFailureIsTransient(t *testing.T) {
	provider := kittest.NewProvider(secret)
	defer provider.Close()
	rcv := newReceiver(t, failingStore{})

	body, sig := provider.CompletedCheckout("cs_1", uuid.New(), uuid.New())
	_, err := rcv.Receive(context.Background(), body, sig)
	if err == nil {
		t.Fatal("store failure swallowed")
	}
	// Must not look like a permanent reject, or the provider stops retrying.
	if errors.Is(err, payments.ErrBadSignature) || errors.Is(err, payments.ErrMissingMetadata) || errors.Is(err, payments.ErrMalformedEvent) {
		t.Fatalf("store failure classified as permanent reject: %v", err)
	}
}

func TestReceiveReleasesReservation(t *testing.T) {
	provider := kittest.NewProvider(secret)
	defer provider.Close()
	holds := memorystore.NewReservationCache()
	defer holds.Close()
	rcv := newReceiver(t, memorystore.NewEntitlementStore(), payments.WithReservations(holds))

	accountID, itemID := uuid.New(), uuid.New()
	if ok, _ := holds.Acquire(context.Background(), accountID, itemID, time.Hour); !ok {
		t.Fatal("could not take hold")
	}

	body, sig := provider.CompletedCheckout("cs_1", accountID, itemID)
	if _, err := rcv.Receive(context.Background(), body, sig); err != nil {
		t.Fatalf("receive: %v", err)
	}

	ok, err := holds.Acquire(context.Background(), accountID, itemID, time.Hour)
	if err != nil || !ok {
		t.Errorf("hold not released after fulfillment: ok=%v err=%v", ok, err)
	}
}

// countingStore counts store calls to prove the signature gate runs first.
type countingStore struct {
	entitlements.Store
	calls int
}

func (c *countingStore) InsertIfAbsent(ctx context.Context, e entitlements.Entitlement) (entitlements.InsertResult, error) {
	c.calls++
	return c.Store.InsertIfAbsent(ctx, e)
}

func (c *countingStore) FindBySession(ctx context.Context, sid string) (entitlements.Entitlement, bool, error) {
	c.calls++
	return c.Store.FindBySession(ctx, sid)
}

type failingStore struct{}

func (failingStore) Exists(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return false, errors.New("storage unavailable")
}

func (failingStore) FindBySession(context.Context, string) (entitlements.Entitlement, bool, error) {
	return entitlements.Entitlement{}, false, errors.New("storage unavailable")
}

func (failingStore) InsertIfAbsent(context.Context, entitlements.Entitlement) (entitlements.InsertResult, error) {
	return entitlements.InsertResult{}, errors.New("storage unavailable")
}

func (failingStore) ListByAccount(context.Context, uuid.UUID) ([]entitlements.Entitlement, error) {
	return nil, errors.New("storage unavailable")
}
