package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"paywatch/internal/cache"
	"paywatch/internal/notify"
	"paywatch/internal/parse"
	"paywatch/internal/record"
	"paywatch/internal/source"
	"paywatch/internal/storage"
)

type fakeSource struct {
	bodies map[string]string
	order  []string
}

func (f *fakeSource) ListCandidates(ctx context.Context, window source.Window) []source.MessageRef {
	refs := make([]source.MessageRef, 0, len(f.order))
	for _, id := range f.order {
		refs = append(refs, source.MessageRef{ID: id})
	}
	return refs
}

func (f *fakeSource) FetchBody(ctx context.Context, id string) (string, bool) {
	body, ok := f.bodies[id]
	return body, ok
}

type fakeStore struct {
	rows     map[string]storage.PaymentRecord
	nextID   int64
	failSeen map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]storage.PaymentRecord), failSeen: make(map[string]error)}
}

func (f *fakeStore) HasSeen(ctx context.Context, fingerprint string) (bool, error) {
	if err := f.failSeen[fingerprint]; err != nil {
		return false, err
	}
	_, ok := f.rows[fingerprint]
	return ok, nil
}

func (f *fakeStore) Record(ctx context.Context, payment record.Payment) (storage.PaymentRecord, error) {
	if _, ok := f.rows[payment.Fingerprint]; ok {
		return storage.PaymentRecord{}, storage.ErrDuplicatePayment
	}
	f.nextID++
	rec := storage.PaymentRecord{
		ID:             f.nextID,
		Fingerprint:    payment.Fingerprint,
		Provider:       payment.Provider,
		Sender:         payment.Sender,
		Amount:         payment.Amount,
		DisplayMessage: payment.DisplayMessage,
	}
	f.rows[payment.Fingerprint] = rec
	return rec, nil
}

// racingStore makes the row appear between the dedup lookup and the
// insert, as a concurrent writer would.
type racingStore struct {
	*fakeStore
	racing record.Payment
}

func (r *racingStore) HasSeen(ctx context.Context, fingerprint string) (bool, error) {
	seen, err := r.fakeStore.HasSeen(ctx, fingerprint)
	if err == nil && !seen && fingerprint == r.racing.Fingerprint {
		r.fakeStore.Record(ctx, r.racing)
	}
	return seen, err
}

type fakeNotifier struct {
	delivered []string
	failAll   bool
}

func (f *fakeNotifier) Deliver(ctx context.Context, message string) error {
	if f.failAll {
		return errors.New("channel unavailable")
	}
	f.delivered = append(f.delivered, message)
	return nil
}

const (
	zelleBody  = "You received $45.00 from John Doe via Zelle on February 3, 2024 1:14 PM."
	venmoBody  = "John Smith paid you $27.50 on February 4, 2024 9:32 AM."
	noiseBody  = "Your package has shipped and will arrive Thursday."
	orphanBody = "Cash App: Dana sent you money."
)

func mustBuildFromBody(body string) record.Payment {
	c, ok := parse.Classify(body)
	if !ok {
		panic("body not claimed by any provider: " + body)
	}
	return record.Build(c)
}

func newService(src source.MessageSource, store storage.PaymentStore, notifier notify.Notifier) *Service {
	return New(nil, src, store, cache.New(), notifier, Options{}, zerolog.Nop())
}

func TestImportNewPayments(t *testing.T) {
	src := &fakeSource{
		order: []string{"m1", "m2", "m3"},
		bodies: map[string]string{
			"m1": zelleBody,
			"m2": noiseBody,
			"m3": venmoBody,
		},
	}
	store := newFakeStore()

	result := newService(src, store, nil).ImportNewPayments(context.Background())

	if len(result.New) != 2 {
		t.Fatalf("expected 2 new payments, got %d", len(result.New))
	}
	if result.NoProviderMatch != 1 {
		t.Fatalf("expected 1 unclaimed message, got %d", result.NoProviderMatch)
	}
	if result.New[0].Provider != parse.ProviderZelle || result.New[1].Provider != parse.ProviderVenmo {
		t.Fatalf("expected batch order preserved, got %s then %s", result.New[0].Provider, result.New[1].Provider)
	}
}

func TestSecondRunYieldsNothingNew(t *testing.T) {
	src := &fakeSource{
		order:  []string{"m1", "m2"},
		bodies: map[string]string{"m1": zelleBody, "m2": venmoBody},
	}
	store := newFakeStore()

	if got := newService(src, store, nil).ImportNewPayments(context.Background()); len(got.New) != 2 {
		t.Fatalf("first run: expected 2 new, got %d", len(got.New))
	}

	// A fresh process: empty in-memory cache, same persistent store.
	result := newService(src, store, nil).ImportNewPayments(context.Background())

	if len(result.New) != 0 {
		t.Fatalf("second run must record nothing new, got %d", len(result.New))
	}
	if result.Duplicates != 2 {
		t.Fatalf("expected 2 duplicates, got %d", result.Duplicates)
	}
}

func TestCacheShortCircuitsWithinProcess(t *testing.T) {
	src := &fakeSource{
		order:  []string{"m1", "m1-resend"},
		bodies: map[string]string{"m1": zelleBody, "m1-resend": zelleBody},
	}
	store := newFakeStore()

	result := newService(src, store, nil).ImportNewPayments(context.Background())

	if len(result.New) != 1 {
		t.Fatalf("expected 1 new payment, got %d", len(result.New))
	}
	if result.Duplicates != 1 {
		t.Fatalf("expected the resend counted as duplicate, got %d", result.Duplicates)
	}
}

func TestStoreFailureSkipsMessageNotBatch(t *testing.T) {
	src := &fakeSource{
		order:  []string{"m1", "m2"},
		bodies: map[string]string{"m1": zelleBody, "m2": venmoBody},
	}
	store := newFakeStore()
	store.failSeen[mustBuildFromBody(zelleBody).Fingerprint] = errors.New("connection refused")

	result := newService(src, store, nil).ImportNewPayments(context.Background())

	if result.StoreErrors != 1 {
		t.Fatalf("expected 1 store error, got %d", result.StoreErrors)
	}
	if len(result.New) != 1 || result.New[0].Provider != parse.ProviderVenmo {
		t.Fatalf("remaining messages must still be processed, got %+v", result.New)
	}
}

func TestInsertRaceCountsAsDuplicate(t *testing.T) {
	src := &fakeSource{
		order:  []string{"m1"},
		bodies: map[string]string{"m1": zelleBody},
	}
	raced := &racingStore{
		fakeStore: newFakeStore(),
		racing:    mustBuildFromBody(zelleBody),
	}

	result := newService(src, raced, nil).ImportNewPayments(context.Background())

	if result.Duplicates != 1 {
		t.Fatalf("expected insert race counted as duplicate, got %d", result.Duplicates)
	}
	if len(result.New) != 0 {
		t.Fatalf("raced insert must not be reported as new, got %d", len(result.New))
	}
}

func TestCycleDeliversInOrder(t *testing.T) {
	src := &fakeSource{
		order:  []string{"m1", "m2"},
		bodies: map[string]string{"m1": zelleBody, "m2": venmoBody},
	}
	notifier := &fakeNotifier{}

	svc := newService(src, newFakeStore(), notifier)
	if err := svc.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle returned error: %v", err)
	}

	if len(notifier.delivered) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(notifier.delivered))
	}
	if notifier.delivered[0] != mustBuildFromBody(zelleBody).DisplayMessage ||
		notifier.delivered[1] != mustBuildFromBody(venmoBody).DisplayMessage {
		t.Fatal("notices must be delivered in batch order with the canonical display text")
	}
}

func TestDeliveryFailureLeavesRecordPersisted(t *testing.T) {
	src := &fakeSource{
		order:  []string{"m1"},
		bodies: map[string]string{"m1": orphanBody},
	}
	store := newFakeStore()

	svc := newService(src, store, &fakeNotifier{failAll: true})
	if err := svc.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle returned error: %v", err)
	}

	seen, err := store.HasSeen(context.Background(), mustBuildFromBody(orphanBody).Fingerprint)
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("a failed delivery must not roll back the stored record")
	}
}

func TestRunWithoutSchedulerFails(t *testing.T) {
	svc := newService(&fakeSource{}, newFakeStore(), nil)
	if err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error when no scheduler is configured")
	}
}
