package core_test

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/core"
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/ledger"
	"DepositsDetector/internal/persistence"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var testAssets = catalog.Assets{
	{ID: "USD", ExternalID: 1, Symbol: "USD", Accuracy: 2},
	{ID: "BTC", ExternalID: 2, Symbol: "BTC", Accuracy: 8},
}

type staticCatalog struct {
	assets catalog.Assets
	err    error
}

func (c *staticCatalog) ListAll(ctx context.Context, forceRefresh bool) (catalog.Assets, error) {
	return c.assets, c.err
}

type creditCall struct {
	Key           uuid.UUID
	BeneficiaryID string
	AssetID       string
	Amount        decimal.Decimal
}

// fakeLedger records credits and answers per deposit key, Accepted by default.
type fakeLedger struct {
	mu       sync.Mutex
	calls    []creditCall
	outcomes map[string]ledger.Outcome // by beneficiary
	err      error
}

func (f *fakeLedger) Credit(ctx context.Context, key uuid.UUID, beneficiaryID string, asset catalog.Asset, amount decimal.Decimal) (ledger.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, creditCall{Key: key, BeneficiaryID: beneficiaryID, AssetID: asset.ID, Amount: amount})
	if f.err != nil {
		return nil, f.err
	}
	if o, ok := f.outcomes[beneficiaryID]; ok {
		return o, nil
	}
	return ledger.Accepted{TransactionID: "tx-" + key.String()}, nil
}

func (f *fakeLedger) Calls() []creditCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]creditCall(nil), f.calls...)
}

type fakeBus struct {
	mu     sync.Mutex
	events []event.CompletionEvent
	err    error
}

func (b *fakeBus) PublishCashinCompleted(ctx context.Context, ev *event.CompletionEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.events = append(b.events, *ev)
	return nil
}

func (b *fakeBus) Events() []event.CompletionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]event.CompletionEvent(nil), b.events...)
}

// feedCycle scripts one Subscribe call: batches are delivered in order,
// then err is returned. block waits for cancellation instead.
type feedCycle struct {
	batches [][]event.DepositUpdate
	err     error
	block   bool
}

// scriptedFeed replays cycles and cancels the loop once the script is used up.
type scriptedFeed struct {
	mu     sync.Mutex
	cycles []feedCycle
	reqs   []event.SubscribeRequest
	cancel context.CancelFunc
}

func (f *scriptedFeed) Subscribe(ctx context.Context, req event.SubscribeRequest, handle func([]event.DepositUpdate) error) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	if len(f.cycles) == 0 {
		f.mu.Unlock()
		if f.cancel != nil {
			f.cancel()
		}
		<-ctx.Done()
		return ctx.Err()
	}
	c := f.cycles[0]
	f.cycles = f.cycles[1:]
	f.mu.Unlock()

	for _, b := range c.batches {
		if err := handle(b); err != nil {
			return err
		}
	}
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return c.err
}

func (f *scriptedFeed) Requests() []event.SubscribeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.SubscribeRequest(nil), f.reqs...)
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// harness wires a Loop against in-memory collaborators.
type harness struct {
	store   *persistence.MemoryStore
	ledger  *fakeLedger
	bus     *fakeBus
	feed    *scriptedFeed
	sleeper *recordingSleeper
	loop    *core.Loop
	ctx     context.Context
}

const testAccount = int64(42)

func newHarness(t *testing.T, cycles ...feedCycle) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		store:   persistence.NewMemoryStore(),
		ledger:  &fakeLedger{outcomes: make(map[string]ledger.Outcome)},
		bus:     &fakeBus{},
		feed:    &scriptedFeed{cycles: cycles, cancel: cancel},
		sleeper: &recordingSleeper{},
		ctx:     ctx,
	}

	keys := core.NewKeyRegistry(128, h.store, nil)
	proc := core.NewProcessor(keys, h.ledger, h.bus, zerolog.Nop(), nil)

	cfg := core.DefaultLoopConfig(testAccount)
	h.loop = core.NewLoop(cfg, h.store, &staticCatalog{assets: testAssets}, h.feed, proc, zerolog.Nop(), nil)
	h.loop.SetSleeper(h.sleeper.Sleep)
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(h.ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("loop returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func (h *harness) watermark(t *testing.T) (int64, bool) {
	t.Helper()
	c, ok, err := h.store.GetCursor(context.Background(), testAccount)
	if err != nil {
		t.Fatalf("get cursor: %v", err)
	}
	return c, ok
}

func userUpdate(updateID, depositID, externalAsset int64, amount, owner string) event.DepositUpdate {
	return event.DepositUpdate{
		UpdateID:        updateID,
		DepositID:       depositID,
		Kind:            event.DepositKindUser,
		State:           event.DepositStateConfirmed,
		ExternalAssetID: externalAsset,
		Amount:          amount,
		OwnerNativeID:   owner,
	}
}

func brokerUpdate(updateID, depositID int64) event.DepositUpdate {
	u := userUpdate(updateID, depositID, 1, "1", "broker")
	u.Kind = event.DepositKindBroker
	return u
}
