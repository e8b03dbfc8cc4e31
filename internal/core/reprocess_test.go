package core_test

import (
	"DepositsDetector/internal/core"
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/ledger"
	"DepositsDetector/internal/persistence"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newReprocessor(feed core.Feed, lg *fakeLedger, bus *fakeBus) *core.Reprocessor {
	keys := core.NewKeyRegistry(16, persistence.NewMemoryStore(), nil)
	proc := core.NewProcessor(keys, lg, bus, zerolog.Nop(), nil)
	return core.NewReprocessor(&staticCatalog{assets: testAssets}, feed, proc, zerolog.Nop(), nil)
}

func TestReprocessor_Results(t *testing.T) {
	tests := []struct {
		name   string
		cycle  feedCycle
		want   core.ReprocessResult
		events int
	}{
		{
			name:  "no update",
			cycle: feedCycle{},
			want:  core.ReprocessNoUpdate,
		},
		{
			name: "ambiguous",
			cycle: feedCycle{batches: [][]event.DepositUpdate{
				{userUpdate(1, 10, 1, "1", "u"), userUpdate(2, 10, 1, "1", "u")},
			}},
			want: core.ReprocessAmbiguous,
		},
		{
			name:  "empty first batch",
			cycle: feedCycle{batches: [][]event.DepositUpdate{{}}},
			want:  core.ReprocessAmbiguous,
		},
		{
			name:   "processed",
			cycle:  feedCycle{batches: [][]event.DepositUpdate{{userUpdate(1, 10, 1, "1", "u")}}},
			want:   core.ReprocessProcessed,
			events: 1,
		},
		{
			name:  "broker",
			cycle: feedCycle{batches: [][]event.DepositUpdate{{brokerUpdate(1, 10)}}},
			want:  core.ReprocessNotProcessed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &scriptedFeed{cycles: []feedCycle{tt.cycle}}
			bus := &fakeBus{}
			r := newReprocessor(feed, &fakeLedger{}, bus)

			got, err := r.Reprocess(context.Background(), testAccount, 10)
			if err != nil {
				t.Fatalf("reprocess: %v", err)
			}
			if got != tt.want {
				t.Errorf("result: got %q, want %q", got, tt.want)
			}
			if n := len(bus.Events()); n != tt.events {
				t.Errorf("events: got %d, want %d", n, tt.events)
			}

			req := feed.Requests()[0]
			if req.DepositID == nil || *req.DepositID != 10 {
				t.Errorf("search must be narrowed to the deposit, got %v", req.DepositID)
			}
			if req.Cursor != nil {
				t.Errorf("search must not carry a cursor, got %d", *req.Cursor)
			}
		})
	}
}

func TestReprocessor_OnlyFirstBatchCounts(t *testing.T) {
	feed := &scriptedFeed{cycles: []feedCycle{{batches: [][]event.DepositUpdate{
		{userUpdate(1, 10, 1, "1", "u")},
		{userUpdate(2, 10, 1, "1", "u")},
	}}}}
	lg := &fakeLedger{}
	r := newReprocessor(feed, lg, &fakeBus{})

	got, err := r.Reprocess(context.Background(), testAccount, 10)
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if got != core.ReprocessProcessed {
		t.Errorf("result: got %q, want processed", got)
	}
	if n := len(lg.Calls()); n != 1 {
		t.Errorf("ledger calls: got %d, want 1", n)
	}
}

func TestReprocessor_PipelineErrorIsReturned(t *testing.T) {
	feed := &scriptedFeed{cycles: []feedCycle{{batches: [][]event.DepositUpdate{{userUpdate(1, 10, 1, "1", "u")}}}}}
	lg := &fakeLedger{outcomes: map[string]ledger.Outcome{"u": ledger.Rejected{Code: ledger.StatusRuntime}}}
	r := newReprocessor(feed, lg, &fakeBus{})

	got, err := r.Reprocess(context.Background(), testAccount, 10)
	if !errors.Is(err, ledger.ErrCreditRejected) {
		t.Fatalf("expected rejection error, got %v", err)
	}
	if got != core.ReprocessNotProcessed {
		t.Errorf("result: got %q, want not processed", got)
	}
}

func TestReprocessor_FeedError(t *testing.T) {
	boom := errors.New("feed down")
	feed := &scriptedFeed{cycles: []feedCycle{{err: boom}}}
	r := newReprocessor(feed, &fakeLedger{}, &fakeBus{})

	if _, err := r.Reprocess(context.Background(), testAccount, 10); !errors.Is(err, boom) {
		t.Fatalf("expected feed error, got %v", err)
	}
}
