package core

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/ledger"
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CursorStore persists the per-account watermark. ok is false when the
// account has never advanced.
type CursorStore interface {
	GetCursor(ctx context.Context, brokerAccountID int64) (cursor int64, ok bool, err error)
	SetCursor(ctx context.Context, brokerAccountID, cursor int64) error
}

// OperationIDStore durably binds a deposit to its idempotency key.
// GetOrCreateOperationID must be race-free: concurrent first callers all
// receive the single persisted key.
type OperationIDStore interface {
	GetOrCreateOperationID(ctx context.Context, depositID int64, candidate uuid.UUID) (uuid.UUID, error)
}

// Feed streams deposit updates. Subscribe calls handle once per received
// batch, in feed order, and returns nil when the stream is exhausted.
// A non-nil error from handle stops the stream and is returned as is.
type Feed interface {
	Subscribe(ctx context.Context, req event.SubscribeRequest, handle func([]event.DepositUpdate) error) error
}

// Crediter is the ledger credit surface; *ledger.Gateway implements it.
type Crediter interface {
	Credit(ctx context.Context, key uuid.UUID, beneficiaryID string, asset catalog.Asset, amount decimal.Decimal) (ledger.Outcome, error)
}

// EventBus announces completion events. At-least-once is sufficient.
type EventBus interface {
	PublishCashinCompleted(ctx context.Context, ev *event.CompletionEvent) error
}
