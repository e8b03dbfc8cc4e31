package event

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashinCompletedSubject is the bounded-context subject completion events
// are announced on unless overridden by configuration.
const CashinCompletedSubject = "deposits.events.cashin-completed"

// CompletionEvent announces a successful (or deduplicated) ledger credit.
// OperationID is the deposit's idempotency key so consumers can dedup.
type CompletionEvent struct {
	OperationID     uuid.UUID       `json:"operation_id"`
	ClientID        string          `json:"client_id"`
	AssetID         string          `json:"asset_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	WalletID        *string         `json:"wallet_id,omitempty"`
}
