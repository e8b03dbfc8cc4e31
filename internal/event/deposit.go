// internal/event/deposit.go
package event

import (
	"fmt"
	"strings"
)

// DepositKind distinguishes user deposits from broker-internal transfers.
type DepositKind int32

const (
	DepositKindUnknown DepositKind = iota
	DepositKindUser
	DepositKindBroker
)

func (k DepositKind) String() string {
	switch k {
	case DepositKindUser:
		return "user"
	case DepositKindBroker:
		return "broker"
	default:
		return "unknown"
	}
}

// ParseDepositKind maps the upstream wire value onto a DepositKind.
func ParseDepositKind(s string) (DepositKind, error) {
	switch strings.ToLower(s) {
	case "user":
		return DepositKindUser, nil
	case "broker":
		return DepositKindBroker, nil
	default:
		return DepositKindUnknown, fmt.Errorf("unknown deposit kind: %q", s)
	}
}

// DepositState is the upstream lifecycle state an update reports.
type DepositState int32

const (
	DepositStateUnknown DepositState = iota
	DepositStateProcessing
	DepositStateConfirmed
	DepositStateCompleted
	DepositStateFailed
	DepositStateCancelled
)

func (s DepositState) String() string {
	switch s {
	case DepositStateProcessing:
		return "processing"
	case DepositStateConfirmed:
		return "confirmed"
	case DepositStateCompleted:
		return "completed"
	case DepositStateFailed:
		return "failed"
	case DepositStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseDepositState maps the upstream wire value onto a DepositState.
func ParseDepositState(s string) (DepositState, error) {
	switch strings.ToLower(s) {
	case "processing":
		return DepositStateProcessing, nil
	case "confirmed":
		return DepositStateConfirmed, nil
	case "completed":
		return DepositStateCompleted, nil
	case "failed":
		return DepositStateFailed, nil
	case "cancelled":
		return DepositStateCancelled, nil
	default:
		return DepositStateUnknown, fmt.Errorf("unknown deposit state: %q", s)
	}
}

// DepositUpdate is a single reported state change of an external deposit.
// UpdateID is monotonically increasing per broker account and is the
// watermark unit; DepositID is stable across all updates of one deposit.
type DepositUpdate struct {
	UpdateID        int64
	DepositID       int64
	Kind            DepositKind
	State           DepositState
	ExternalAssetID int64
	AssetSymbol     string
	Amount          string // exact decimal string, invariant format
	ReferenceID     *string
	OwnerNativeID   string
	TransactionID   *string
}

// TransactionHash returns the on-chain transaction id or "" when unknown.
func (u *DepositUpdate) TransactionHash() string {
	if u.TransactionID == nil {
		return ""
	}
	return *u.TransactionID
}

// SubscribeRequest selects the updates an UpdateFeed should stream.
// A nil Cursor streams from the beginning; a non-nil DepositID narrows the
// search to the updates of a single deposit.
type SubscribeRequest struct {
	StreamID        string
	BrokerAccountID int64
	Cursor          *int64
	DepositID       *int64
	States          []DepositState
}
