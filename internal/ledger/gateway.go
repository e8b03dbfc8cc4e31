package ledger

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/math"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashInOutRequest is the cashier's credit call. ID is the idempotency key;
// the cashier rejects a repeated ID with StatusDuplicate.
type CashInOutRequest struct {
	ID          string `json:"id"`
	ClientID    string `json:"client_id"`
	AssetID     string `json:"asset_id"`
	Amount      string `json:"amount"`
	AmountUnits int64  `json:"amount_units"`
	Accuracy    int    `json:"accuracy"`
}

type CashInOutResponse struct {
	Status        StatusCode `json:"status"`
	Message       string     `json:"message,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
}

// Cashier is the transport to the ledger. A nil response with a nil error
// is legal and is classified as Unrecognized.
type Cashier interface {
	CashInOut(ctx context.Context, req *CashInOutRequest) (*CashInOutResponse, error)
}

// Gateway performs idempotent credits and classifies their outcome.
type Gateway struct {
	cashier Cashier
}

func NewGateway(cashier Cashier) *Gateway {
	return &Gateway{cashier: cashier}
}

// Credit applies amount of asset to beneficiaryID under key. The returned
// error is non-nil only when the transport failed and no outcome is known.
func (g *Gateway) Credit(
	ctx context.Context,
	key uuid.UUID,
	beneficiaryID string,
	asset catalog.Asset,
	amount decimal.Decimal,
) (Outcome, error) {
	units, err := math.ToFixedPoint(amount, asset.Accuracy)
	if err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}

	resp, err := g.cashier.CashInOut(ctx, &CashInOutRequest{
		ID:          key.String(),
		ClientID:    beneficiaryID,
		AssetID:     asset.ID,
		Amount:      amount.StringFixed(int32(asset.Accuracy)),
		AmountUnits: units,
		Accuracy:    asset.Accuracy,
	})
	if err != nil {
		return nil, fmt.Errorf("cash in %s: %w", key, err)
	}

	return Classify(resp), nil
}

// Classify maps a cashier response onto an Outcome.
func Classify(resp *CashInOutResponse) Outcome {
	if resp == nil {
		return Unrecognized{Code: -1, Message: "ledger response is null"}
	}

	switch resp.Status {
	case StatusOK:
		return Accepted{TransactionID: resp.TransactionID}
	case StatusDuplicate:
		return AlreadyApplied{TransactionID: resp.TransactionID}
	case StatusBadRequest,
		StatusLowBalance,
		StatusDisabledAsset,
		StatusUnknownAsset,
		StatusInvalidVolumeAccuracy,
		StatusRuntime:
		return Rejected{Code: resp.Status, Reason: resp.Message}
	default:
		return Unrecognized{Code: resp.Status, Message: resp.Message}
	}
}
