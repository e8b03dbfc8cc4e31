package ingestion

import (
	"DepositsDetector/internal/event"
	"fmt"
)

// GetUpdatesRequest is the wire form of event.SubscribeRequest.
type GetUpdatesRequest struct {
	StreamID        string   `json:"stream_id"`
	BrokerAccountID int64    `json:"broker_account_id"`
	Cursor          *int64   `json:"cursor,omitempty"`
	DepositID       *int64   `json:"deposit_id,omitempty"`
	States          []string `json:"states,omitempty"`
}

// DepositUpdatesBatch is one streamed message of GetUpdates.
type DepositUpdatesBatch struct {
	Items []DepositUpdateItem `json:"items"`
}

// DepositUpdateItem is the wire form of event.DepositUpdate.
type DepositUpdateItem struct {
	DepositUpdateID int64   `json:"deposit_update_id"`
	DepositID       int64   `json:"deposit_id"`
	DepositType     string  `json:"deposit_type"`
	State           string  `json:"state"`
	AssetID         int64   `json:"asset_id"`
	AssetSymbol     string  `json:"asset_symbol"`
	Amount          string  `json:"amount"`
	ReferenceID     *string `json:"reference_id,omitempty"`
	UserNativeID    string  `json:"user_native_id"`
	TransactionID   *string `json:"transaction_id,omitempty"`
}

func requestToWire(req event.SubscribeRequest) *GetUpdatesRequest {
	states := make([]string, 0, len(req.States))
	for _, s := range req.States {
		states = append(states, s.String())
	}
	return &GetUpdatesRequest{
		StreamID:        req.StreamID,
		BrokerAccountID: req.BrokerAccountID,
		Cursor:          req.Cursor,
		DepositID:       req.DepositID,
		States:          states,
	}
}

func batchFromWire(b *DepositUpdatesBatch) ([]event.DepositUpdate, error) {
	updates := make([]event.DepositUpdate, 0, len(b.Items))
	for _, item := range b.Items {
		kind, err := event.ParseDepositKind(item.DepositType)
		if err != nil {
			return nil, fmt.Errorf("deposit update %d: %w", item.DepositUpdateID, err)
		}
		state, err := event.ParseDepositState(item.State)
		if err != nil {
			return nil, fmt.Errorf("deposit update %d: %w", item.DepositUpdateID, err)
		}

		updates = append(updates, event.DepositUpdate{
			UpdateID:        item.DepositUpdateID,
			DepositID:       item.DepositID,
			Kind:            kind,
			State:           state,
			ExternalAssetID: item.AssetID,
			AssetSymbol:     item.AssetSymbol,
			Amount:          item.Amount,
			ReferenceID:     item.ReferenceID,
			OwnerNativeID:   item.UserNativeID,
			TransactionID:   item.TransactionID,
		})
	}
	return updates, nil
}
