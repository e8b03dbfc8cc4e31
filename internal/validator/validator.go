package validator

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/math"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrSkippedKind marks a broker-internal transfer. Not a failure: the
	// caller treats it as a no-op success and still advances the watermark.
	ErrSkippedKind = errors.New("deposit kind is not creditable")

	ErrMissingBeneficiary = errors.New("beneficiary reference is empty")
	ErrUnknownAsset       = errors.New("asset not found in catalog")
	ErrInvalidAmount      = errors.New("invalid deposit amount")
)

// CreditInstruction is a normalized, ledger-ready credit derived from a
// DepositUpdate. It is never persisted.
type CreditInstruction struct {
	IdempotencyKey uuid.UUID // filled in by the caller once the key is resolved
	Asset          catalog.Asset
	Amount         decimal.Decimal // truncated to Asset.Accuracy
	BeneficiaryID  string          // account credited by the ledger
	ClientID       string          // owner identity announced downstream
	WalletID       *string         // set only when the beneficiary differs from the owner
}

// Normalize validates a raw update against the catalog snapshot.
func Normalize(u *event.DepositUpdate, assets catalog.Assets) (*CreditInstruction, error) {
	if u.Kind == event.DepositKindBroker {
		return nil, ErrSkippedKind
	}

	owner := strings.TrimSpace(u.OwnerNativeID)
	if owner == "" {
		return nil, fmt.Errorf("deposit %d: %w", u.DepositID, ErrMissingBeneficiary)
	}

	asset, ok := assets.FindByExternalID(u.ExternalAssetID)
	if !ok {
		return nil, fmt.Errorf("deposit %d: external asset %d: %w", u.DepositID, u.ExternalAssetID, ErrUnknownAsset)
	}

	raw, err := math.ParseAmount(u.Amount)
	if err != nil {
		return nil, fmt.Errorf("deposit %d: %w: %v", u.DepositID, ErrInvalidAmount, err)
	}
	if raw.Sign() <= 0 {
		return nil, fmt.Errorf("deposit %d: %w: non-positive amount %s", u.DepositID, ErrInvalidAmount, raw)
	}
	amount, err := math.Truncate(raw, asset.Accuracy)
	if err != nil {
		return nil, fmt.Errorf("deposit %d: %w: %v", u.DepositID, ErrInvalidAmount, err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("deposit %d: %w: %s truncates to zero at accuracy %d", u.DepositID, ErrInvalidAmount, raw, asset.Accuracy)
	}

	beneficiary, wallet := resolveBeneficiary(u.ReferenceID, owner)

	return &CreditInstruction{
		Asset:         asset,
		Amount:        amount,
		BeneficiaryID: beneficiary,
		ClientID:      owner,
		WalletID:      wallet,
	}, nil
}

// resolveBeneficiary prefers an explicit reference distinct from the owner.
func resolveBeneficiary(reference *string, owner string) (string, *string) {
	if reference == nil {
		return owner, nil
	}
	ref := strings.TrimSpace(*reference)
	if ref == "" || ref == owner {
		return owner, nil
	}
	return ref, &ref
}
