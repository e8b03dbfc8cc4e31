package core

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/ledger"
	"DepositsDetector/internal/observability"
	"DepositsDetector/internal/validator"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Processor runs the per-item pipeline: validate, resolve the idempotency
// key, credit the ledger, announce the completion event. The ingestion loop
// and the reprocess surface share it.
type Processor struct {
	keys    *KeyRegistry
	ledger  Crediter
	bus     EventBus
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewProcessor(
	keys *KeyRegistry,
	crediter Crediter,
	bus EventBus,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Processor {
	return &Processor{
		keys:    keys,
		ledger:  crediter,
		bus:     bus,
		logger:  logger,
		metrics: metrics,
	}
}

// Process handles one update against a catalog snapshot.
// It returns (true, nil) once the credit is applied (or was already applied)
// and the event is published, and (false, nil) for a broker-kind skip.
// Any error means the item must be retried.
func (p *Processor) Process(ctx context.Context, assets catalog.Assets, u event.DepositUpdate) (bool, error) {
	start := time.Now()
	processed, err := p.process(ctx, assets, u)

	if p.metrics != nil {
		result := "processed"
		switch {
		case err != nil:
			result = "failed"
		case !processed:
			result = "skipped"
		}
		p.metrics.ItemsProcessed.WithLabelValues(result).Inc()
		p.metrics.ItemDuration.Observe(time.Since(start).Seconds())
	}
	return processed, err
}

func (p *Processor) process(ctx context.Context, assets catalog.Assets, u event.DepositUpdate) (bool, error) {
	log := p.logger.With().
		Int64(observability.FieldDepositID, u.DepositID).
		Int64(observability.FieldDepositUpdateID, u.UpdateID).
		Str("transaction_id", u.TransactionHash()).
		Logger()

	instr, err := validator.Normalize(&u, assets)
	if errors.Is(err, validator.ErrSkippedKind) {
		log.Info().
			Int64("external_asset_id", u.ExternalAssetID).
			Str("asset_symbol", u.AssetSymbol).
			Msg("broker deposit skipped")
		return false, nil
	}
	if err != nil {
		log.Warn().Err(err).Int64("external_asset_id", u.ExternalAssetID).Msg("deposit rejected by validation")
		return false, err
	}

	key, err := p.keys.KeyFor(ctx, u.DepositID)
	if err != nil {
		return false, err
	}
	instr.IdempotencyKey = key

	log = log.With().
		Str(observability.FieldOperationID, key.String()).
		Str("asset", instr.Asset.Symbol).
		Logger()

	log.Info().
		Str("amount", u.Amount).
		Str("credit_amount", instr.Amount.String()).
		Str("beneficiary_id", instr.BeneficiaryID).
		Msg("deposit detected")

	outcome, err := p.ledger.Credit(ctx, key, instr.BeneficiaryID, instr.Asset, instr.Amount)
	if err != nil {
		return false, err
	}
	if p.metrics != nil {
		p.metrics.Credits.WithLabelValues(outcome.String()).Inc()
	}

	if err := outcome.Visit(&creditLogger{log: log}); err != nil {
		return false, err
	}

	ev := &event.CompletionEvent{
		OperationID:     key,
		ClientID:        instr.ClientID,
		AssetID:         instr.Asset.ID,
		Amount:          instr.Amount,
		TransactionHash: u.TransactionHash(),
		WalletID:        instr.WalletID,
	}
	if err := p.bus.PublishCashinCompleted(ctx, ev); err != nil {
		if p.metrics != nil {
			p.metrics.EventsPublished.WithLabelValues("failed").Inc()
		}
		return false, fmt.Errorf("publish completion for deposit %d: %w", u.DepositID, err)
	}
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues("published").Inc()
	}

	log.Info().Msg("deposit processed")
	return true, nil
}

// creditLogger logs each ledger outcome and converts failures to errors.
type creditLogger struct {
	log zerolog.Logger
}

func (c *creditLogger) OnAccepted(o ledger.Accepted) error {
	c.log.Debug().Str("ledger_transaction_id", o.TransactionID).Msg("credit accepted")
	return nil
}

func (c *creditLogger) OnAlreadyApplied(o ledger.AlreadyApplied) error {
	c.log.Info().Str("ledger_transaction_id", o.TransactionID).Msg("deduplicated by the ledger")
	return nil
}

func (c *creditLogger) OnRejected(o ledger.Rejected) error {
	err := ledger.Err(o)
	c.log.Warn().Err(err).Msg("ledger rejected credit")
	return err
}

func (c *creditLogger) OnUnrecognized(o ledger.Unrecognized) error {
	err := ledger.Err(o)
	c.log.Warn().Err(err).Msg("unexpected ledger response")
	return err
}
