package core

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/observability"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReprocessResult is the operator-facing outcome of a reprocess request.
type ReprocessResult string

const (
	ReprocessNoUpdate     ReprocessResult = "no update found"
	ReprocessAmbiguous    ReprocessResult = "already processed"
	ReprocessProcessed    ReprocessResult = "processed"
	ReprocessNotProcessed ReprocessResult = "not processed"
)

var errFirstBatchTaken = errors.New("first batch taken")

// Reprocessor runs a single deposit through the Processor outside the
// ingestion loop. It never touches the watermark.
type Reprocessor struct {
	catalog   catalog.Catalog
	feed      Feed
	processor *Processor
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewReprocessor(
	assets catalog.Catalog,
	feed Feed,
	processor *Processor,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Reprocessor {
	return &Reprocessor{
		catalog:   assets,
		feed:      feed,
		processor: processor,
		logger:    logger,
		metrics:   metrics,
	}
}

// Reprocess searches the feed for the confirmed update of depositID and
// processes it when exactly one is found. Only the first streamed batch is
// considered. A pipeline failure is returned as an error.
func (r *Reprocessor) Reprocess(ctx context.Context, brokerAccountID, depositID int64) (ReprocessResult, error) {
	log := r.logger.With().
		Int64(observability.FieldAccountID, brokerAccountID).
		Int64(observability.FieldDepositID, depositID).
		Logger()
	log.Info().Msg("manual processing of the deposit is being started")

	result, err := r.reprocess(ctx, log, brokerAccountID, depositID)
	if r.metrics != nil {
		label := string(result)
		if err != nil {
			label = "error"
		}
		r.metrics.Reprocess.WithLabelValues(label).Inc()
	}
	return result, err
}

func (r *Reprocessor) reprocess(ctx context.Context, log zerolog.Logger, brokerAccountID, depositID int64) (ReprocessResult, error) {
	assets, err := r.catalog.ListAll(ctx, false)
	if err != nil {
		return ReprocessNotProcessed, fmt.Errorf("list assets: %w", err)
	}

	id := depositID
	req := event.SubscribeRequest{
		StreamID:        uuid.NewString(),
		BrokerAccountID: brokerAccountID,
		DepositID:       &id,
		States:          []event.DepositState{event.DepositStateConfirmed},
	}
	log.Info().Str("stream_id", req.StreamID).Msg("getting updates")

	var (
		first    []event.DepositUpdate
		received bool
	)
	err = r.feed.Subscribe(ctx, req, func(batch []event.DepositUpdate) error {
		first = batch
		received = true
		return errFirstBatchTaken
	})
	if err != nil && !errors.Is(err, errFirstBatchTaken) {
		return ReprocessNotProcessed, fmt.Errorf("search updates: %w", err)
	}

	if !received {
		log.Info().Msg("no updates found for the deposit")
		return ReprocessNoUpdate, nil
	}
	if len(first) != 1 {
		log.Info().Int("updates", len(first)).Msg("exactly one update is expected for the deposit")
		return ReprocessAmbiguous, nil
	}

	processed, err := r.processor.Process(ctx, assets, first[0])
	if err != nil {
		return ReprocessNotProcessed, err
	}
	if !processed {
		log.Info().Msg("deposit was not processed")
		return ReprocessNotProcessed, nil
	}

	log.Info().Msg("deposit was successfully processed")
	return ReprocessProcessed, nil
}
