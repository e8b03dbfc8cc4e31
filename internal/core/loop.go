package core

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/event"
	"DepositsDetector/internal/ingestion"
	"DepositsDetector/internal/observability"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// errorEscalationThreshold is the consecutive-failure count from which
// cycle failures are logged at error level instead of warn.
const errorEscalationThreshold = 5

// LoopConfig configures one account's ingestion loop.
type LoopConfig struct {
	BrokerAccountID   int64
	Backoff           BackoffPolicy
	IdleDelay         time.Duration
	RateLimitCooldown time.Duration
	States            []event.DepositState
}

// DefaultLoopConfig returns the production timings for an account.
func DefaultLoopConfig(brokerAccountID int64) LoopConfig {
	return LoopConfig{
		BrokerAccountID:   brokerAccountID,
		Backoff:           DefaultBackoffPolicy(),
		IdleDelay:         5 * time.Second,
		RateLimitCooldown: time.Minute,
		States:            []event.DepositState{event.DepositStateConfirmed},
	}
}

// Loop drives continuous consumption of the deposit feed for one account.
//
// Each cycle re-reads the watermark from the CursorStore, subscribes strictly
// after it and pumps every update through the Processor. The watermark is
// persisted after each successful item and never before. An item failure
// aborts the cycle; the next cycle starts again from the durable watermark.
//
// Loop is not safe for concurrent use; run exactly one per account.
type Loop struct {
	cfg       LoopConfig
	cursors   CursorStore
	catalog   catalog.Catalog
	feed      Feed
	processor *Processor
	logger    zerolog.Logger
	metrics   *observability.Metrics

	sleep    func(ctx context.Context, d time.Duration) error
	failures int
}

func NewLoop(
	cfg LoopConfig,
	cursors CursorStore,
	assets catalog.Catalog,
	feed Feed,
	processor *Processor,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Loop {
	if len(cfg.States) == 0 {
		cfg.States = []event.DepositState{event.DepositStateConfirmed}
	}
	return &Loop{
		cfg:       cfg,
		cursors:   cursors,
		catalog:   assets,
		feed:      feed,
		processor: processor,
		logger:    observability.WithAccount(logger, cfg.BrokerAccountID),
		metrics:   metrics,
		sleep:     sleepContext,
	}
}

// SetSleeper overrides how the loop waits; used by tests.
func (l *Loop) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	l.sleep = sleep
}

// Failures returns the current consecutive-failure counter.
func (l *Loop) Failures() int {
	return l.failures
}

// Run blocks until ctx is cancelled. Cycle failures never terminate it.
// Cancellation is a clean shutdown and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info().Msg("ingestion loop started")
	defer l.logger.Info().Msg("ingestion loop stopped")

	for {
		err := l.cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		var wait time.Duration
		switch {
		case err == nil:
			l.failures = 0
			l.recordCycle("drained")
			wait = l.cfg.IdleDelay

		case errors.Is(err, ingestion.ErrRateLimited):
			l.recordCycle("rate_limited")
			if l.metrics != nil {
				l.metrics.RateLimited.WithLabelValues(l.accountLabel()).Inc()
			}
			wait = l.cfg.RateLimitCooldown
			l.logger.Warn().Err(err).Dur("cooldown", wait).Msg("feed rate limited")

		default:
			wait = l.cfg.Backoff.Delay(l.failures)
			l.failures++
			l.recordCycle("failed")
			if l.metrics != nil {
				l.metrics.BackoffDelay.Observe(wait.Seconds())
			}

			evt := l.logger.Warn()
			if l.failures >= errorEscalationThreshold {
				evt = l.logger.Error()
			}
			evt.Err(err).
				Int("consecutive_failures", l.failures).
				Dur("backoff", wait).
				Msg("ingestion cycle failed")
		}

		if l.metrics != nil {
			l.metrics.ConsecutiveFailures.WithLabelValues(l.accountLabel()).Set(float64(l.failures))
		}

		if err := l.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// cycle performs one Fetching/Draining pass. A nil return means the feed
// was exhausted with every item either skipped or processed.
func (l *Loop) cycle(ctx context.Context) error {
	assets, err := l.catalog.ListAll(ctx, false)
	if err != nil {
		return fmt.Errorf("list assets: %w", err)
	}

	cursor, ok, err := l.cursors.GetCursor(ctx, l.cfg.BrokerAccountID)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	req := event.SubscribeRequest{
		StreamID:        uuid.NewString(),
		BrokerAccountID: l.cfg.BrokerAccountID,
		States:          l.cfg.States,
	}
	if ok {
		c := cursor
		req.Cursor = &c
	}

	l.logger.Info().
		Str("stream_id", req.StreamID).
		Int64("cursor", cursor).
		Bool("has_cursor", ok).
		Msg("getting updates")

	// Without a stored cursor every update id, including 0, is new.
	watermark := int64(math.MinInt64)
	if ok {
		watermark = cursor
	}
	return l.feed.Subscribe(ctx, req, func(batch []event.DepositUpdate) error {
		if l.metrics != nil {
			l.metrics.UpdatesReceived.WithLabelValues(l.accountLabel()).Add(float64(len(batch)))
		}

		for _, u := range batch {
			if u.UpdateID <= watermark {
				l.recordSkip("at_or_below_watermark")
				continue
			}

			processed, err := l.processor.Process(ctx, assets, u)
			if err != nil {
				return fmt.Errorf("deposit update %d (deposit %d): %w", u.UpdateID, u.DepositID, err)
			}
			if !processed {
				l.recordSkip("broker_kind")
			}

			if err := l.cursors.SetCursor(ctx, l.cfg.BrokerAccountID, u.UpdateID); err != nil {
				return fmt.Errorf("persist watermark %d: %w", u.UpdateID, err)
			}
			watermark = u.UpdateID

			if l.metrics != nil {
				l.metrics.Watermark.WithLabelValues(l.accountLabel()).Set(float64(watermark))
			}
		}
		return nil
	})
}

func (l *Loop) recordCycle(result string) {
	if l.metrics != nil {
		l.metrics.FeedCycles.WithLabelValues(l.accountLabel(), result).Inc()
	}
}

func (l *Loop) recordSkip(reason string) {
	if l.metrics != nil {
		l.metrics.UpdatesSkipped.WithLabelValues(l.accountLabel(), reason).Inc()
	}
}

func (l *Loop) accountLabel() string {
	return strconv.FormatInt(l.cfg.BrokerAccountID, 10)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
