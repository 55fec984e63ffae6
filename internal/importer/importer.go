// Package importer orchestrates the parsing-and-deduplication pipeline:
// pull candidate messages, classify them by provider, build canonical
// records, filter duplicates through the cache and the store, and hand
// each genuinely new payment to the notice channel exactly once.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"paywatch/internal/cache"
	"paywatch/internal/notify"
	"paywatch/internal/parse"
	"paywatch/internal/record"
	"paywatch/internal/scheduler"
	"paywatch/internal/source"
	"paywatch/internal/storage"
)

// CycleResult summarises one pipeline invocation.
type CycleResult struct {
	New             []storage.PaymentRecord
	Fetched         int
	NoProviderMatch int
	Duplicates      int
	StoreErrors     int
	Delivered       int
	DeliveryErrors  int
}

// Service wires the pipeline to its collaborators. All of them are
// passed in explicitly; the caller owns their lifetime.
type Service struct {
	sched    *scheduler.Scheduler
	source   source.MessageSource
	store    storage.PaymentStore
	recent   *cache.RecentDeliveries
	notifier notify.Notifier
	logger   zerolog.Logger
	lookback time.Duration
	now      func() time.Time
}

// Options configure the import service.
type Options struct {
	Lookback time.Duration
	Now      func() time.Time
}

// New constructs the import service.
func New(sched *scheduler.Scheduler, src source.MessageSource, store storage.PaymentStore, recent *cache.RecentDeliveries, notifier notify.Notifier, opts Options, logger zerolog.Logger) *Service {
	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		sched:    sched,
		source:   src,
		store:    store,
		recent:   recent,
		notifier: notifier,
		logger:   logger.With().Str("component", "importer").Logger(),
		lookback: lookback,
		now:      now,
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.sched.Run(ctx, s.Cycle)
}

// Cycle executes one full cycle: import new payments and deliver each
// one to the notice channel in batch order. Delivery failure leaves the
// record persisted; redelivery is an external concern.
func (s *Service) Cycle(ctx context.Context) error {
	result := s.ImportNewPayments(ctx)

	for _, rec := range result.New {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.Deliver(ctx, rec.DisplayMessage); err != nil {
			result.DeliveryErrors++
			s.logger.Error().Err(err).Str("fingerprint", rec.Fingerprint).Msg("failed to deliver notice")
			continue
		}
		result.Delivered++
		s.logger.Info().Str("provider", string(rec.Provider)).Str("sender", rec.Sender).Str("amount", rec.Amount).Msg("posted new payment")
	}

	s.logger.Info().
		Int("fetched", result.Fetched).
		Int("new", len(result.New)).
		Int("duplicates", result.Duplicates).
		Int("no_provider_match", result.NoProviderMatch).
		Int("store_errors", result.StoreErrors).
		Int("delivered", result.Delivered).
		Int("delivery_errors", result.DeliveryErrors).
		Msg("cycle complete")

	return nil
}

// ImportNewPayments pulls one bounded batch of candidate messages and
// returns the genuinely new payment records in message order. A single
// message's failure never aborts the batch: parse misses are dropped,
// duplicates are skipped, and a store failure leaves the message
// eligible for reprocessing on the next cycle.
func (s *Service) ImportNewPayments(ctx context.Context) CycleResult {
	logger := s.logger.With().Str("cycle_id", uuid.NewString()).Logger()

	now := s.now()
	window := source.Window{From: now.Add(-s.lookback), To: now}

	refs := s.source.ListCandidates(ctx, window)
	var result CycleResult

	for _, ref := range refs {
		if ctx.Err() != nil {
			return result
		}

		body, ok := s.source.FetchBody(ctx, ref.ID)
		if !ok {
			continue
		}
		result.Fetched++

		candidate, ok := parse.Classify(body)
		if !ok {
			result.NoProviderMatch++
			logger.Debug().Str("message_id", ref.ID).Msg("no provider claimed message")
			continue
		}

		payment := record.Build(candidate)

		if s.recent.Seen(payment.Fingerprint) {
			result.Duplicates++
			continue
		}

		seen, err := s.store.HasSeen(ctx, payment.Fingerprint)
		if err != nil {
			result.StoreErrors++
			logger.Error().Err(err).Str("message_id", ref.ID).Msg("dedup lookup failed; message left for next cycle")
			continue
		}
		if seen {
			result.Duplicates++
			continue
		}

		rec, err := s.store.Record(ctx, payment)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicatePayment) {
				// Lost an insert race; the winner already owns delivery.
				result.Duplicates++
				continue
			}
			result.StoreErrors++
			logger.Error().Err(err).Str("message_id", ref.ID).Msg("persist failed; message left for next cycle")
			continue
		}

		s.recent.Mark(payment.Fingerprint)
		result.New = append(result.New, rec)
	}

	return result
}
