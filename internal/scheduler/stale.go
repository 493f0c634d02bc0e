// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/trogers1052/signal-desk/internal/events"
)

// StaleStore counts signals still waiting for an operator
type StaleStore interface {
	CountStaleSignals(ctx context.Context, olderThan time.Time) (int, error)
}

// StaleSweeper periodically reports unanalyzed signals older than a
// threshold as a SIGNALS_STALE event
type StaleSweeper struct {
	cron      *cron.Cron
	store     StaleStore
	publisher events.Publisher
	after     time.Duration
	log       zerolog.Logger
	now       func() time.Time
	baseCtx   context.Context
}

// NewStaleSweeper creates a sweeper and schedules it on spec
func NewStaleSweeper(ctx context.Context, spec string, after time.Duration, store StaleStore, publisher events.Publisher, log zerolog.Logger) (*StaleSweeper, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &StaleSweeper{
		cron:      cron.New(),
		store:     store,
		publisher: publisher,
		after:     after,
		log:       log.With().Str("component", "stale_sweeper").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		baseCtx:   ctx,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(s.baseCtx); err != nil {
			s.log.Error().Err(err).Msg("stale sweep failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid stale sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background
func (s *StaleSweeper) Start() {
	s.log.Info().Dur("stale_after", s.after).Msg("stale sweeper started")
	s.cron.Start()
}

// Stop waits for a running sweep to finish
func (s *StaleSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("stale sweeper stopped")
}

// Sweep counts stale signals once and publishes a report when any exist.
func (s *StaleSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.after)
	pending, err := s.store.CountStaleSignals(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if pending == 0 {
		return 0, nil
	}

	s.log.Warn().Int("pending", pending).Time("older_than", cutoff).Msg("stale signals")
	if err := s.publisher.Publish(ctx, events.New(events.SignalsStale, events.StaleReport{
		Pending:   pending,
		OlderThan: cutoff,
	}, s.now())); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish stale report")
	}
	return pending, nil
}
