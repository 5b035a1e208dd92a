/*
scheduler.go - background expire-sweep scheduler (spec.md §4.6).

Grounded on the teacher's api/scheduler.go ReconciliationScheduler
(ticker-driven background goroutine, Start/Stop with a stop channel
and WaitGroup); generalized from year-end PTO rollover to the
valid-until expire-sweep spec.md §4.6 requires to run periodically so
expired batches stop counting toward active balance.
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/cocrecords/coc-engine/clock"
)

// ExpireSweepScheduler periodically runs Ledger.ExpireSweep.
type ExpireSweepScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewExpireSweepScheduler(h *Handler) *ExpireSweepScheduler {
	return &ExpireSweepScheduler{Handler: h, CheckInterval: 24 * time.Hour, stop: make(chan struct{})}
}

func (s *ExpireSweepScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()
}

func (s *ExpireSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
	}
}

func (s *ExpireSweepScheduler) run() {
	defer s.wg.Done()
	s.sweep()
	for {
		select {
		case <-s.ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *ExpireSweepScheduler) sweep() {
	ctx := context.Background()
	today := clock.Today(s.Handler.Clock, nil)
	if err := s.Handler.Ledger.ExpireSweep(ctx, today, "system"); err != nil {
		s.Handler.Log.Error().Str("component", "scheduler").Err(err).Msg("expire sweep failed")
		return
	}
	s.Handler.Log.Info().Str("component", "scheduler").Str("asOf", today.ISO()).Msg("expire sweep completed")
}
