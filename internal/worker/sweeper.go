// Package worker runs the background maturity sweep.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Maturer flips every due pending ledger row to available.
type Maturer interface {
	MatureAll(ctx context.Context) (int64, error)
}

// Sweeper calls MatureAll on a fixed interval until shut down. Balance reads
// and payout requests still mature lazily; the sweep only keeps stored
// statuses from drifting for accounts nobody reads.
type Sweeper struct {
	target   Maturer
	interval time.Duration
	log      zerolog.Logger
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewSweeper(target Maturer, interval time.Duration, log zerolog.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		target:   target,
		interval: interval,
		log:      log.With().Str("component", "maturity_sweeper").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs one sweep immediately, then one per interval. A non-positive
// interval disables the loop.
func (s *Sweeper) Start() {
	if s.interval <= 0 {
		s.log.Info().Msg("maturity sweeper disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(s.ctx)
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(s.ctx)
			}
		}
	}()
}

// RunOnce performs a single sweep and logs the outcome.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	started := time.Now()
	n, err := s.target.MatureAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Msg("maturity sweep failed")
		}
		return n
	}
	if n > 0 {
		s.log.Info().Int64("matured", n).Dur("took", time.Since(started)).Msg("maturity sweep finished")
	}
	return n
}

// Shutdown stops the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Shutdown() {
	s.cancel()
	s.wg.Wait()
}
