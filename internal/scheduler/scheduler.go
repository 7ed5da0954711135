// Package scheduler runs one reconciliation pass per tick, never two at once, and swaps its ticker
// when the cadence changes.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"streamguard/internal/logger"
	"streamguard/internal/provider"
)

// DefaultInterval is used when the configured cadence is not positive.
const DefaultInterval = 10 * time.Second

// PassFunc runs one pass. provider.ErrNotConfigured means the cycle was skipped.
type PassFunc func(ctx context.Context) error

// Scheduler owns exactly one ticker at a time.
type Scheduler struct {
	pass  PassFunc
	clock Clock
	log   logger.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu       sync.Mutex
	interval time.Duration
	reset    chan time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// New returns a Scheduler that runs pass every interval.
func New(pass PassFunc, interval time.Duration, log logger.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.NewTestLogger()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		pass:     pass,
		clock:    realClock{},
		log:      log.WithComponent("scheduler"),
		interval: interval,
		reset:    make(chan time.Duration, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Interval returns the current cadence.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Reschedule changes the cadence. The running ticker is stopped and replaced by Run; a non-positive or
// unchanged interval is ignored.
func (s *Scheduler) Reschedule(d time.Duration) {
	if d <= 0 {
		s.log.Warn().Dur("interval", d).Msg("ignoring non-positive refresh interval")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == s.interval {
		return
	}
	s.interval = d
	// Keep only the latest pending change.
	select {
	case <-s.reset:
	default:
	}
	s.reset <- d
}

// Run triggers a pass immediately and then on every tick until ctx is done. It waits for an in-flight
// pass before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.Interval())
	defer func() {
		ticker.Stop()
		s.wg.Wait()
	}()
	s.log.Info().Dur("interval", s.Interval()).Msg("scheduler started")
	s.Trigger(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case d := <-s.reset:
			ticker.Stop()
			ticker = s.clock.NewTicker(d)
			s.log.Info().Dur("interval", d).Msg("refresh interval changed, ticker restarted")
		case <-ticker.C():
			s.Trigger(ctx)
		}
	}
}

// Trigger starts a pass unless one is already running and reports whether it started one.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug().Msg("previous pass still running, tick skipped")
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runPass(ctx)
	}()
	return true
}

func (s *Scheduler) runPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("reconciliation pass panicked")
		}
	}()
	err := s.pass(ctx)
	switch {
	case err == nil:
	case errors.Is(err, provider.ErrNotConfigured):
		s.log.Debug().Err(err).Msg("provider not configured, cycle skipped")
	case errors.Is(err, context.Canceled):
		s.log.Debug().Err(err).Msg("pass cancelled")
	default:
		s.log.Warn().Err(err).Msg("reconciliation pass failed")
	}
}
