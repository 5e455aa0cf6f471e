package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/batsim/core/engine"
	"github.com/kilianp07/batsim/core/logger"
	"github.com/kilianp07/batsim/core/telemetry"
)

// Stepper is the part of the engine the scheduler drives.
type Stepper interface {
	Start() error
	Stop()
	RunState() engine.RunState
	Step(ctx context.Context, elapsedS float64) (telemetry.Record, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used to measure elapsed time.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler delivers periodic ticks to a Stepper while running.
type Scheduler struct {
	stepper Stepper
	cfg     Config
	log     logger.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	last    time.Time

	tickMu    sync.Mutex
	delivered uint64
	dropped   uint64
}

// New creates a stopped scheduler.
func New(stepper Stepper, cfg Config, log logger.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.NopLogger{}
	}
	s := &Scheduler{stepper: stepper, cfg: cfg, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the engine and begins delivering ticks. Elapsed time for the
// first tick is measured from this call. Starting while already running
// keeps the previous tick time so no elapsed time is lost.
func (s *Scheduler) Start() error {
	if err := s.stepper.Start(); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.running {
		s.running = true
		s.last = s.now()
	}
	s.mu.Unlock()
	return nil
}

// Stop stops tick delivery and the engine.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.stepper.Stop()
}

// Running reports whether ticks are being delivered.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns the number of delivered and dropped ticks.
func (s *Scheduler) Stats() (delivered, dropped uint64) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.delivered, s.dropped
}

// Tick delivers one tick. Ticks arriving while stopped are dropped and return
// nil. Step errors are logged and returned; they never stop the scheduler.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.dropped++
		return nil
	}
	now := s.now()
	elapsed := now.Sub(s.last).Seconds()
	if s.cfg.FixedStep {
		elapsed = s.cfg.Interval().Seconds()
	}
	s.last = now
	s.mu.Unlock()

	_, err := s.stepper.Step(ctx, elapsed)
	if errors.Is(err, engine.ErrNotRunning) {
		s.halt()
		s.dropped++
		return nil
	}
	s.delivered++
	if err != nil {
		s.log.Errorf("step failed: %v", err)
	}
	if s.stepper.RunState() == engine.Depleted {
		s.log.Infof("battery depleted, stopping tick delivery")
		s.halt()
	}
	return err
}

func (s *Scheduler) halt() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Run ticks at the configured interval until ctx is cancelled. With
// auto_start the engine is started first.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.AutoStart {
		if err := s.Start(); err != nil {
			return err
		}
	}
	ticker := time.NewTicker(s.cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = s.Tick(ctx)
		}
	}
}
