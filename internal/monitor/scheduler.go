package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler states.
const (
	StateIdle   = "idle"
	StateActive = "active"
)

// Scheduler drives recurring sweeps. Start fires a sweep immediately and then
// on every interval tick. Stop cancels future ticks only, a sweep already in
// flight runs to completion because sweeps execute against the base context.
type Scheduler struct {
	runner   *Runner
	interval time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	state  string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(runner *Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		state:    StateIdle,
	}
}

// Status describes the scheduler for the dashboard.
type Status struct {
	State    string      `json:"state"`
	Interval string      `json:"interval"`
	LastRun  *RunSummary `json:"last_run,omitempty"`
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	return Status{
		State:    state,
		Interval: s.interval.String(),
		LastRun:  s.runner.LastRun(),
	}
}

// Start begins recurring sweeps with the given config. Starting an already
// active scheduler is an error.
func (s *Scheduler) Start(ctx context.Context, cfg RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive {
		return fmt.Errorf("monitoring is already active")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = StateActive

	s.logger.Info("monitoring started", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.loop(ctx, loopCtx, cfg)

	return nil
}

// Stop halts future sweeps. It returns false when monitoring was not active.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return false
	}

	s.cancel()
	s.state = StateIdle
	s.logger.Info("monitoring stopped")

	return true
}

// Wait blocks until the scheduling loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(baseCtx, loopCtx context.Context, cfg RunConfig) {
	defer s.wg.Done()

	s.sweep(baseCtx, cfg)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			return
		case <-baseCtx.Done():
			s.mu.Lock()
			if s.state == StateActive {
				s.cancel()
				s.state = StateIdle
			}
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.sweep(baseCtx, cfg)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, cfg RunConfig) {
	if _, err := s.runner.Run(ctx, cfg); err != nil {
		s.logger.Error("scheduled sweep failed", zap.Error(err))
	}
}
