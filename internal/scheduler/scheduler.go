// Package scheduler runs podflow's recurring maintenance on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Task is a named unit of recurring maintenance work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler manages cron-scheduled maintenance tasks.
type Scheduler struct {
	mu sync.Mutex

	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler. Schedules use the standard five-field
// cron syntax plus descriptors like @hourly.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// Register adds a task on the given cron schedule. Must be called before
// Start.
func (s *Scheduler) Register(spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			ctx = context.Background()
		}

		if err := task.Run(ctx); err != nil {
			s.logger.Error("scheduled task failed",
				slog.String("task", task.Name()),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Debug("scheduled task finished", slog.String("task", task.Name()))
	})
	if err != nil {
		return fmt.Errorf("registering task %s on %q: %w", task.Name(), spec, err)
	}

	s.logger.Info("scheduled task registered",
		slog.String("task", task.Name()),
		slog.String("schedule", spec),
	)
	return nil
}

// Start begins running registered tasks.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop halts scheduling and waits for any running task to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
