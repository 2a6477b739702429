package scheduler

import (
	"context"

	"github.com/Catonlarge/PodFlow-sub000/internal/startup"
)

// SweepTask adapts the clip sweeper to the scheduler.
type SweepTask struct {
	sweeper *startup.ClipSweeper
}

// NewSweepTask creates a SweepTask.
func NewSweepTask(sweeper *startup.ClipSweeper) *SweepTask {
	return &SweepTask{sweeper: sweeper}
}

// Name returns the task name for logs.
func (t *SweepTask) Name() string { return "clip_sweep" }

// Run performs one sweep.
func (t *SweepTask) Run(ctx context.Context) error {
	_, err := t.sweeper.Sweep(ctx)
	return err
}
