// Package task runs periodic maintenance jobs against the testimonial store.
package task

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = time.Hour

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs a job on a fixed interval and whenever Trigger is called.
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   *zap.Logger
	trigger  chan struct{}
}

func NewScheduler(interval time.Duration, job Job, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		interval: interval,
		job:      job,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate run. Requests made while one is already queued are coalesced.
func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (scheduler *Scheduler) Run(ctx context.Context) {
	if scheduler == nil || scheduler.job == nil {
		return
	}
	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
		case <-ticker.C:
		}
		scheduler.runOnce(ctx)
	}
}

func (scheduler *Scheduler) runOnce(ctx context.Context) {
	startTime := time.Now()
	if err := scheduler.job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		scheduler.logger.Warn("job_failed", zap.String("job", scheduler.job.Name()), zap.Error(err))
		return
	}
	scheduler.logger.Debug("job_completed", zap.String("job", scheduler.job.Name()), zap.Duration("dur", time.Since(startTime)))
}
