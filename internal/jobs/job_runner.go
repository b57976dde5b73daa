package jobs

import (
	"context"
	"time"

	"peer-rental-core/internal/config"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/service"
)

const jobTimeout = 5 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	maintenance service.BookingMaintenance
	config      *config.Config
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(maintenance service.BookingMaintenance, cfg *config.Config) *JobRunner {
	return &JobRunner{
		maintenance: maintenance,
		config:      cfg,
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and a deadline
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	logger.Info("Starting job", "job", jobName)
	jobFunc(ctx)
	logger.Info("Job completed", "job", jobName, "duration_ms", time.Since(start).Milliseconds())
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ReconcilePayments()
	jr.ExpireStaleRequests()
}
