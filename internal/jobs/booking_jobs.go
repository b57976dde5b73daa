package jobs

import (
	"context"

	"peer-rental-core/internal/logger"
)

// ReconcilePayments retries refunds and releases left pending by a failed
// compensation and polls the provider for legs that never called back.
func (jr *JobRunner) ReconcilePayments() {
	jr.runWithRecovery("ReconcilePayments", func(ctx context.Context) {
		count, err := jr.maintenance.ReconcilePayments(ctx)
		if err != nil {
			logger.Error("Failed to reconcile payments", "error", err, "reconciled", count)
			return
		}
		logger.Info("Reconciled payment legs", "count", count)
	})
}

// ExpireStaleRequests cancels requests the owner left unanswered.
func (jr *JobRunner) ExpireStaleRequests() {
	jr.runWithRecovery("ExpireStaleRequests", func(ctx context.Context) {
		count, err := jr.maintenance.ExpireStaleRequests(ctx)
		if err != nil {
			logger.Error("Failed to expire stale requests", "error", err, "expired", count)
			return
		}
		logger.Info("Expired stale booking requests", "count", count)
	})
}
