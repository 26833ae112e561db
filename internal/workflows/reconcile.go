package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// ReconcileInput is the input for the reconcile workflow. An empty PinIDs
// means every pin.
type ReconcileInput struct {
	PinIDs []string
}

// ReconcileResult reports what one run changed.
type ReconcileResult struct {
	Corrected int64
}

// ReconcileCountsWorkflow recomputes cached confirmation counts from the
// ledger and, when any were wrong, invalidates cached anonymous listings.
// Recounting is idempotent so retries are safe.
func ReconcileCountsWorkflow(ctx workflow.Context, input ReconcileInput) (ReconcileResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting reconcile workflow", "pins", len(input.PinIDs))

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var a *ReconcileActivities
	var result ReconcileResult

	var err error
	if len(input.PinIDs) == 0 {
		err = workflow.ExecuteActivity(ctx, a.ReconcileAll).Get(ctx, &result.Corrected)
	} else {
		err = workflow.ExecuteActivity(ctx, a.ReconcilePins, input.PinIDs).Get(ctx, &result.Corrected)
	}
	if err != nil {
		return result, err
	}

	if result.Corrected > 0 {
		// A stale cache only delays visibility of the fix; do not fail the run.
		if err := workflow.ExecuteActivity(ctx, a.InvalidateListings).Get(ctx, nil); err != nil {
			logger.Warn("list cache invalidation failed", "error", err)
		}
	}

	logger.Info("Reconcile workflow completed", "corrected", result.Corrected)
	return result, nil
}
