package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/pinmap/internal/core/ports"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

// ReconcileActivities holds the activity implementations for the reconcile workflow.
type ReconcileActivities struct {
	Reconciler *usecases.ReconcileService
	// Cache is optional; without it corrected counts surface once cached
	// anonymous listings expire.
	Cache ports.CacheService
}

// ReconcileAll recounts every pin and returns how many counters were wrong.
func (a *ReconcileActivities) ReconcileAll(ctx context.Context) (int64, error) {
	activity.RecordHeartbeat(ctx, "reconcile-all")
	corrected, err := a.Reconciler.ReconcileAll(ctx)
	if err != nil {
		return corrected, fmt.Errorf("reconcile all: %w", err)
	}
	return corrected, nil
}

// ReconcilePins recounts only the given pins.
func (a *ReconcileActivities) ReconcilePins(ctx context.Context, pinIDs []string) (int64, error) {
	corrected, err := a.Reconciler.ReconcilePins(ctx, pinIDs...)
	if err != nil {
		return corrected, fmt.Errorf("reconcile %d pins: %w", len(pinIDs), err)
	}
	return corrected, nil
}

// InvalidateListings bumps the anonymous list cache generation.
func (a *ReconcileActivities) InvalidateListings(ctx context.Context) error {
	if a.Cache == nil {
		return nil
	}
	gen, err := a.Cache.Incr(ctx, usecases.ListGenerationKey)
	if err != nil {
		return fmt.Errorf("bump list generation: %w", err)
	}
	activity.GetLogger(ctx).Info("list cache invalidated", "generation", gen)
	return nil
}
