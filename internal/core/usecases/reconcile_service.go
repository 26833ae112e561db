package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

// DefaultReconcileBatch is the number of pins recounted per transaction.
const DefaultReconcileBatch = 500

// ReconcileService heals drift between cached counts and the ledger.
// Every operation is idempotent and safe to run alongside live traffic.
type ReconcileService struct {
	counters  ports.CounterReconciler
	batchSize int
	logger    *slog.Logger
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(counters ports.CounterReconciler, batchSize int, logger *slog.Logger) *ReconcileService {
	if batchSize <= 0 {
		batchSize = DefaultReconcileBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{counters: counters, batchSize: batchSize, logger: logger}
}

// ReconcilePins recounts the given pins.
func (s *ReconcileService) ReconcilePins(ctx context.Context, pinIDs ...string) (int64, error) {
	if len(pinIDs) == 0 {
		return 0, nil
	}
	corrected, err := s.counters.Reconcile(ctx, pinIDs)
	if err != nil {
		return 0, fmt.Errorf("reconcile pins: %w", err)
	}
	if corrected > 0 {
		s.logger.Info("counter drift corrected", "pins", len(pinIDs), "corrected", corrected)
	}
	return corrected, nil
}

// ReconcileAll recounts every pin.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (int64, error) {
	start := time.Now()
	s.logger.Info("starting full reconciliation", "batch_size", s.batchSize)

	corrected, err := s.counters.ReconcileAll(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("full reconciliation failed", "error", err, "corrected", corrected)
		return corrected, fmt.Errorf("reconcile all: %w", err)
	}

	s.logger.Info("full reconciliation completed",
		"corrected", corrected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return corrected, nil
}

// Follow recounts the pin of every ledger event sub delivers. A failed
// recount is returned to the subscriber so the event is redelivered.
func (s *ReconcileService) Follow(ctx context.Context, sub ports.EventSubscriber) error {
	return sub.SubscribeConfirmationEvents(ctx, func(ctx context.Context, event domain.PinEvent) error {
		if event.PinID == "" {
			s.logger.Warn("ledger event without pin id", "type", event.Type)
			return nil
		}
		_, err := s.ReconcilePins(ctx, event.PinID)
		return err
	})
}
