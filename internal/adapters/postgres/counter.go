package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// CounterMaintainer is the only writer of pins.confirmations_count. It
// implements ports.CounterReconciler.
type CounterMaintainer struct {
	db *DB
}

// NewCounterMaintainer creates a new CounterMaintainer.
func NewCounterMaintainer(db *DB) *CounterMaintainer {
	return &CounterMaintainer{db: db}
}

// apply adjusts the cached count of one pin by delta inside tx. The guard
// keeps the column non-negative; a missed row is logged and dropped, leaving
// the ledger write intact for reconciliation to heal.
func (m *CounterMaintainer) apply(ctx context.Context, tx pgx.Tx, pinID string, delta int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE pins
		SET confirmations_count = confirmations_count + $2
		WHERE id = $1 AND confirmations_count + $2 >= 0
	`, pinID, delta)
	if err != nil {
		return fmt.Errorf("adjust count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		metrics.CounterDroppedUpdates.Inc()
		slog.WarnContext(ctx, "confirmation counter update dropped",
			"pin_id", pinID, "delta", delta)
	}
	return nil
}

// Reconcile recounts the given pins from the ledger in batches and returns
// how many cached counts were wrong.
func (m *CounterMaintainer) Reconcile(ctx context.Context, pinIDs []string) (int64, error) {
	pinIDs = validUUIDs(pinIDs)
	var corrected int64
	for start := 0; start < len(pinIDs); start += reconcileBatchMax {
		end := min(start+reconcileBatchMax, len(pinIDs))
		n, err := m.reconcileBatch(ctx, pinIDs[start:end])
		corrected += n
		if err != nil {
			return corrected, err
		}
	}
	return corrected, nil
}

const reconcileBatchMax = 500

// reconcileBatch locks the pin rows first so no apply can interleave between
// the recount and the write.
func (m *CounterMaintainer) reconcileBatch(ctx context.Context, ids []string) (int64, error) {
	start := time.Now()
	defer func() { metrics.ReconcileDuration.Observe(time.Since(start).Seconds()) }()

	var corrected int64
	err := m.db.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			SELECT id FROM pins WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE
		`, ids); err != nil {
			return fmt.Errorf("lock pins: %w", err)
		}
		tag, err := tx.Exec(ctx, `
			UPDATE pins p
			SET confirmations_count = c.n
			FROM (
				SELECT p2.id, count(c.id)::int AS n
				FROM pins p2
				LEFT JOIN confirmations c ON c.pin_id = p2.id
				WHERE p2.id = ANY($1::uuid[])
				GROUP BY p2.id
			) c
			WHERE p.id = c.id AND p.confirmations_count <> c.n
		`, ids)
		if err != nil {
			return fmt.Errorf("recount: %w", err)
		}
		corrected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if corrected > 0 {
		metrics.ReconcileCorrected.Add(float64(corrected))
	}
	return corrected, nil
}

// ReconcileAll pages through every pin by id and reconciles each page.
func (m *CounterMaintainer) ReconcileAll(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 || batchSize > reconcileBatchMax {
		batchSize = reconcileBatchMax
	}

	var (
		corrected int64
		after     = "00000000-0000-0000-0000-000000000000"
	)
	for {
		ids, err := m.pageIDs(ctx, after, batchSize)
		if err != nil {
			return corrected, err
		}
		if len(ids) == 0 {
			return corrected, nil
		}
		n, err := m.reconcileBatch(ctx, ids)
		corrected += n
		if err != nil {
			return corrected, err
		}
		after = ids[len(ids)-1]
		if err := ctx.Err(); err != nil {
			return corrected, err
		}
	}
}

func (m *CounterMaintainer) pageIDs(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := m.db.Pool.Query(ctx, `
		SELECT id::text FROM pins WHERE id > $1::uuid ORDER BY id LIMIT $2
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("page pin ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
