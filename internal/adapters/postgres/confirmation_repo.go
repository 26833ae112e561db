package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

// ConfirmationRepo implements ports.ConfirmationLedger with pgx. Each write
// and its counter adjustment share one transaction.
type ConfirmationRepo struct {
	db      *DB
	counter *CounterMaintainer
}

// NewConfirmationRepo creates a new ConfirmationRepo.
func NewConfirmationRepo(db *DB, counter *CounterMaintainer) *ConfirmationRepo {
	return &ConfirmationRepo{db: db, counter: counter}
}

// Confirm inserts (pinID, userID) unless it already exists or userID owns
// the pin. The unique constraint settles concurrent duplicates: the loser
// inserts nothing and leaves the count alone.
func (r *ConfirmationRepo) Confirm(ctx context.Context, pinID, userID string) (bool, error) {
	var created bool
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
			INSERT INTO confirmations (pin_id, user_id)
			SELECT p.id, $2::uuid FROM pins p
			WHERE p.id = $1 AND (p.owner_id IS NULL OR p.owner_id <> $2::uuid)
			ON CONFLICT (pin_id, user_id) DO NOTHING
			RETURNING id::text
		`, pinID, userID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert confirmation: %w", mapForeignKey(err))
		}
		created = true
		return r.counter.apply(ctx, tx, pinID, +1)
	})
	if err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if created {
		metrics.ConfirmationsTotal.WithLabelValues("created").Inc()
	} else {
		metrics.ConfirmationsTotal.WithLabelValues("noop").Inc()
	}
	return created, nil
}

// Retract deletes the (pinID, userID) confirmation if present.
func (r *ConfirmationRepo) Retract(ctx context.Context, pinID, userID string) (bool, error) {
	var deleted bool
	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
			DELETE FROM confirmations WHERE pin_id = $1 AND user_id = $2
			RETURNING id::text
		`, pinID, userID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete confirmation: %w", err)
		}
		deleted = true
		return r.counter.apply(ctx, tx, pinID, -1)
	})
	if err != nil {
		metrics.ConfirmationsTotal.WithLabelValues("error").Inc()
		return false, err
	}
	if deleted {
		metrics.ConfirmationsTotal.WithLabelValues("retracted").Inc()
	}
	return deleted, nil
}

// Confirmers returns the confirmers of each pin in creation order.
func (r *ConfirmationRepo) Confirmers(ctx context.Context, pinIDs []string) (map[string][]domain.Confirmer, error) {
	out := make(map[string][]domain.Confirmer, len(pinIDs))
	ids := validUUIDs(pinIDs)
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT c.pin_id::text, u.id::text, u.username
		FROM confirmations c JOIN users u ON u.id = c.user_id
		WHERE c.pin_id = ANY($1::uuid[])
		ORDER BY c.created_at, c.id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query confirmers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pinID string
		var c domain.Confirmer
		if err := rows.Scan(&pinID, &c.UserID, &c.Username); err != nil {
			return nil, err
		}
		out[pinID] = append(out[pinID], c)
	}
	return out, rows.Err()
}

// ListByPin returns every ledger row of a pin, oldest first.
func (r *ConfirmationRepo) ListByPin(ctx context.Context, pinID string) ([]domain.Confirmation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT c.id::text, c.pin_id::text, c.user_id::text, u.username, c.created_at
		FROM confirmations c JOIN users u ON u.id = c.user_id
		WHERE c.pin_id = $1
		ORDER BY c.created_at, c.id
	`, pinID)
	if err != nil {
		return nil, fmt.Errorf("list confirmations: %w", err)
	}
	defer rows.Close()

	confirmations := []domain.Confirmation{}
	for rows.Next() {
		var c domain.Confirmation
		if err := rows.Scan(&c.ID, &c.PinID, &c.UserID, &c.Username, &c.CreatedAt); err != nil {
			return nil, err
		}
		confirmations = append(confirmations, c)
	}
	return confirmations, rows.Err()
}
