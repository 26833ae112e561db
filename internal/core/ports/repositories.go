package ports

import (
	"context"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// PinRepository persists pins. It never writes confirmations_count.
type PinRepository interface {
	Create(ctx context.Context, pin *domain.Pin) error
	// GetByID returns domain.ErrNotFound when no pin has the id.
	GetByID(ctx context.Context, id string) (*domain.Pin, error)
	// List returns one page of pins matching q and the total match count.
	List(ctx context.Context, q domain.PinQuery) ([]domain.Pin, int, error)
	UpdateContent(ctx context.Context, pin *domain.Pin) error
	Delete(ctx context.Context, id string) error
	// SetStatus moves pins to status/isPublic and returns the ids of the pins
	// that exist. Unknown and malformed ids are skipped.
	SetStatus(ctx context.Context, ids []string, status domain.PinStatus, isPublic bool) ([]string, error)
}

// ConfirmationLedger records one-per-(pin,user) confirmations. Each
// successful write adjusts the pin's cached count before returning.
type ConfirmationLedger interface {
	// Confirm inserts a confirmation. created is false when one already
	// existed or when userID owns the pin.
	Confirm(ctx context.Context, pinID, userID string) (created bool, err error)
	// Retract deletes the confirmation if present.
	Retract(ctx context.Context, pinID, userID string) (deleted bool, err error)
	// Confirmers returns, per pin id, who confirmed it in creation order.
	Confirmers(ctx context.Context, pinIDs []string) (map[string][]domain.Confirmer, error)
	ListByPin(ctx context.Context, pinID string) ([]domain.Confirmation, error)
}

// CounterReconciler recomputes cached counts from the ledger.
type CounterReconciler interface {
	// Reconcile recounts the given pins and returns how many were corrected.
	Reconcile(ctx context.Context, pinIDs []string) (int64, error)
	// ReconcileAll walks every pin in batches.
	ReconcileAll(ctx context.Context, batchSize int) (int64, error)
}

// UserRepository persists accounts.
type UserRepository interface {
	// Create returns domain.ErrConflict when the username is taken (case-insensitive).
	Create(ctx context.Context, user *domain.User) error
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	SetStaff(ctx context.Context, id string, staff bool) error
	// Delete removes the user. Their confirmations cascade and the affected
	// counters are decremented in the same transaction.
	Delete(ctx context.Context, id string) error
}
