package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

const confirmerPreviewLen = 5

// AdminService backs the staff-only moderation surface.
type AdminService struct {
	pins       ports.PinRepository
	ledger     ports.ConfirmationLedger
	users      ports.UserRepository
	reconciler *ReconcileService
	cache      ports.CacheService
	publisher  ports.EventPublisher
}

// NewAdminService creates a new AdminService. cache and publisher may be nil.
func NewAdminService(
	pins ports.PinRepository,
	ledger ports.ConfirmationLedger,
	users ports.UserRepository,
	reconciler *ReconcileService,
	cache ports.CacheService,
	publisher ports.EventPublisher,
) *AdminService {
	return &AdminService{
		pins:       pins,
		ledger:     ledger,
		users:      users,
		reconciler: reconciler,
		cache:      cache,
		publisher:  publisher,
	}
}

func requireStaff(actor domain.Actor) error {
	if !actor.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if !actor.Staff {
		return domain.ErrPermission
	}
	return nil
}

// ListPins lists every pin regardless of status or owner.
func (s *AdminService) ListPins(ctx context.Context, actor domain.Actor, params domain.ListParams, isPublic *bool) ([]domain.AdminPinRow, int, error) {
	if err := requireStaff(actor); err != nil {
		return nil, 0, err
	}

	pins, total, err := s.pins.List(ctx, domain.AdminScope(params, isPublic))
	if err != nil {
		return nil, 0, fmt.Errorf("list pins: %w", err)
	}

	ids := make([]string, len(pins))
	for i := range pins {
		ids[i] = pins[i].ID
	}
	confirmers := map[string][]domain.Confirmer{}
	if len(ids) > 0 {
		if confirmers, err = s.ledger.Confirmers(ctx, ids); err != nil {
			return nil, 0, fmt.Errorf("load confirmers: %w", err)
		}
	}

	rows := make([]domain.AdminPinRow, len(pins))
	for i, p := range pins {
		tier := domain.TierFor(p.ConfirmationsCount)
		rows[i] = domain.AdminPinRow{
			Pin:           p,
			OwnerUsername: p.OwnerUsername,
			Color:         tier,
			ColorHex:      tier.Hex(),
			ConfirmedBy:   ConfirmerPreview(confirmers[p.ID]),
		}
	}
	return rows, total, nil
}

// ConfirmerPreview renders the first few confirmer usernames, with the
// remainder summarised as "(+N)".
func ConfirmerPreview(cs []domain.Confirmer) string {
	if len(cs) == 0 {
		return "—"
	}
	n := min(len(cs), confirmerPreviewLen)
	names := make([]string, n)
	for i := range n {
		names[i] = cs[i].Username
	}
	out := strings.Join(names, ", ")
	if extra := len(cs) - n; extra > 0 {
		out += fmt.Sprintf(" (+%d)", extra)
	}
	return out
}

// Approve makes the given pins active and public.
func (s *AdminService) Approve(ctx context.Context, actor domain.Actor, ids []string) (int64, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, domain.Invalid("ids", "at least one pin id is required")
	}

	updated, err := s.pins.SetStatus(ctx, ids, domain.StatusActive, true)
	if err != nil {
		return 0, fmt.Errorf("approve pins: %w", err)
	}
	if len(updated) > 0 {
		invalidateLists(ctx, s.cache)
	}
	for _, id := range updated {
		publish(ctx, s.publisher, domain.EventPinStatusChanged, id, actor.UserID)
	}
	return int64(len(updated)), nil
}

// SetStatus moves one pin to any status and visibility.
func (s *AdminService) SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.PinStatus, isPublic bool) (*domain.Pin, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, domain.Invalid("status", "must be one of pending, active, disputed, removed")
	}

	updated, err := s.pins.SetStatus(ctx, []string{id}, status, isPublic)
	if err != nil {
		return nil, fmt.Errorf("set status of %s: %w", id, err)
	}
	if len(updated) == 0 {
		return nil, domain.ErrNotFound
	}
	invalidateLists(ctx, s.cache)
	publish(ctx, s.publisher, domain.EventPinStatusChanged, id, actor.UserID)

	return s.pins.GetByID(ctx, id)
}

// ListConfirmations returns the ledger rows of one pin.
func (s *AdminService) ListConfirmations(ctx context.Context, actor domain.Actor, pinID string) ([]domain.Confirmation, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if _, err := s.pins.GetByID(ctx, pinID); err != nil {
		return nil, err
	}
	return s.ledger.ListByPin(ctx, pinID)
}

// Reconcile runs a full recount synchronously.
func (s *AdminService) Reconcile(ctx context.Context, actor domain.Actor) (int64, error) {
	if err := requireStaff(actor); err != nil {
		return 0, err
	}
	corrected, err := s.reconciler.ReconcileAll(ctx)
	if corrected > 0 {
		invalidateLists(ctx, s.cache)
	}
	return corrected, err
}

// DeleteUser removes an account. Staff cannot delete themselves.
func (s *AdminService) DeleteUser(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireStaff(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		return domain.Invalid("id", "cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	invalidateLists(ctx, s.cache)
	return nil
}
