package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

var tracer = otel.Tracer("github.com/samirrijal/pinmap/internal/core/usecases")

const (
	// ListGenerationKey versions cached anonymous listings; bumping it
	// orphans every cached page.
	ListGenerationKey = "pins:gen"
	anonListTTL       = 30 // seconds
)

// PinService composes the pin store, the confirmation ledger and the
// visibility policy into the operations exposed to callers.
type PinService struct {
	pins      ports.PinRepository
	ledger    ports.ConfirmationLedger
	cache     ports.CacheService
	publisher ports.EventPublisher
}

// NewPinService creates a new PinService. cache and publisher may be nil.
func NewPinService(
	pins ports.PinRepository,
	ledger ports.ConfirmationLedger,
	cache ports.CacheService,
	publisher ports.EventPublisher,
) *PinService {
	return &PinService{pins: pins, ledger: ledger, cache: cache, publisher: publisher}
}

// Create stores a new pin. Status, visibility and owner come from the
// creation policy, never from the input.
func (s *PinService) Create(ctx context.Context, actor domain.Actor, in domain.PinInput) (_ *domain.PinView, err error) {
	ctx, span := startSpan(ctx, "PinService.Create", actor)
	defer func() { endSpan(span, err) }()

	if err := domain.ValidateInput(in); err != nil {
		return nil, err
	}

	pin := domain.NewPin(in, actor, time.Now().UTC())
	if err := s.pins.Create(ctx, &pin); err != nil {
		return nil, fmt.Errorf("create pin: %w", err)
	}
	span.SetAttributes(attribute.String("pin.id", pin.ID))

	s.publish(ctx, domain.EventPinCreated, pin.ID, actor.UserID)

	var confirmers []domain.Confirmer
	if actor.Authenticated() {
		confirmers = []domain.Confirmer{}
	}
	view := domain.NewPinView(pin, actor, confirmers)
	return &view, nil
}

type cachedList struct {
	Pins  []domain.PinView `json:"pins"`
	Total int              `json:"total"`
}

// List returns one page of the pins actor may see, narrowed by params.
func (s *PinService) List(ctx context.Context, actor domain.Actor, params domain.ListParams) (_ []domain.PinView, _ int, err error) {
	ctx, span := startSpan(ctx, "PinService.List", actor)
	defer func() { endSpan(span, err) }()

	q := domain.ScopeFor(actor, params)

	// Only anonymous listings are shared between callers.
	var cacheKey string
	if !actor.Authenticated() && s.cache != nil {
		cacheKey = s.listCacheKey(ctx, q)
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var cl cachedList
			if err := json.Unmarshal(data, &cl); err == nil {
				span.SetAttributes(attribute.Bool("cache.hit", true))
				return cl.Pins, cl.Total, nil
			}
		}
	}

	pins, total, err := s.pins.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list pins: %w", err)
	}

	views, err := s.project(ctx, actor, pins)
	if err != nil {
		return nil, 0, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(cachedList{Pins: views, Total: total}); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, anonListTTL)
		}
	}

	return views, total, nil
}

// Get returns a single pin if actor may see it.
func (s *PinService) Get(ctx context.Context, actor domain.Actor, id string) (_ *domain.PinView, err error) {
	ctx, span := startSpan(ctx, "PinService.Get", actor)
	defer func() { endSpan(span, err) }()

	pin, err := s.visiblePin(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, actor, pin)
}

// Confirm records actor's confirmation of the pin and returns the refreshed
// projection. Confirming twice is a no-op.
func (s *PinService) Confirm(ctx context.Context, actor domain.Actor, id string) (_ *domain.PinView, err error) {
	ctx, span := startSpan(ctx, "PinService.Confirm", actor)
	defer func() { endSpan(span, err) }()

	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	pin, err := s.visiblePin(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if pin.OwnedBy(actor.UserID) {
		return nil, domain.ErrSelfConfirmation
	}

	created, err := s.ledger.Confirm(ctx, pin.ID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("confirm pin %s: %w", pin.ID, err)
	}
	span.SetAttributes(attribute.Bool("ledger.created", created))
	if created {
		s.invalidateLists(ctx)
		s.publish(ctx, domain.EventConfirmationCreated, pin.ID, actor.UserID)
	}

	return s.reload(ctx, actor, pin.ID)
}

// Retract removes actor's confirmation of the pin if there is one.
func (s *PinService) Retract(ctx context.Context, actor domain.Actor, id string) (_ *domain.PinView, err error) {
	ctx, span := startSpan(ctx, "PinService.Retract", actor)
	defer func() { endSpan(span, err) }()

	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	pin, err := s.visiblePin(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.ledger.Retract(ctx, pin.ID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("retract confirmation on %s: %w", pin.ID, err)
	}
	span.SetAttributes(attribute.Bool("ledger.deleted", deleted))
	if deleted {
		s.invalidateLists(ctx)
		s.publish(ctx, domain.EventConfirmationDeleted, pin.ID, actor.UserID)
	}

	return s.reload(ctx, actor, pin.ID)
}

// Update changes the content fields of a pin owned by actor.
func (s *PinService) Update(ctx context.Context, actor domain.Actor, id string, patch domain.PinPatch) (_ *domain.PinView, err error) {
	ctx, span := startSpan(ctx, "PinService.Update", actor)
	defer func() { endSpan(span, err) }()

	pin, err := s.ownedPin(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(pin)
	pin.Title = strings.TrimSpace(pin.Title)
	if err := domain.ValidatePin(pin); err != nil {
		return nil, err
	}
	if err := s.pins.UpdateContent(ctx, pin); err != nil {
		return nil, fmt.Errorf("update pin %s: %w", pin.ID, err)
	}
	if pin.Status == domain.StatusActive && pin.IsPublic {
		s.invalidateLists(ctx)
	}

	return s.reload(ctx, actor, pin.ID)
}

// Delete removes a pin owned by actor. Its confirmations cascade.
func (s *PinService) Delete(ctx context.Context, actor domain.Actor, id string) (err error) {
	ctx, span := startSpan(ctx, "PinService.Delete", actor)
	defer func() { endSpan(span, err) }()

	pin, err := s.ownedPin(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.pins.Delete(ctx, pin.ID); err != nil {
		return fmt.Errorf("delete pin %s: %w", pin.ID, err)
	}
	if pin.Status == domain.StatusActive && pin.IsPublic {
		s.invalidateLists(ctx)
	}
	return nil
}

// visiblePin resolves id through the visibility policy. Pins the actor cannot
// see are reported exactly like pins that do not exist.
func (s *PinService) visiblePin(ctx context.Context, actor domain.Actor, id string) (*domain.Pin, error) {
	pin, err := s.pins.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get pin %s: %w", id, err)
	}
	if !domain.CanView(actor, pin) {
		return nil, domain.ErrNotFound
	}
	return pin, nil
}

func (s *PinService) ownedPin(ctx context.Context, actor domain.Actor, id string) (*domain.Pin, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	pin, err := s.visiblePin(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !pin.OwnedBy(actor.UserID) {
		return nil, domain.ErrPermission
	}
	return pin, nil
}

// reload re-reads the pin after a write so the projection carries the
// committed count.
func (s *PinService) reload(ctx context.Context, actor domain.Actor, id string) (*domain.PinView, error) {
	pin, err := s.pins.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("reload pin %s: %w", id, err)
	}
	return s.view(ctx, actor, pin)
}

func (s *PinService) view(ctx context.Context, actor domain.Actor, pin *domain.Pin) (*domain.PinView, error) {
	views, err := s.project(ctx, actor, []domain.Pin{*pin})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PinService) project(ctx context.Context, actor domain.Actor, pins []domain.Pin) ([]domain.PinView, error) {
	var confirmers map[string][]domain.Confirmer
	if actor.Authenticated() && len(pins) > 0 {
		ids := make([]string, len(pins))
		for i := range pins {
			ids[i] = pins[i].ID
		}
		var err error
		confirmers, err = s.ledger.Confirmers(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load confirmers: %w", err)
		}
	}

	views := make([]domain.PinView, len(pins))
	for i, p := range pins {
		var cs []domain.Confirmer
		if confirmers != nil {
			cs = confirmers[p.ID]
		}
		views[i] = domain.NewPinView(p, actor, cs)
	}
	return views, nil
}

// listCacheKey namespaces anonymous listings under a generation counter that
// every visible mutation bumps.
func (s *PinService) listCacheKey(ctx context.Context, q domain.PinQuery) string {
	gen := "0"
	if data, err := s.cache.Get(ctx, ListGenerationKey); err == nil && len(data) > 0 {
		gen = string(data)
	}
	raw, _ := json.Marshal(q)
	h := sha256.Sum256(raw)
	return "pins:list:" + gen + ":" + hex.EncodeToString(h[:8])
}

func (s *PinService) invalidateLists(ctx context.Context) {
	invalidateLists(ctx, s.cache)
}

func invalidateLists(ctx context.Context, cache ports.CacheService) {
	if cache == nil {
		return
	}
	if _, err := cache.Incr(ctx, ListGenerationKey); err != nil {
		// Best-effort: entries still expire after anonListTTL.
		slog.WarnContext(ctx, "list cache invalidation failed", "error", err)
	}
}

func (s *PinService) publish(ctx context.Context, typ domain.PinEventType, pinID, userID string) {
	publish(ctx, s.publisher, typ, pinID, userID)
}

func publish(ctx context.Context, publisher ports.EventPublisher, typ domain.PinEventType, pinID, userID string) {
	if publisher == nil {
		return
	}
	event := domain.PinEvent{Type: typ, PinID: pinID, UserID: userID, At: time.Now().UTC()}
	if err := publisher.PublishPinEvent(ctx, event); err != nil {
		slog.WarnContext(ctx, "publish pin event failed",
			"type", string(typ), "pin_id", pinID, "error", err)
	}
}

func startSpan(ctx context.Context, name string, actor domain.Actor) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.Bool("actor.authenticated", actor.Authenticated()),
		attribute.String("actor.id", actor.UserID),
	)
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
