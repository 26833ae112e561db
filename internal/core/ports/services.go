package ports

import (
	"context"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// EventPublisher publishes committed pin and ledger events to a message broker.
type EventPublisher interface {
	PublishPinEvent(ctx context.Context, event domain.PinEvent) error
}

// EventSubscriber delivers ledger events to handler until ctx ends. A handler
// error asks for redelivery.
type EventSubscriber interface {
	SubscribeConfirmationEvents(ctx context.Context, handler func(ctx context.Context, event domain.PinEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Incr(ctx context.Context, key string) (int64, error)
}

// TokenService issues and validates bearer tokens.
type TokenService interface {
	IssuePair(user *domain.User) (domain.TokenPair, error)
	IssueAccess(user *domain.User) (string, error)
	// RefreshSubject validates a refresh token and returns its user id.
	RefreshSubject(refreshToken string) (string, error)
	// Authenticate validates an access token and returns its actor.
	Authenticate(accessToken string) (domain.Actor, error)
}
