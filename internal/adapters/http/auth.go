package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

const (
	actorKey    ctxKey = "actor"
	actorLocals        = "actor"
)

// AuthMiddleware resolves an optional bearer token into a domain.Actor.
// Requests without an Authorization header run as the anonymous actor;
// a header that is present but invalid is rejected with 401.
func AuthMiddleware(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return errUnauthorized(c, "authorization header must be 'Bearer <token>'")
		}

		actor, err := deps.Auth.Authenticate(token)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Debug("bearer token rejected", "error", err)
			return errUnauthorized(c, "invalid or expired token")
		}

		c.Locals(actorLocals, actor)
		c.SetUserContext(context.WithValue(c.UserContext(), actorKey, actor))
		return c.Next()
	}
}

// actorOf returns the actor resolved by AuthMiddleware.
func actorOf(c *fiber.Ctx) domain.Actor {
	if a, ok := c.Locals(actorLocals).(domain.Actor); ok {
		return a
	}
	return domain.Anonymous
}

// ActorFromCtx returns the actor stored in ctx by AuthMiddleware, or the
// anonymous actor.
func ActorFromCtx(ctx context.Context) domain.Actor {
	if a, ok := ctx.Value(actorKey).(domain.Actor); ok {
		return a
	}
	return domain.Anonymous
}
