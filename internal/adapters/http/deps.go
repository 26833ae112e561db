package http

import (
	natsadapter "github.com/samirrijal/pinmap/internal/adapters/nats"
	"github.com/samirrijal/pinmap/internal/adapters/postgres"
	"github.com/samirrijal/pinmap/internal/adapters/valkey"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// DB, Cache and Events are only used by the readiness probe and may be nil.
type Dependencies struct {
	Pins   *usecases.PinService
	Admin  *usecases.AdminService
	Auth   *usecases.AuthService
	DB     *postgres.DB
	Cache  *valkey.Cache
	Events *natsadapter.Publisher
}
