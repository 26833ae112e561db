package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/samirrijal/pinmap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// rateLimit builds a per-IP limiter.
func rateLimit(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	})
}

// SetupRoutes registers all REST and GraphQL routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(rateLimit(120))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, no auth)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Credentials: tighter limit against password guessing
	authGroup := v1.Group("/auth", rateLimit(20))
	authGroup.Post("/register", timeout.NewWithContext(RegisterHandler(deps), requestTimeout))
	authGroup.Post("/token", timeout.NewWithContext(TokenHandler(deps), requestTimeout))
	authGroup.Post("/token/refresh", timeout.NewWithContext(RefreshHandler(deps), requestTimeout))

	pins := v1.Group("/pins", AuthMiddleware(deps))
	pins.Post("", timeout.NewWithContext(CreatePinHandler(deps), requestTimeout))
	pins.Get("", timeout.NewWithContext(ListPinsHandler(deps), requestTimeout))
	pins.Get("/:id", timeout.NewWithContext(GetPinHandler(deps), requestTimeout))
	pins.Patch("/:id", timeout.NewWithContext(UpdatePinHandler(deps), requestTimeout))
	pins.Delete("/:id", timeout.NewWithContext(DeletePinHandler(deps), requestTimeout))
	pins.Post("/:id/confirm", timeout.NewWithContext(ConfirmPinHandler(deps), requestTimeout))
	pins.Delete("/:id/confirm", timeout.NewWithContext(RetractPinHandler(deps), requestTimeout))

	admin := v1.Group("/admin", AuthMiddleware(deps))
	admin.Get("/pins", timeout.NewWithContext(AdminListPinsHandler(deps), requestTimeout))
	admin.Post("/pins/approve", timeout.NewWithContext(AdminApproveHandler(deps), requestTimeout))
	admin.Patch("/pins/:id/status", timeout.NewWithContext(AdminSetStatusHandler(deps), requestTimeout))
	admin.Get("/pins/:id/confirmations", timeout.NewWithContext(AdminConfirmationsHandler(deps), requestTimeout))
	// Full recounts can outlast the default timeout on large tables.
	admin.Post("/reconcile", timeout.NewWithContext(AdminReconcileHandler(deps), 2*time.Minute))
	admin.Delete("/users/:id", timeout.NewWithContext(AdminDeleteUserHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", AuthMiddleware(deps), timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)
}
