package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnauthorized returns a 401 error.
func errUnauthorized(c *fiber.Ctx, msg string) error {
	c.Set(fiber.HeaderWWWAuthenticate, `Bearer realm="pinmap"`)
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

// errForbidden returns a 403 error.
func errForbidden(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusForbidden, "forbidden", msg)
}

// errConflict returns a 409 error.
func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

// writeError maps a service error onto its HTTP response. Anything that is
// not a known domain error is logged and reported as a 500 without detail.
func writeError(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return errBadRequest(c, verr.Error())
	case errors.Is(err, domain.ErrValidation):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrSelfConfirmation):
		return newError(c, fiber.StatusBadRequest, "self_confirmation", "you cannot confirm your own pin")
	case errors.Is(err, domain.ErrConflict):
		return errConflict(c, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return errNotFound(c, "not found")
	case errors.Is(err, domain.ErrUnauthenticated):
		return errUnauthorized(c, "authentication required")
	case errors.Is(err, domain.ErrPermission):
		return errForbidden(c, "you do not have permission to perform this action")
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusRequestTimeout, "timeout", "request timed out")
	}
	LoggerFromCtx(c.UserContext()).Error("request failed",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return errInternal(c, "internal server error")
}
