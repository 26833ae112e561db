package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// listParams reads the shared listing query parameters. Offset and limit are
// clamped the same way the services clamp them so the pagination envelope
// reports what was actually applied.
func listParams(c *fiber.Ctx) domain.ListParams {
	p := domain.ListParams{
		BBox:      c.Query("in_bbox"),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		Category:  c.Query("category"),
		MinRating: c.Query("min_rating"),
		Offset:    c.QueryInt("offset", 0),
		Limit:     c.QueryInt("limit", domain.DefaultListLimit),
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 || p.Limit > domain.MaxListLimit {
		p.Limit = domain.DefaultListLimit
	}
	return p
}

// CreatePinHandler submits a new pin. Status, visibility and owner in the
// body are ignored; the pin always starts pending and private.
func CreatePinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in domain.PinInput
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		view, err := deps.Pins.Create(c.UserContext(), actorOf(c), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	}
}

// ListPinsHandler returns the pins the caller may see.
func ListPinsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		params := listParams(c)
		actor := actorOf(c)

		pins, total, err := deps.Pins.List(c.UserContext(), actor, params)
		if err != nil {
			return writeError(c, err)
		}

		if actor.Authenticated() {
			c.Set(fiber.HeaderCacheControl, "private, no-store")
		}
		pg := Pagination{Offset: params.Offset, Limit: params.Limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: pins, Pagination: pg})
	}
}

// GetPinHandler returns a single pin.
func GetPinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Pins.Get(c.UserContext(), actorOf(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(view)
	}
}

// UpdatePinHandler applies a partial update to a pin the caller owns.
func UpdatePinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var patch domain.PinPatch
		if err := c.BodyParser(&patch); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		view, err := deps.Pins.Update(c.UserContext(), actorOf(c), c.Params("id"), patch)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(view)
	}
}

// DeletePinHandler removes a pin the caller owns.
func DeletePinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Pins.Delete(c.UserContext(), actorOf(c), c.Params("id")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ConfirmPinHandler records the caller's confirmation. Repeating it is harmless.
func ConfirmPinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Pins.Confirm(c.UserContext(), actorOf(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(view)
	}
}

// RetractPinHandler withdraws the caller's confirmation, if any.
func RetractPinHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Pins.Retract(c.UserContext(), actorOf(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(view)
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterHandler creates an account.
func RegisterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in credentials
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		user, err := deps.Auth.Register(c.UserContext(), in.Username, in.Password)
		if err != nil {
			// Registration reports a taken name as a client error, not 409.
			if errors.Is(err, domain.ErrConflict) {
				return newError(c, fiber.StatusBadRequest, "conflict", "a user with that username already exists")
			}
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":       user.ID,
			"username": user.Username,
		})
	}
}

// TokenHandler exchanges credentials for an access/refresh token pair.
func TokenHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in credentials
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		pair, err := deps.Auth.Login(c.UserContext(), in.Username, in.Password)
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(pair)
	}
}

// RefreshHandler exchanges a refresh token for a new access token.
func RefreshHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in struct {
			Refresh string `json:"refresh"`
		}
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		access, err := deps.Auth.Refresh(c.UserContext(), in.Refresh)
		if err != nil {
			return writeError(c, err)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(fiber.Map{"access": access})
	}
}
