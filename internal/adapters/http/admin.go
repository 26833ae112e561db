package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// AdminListPinsHandler lists every pin with its tier and confirmer preview.
func AdminListPinsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		params := listParams(c)

		var isPublic *bool
		if raw := c.Query("is_public"); raw != "" {
			if v, err := strconv.ParseBool(raw); err == nil {
				isPublic = &v
			}
		}

		rows, total, err := deps.Admin.ListPins(c.UserContext(), actorOf(c), params, isPublic)
		if err != nil {
			return writeError(c, err)
		}

		pg := Pagination{Offset: params.Offset, Limit: params.Limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: rows, Pagination: pg})
	}
}

// AdminApproveHandler bulk-approves pins.
func AdminApproveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in struct {
			IDs []string `json:"ids"`
		}
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		n, err := deps.Admin.Approve(c.UserContext(), actorOf(c), in.IDs)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"approved": n})
	}
}

// AdminSetStatusHandler moves one pin to a status and visibility.
func AdminSetStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in struct {
			Status   string `json:"status"`
			IsPublic *bool  `json:"is_public"`
		}
		if err := c.BodyParser(&in); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		status := domain.PinStatus(in.Status)
		isPublic := status == domain.StatusActive
		if in.IsPublic != nil {
			isPublic = *in.IsPublic
		}

		pin, err := deps.Admin.SetStatus(c.UserContext(), actorOf(c), c.Params("id"), status, isPublic)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(pin)
	}
}

// AdminConfirmationsHandler lists the ledger rows of one pin.
func AdminConfirmationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		confirmations, err := deps.Admin.ListConfirmations(c.UserContext(), actorOf(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"data": confirmations})
	}
}

// AdminReconcileHandler recomputes every pin's counter from the ledger.
func AdminReconcileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		corrected, err := deps.Admin.Reconcile(c.UserContext(), actorOf(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"corrected": corrected})
	}
}

// AdminDeleteUserHandler removes an account and its confirmations.
func AdminDeleteUserHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Admin.DeleteUser(c.UserContext(), actorOf(c), c.Params("id")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
