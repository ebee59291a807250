package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// actingUserHeader carries the authenticated caller's id. Authentication
// itself lives in the external identity collaborator; the service only
// needs the id for history attribution.
const actingUserHeader = "X-User-ID"

func actingUserID(c *fiber.Ctx) (int64, error) {
	raw := c.Get(actingUserHeader)
	if raw == "" {
		return 0, apperrors.NewValidationError("X-User-ID header required", nil)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("X-User-ID must be a positive integer", nil)
	}
	return id, nil
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, nil)
	}
	return id, nil
}

func queryInt(c *fiber.Ctx, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
