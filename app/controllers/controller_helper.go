package controllers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/lexdrive/ratehub/internal/pkg/importer"
	"github.com/lexdrive/ratehub/internal/pkg/vehiclematch"
)

// Services shared by the API handlers, wired once at startup. Repositories
// come from the global factory; these hold the stateful components on top.
var (
	importService *importer.Importer
	matchService  *vehiclematch.Matcher
	validate      = validator.New()
)

// InitServices installs the singleton services used by the API handlers.
func InitServices(imp *importer.Importer, matcher *vehiclematch.Matcher) {
	importService = imp
	matchService = matcher
}

func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusBadRequest, "bad_request", message)
}

func notFound(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusNotFound, "not_found", message)
}

func serverError(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", message)
}

// pagination reads offset/limit query params with sane bounds
func pagination(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return offset, limit
}
