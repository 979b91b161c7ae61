package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/lexdrive/ratehub/internal/pkg/env"
)

// APIKeyAuthMiddleware authenticates requests against the deployment's API
// key. The key lives in the environment (API_KEY); an empty key disables the
// check, which is only sensible in dev.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := env.GetEnv("API_KEY", "")
		if expected == "" {
			if env.IsDev() {
				return c.Next()
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal_server_error", "message": "API key not configured"})
		}

		supplied := c.Get("X-API-Key")
		if supplied == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized", "message": "Missing API key"})
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized", "message": "Invalid API key"})
		}
		return c.Next()
	}
}
