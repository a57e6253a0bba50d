// middleware/auth.go
package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the resolved participant identity set by
// the Gateway. The service does no credential checks of its own: identity
// arrives already authenticated as X-User-ID / X-User-Name headers.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		userName := c.Get("X-User-Name")

		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}
		if userName == "" {
			userName = userID
		}

		// Attach to ctx for handlers
		c.Locals("user_id", userID)
		c.Locals("user_name", userName)

		return c.Next()
	}
}
