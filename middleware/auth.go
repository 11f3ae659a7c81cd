// middleware/auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the identity the Gateway attached to the
// request. Every secured route requires X-User-ID; the admin flag comes
// from the roles header and is the only capability check the core performs.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		if userID == "" {
			log.Printf("❌ [USER_CTX] X-User-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID — request must come through gateway with auth context",
			})
		}

		isAdmin := false
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if strings.TrimSpace(r) == "admin" {
				isAdmin = true
				break
			}
		}

		c.Locals("user_id", userID)
		c.Locals("is_admin", isAdmin)

		return c.Next()
	}
}

// AdminOnlyMiddleware guards admin route groups. Services re-check the
// admin flag on their own; this just fails fast with a uniform response.
func AdminOnlyMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isAdmin, ok := c.Locals("is_admin").(bool); !ok || !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
				"code":  "UNAUTHORIZED",
			})
		}
		return c.Next()
	}
}
