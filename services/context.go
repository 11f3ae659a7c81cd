package services

import (
	"strconv"

	"firefight-arena/models"

	"github.com/gofiber/fiber/v2"
)

// actorFromCtx reads the identity attached by the user-context middleware.
// Secured routes guarantee user_id is present.
func actorFromCtx(c *fiber.Ctx) models.Actor {
	actor := models.Actor{}
	if v, ok := c.Locals("user_id").(string); ok {
		actor.UserID = v
	}
	if v, ok := c.Locals("is_admin").(bool); ok {
		actor.IsAdmin = v
	}
	return actor
}

// parseFormInt reads an integer multipart/form field.
func parseFormInt(c *fiber.Ctx, name string) (int, error) {
	return strconv.Atoi(c.FormValue(name))
}
