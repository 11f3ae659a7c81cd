package handlers

import (
	"firefight-arena/middleware"
	"firefight-arena/services"
	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService) {
	userCtx := middleware.UserContextMiddleware()
	adminOnly := middleware.AdminOnlyMiddleware()

	// 🔐 Authenticated routes
	app.Get("/users/me", userCtx, userService.GetMe)

	// Admin-only user management
	app.Get("/users/search", userCtx, adminOnly, userService.SearchUsers)
	app.Patch("/users/:user_id/ban", userCtx, adminOnly, userService.BanUser)
	app.Patch("/users/:user_id/kyc", userCtx, adminOnly, userService.UpdateKYC)
}
