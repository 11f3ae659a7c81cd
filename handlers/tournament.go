package handlers

import (
	"firefight-arena/middleware"
	"firefight-arena/services"
	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournamentService *services.TournamentService) {
	userCtx := middleware.UserContextMiddleware()
	adminOnly := middleware.AdminOnlyMiddleware()

	// 🔓 Public routes (listing and detail need no user context)
	app.Get("/tournaments", tournamentService.GetAllTournaments)
	app.Get("/tournaments/:id", tournamentService.GetTournamentByID)
	app.Get("/tournaments/:id/participants", tournamentService.GetParticipants)

	// 🔐 Authenticated routes
	app.Post("/tournaments/:id/register", userCtx, tournamentService.Register)
	app.Delete("/tournaments/:id/register", userCtx, tournamentService.Withdraw)

	// Admin-only tournament management
	app.Post("/tournaments", userCtx, adminOnly, tournamentService.CreateTournament)
	app.Put("/tournaments/:id", userCtx, adminOnly, tournamentService.UpdateTournament)
	app.Patch("/tournaments/:id/status", userCtx, adminOnly, tournamentService.UpdateTournamentStatus)
	app.Delete("/tournaments/:id", userCtx, adminOnly, tournamentService.DeleteTournament)
}
