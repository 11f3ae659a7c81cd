package handlers

import (
	"firefight-arena/middleware"
	"firefight-arena/services"
	"github.com/gofiber/fiber/v2"
)

func SetupTeamRoutes(app *fiber.App, teamService *services.TeamService) {
	userCtx := middleware.UserContextMiddleware()

	// 🔐 All team routes need user context
	app.Post("/teams", userCtx, teamService.CreateTeamHandler)
	app.Get("/teams/mine", userCtx, teamService.GetMyTeams)
	app.Get("/teams/:id", userCtx, teamService.GetTeam)
	app.Post("/teams/join", userCtx, teamService.JoinTeamHandler)
	app.Post("/teams/:id/leave", userCtx, teamService.LeaveTeamHandler)
	app.Patch("/teams/:id/captain", userCtx, teamService.TransferCaptaincyHandler)
	app.Delete("/teams/:id", userCtx, teamService.DeleteTeamHandler)
}
