package handlers

import (
	"firefight-arena/middleware"
	"firefight-arena/services"
	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matchService *services.MatchService) {
	userCtx := middleware.UserContextMiddleware()
	adminOnly := middleware.AdminOnlyMiddleware()

	// 🔓 Public match listing
	app.Get("/tournaments/:id/matches", matchService.GetTournamentMatches)

	// 🔐 Authenticated routes
	app.Post("/matches/:match_id/reports", userCtx, matchService.SubmitReportHandler)
	app.Get("/reports/mine", userCtx, matchService.GetMyReports)

	// Admin-only match management and report review
	app.Post("/tournaments/:id/matches", userCtx, adminOnly, matchService.CreateMatchHandler)
	app.Patch("/matches/:match_id/complete", userCtx, adminOnly, matchService.CompleteMatchHandler)
	app.Get("/reports/pending", userCtx, adminOnly, matchService.GetPendingReports)
	app.Patch("/reports/:id/verify", userCtx, adminOnly, matchService.VerifyReportHandler)
}
