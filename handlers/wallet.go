package handlers

import (
	"firefight-arena/middleware"
	"firefight-arena/services"
	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService) {
	userCtx := middleware.UserContextMiddleware()
	adminOnly := middleware.AdminOnlyMiddleware()

	// Payment provider callbacks. The gateway token check already ran; these
	// carry no user context, only the provider reaches them.
	app.Post("/payments/:transaction_id/confirm", walletService.ConfirmPaymentCallback)
	app.Post("/payments/:transaction_id/fail", walletService.FailPaymentCallback)

	// 🔐 Authenticated routes
	app.Get("/wallet", userCtx, walletService.GetWallet)
	app.Get("/wallet/transactions", userCtx, walletService.GetTransactions)
	app.Post("/wallet/deposit", userCtx, walletService.Deposit)

	// Admin-only ledger operations
	app.Post("/wallet/:user_id/adjust", userCtx, adminOnly, walletService.AdjustWallet)
	app.Post("/wallet/transactions/:id/refund", userCtx, adminOnly, walletService.RefundTransaction)
}
