package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"firefight-arena/config"
	"firefight-arena/events"
	"firefight-arena/handlers"
	"firefight-arena/middleware"
	"firefight-arena/models"
	"firefight-arena/services"
	"firefight-arena/utils"
	"firefight-arena/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 32 * 1024 * 1024, // evidence uploads
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	allowedOriginsList := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token, X-User-ID, X-User-Roles, X-User-Name, X-User-Email",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.Match{},
		&models.MatchReport{},
		&models.WalletTransaction{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.InitR2(cfg.CloudflareAccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2Bucket, cfg.CDNBaseURL); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	hub := events.NewHub()

	walletService := services.NewWalletService(db, hub)
	tournamentService := services.NewTournamentService(db, walletService, hub)
	matchService := services.NewMatchService(db, walletService, hub)
	teamService := services.NewTeamService(db)
	userService := services.NewUserService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paymentWorker := workers.NewPaymentWorker(
		db, walletService,
		cfg.PaymentProviderURL, cfg.ServiceToken,
		time.Duration(cfg.PaymentPollSeconds)*time.Second,
		time.Duration(cfg.PaymentExpiryMinutes)*time.Minute,
	)
	paymentWorker.Start(ctx)

	userSyncWorker := workers.NewUserSyncWorker(db, cfg.ProfileServiceURL, cfg.ServiceToken)
	userSyncWorker.Start(ctx)

	tournamentService.StartLifecycleScheduler()

	handlers.SetupTournamentRoutes(app, tournamentService)
	handlers.SetupMatchRoutes(app, matchService)
	handlers.SetupWalletRoutes(app, walletService)
	handlers.SetupTeamRoutes(app, teamService)
	handlers.SetupUserRoutes(app, userService)
	handlers.SetupEventRoutes(app, hub)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"subscribers": hub.SubscriberCount(),
		})
	})

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
