package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/repoviral/backend/internal/ai"
	"github.com/repoviral/backend/internal/config"
	"github.com/repoviral/backend/internal/database"
	"github.com/repoviral/backend/internal/handlers"
	"github.com/repoviral/backend/internal/middleware"
	"github.com/repoviral/backend/internal/models"
	"github.com/repoviral/backend/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "RepoViral API v1.0",
		ServerHeader: "RepoViral",
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "repoviral-api",
		})
	})

	// Services
	usageService := services.NewUsageService(database.DB)
	subscriptionService := services.NewSubscriptionService(database.DB, cfg.GumroadProduct)
	generator := ai.NewGenerator(cfg)

	// Handlers
	generateHandler := handlers.NewGenerateHandler(cfg, database.DB, usageService, generator)
	historyHandler := handlers.NewHistoryHandler(database.DB, usageService)
	webhookHandler := handlers.NewWebhookHandler(cfg, subscriptionService)

	// API routes
	api := app.Group("/api")

	// Apply rate limiting to API routes (60 requests per minute)
	api.Use(middleware.RateLimiter(60, 1*time.Minute))

	// Protected routes
	protected := api.Group("", middleware.AuthRequired(cfg))
	protected.Post("/generate", generateHandler.Generate)
	protected.Get("/history", historyHandler.List)
	protected.Get("/profile", historyHandler.Profile)

	// Webhook routes (authenticated by signature, not JWT)
	app.Post("/webhooks/gumroad", webhookHandler.Gumroad)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting RepoViral API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
