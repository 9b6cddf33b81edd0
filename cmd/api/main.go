package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"resuchain/resume-pipeline/internal/app"
	"resuchain/resume-pipeline/internal/config"
	"resuchain/resume-pipeline/internal/handlers"
	"resuchain/resume-pipeline/internal/middleware"
	"resuchain/resume-pipeline/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Println("✅ Config loaded successfully")

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := app.Build(ctx, cfg, db)
	if err != nil {
		log.Fatalf("❌ Failed to initialize services: %v", err)
	}
	defer components.Close()

	// Initialize worker
	worker := services.NewWorker(
		components.ResumeService,
		components.ResumeRepo,
		services.WithConcurrency(cfg.Worker.Concurrency),
		services.WithQueueSize(cfg.Worker.QueueSize),
		services.WithJobTimeout(cfg.Worker.JobTimeout),
		services.WithPollInterval(cfg.Worker.PollInterval),
	)
	components.ResumeService.SetDispatcher(worker)
	worker.Start(ctx)

	var limiterStorage fiber.Storage
	if cfg.RateLimit.RedisURL != "" {
		redisStorage, err := middleware.NewRedisStorage(cfg.RateLimit.RedisURL, "resume-pipeline:limiter:")
		if err != nil {
			log.Fatalf("❌ Failed to initialize rate limiter storage: %v", err)
		}
		defer redisStorage.Close()
		limiterStorage = redisStorage
		components.Checkers = append(components.Checkers, handlers.NewChecker("redis", redisStorage.Ping))
		log.Println("✅ Rate limiter backed by Redis")
	}

	// Initialize handlers
	resumeHandler := handlers.NewResumeHandler(components.ResumeService, cfg.Storage.MaxFileSize)
	healthHandler := handlers.NewHealthHandler(components.Checkers...)
	log.Println("✅ Handlers initialized")

	if cfg.Auth.JWTSecret == "" {
		log.Println("⚠️  JWT_SECRET is empty, tokens are signed with an empty key (development only)")
	}

	// Create Fiber app
	server := fiber.New(fiber.Config{
		AppName:      "Resume Ingestion API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// Leave room for multipart framing so oversized files reach the 413 check.
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	server.Use(recover.New())
	server.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := server.Group("/api/v1")

	api.Get("/health", healthHandler.HandleHealth)
	api.Get("/ready", healthHandler.HandleReady)

	protected := api.Group("", middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer))
	resumeHandler.Register(protected, middleware.RateLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window, limiterStorage))

	// Root route
	server.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Resume Ingestion API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/resumes/upload",
				"GET /api/v1/resumes",
				"GET /api/v1/resumes/stats",
				"GET /api/v1/resumes/search?q=",
				"GET /api/v1/resumes/:id",
				"PUT /api/v1/resumes/:id/progress?progress=",
				"DELETE /api/v1/resumes/:id",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
		worker.Stop()
		cancel()
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := server.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}

	<-stopped
	log.Println("✅ Server stopped")
}
