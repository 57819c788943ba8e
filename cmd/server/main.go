package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/playsight/api/internal/client"
	"github.com/playsight/api/internal/config"
	"github.com/playsight/api/internal/handler"
	"github.com/playsight/api/internal/middleware"
	"github.com/playsight/api/internal/orchestrator"
	"github.com/playsight/api/internal/proxy"
	ws "github.com/playsight/api/internal/websocket"
	"github.com/playsight/api/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (rate limiting only)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize analyzer client
	analyzerClient := client.NewAnalyzerClient(&cfg.Analyzer)
	if !analyzerClient.IsConfigured() {
		log.Println("Warning: ANALYZER_BASE_URL not set — analyzer calls will fail with CONFIG_ERROR")
	}

	// Initialize orchestrator manager (the hub receives every state change)
	manager := orchestrator.NewManager(analyzerClient, cfg, hub)
	defer manager.Shutdown()

	// Initialize media proxy
	forwarder := proxy.NewForwarder(&cfg.Analyzer)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(manager, validate)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"analyzer": analyzerClient.IsConfigured(),
				"redis":    redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})

	// API routes
	api := app.Group("/api")

	jobs := api.Group("/jobs")
	jobs.Post("/", rateLimiter.JobLimit(cfg.RateLimit.JobsPerHour), jobHandler.Create)
	jobs.Get("/:jobId/view", jobHandler.View)
	jobs.Post("/:jobId/enqueue", jobHandler.Enqueue)
	jobs.Post("/:jobId/frames/:frameKey/open", jobHandler.OpenFrame)
	jobs.Post("/:jobId/player", rateLimiter.SelectionLimit(cfg.RateLimit.SelectionsPerMin), jobHandler.SavePlayer)
	jobs.Post("/:jobId/player/pick", jobHandler.PickPlayer)
	jobs.Post("/:jobId/target", rateLimiter.SelectionLimit(cfg.RateLimit.SelectionsPerMin), jobHandler.SaveTarget)
	jobs.Post("/:jobId/target/confirm", jobHandler.ConfirmTarget)
	jobs.Post("/:jobId/target/retry", jobHandler.RetryTarget)
	jobs.Post("/:jobId/loops/retry", jobHandler.RetryLoop)
	jobs.Delete("/:jobId", jobHandler.Close)

	// Media proxy — frame images, thumbnails, result artifacts
	app.All("/media/*", forwarder.Relay("/v1/media"))

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, "")
}
