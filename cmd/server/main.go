// Package main is the entry point for the payment link service.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"paylink/internal/config"
	"paylink/internal/handlers"
	"paylink/internal/logging"
	"paylink/internal/metrics"
	"paylink/internal/middleware"
	"paylink/internal/repositories"
	"paylink/internal/repositories/cache"
	"paylink/internal/routes"
	"paylink/internal/services/admission"
	"paylink/internal/services/auth"
	"paylink/internal/services/ledger"
	"paylink/internal/services/merchant"
	"paylink/internal/services/payment"
	"paylink/internal/services/vault"
	"paylink/internal/utils/response"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load environment variables
	config.LoadEnv()
	cfg := config.Load()
	production := config.IsProduction()

	log := logging.New(cfg.Server.LogLevel, production)

	quotaLoc, err := cfg.Links.QuotaLocation()
	if err != nil {
		log.WithError(err).Fatal("invalid QUOTA_TIMEZONE")
	}
	if cfg.JWT.Secret == "" {
		log.Warn("JWT_SECRET is not set; admin endpoints will reject every request")
	}

	v, err := vault.New(vault.Config{HashCost: cfg.Vault.HashCost, EncryptionKey: cfg.Vault.EncryptionKey})
	if err != nil {
		log.WithError(err).Fatal("invalid token vault configuration")
	}
	if !v.CanEncrypt() {
		log.Warn("TOKEN_ENCRYPTION_KEY is not set; tokens will not be stored for reveal")
	}

	// Initialize databases (PostgreSQL + Redis)
	db, err := repositories.InitDB(cfg.DB, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}

	var redisClient *redis.Client
	var linkCache cache.LinkCache = cache.NoopLinkCache{}
	if cfg.Redis.Enabled {
		redisClient = cache.NewRedisClient(cfg.Redis)
		if err := cache.Ping(context.Background(), redisClient); err != nil {
			log.WithError(err).Warn("redis unavailable; link cache requests will fall through to the database")
		} else {
			log.Info("Redis connected")
		}
		linkCache = cache.NewRedisLinkCache(redisClient)
	}

	prom := metrics.NewPrometheus("paylink")

	// Services
	merchantRepo := repositories.NewMerchantRepository(db)
	led := ledger.New(repositories.NewEventRepository(db), log)
	paymentService := payment.NewService(repositories.NewPaymentLinkRepository(db), led, linkCache, prom, log, payment.Config{
		LinkTTL:       cfg.Links.TTL,
		QRLinkBase:    cfg.Links.QRLinkBase,
		PublicBaseURL: cfg.Server.PublicBaseURL,
		QuotaLocation: quotaLoc,
	}, time.Now)
	merchantService := merchant.NewService(merchantRepo, v, paymentService, led, merchant.Config{
		ExposeTokens:  cfg.Vault.ExposeTokens,
		RevealEnabled: cfg.Vault.RevealEnabled,
		Production:    production,
	}, log, time.Now)
	authenticator := auth.NewAuthenticator(merchantRepo, v, led, prom, log)
	adminTokens := auth.NewAdminTokens(cfg.JWT.Secret, cfg.JWT.TTL)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ProxyHeader: cfg.Server.ProxyHeader,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return response.Error(c, fe.Code, fe.Message)
			}
			log.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
			return response.FromError(c, err)
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSAllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,PATCH",
		AllowCredentials: true,
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(app, routes.Deps{
		Payments:         handlers.NewPaymentHandler(paymentService, log),
		Admin:            handlers.NewAdminHandler(merchantService, paymentService, log, time.Now),
		Health:           handlers.NewHealthHandler(db, redisClient),
		AdminAuth:        middleware.NewAuthMiddleware(adminTokens, log),
		MerchantAuth:     middleware.NewMerchantAuth(authenticator),
		Admission:        admission.NewState(cfg.Admission, time.Now),
		Metrics:          prom,
		MetricsHandler:   prom.Handler(),
		TelemetryRateMax: cfg.Admission.TelemetryRateMax,
	})

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	}()
	log.WithField("port", cfg.Server.Port).Info("server started")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.WithError(err).Warn("failed to close database connection")
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Warn("failed to close redis connection")
		}
	}
	log.Info("Server exited")
}
