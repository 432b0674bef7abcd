package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	apperrors "paylink/internal/errors"
	"paylink/internal/handlers"
	"paylink/internal/metrics"
	"paylink/internal/middleware"
	"paylink/internal/models"
	"paylink/internal/services/admission"
	"paylink/internal/utils/response"
)

// Deps is everything the route table hangs handlers and guards on.
type Deps struct {
	Payments     *handlers.PaymentHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
	AdminAuth    *middleware.AuthMiddleware
	MerchantAuth *middleware.MerchantAuth
	Admission    *admission.State
	Metrics      metrics.Collector
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// TelemetryRateMax caps scan and bank calls per client IP per minute. Zero disables it.
	TelemetryRateMax int
}

func SetupRoutes(app *fiber.App, d Deps) {
	app.Get("/health", d.Health.HealthCheck)
	if d.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.MetricsHandler))
	}

	setupPaymentRoutes(app, d)
	setupAdminRoutes(app, d)
}

// setupPaymentRoutes mounts the public surface. Only these paths pass through admission.
func setupPaymentRoutes(app *fiber.App, d Deps) {
	guard := middleware.Admission(d.Admission, d.Metrics)
	telemetry := telemetryLimiter(d.TelemetryRateMax)

	payments := app.Group("/payment")
	payments.Post("/generate", guard, d.MerchantAuth.Handler, d.Payments.Generate)
	payments.Get("/:linkId/qr.png", guard, d.Payments.QRImage)
	payments.Get("/:linkId", guard, d.Payments.Resolve)
	payments.Post("/:linkId/scan", telemetry, guard, d.Payments.Scan)
	payments.Post("/:linkId/bank", telemetry, guard, d.Payments.Bank)
}

func setupAdminRoutes(app *fiber.App, d Deps) {
	admin := app.Group("/api/admin", d.AdminAuth.Handler)

	merchants := admin.Group("/merchants")
	merchants.Get("/", middleware.HasPermission(models.PermissionMerchantRead), d.Admin.ListMerchants)
	merchants.Post("/", middleware.HasPermission(models.PermissionMerchantWrite), d.Admin.CreateMerchant)
	merchants.Get("/:id", middleware.HasPermission(models.PermissionMerchantRead), d.Admin.GetMerchant)
	merchants.Put("/:id", middleware.HasPermission(models.PermissionMerchantWrite), d.Admin.UpdateMerchant)

	// Token lifecycle
	merchants.Post("/:id/token/rotate", middleware.HasPermission(models.PermissionTokenRotate), d.Admin.RotateToken)
	merchants.Get("/:id/token/preview", middleware.HasPermission(models.PermissionMerchantRead), d.Admin.TokenPreview)
	merchants.Get("/:id/token/reveal", middleware.HasPermission(models.PermissionTokenReveal), d.Admin.RevealToken)

	merchants.Post("/:id/payments", middleware.HasPermission(models.PermissionPaymentCreate), d.Admin.GeneratePayment)
	merchants.Get("/:id/generations/stats", middleware.HasPermission(models.PermissionReportsRead), d.Admin.GenerationStats)
}

func telemetryLimiter(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return response.FromError(c, apperrors.ErrRateLimited)
		},
	})
}
