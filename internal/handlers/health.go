package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"paylink/internal/repositories"
	"paylink/internal/repositories/cache"
)

const version = "1.0.0"

type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewHealthHandler takes a nil redis client when the cache is disabled.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// HealthCheck reports 503 when the database is unreachable. A failing cache only degrades.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK

	database := "connected"
	if err := repositories.Ping(h.db); err != nil {
		database = "unavailable"
		status = "unavailable"
		code = fiber.StatusServiceUnavailable
	}

	services := fiber.Map{"database": database, "redis": "disabled"}
	if h.redis != nil {
		if err := cache.Ping(c.UserContext(), h.redis); err != nil {
			services["redis"] = "unavailable"
			if status == "ok" {
				status = "degraded"
			}
		} else {
			services["redis"] = "connected"
		}
		pool := h.redis.PoolStats()
		services["redis_pool"] = fiber.Map{
			"hits":        pool.Hits,
			"misses":      pool.Misses,
			"timeouts":    pool.Timeouts,
			"total_conns": pool.TotalConns,
			"idle_conns":  pool.IdleConns,
			"stale_conns": pool.StaleConns,
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"version":  version,
		"services": services,
	})
}
