package rest

import (
	"time"

	"github.com/postpilot/postpilot/core/config"
	"github.com/gofiber/fiber/v2"
)

var startedAt = time.Now()

func InitRestHealth(app fiber.Router) {
	app.Get("/health", healthCheck)
	app.Get("/api/status", apiStatus)
}

func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func apiStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "running",
		"environment":    config.Global.App.Environment,
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
	})
}
