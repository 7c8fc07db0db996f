package controllers

import (
	"github.com/applitrack/AppliTrack/internal/pkg/database"
	"github.com/applitrack/AppliTrack/internal/pkg/metrics/counter"
	"github.com/applitrack/AppliTrack/internal/pkg/outbox"
	"github.com/gofiber/fiber/v2"
)

// HandleHealthz is the liveness probe. A database outage is reported
// as degraded, still with a 200.
func HandleHealthz(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}

	db := database.GetDB()
	if db == nil {
		resp["status"] = "degraded"
		return c.Status(fiber.StatusOK).JSON(resp)
	}
	if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
		resp["status"] = "degraded"
		return c.Status(fiber.StatusOK).JSON(resp)
	}

	if manager := outbox.GetManager(); manager != nil {
		if stats, err := manager.GetQueue().PendingItemStats(); err == nil {
			resp["outbox"] = stats
		}
	}
	if deliveries, err := counter.Snapshot(); err == nil {
		resp["deliveries"] = deliveries
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}
