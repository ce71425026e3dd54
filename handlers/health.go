package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lingodeck/api/database"
)

// HandleCheckHealth reports API and database liveness
func HandleCheckHealth(c *fiber.Ctx, store *database.GORMStore) error {
	if err := store.HealthCheck(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  "database unreachable",
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
