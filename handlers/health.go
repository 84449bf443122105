package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gradekeeper/api/database"
	"github.com/gradekeeper/api/utils/response"
)

// HealthCheck handles GET /health
func HealthCheck(store database.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := store.HealthCheck(); err != nil {
			return response.Error(c, fiber.StatusServiceUnavailable, "Database unavailable", "SERVICE_UNAVAILABLE")
		}
		return response.Success(c, fiber.Map{"status": "ok"})
	}
}
