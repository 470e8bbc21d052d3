package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/korehq/korebank/internal/pkg/bankdirectory"
)

// HandleGetBanks serves the bank directory from cache, refreshing from the
// provider on miss. A stale list is served when the provider is down.
func HandleGetBanks(c *fiber.Ctx) error {
	result, err := bankService.GetBanks(c.Context())
	if err != nil {
		log.Printf("bank directory fetch failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": bankdirectory.ErrUnavailable.Error(),
		})
	}

	if result.Stale {
		return c.JSON(fiber.Map{"banks": result.Banks, "stale": true})
	}
	return c.JSON(result.Banks)
}
