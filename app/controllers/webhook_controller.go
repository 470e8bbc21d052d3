package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/korehq/korebank/app/models"
)

// HandleOnePipeWebhook stores an inbound provider notification. It always
// acks with 200 so the provider never enters a retry storm; processing
// problems are captured on the stored event instead.
func HandleOnePipeWebhook(c *fiber.Ctx) error {
	result := verificationService.HandleInbound(c.Context(), models.ProviderOnePipe, c.Body())

	if result.Stored && queueManager != nil {
		if _, err := queueManager.EnqueueWebhookEvent(result.EventID); err != nil {
			log.Errorf("[Webhook] Failed to enqueue event %d: %v", result.EventID, err)
		}
	}

	if !result.Stored || result.StoredErr != "" {
		return c.JSON(fiber.Map{
			"status":  "received",
			"warning": "Webhook stored but error during processing",
		})
	}

	return c.JSON(fiber.Map{
		"status":     "received",
		"webhook_id": result.EventID,
	})
}
