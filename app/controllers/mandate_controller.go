package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/korehq/korebank/internal/pkg/mandates"
	"github.com/korehq/korebank/internal/pkg/onepipe"
)

// HandleCreateMandate creates a recurring-debit mandate for the user's
// verified profile against their active rule set.
func HandleCreateMandate(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	result, err := mandateService.Create(c.Context(), userID)
	if err != nil {
		var precondition *mandates.PreconditionError
		var rejected *mandates.RejectedError
		switch {
		case errors.As(err, &precondition):
			body := fiber.Map{"error": "precondition_failed", "message": precondition.Reason}
			if len(precondition.Missing) > 0 {
				body["missing_fields"] = precondition.Missing
			}
			return c.Status(fiber.StatusBadRequest).JSON(body)
		case errors.Is(err, onepipe.ErrInvalidPhone):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Phone number must be 13 digits starting with 234"})
		case errors.As(err, &rejected):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mandate_rejected", "message": rejected.Message})
		case errors.Is(err, mandates.ErrProvider):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": mandates.ErrProvider.Error()})
		default:
			log.Printf("mandate create failed for user %d: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create mandate"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":             result.Mandate.ID,
		"status":         result.Mandate.Status,
		"request_ref":    result.Mandate.RequestRef,
		"activation_url": result.ActivationURL,
	})
}

// HandleGetMandate returns the user's most recent mandate.
func HandleGetMandate(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	view, err := mandateService.Latest(c.Context(), userID)
	if err != nil {
		if errors.Is(err, mandates.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": mandates.ErrNotFound.Error()})
		}
		log.Printf("mandate query failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load mandate"})
	}

	return c.JSON(view)
}

// HandleCancelMandate cancels the user's newest active mandate.
func HandleCancelMandate(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	result, err := mandateService.Cancel(c.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, mandates.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No active mandate to cancel"})
		case errors.Is(err, mandates.ErrMissingReference):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": mandates.ErrMissingReference.Error()})
		case errors.Is(err, onepipe.ErrInvalidPhone):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Phone number must be 13 digits starting with 234"})
		case errors.Is(err, mandates.ErrProvider):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": mandates.ErrProvider.Error()})
		default:
			log.Printf("mandate cancel failed for user %d: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to cancel mandate"})
		}
	}

	if !result.Cancelled {
		// Provider acknowledged the request without confirming cancellation;
		// the mandate stays ACTIVE with the attempt recorded.
		return c.JSON(fiber.Map{
			"status":  result.Mandate.Status,
			"message": "Cancellation was not confirmed by the provider",
		})
	}

	return c.JSON(fiber.Map{
		"status":       result.Mandate.Status,
		"cancelled_at": result.Mandate.CancelledAt,
	})
}
