package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/korehq/korebank/app/models"
	"github.com/korehq/korebank/app/repository"
)

type allocation struct {
	Bucket     string `json:"bucket" validate:"required"`
	Percentage int    `json:"percentage" validate:"required,min=1,max=100"`
}

type rulesEngineRequest struct {
	MonthlyMaxDebit    string       `json:"monthly_max_debit" validate:"required"`
	SingleMaxDebit     string       `json:"single_max_debit" validate:"required"`
	Frequency          string       `json:"frequency" validate:"required,oneof=DAILY WEEKLY MONTHLY"`
	AmountPerFrequency string       `json:"amount_per_frequency" validate:"required"`
	Allocations        []allocation `json:"allocations" validate:"required,min=1,dive"`
	FailureAction      string       `json:"failure_action" validate:"required,oneof=NOTIFY RETRY PAUSE"`
	StartDate          string       `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate            string       `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// HandleCreateRulesEngine creates a new active rule set for the user. Any
// previously active rule set is disabled: one active set per user.
func HandleCreateRulesEngine(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req rulesEngineRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	monthly, err := decimal.NewFromString(req.MonthlyMaxDebit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "monthly_max_debit must be a decimal amount"})
	}
	single, err := decimal.NewFromString(req.SingleMaxDebit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "single_max_debit must be a decimal amount"})
	}
	perFrequency, err := decimal.NewFromString(req.AmountPerFrequency)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "amount_per_frequency must be a decimal amount"})
	}

	total := 0
	for _, a := range req.Allocations {
		total += a.Percentage
	}
	if total != 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "allocations must sum to 100 percent"})
	}
	allocationsJSON, err := json.Marshal(req.Allocations)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid allocations"})
	}

	startDate, _ := time.Parse("2006-01-02", req.StartDate)
	var endDate *time.Time
	if req.EndDate != "" {
		parsed, _ := time.Parse("2006-01-02", req.EndDate)
		if !parsed.After(startDate) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "end_date must be after start_date"})
		}
		endDate = &parsed
	}

	repo := repository.GetGlobalFactory().GetRulesEngineRepository()
	if err := repo.DisableForUser(userID); err != nil {
		log.Printf("failed to disable previous rules for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create rule set"})
	}

	rules := &models.RulesEngine{
		UserID:             userID,
		MonthlyMaxDebit:    decimal.NewNullDecimal(monthly),
		SingleMaxDebit:     decimal.NewNullDecimal(single),
		Frequency:          req.Frequency,
		AmountPerFrequency: decimal.NewNullDecimal(perFrequency),
		AllocationsJSON:    string(allocationsJSON),
		FailureAction:      req.FailureAction,
		StartDate:          startDate,
		EndDate:            endDate,
		IsActive:           true,
	}
	if err := repo.Create(rules); err != nil {
		log.Printf("failed to create rules for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create rule set"})
	}

	return c.Status(fiber.StatusCreated).JSON(rulesEngineResponse(rules))
}

// HandleGetRulesEngine returns the user's active rule set.
func HandleGetRulesEngine(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetRulesEngineRepository()
	rules, err := repo.GetActiveForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No active rule set"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load rule set"})
	}

	return c.JSON(rulesEngineResponse(rules))
}

// HandleDisableRulesEngine deactivates the user's active rule set.
func HandleDisableRulesEngine(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetRulesEngineRepository()
	if _, err := repo.GetActiveForUser(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No active rule set"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load rule set"})
	}
	if err := repo.DisableForUser(userID); err != nil {
		log.Printf("failed to disable rules for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to disable rule set"})
	}

	return c.JSON(fiber.Map{"status": "disabled"})
}

func rulesEngineResponse(rules *models.RulesEngine) fiber.Map {
	var allocations []allocation
	if rules.AllocationsJSON != "" {
		_ = json.Unmarshal([]byte(rules.AllocationsJSON), &allocations)
	}
	return fiber.Map{
		"id":                   rules.ID,
		"monthly_max_debit":    rules.MonthlyMaxDebit,
		"single_max_debit":     rules.SingleMaxDebit,
		"frequency":            rules.Frequency,
		"amount_per_frequency": rules.AmountPerFrequency,
		"allocations":          allocations,
		"failure_action":       rules.FailureAction,
		"start_date":           rules.StartDate.Format("2006-01-02"),
		"end_date":             rules.EndDate,
		"is_active":            rules.IsActive,
		"created_at":           rules.CreatedAt,
	}
}
