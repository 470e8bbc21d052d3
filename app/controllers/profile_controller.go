package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/korehq/korebank/app/models"
	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/verification"
)

type personalInfoRequest struct {
	FirstName   string `json:"first_name" validate:"required,max=255"`
	Surname     string `json:"surname" validate:"required,max=255"`
	PhoneNumber string `json:"phone_number" validate:"required,max=20"`
	DateOfBirth string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender" validate:"omitempty,oneof=M F"`
}

type bankInfoRequest struct {
	BankName      string `json:"bank_name" validate:"required,max=255"`
	BankCode      string `json:"bank_code" validate:"required,max=10"`
	AccountNumber string `json:"account_number" validate:"required,max=20"`
	BVN           string `json:"bvn" validate:"required,len=11,numeric"`
}

// HandleGetProfile returns the authenticated user's profile. Sensitive fields
// stay out of the response entirely.
func HandleGetProfile(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	repo := repository.GetGlobalFactory().GetProfileRepository()
	profile, err := repo.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load profile"})
	}

	return c.JSON(profile)
}

// HandleUpdatePersonalInfo stores personal data in the profile draft.
func HandleUpdatePersonalInfo(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req personalInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	saved, err := verificationService.SavePersonal(userID, models.DraftPersonal{
		FirstName:   req.FirstName,
		Surname:     req.Surname,
		PhoneNumber: req.PhoneNumber,
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
	})
	if err != nil {
		log.Printf("save personal draft failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save personal information"})
	}

	return c.JSON(saved)
}

// HandleUpdateBankInfo encrypts and stores bank data in the profile draft.
// The response never echoes the account number or BVN.
func HandleUpdateBankInfo(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	var req bankInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	saved, err := verificationService.SaveBank(userID, verification.BankInput{
		BankName:      req.BankName,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		BVN:           req.BVN,
	})
	if err != nil {
		log.Printf("save bank draft failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save bank information"})
	}

	return c.JSON(fiber.Map{
		"bank_name": saved.BankName,
		"bank_code": saved.BankCode,
	})
}

// HandleSubmitProfile runs the account-ownership verification and promotes
// the draft on success.
func HandleSubmitProfile(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	result, err := verificationService.Submit(c.Context(), userID)
	if err != nil {
		var rejected *verification.RejectedError
		switch {
		case errors.Is(err, verification.ErrNoProfile):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Profile does not exist"})
		case errors.Is(err, verification.ErrDraftIncomplete):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Both personal and bank information are required. Please complete both sections."})
		case errors.As(err, &rejected):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":             "verification_failed",
				"message":           rejected.Message,
				"provider_response": rejected.Response,
			})
		case errors.Is(err, verification.ErrService):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "bad_gateway", "message": "Failed to contact bank verification service"})
		default:
			log.Printf("profile submit failed for user %d: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "An unexpected error occurred"})
		}
	}

	return c.JSON(fiber.Map{
		"status":  "verified",
		"message": "Your bank account has been verified successfully",
		"profile": fiber.Map{
			"is_completed": true,
			"bank_name":    result.BankName,
			"bank_code":    result.BankCode,
		},
	})
}

// HandleListVerificationAttempts returns the user's recent verification
// attempts. Payloads are persisted redacted, so they are safe to return.
func HandleListVerificationAttempts(c *fiber.Ctx) error {
	userID, ok := requireUser(c)
	if !ok {
		return nil
	}

	attempts, err := verificationService.Attempts(userID, 20)
	if err != nil {
		log.Printf("attempt listing failed for user %d: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load verification attempts"})
	}

	return c.JSON(fiber.Map{"attempts": attempts})
}
