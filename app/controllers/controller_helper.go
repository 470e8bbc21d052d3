package controllers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/korehq/korebank/internal/pkg/bankdirectory"
	"github.com/korehq/korebank/internal/pkg/jobqueue"
	"github.com/korehq/korebank/internal/pkg/mandates"
	"github.com/korehq/korebank/internal/pkg/usercontext"
	"github.com/korehq/korebank/internal/pkg/verification"
)

// Services wired once at startup; controllers stay thin over these.
var (
	verificationService *verification.Service
	mandateService      *mandates.Service
	bankService         *bankdirectory.Service
	queueManager        *jobqueue.Manager
)

var validate = validator.New()

// InitServices wires the domain services into the controller layer.
func InitServices(v *verification.Service, m *mandates.Service, b *bankdirectory.Service, q *jobqueue.Manager) {
	verificationService = v
	mandateService = m
	bankService = b
	queueManager = q
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(c *fiber.Ctx) (uint, bool) {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
		return 0, false
	}
	return userCtx.UserID, true
}

// validationErrorResponse renders validator failures as field-labeled messages.
func validationErrorResponse(c *fiber.Ctx, err error) error {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	if len(fields) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "fields": fields})
}
