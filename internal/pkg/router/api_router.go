package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/korehq/korebank/app/controllers"
	"github.com/korehq/korebank/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "korebank api",
		})
	})

	// Public routes
	api.Post("/auth/signup", controllers.HandleSignup)
	api.Post("/auth/login", controllers.HandleLogin)
	api.Post("/auth/refresh", controllers.HandleRefreshToken)
	api.Get("/banks", controllers.HandleGetBanks)

	// Provider callbacks; must stay open and must always ack
	api.Post("/webhooks/onepipe", controllers.HandleOnePipeWebhook)

	// Authenticated routes
	auth := api.Group("", middleware.JWTAuthMiddleware())
	auth.Get("/auth/me", controllers.HandleGetMe)

	auth.Get("/profile/me", controllers.HandleGetProfile)
	auth.Patch("/profile/personal", controllers.HandleUpdatePersonalInfo)
	auth.Patch("/profile/bank", controllers.HandleUpdateBankInfo)
	auth.Post("/profile/submit", controllers.HandleSubmitProfile)
	auth.Get("/profile/attempts", controllers.HandleListVerificationAttempts)

	auth.Post("/rules-engine", controllers.HandleCreateRulesEngine)
	auth.Get("/rules-engine/me", controllers.HandleGetRulesEngine)
	auth.Post("/rules-engine/me/disable", controllers.HandleDisableRulesEngine)

	auth.Post("/mandates/create", controllers.HandleCreateMandate)
	auth.Get("/mandates/me", controllers.HandleGetMandate)
	auth.Post("/mandates/cancel", controllers.HandleCancelMandate)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
