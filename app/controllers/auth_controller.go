package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/korehq/korebank/app/models"
	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/env"
	"github.com/korehq/korebank/internal/pkg/security"
	"github.com/korehq/korebank/internal/pkg/usercontext"
)

const (
	tokenTTL        = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleSignup registers a new user account.
func HandleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(req.Email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email already registered"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("signup lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Signup failed"})
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password)
	if err != nil {
		return validationErrorResponse(c, err)
	}
	if err := repo.Create(user); err != nil {
		log.Printf("signup create failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Signup failed"})
	}

	// Every user gets a profile row up front; draft writes would create it
	// lazily anyway, this just keeps the row observable from day one.
	profileRepo := repository.GetGlobalFactory().GetProfileRepository()
	if err := profileRepo.Create(&models.Profile{UserID: user.ID}); err != nil {
		log.Printf("profile bootstrap failed for user %d: %v", user.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

// HandleLogin verifies credentials and issues an access token.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err != nil || !user.CheckPassword(req.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid email or password"})
	}
	if !user.IsActive() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Account disabled"})
	}

	secret := env.GetEnv("JWT_SECRET", "")
	token, err := security.GenerateAuthToken(user.ID, user.Email, user.Role, tokenTTL, secret)
	if err != nil {
		log.Printf("token generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}
	refreshToken, err := security.GenerateRefreshToken(user.ID, user.Email, user.Role, refreshTokenTTL, secret)
	if err != nil {
		log.Printf("refresh token generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Login failed"})
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repo.Update(user); err != nil {
		log.Printf("failed to update last login for user %d: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{
		"access_token":  token,
		"refresh_token": refreshToken,
		"expires_at":    now.Add(tokenTTL).Unix(),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// HandleRefreshToken exchanges a valid refresh token for a fresh access
// token. The refresh token itself is not rotated.
func HandleRefreshToken(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	secret := env.GetEnv("JWT_SECRET", "")
	claims, err := security.VerifyAuthToken(req.RefreshToken, secret)
	if err != nil || claims.TokenType != security.TokenTypeRefresh {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or expired refresh token"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(claims.UserID)
	if err != nil || !user.IsActive() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid or expired refresh token"})
	}

	token, err := security.GenerateAuthToken(user.ID, user.Email, user.Role, tokenTTL, secret)
	if err != nil {
		log.Printf("token generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Token refresh failed"})
	}

	return c.JSON(fiber.Map{
		"access_token": token,
		"expires_at":   time.Now().Add(tokenTTL).Unix(),
	})
}

// HandleGetMe returns account information for the authenticated user.
func HandleGetMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load user"})
	}

	return c.JSON(fiber.Map{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"role":          user.Role,
		"status":        user.Status,
		"created_at":    user.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(user.LastLoginAt),
	})
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
