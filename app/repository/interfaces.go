package repository

import (
	"github.com/korehq/korebank/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
}

// ProfileRepository defines the interface for profile-related operations
type ProfileRepository interface {
	Create(profile *models.Profile) error
	GetByUserID(userID uint) (*models.Profile, error)
	GetOrCreateByUserID(userID uint, defaults models.Profile) (*models.Profile, error)
	Update(profile *models.Profile) error
	WithTx(tx *gorm.DB) ProfileRepository
}

// RulesEngineRepository defines the interface for rule-set operations
type RulesEngineRepository interface {
	Create(rules *models.RulesEngine) error
	GetActiveForUser(userID uint) (*models.RulesEngine, error)
	GetLatestForUser(userID uint) (*models.RulesEngine, error)
	Update(rules *models.RulesEngine) error
	DisableForUser(userID uint) error
}

// MandateRepository defines the interface for mandate persistence
type MandateRepository interface {
	Create(mandate *models.Mandate) error
	GetByRequestRef(requestRef string) (*models.Mandate, error)
	GetLatestForUser(userID uint) (*models.Mandate, error)
	GetLatestActiveForUser(userID uint) (*models.Mandate, error)
	Update(mandate *models.Mandate) error
	// WithTx returns a repository bound to the given transaction handle so
	// that mandate and audit writes commit together.
	WithTx(tx *gorm.DB) MandateRepository
}

// VerificationAttemptRepository defines the interface for the audit trail
type VerificationAttemptRepository interface {
	Create(attempt *models.VerificationAttempt) error
	GetByRequestRef(requestRef string) (*models.VerificationAttempt, error)
	ListByUser(userID uint, limit int) ([]models.VerificationAttempt, error)
	WithTx(tx *gorm.DB) VerificationAttemptRepository
}

// WebhookEventRepository defines the interface for inbound webhook storage
type WebhookEventRepository interface {
	Create(event *models.WebhookEvent) error
	GetByID(id uint) (*models.WebhookEvent, error)
	Update(event *models.WebhookEvent) error
	ListUnprocessed(limit int) ([]models.WebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// Repositories bundles all repository implementations
type Repositories struct {
	User        UserRepository
	Profile     ProfileRepository
	RulesEngine RulesEngineRepository
	Mandate     MandateRepository
	Attempt     VerificationAttemptRepository
	Webhook     WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Profile:     NewProfileRepository(db),
		RulesEngine: NewRulesEngineRepository(db),
		Mandate:     NewMandateRepository(db),
		Attempt:     NewVerificationAttemptRepository(db),
		Webhook:     NewWebhookEventRepository(db),
	}
}
