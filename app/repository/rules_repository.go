package repository

import (
	"github.com/korehq/korebank/app/models"
	"gorm.io/gorm"
)

// rulesEngineRepository implements the RulesEngineRepository interface
type rulesEngineRepository struct {
	db *gorm.DB
}

// NewRulesEngineRepository creates a new rules engine repository instance
func NewRulesEngineRepository(db *gorm.DB) RulesEngineRepository {
	return &rulesEngineRepository{db: db}
}

func (r *rulesEngineRepository) Create(rules *models.RulesEngine) error {
	return r.db.Create(rules).Error
}

// GetActiveForUser returns the newest active rule set for the user.
func (r *rulesEngineRepository) GetActiveForUser(userID uint) (*models.RulesEngine, error) {
	var rules models.RulesEngine
	err := r.db.Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		First(&rules).Error
	if err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *rulesEngineRepository) GetLatestForUser(userID uint) (*models.RulesEngine, error) {
	var rules models.RulesEngine
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&rules).Error
	if err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *rulesEngineRepository) Update(rules *models.RulesEngine) error {
	return r.db.Save(rules).Error
}

// DisableForUser deactivates all of the user's rule sets.
func (r *rulesEngineRepository) DisableForUser(userID uint) error {
	return r.db.Model(&models.RulesEngine{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
}
