package repository

import (
	"github.com/korehq/korebank/app/models"
	"gorm.io/gorm"
)

// mandateRepository implements the MandateRepository interface
type mandateRepository struct {
	db *gorm.DB
}

// NewMandateRepository creates a new mandate repository instance
func NewMandateRepository(db *gorm.DB) MandateRepository {
	return &mandateRepository{db: db}
}

func (r *mandateRepository) Create(mandate *models.Mandate) error {
	return r.db.Create(mandate).Error
}

func (r *mandateRepository) GetByRequestRef(requestRef string) (*models.Mandate, error) {
	var mandate models.Mandate
	err := r.db.Where("request_ref = ?", requestRef).First(&mandate).Error
	if err != nil {
		return nil, err
	}
	return &mandate, nil
}

// GetLatestForUser returns the most recently created mandate for the user
// in any state, newest first by creation time.
func (r *mandateRepository) GetLatestForUser(userID uint) (*models.Mandate, error) {
	var mandate models.Mandate
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&mandate).Error
	if err != nil {
		return nil, err
	}
	return &mandate, nil
}

// GetLatestActiveForUser returns the newest ACTIVE mandate for the user.
func (r *mandateRepository) GetLatestActiveForUser(userID uint) (*models.Mandate, error) {
	var mandate models.Mandate
	err := r.db.Where("user_id = ? AND status = ?", userID, models.MandateStatusActive).
		Order("created_at DESC, id DESC").
		First(&mandate).Error
	if err != nil {
		return nil, err
	}
	return &mandate, nil
}

func (r *mandateRepository) Update(mandate *models.Mandate) error {
	return r.db.Save(mandate).Error
}

func (r *mandateRepository) WithTx(tx *gorm.DB) MandateRepository {
	return &mandateRepository{db: tx}
}
