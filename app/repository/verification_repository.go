package repository

import (
	"github.com/korehq/korebank/app/models"
	"gorm.io/gorm"
)

// verificationAttemptRepository implements VerificationAttemptRepository
type verificationAttemptRepository struct {
	db *gorm.DB
}

// NewVerificationAttemptRepository creates a new audit trail repository instance
func NewVerificationAttemptRepository(db *gorm.DB) VerificationAttemptRepository {
	return &verificationAttemptRepository{db: db}
}

func (r *verificationAttemptRepository) Create(attempt *models.VerificationAttempt) error {
	return r.db.Create(attempt).Error
}

func (r *verificationAttemptRepository) GetByRequestRef(requestRef string) (*models.VerificationAttempt, error) {
	var attempt models.VerificationAttempt
	err := r.db.Where("request_ref = ?", requestRef).
		Order("created_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *verificationAttemptRepository) ListByUser(userID uint, limit int) ([]models.VerificationAttempt, error) {
	var attempts []models.VerificationAttempt
	q := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

func (r *verificationAttemptRepository) WithTx(tx *gorm.DB) VerificationAttemptRepository {
	return &verificationAttemptRepository{db: tx}
}
