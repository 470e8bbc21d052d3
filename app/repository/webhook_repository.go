package repository

import (
	"github.com/korehq/korebank/app/models"
	"gorm.io/gorm"
)

// webhookEventRepository implements WebhookEventRepository
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Create(event *models.WebhookEvent) error {
	return r.db.Create(event).Error
}

func (r *webhookEventRepository) GetByID(id uint) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.First(&event, id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *webhookEventRepository) Update(event *models.WebhookEvent) error {
	return r.db.Save(event).Error
}

// ListUnprocessed returns the oldest stored events not yet marked processed.
func (r *webhookEventRepository) ListUnprocessed(limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	q := r.db.Where("processed = ?", false).Order("received_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}

// MarkProcessed flags an event as handled and stores an optional error text.
func (r *webhookEventRepository) MarkProcessed(id uint, processingError string) error {
	updates := map[string]interface{}{
		"processed": true,
		"error":     processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
