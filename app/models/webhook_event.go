package models

import "time"

const ProviderOnePipe = "onepipe"

// WebhookEvent is the raw record of an inbound provider notification.
// Storage must succeed even when correlation fails; the correlation link is
// best-effort and never blocks the write.
type WebhookEvent struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Provider string `gorm:"type:varchar(50);not null;index" json:"provider"`

	PayloadJSON string `gorm:"type:longtext;not null" json:"payload_json"`

	VerificationAttemptID *uint `gorm:"index;default:null" json:"verification_attempt_id,omitempty"`

	Processed  bool      `gorm:"default:false;index" json:"processed"`
	Error      string    `gorm:"type:text" json:"error"`
	ReceivedAt time.Time `gorm:"autoCreateTime;index" json:"received_at"`
}
