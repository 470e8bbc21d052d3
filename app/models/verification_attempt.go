package models

import "time"

const (
	AttemptStatusSuccess = "success"
	AttemptStatusFailed  = "failed"
	AttemptStatusError   = "error"
)

// RedactionSentinel replaces sensitive values in audited payloads. Stored
// payloads never contain a plaintext or even wire-encrypted account number.
const RedactionSentinel = "[ENCRYPTED]"

// VerificationAttempt is the immutable audit record of one provider call.
// Exactly one row is written per attempt, on every outcome path.
type VerificationAttempt struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	RequestRef  string `gorm:"type:varchar(255);index" json:"request_ref"`
	RequestType string `gorm:"type:varchar(50)" json:"request_type"`

	// PayloadSentJSON is a structural copy of the payload with sensitive
	// fields replaced by RedactionSentinel before persistence.
	PayloadSentJSON string `gorm:"type:longtext" json:"-"`
	ResponseJSON    string `gorm:"type:longtext" json:"-"`

	Status string `gorm:"type:varchar(20)" json:"status"`

	// WebhookCount is a denormalized tally of provider notifications
	// correlated to this attempt, flushed in batches from Redis.
	WebhookCount int64 `gorm:"not null;default:0" json:"webhook_count"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
