package models

import "time"

const (
	MandateStatusPending   = "PENDING"
	MandateStatusActive    = "ACTIVE"
	MandateStatusFailed    = "FAILED"
	MandateStatusCancelled = "CANCELLED"
)

// Mandate is an authorization for recurring debits against a verified
// account. Rows are never deleted; terminal statuses (FAILED, CANCELLED)
// stay for the audit trail and a retry means a new mandate.
type Mandate struct {
	ID            uint  `gorm:"primaryKey" json:"id"`
	UserID        uint  `gorm:"not null;index" json:"user_id"`
	RulesEngineID *uint `gorm:"index;default:null" json:"rules_engine_id,omitempty"`

	Status string `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`

	// RequestRef is the caller-side reference: globally unique, assigned once
	// at creation, and the webhook correlation key.
	RequestRef       string `gorm:"type:varchar(128);not null;uniqueIndex" json:"request_ref"`
	TransactionRef   string `gorm:"type:varchar(128);default:''" json:"transaction_ref"`
	PaymentID        string `gorm:"type:varchar(128);default:''" json:"payment_id"`
	MandateReference string `gorm:"type:varchar(128);default:'';index" json:"mandate_reference"`
	SubscriptionID   *int   `gorm:"default:null" json:"subscription_id,omitempty"`

	ActivationURL string `gorm:"type:text" json:"activation_url"`

	ProviderResponseJSON string `gorm:"type:longtext" json:"-"`
	CancelResponseJSON   string `gorm:"type:longtext" json:"-"`

	CancelledAt *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the mandate can no longer transition.
func (m *Mandate) IsTerminal() bool {
	return m.Status == MandateStatusFailed || m.Status == MandateStatusCancelled
}

// CancellationKey returns the provider cancellation key: the mandate
// reference, falling back to the payment id.
func (m *Mandate) CancellationKey() string {
	if m.MandateReference != "" {
		return m.MandateReference
	}
	return m.PaymentID
}
