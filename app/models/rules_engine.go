package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FrequencyDaily   = "DAILY"
	FrequencyWeekly  = "WEEKLY"
	FrequencyMonthly = "MONTHLY"
)

const (
	FailureActionNotify = "NOTIFY"
	FailureActionRetry  = "RETRY"
	FailureActionPause  = "PAUSE"
)

// RulesEngine is a user's recurring-debit rule set. A mandate is always
// created against the user's single active rule set.
type RulesEngine struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	MonthlyMaxDebit    decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"monthly_max_debit"`
	SingleMaxDebit     decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"single_max_debit"`
	Frequency          string              `gorm:"type:varchar(20);default:'MONTHLY'" json:"frequency"`
	AmountPerFrequency decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"amount_per_frequency"`
	AllocationsJSON    string              `gorm:"type:longtext" json:"-"`
	FailureAction      string              `gorm:"type:varchar(20);default:'NOTIFY'" json:"failure_action"`

	StartDate time.Time  `gorm:"type:date" json:"start_date"`
	EndDate   *time.Time `gorm:"type:date;default:null" json:"end_date,omitempty"`

	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
