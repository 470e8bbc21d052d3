package models

import "time"

// Profile holds a user's personal and bank data. Account number and BVN are
// stored at-rest encrypted only; the plaintext columns do not exist.
// Unverified edits accumulate in DraftPayloadJSON until the provider lookup
// confirms account ownership, then the draft is promoted onto the row.
type Profile struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	FirstName   string     `gorm:"type:varchar(255);default:''" json:"first_name"`
	Surname     string     `gorm:"type:varchar(255);default:''" json:"surname"`
	PhoneNumber string     `gorm:"type:varchar(20);default:''" json:"phone_number"`
	DateOfBirth *time.Time `gorm:"type:date;default:null" json:"date_of_birth,omitempty"`
	Gender      string     `gorm:"type:varchar(1);default:null" json:"gender,omitempty"`

	BankName               string `gorm:"type:varchar(255);default:''" json:"bank_name"`
	BankCode               string `gorm:"type:varchar(10);default:''" json:"bank_code"`
	AccountNumberEncrypted string `gorm:"type:text" json:"-"`
	BVNEncrypted           string `gorm:"type:text" json:"-"`

	DraftPayloadJSON string `gorm:"type:longtext" json:"-"`

	IsCompleted bool      `gorm:"default:false" json:"is_completed"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MissingMandateFields names the profile fields a mandate creation needs but
// that are absent. An empty result means the profile is mandate-ready.
func (p *Profile) MissingMandateFields() []string {
	var missing []string
	if p.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if p.Surname == "" {
		missing = append(missing, "surname")
	}
	if p.PhoneNumber == "" {
		missing = append(missing, "phone_number")
	}
	if p.BankCode == "" {
		missing = append(missing, "bank_code")
	}
	if p.AccountNumberEncrypted == "" {
		missing = append(missing, "account_number")
	}
	if p.BVNEncrypted == "" {
		missing = append(missing, "bvn")
	}
	return missing
}
