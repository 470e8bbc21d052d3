package models

import (
	"encoding/json"
	"time"
)

// DraftPersonal is the unverified personal section of a profile draft.
type DraftPersonal struct {
	FirstName   string `json:"first_name"`
	Surname     string `json:"surname"`
	PhoneNumber string `json:"phone_number"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

// DraftBank is the unverified bank section of a profile draft. Account number
// and BVN are at-rest encrypted before they ever enter the draft.
type DraftBank struct {
	BankName               string `json:"bank_name"`
	BankCode               string `json:"bank_code"`
	AccountNumberEncrypted string `json:"account_number_encrypted"`
	BVNEncrypted           string `json:"bvn_encrypted"`
}

// ProfileDraft accumulates unverified edits until a provider lookup confirms
// account ownership, at which point the draft is promoted and cleared.
type ProfileDraft struct {
	Personal *DraftPersonal `json:"personal,omitempty"`
	Bank     *DraftBank     `json:"bank,omitempty"`
}

// Complete reports whether both sections are present.
func (d *ProfileDraft) Complete() bool {
	return d.Personal != nil && d.Bank != nil
}

// Draft decodes the profile's pending draft. An empty column decodes to an
// empty draft.
func (p *Profile) Draft() (*ProfileDraft, error) {
	draft := &ProfileDraft{}
	if p.DraftPayloadJSON == "" {
		return draft, nil
	}
	if err := json.Unmarshal([]byte(p.DraftPayloadJSON), draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// SetDraft encodes and stores the draft on the profile. It does not persist.
func (p *Profile) SetDraft(draft *ProfileDraft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	p.DraftPayloadJSON = string(raw)
	return nil
}

// ClearDraft drops any pending draft. It does not persist.
func (p *Profile) ClearDraft() {
	p.DraftPayloadJSON = ""
}

// Promote copies verified draft data onto the profile's final fields, marks
// the profile completed and clears the draft. It does not persist.
func (p *Profile) Promote(draft *ProfileDraft) {
	if draft.Personal != nil {
		p.FirstName = draft.Personal.FirstName
		p.Surname = draft.Personal.Surname
		p.PhoneNumber = draft.Personal.PhoneNumber
		p.Gender = draft.Personal.Gender
		if draft.Personal.DateOfBirth != "" {
			if dob, err := time.Parse("2006-01-02", draft.Personal.DateOfBirth); err == nil {
				p.DateOfBirth = &dob
			}
		}
	}
	if draft.Bank != nil {
		p.BankName = draft.Bank.BankName
		p.BankCode = draft.Bank.BankCode
		p.AccountNumberEncrypted = draft.Bank.AccountNumberEncrypted
		p.BVNEncrypted = draft.Bank.BVNEncrypted
	}
	p.IsCompleted = true
	p.ClearDraft()
}
