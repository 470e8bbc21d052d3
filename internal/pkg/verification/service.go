// Package verification owns the account-ownership flow: profile drafts,
// the provider lookup on submit, the redacted audit trail, and inbound
// webhook intake.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/korehq/korebank/app/models"
	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/onepipe"
)

// Client is the provider surface the verification flow needs.
type Client interface {
	BuildLookupAccountPayload(in onepipe.LookupAccountInput) (*onepipe.Payload, error)
	Transact(ctx context.Context, p *onepipe.Payload) (*onepipe.TransactResult, error)
}

// Cipher is the at-rest scheme for account numbers and BVNs.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service orchestrates profile drafts, submission and webhook intake.
type Service struct {
	db       *gorm.DB
	profiles repository.ProfileRepository
	attempts repository.VerificationAttemptRepository
	webhooks repository.WebhookEventRepository
	client   Client
	cipher   Cipher
}

// NewService creates a verification service.
func NewService(
	db *gorm.DB,
	profiles repository.ProfileRepository,
	attempts repository.VerificationAttemptRepository,
	webhooks repository.WebhookEventRepository,
	client Client,
	cipher Cipher,
) *Service {
	return &Service{
		db:       db,
		profiles: profiles,
		attempts: attempts,
		webhooks: webhooks,
		client:   client,
		cipher:   cipher,
	}
}

// SavePersonal stores unverified personal data in the profile draft. Final
// profile fields are untouched until a successful submit.
func (s *Service) SavePersonal(userID uint, in models.DraftPersonal) (*models.DraftPersonal, error) {
	profile, err := s.profiles.GetOrCreateByUserID(userID, models.Profile{})
	if err != nil {
		return nil, err
	}
	draft, err := profile.Draft()
	if err != nil {
		return nil, err
	}
	draft.Personal = &in
	if err := profile.SetDraft(draft); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(profile); err != nil {
		return nil, err
	}
	return &in, nil
}

// BankInput is the plaintext bank section as received from the caller.
type BankInput struct {
	BankName      string
	BankCode      string
	AccountNumber string
	BVN           string
}

// SaveBank encrypts the sensitive bank fields and stores them in the profile
// draft. Plaintext never reaches the database.
func (s *Service) SaveBank(userID uint, in BankInput) (*models.DraftBank, error) {
	profile, err := s.profiles.GetOrCreateByUserID(userID, models.Profile{})
	if err != nil {
		return nil, err
	}

	accountEnc, err := s.cipher.Encrypt(in.AccountNumber)
	if err != nil {
		return nil, err
	}
	bvnEnc, err := s.cipher.Encrypt(in.BVN)
	if err != nil {
		return nil, err
	}

	draft, err := profile.Draft()
	if err != nil {
		return nil, err
	}
	draft.Bank = &models.DraftBank{
		BankName:               in.BankName,
		BankCode:               in.BankCode,
		AccountNumberEncrypted: accountEnc,
		BVNEncrypted:           bvnEnc,
	}
	if err := profile.SetDraft(draft); err != nil {
		return nil, err
	}
	if err := s.profiles.Update(profile); err != nil {
		return nil, err
	}
	return draft.Bank, nil
}

// SubmitResult is the outcome of a successful profile submission.
type SubmitResult struct {
	Verified bool
	BankName string
	BankCode string
}

// Submit sends the drafted profile through the provider's account-ownership
// lookup. On verification the draft is promoted onto the profile; the promote
// and its audit record commit in one transaction. Every path out of this
// method leaves exactly one VerificationAttempt row, and the persisted
// payload always carries the redaction sentinel in place of the account
// number and BVN.
func (s *Service) Submit(ctx context.Context, userID uint) (*SubmitResult, error) {
	profile, err := s.profiles.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoProfile
		}
		return nil, err
	}
	draft, err := profile.Draft()
	if err != nil {
		return nil, err
	}
	if !draft.Complete() {
		return nil, ErrDraftIncomplete
	}

	account, err := s.cipher.Decrypt(draft.Bank.AccountNumberEncrypted)
	if err != nil {
		return nil, err
	}
	bvn, err := s.cipher.Decrypt(draft.Bank.BVNEncrypted)
	if err != nil {
		return nil, err
	}

	payload, err := s.client.BuildLookupAccountPayload(onepipe.LookupAccountInput{
		CustomerRef:     fmt.Sprintf("user-%d", userID),
		AccountNumber:   account,
		BankCode:        draft.Bank.BankCode,
		BVN:             bvn,
		FirstName:       draft.Personal.FirstName,
		LastName:        draft.Personal.Surname,
		MobileNo:        draft.Personal.PhoneNumber,
		TransactionDesc: "Bank account verification for profile completion",
	})
	if err != nil {
		return nil, err
	}

	// Redact before the call so the error path can never observe an
	// unredacted payload.
	redacted := redactForAudit(payload)

	result, err := s.client.Transact(ctx, payload)
	if err != nil {
		attempt := &models.VerificationAttempt{
			UserID:          userID,
			RequestRef:      payload.RequestRef,
			RequestType:     payload.RequestType,
			PayloadSentJSON: redacted,
			ResponseJSON:    marshalErrorDetail(err),
			Status:          models.AttemptStatusError,
		}
		if saveErr := s.attempts.Create(attempt); saveErr != nil {
			return nil, saveErr
		}
		return nil, fmt.Errorf("%w: %v", ErrService, err)
	}

	resp := result.Response
	responseJSON := marshalJSON(resp)

	if !onepipe.IsVerificationSuccessful(resp) {
		attempt := &models.VerificationAttempt{
			UserID:          userID,
			RequestRef:      result.RequestRef,
			RequestType:     payload.RequestType,
			PayloadSentJSON: redacted,
			ResponseJSON:    responseJSON,
			Status:          models.AttemptStatusFailed,
		}
		if saveErr := s.attempts.Create(attempt); saveErr != nil {
			return nil, saveErr
		}
		return nil, &RejectedError{Message: onepipe.ExtractErrorMessage(resp), Response: resp}
	}

	profile.Promote(draft)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.profiles.WithTx(tx).Update(profile); err != nil {
			return err
		}
		return s.attempts.WithTx(tx).Create(&models.VerificationAttempt{
			UserID:          userID,
			RequestRef:      result.RequestRef,
			RequestType:     payload.RequestType,
			PayloadSentJSON: redacted,
			ResponseJSON:    responseJSON,
			Status:          models.AttemptStatusSuccess,
		})
	})
	if err != nil {
		return nil, err
	}

	return &SubmitResult{Verified: true, BankName: profile.BankName, BankCode: profile.BankCode}, nil
}

// IntakeResult describes how an inbound webhook was stored. Stored is false
// only when even the fallback write failed; the transport layer still acks.
type IntakeResult struct {
	EventID    uint
	Stored     bool
	Correlated bool
	StoredErr  string
}

// HandleInbound stores a raw provider webhook and best-effort correlates it
// to a prior VerificationAttempt by request_ref. It never returns an error:
// correlation and even storage failures are captured in the result so the
// endpoint can ack regardless and the provider does not retry-storm us.
func (s *Service) HandleInbound(ctx context.Context, provider string, raw []byte) IntakeResult {
	_ = ctx
	event := &models.WebhookEvent{
		Provider:    provider,
		PayloadJSON: string(raw),
	}

	var payload map[string]any
	var intakeErr string
	if err := json.Unmarshal(raw, &payload); err != nil {
		intakeErr = fmt.Sprintf("unparseable payload: %v", err)
	} else if ref, ok := payload["request_ref"].(string); ok && ref != "" {
		attempt, err := s.attempts.GetByRequestRef(ref)
		switch {
		case err == nil:
			event.VerificationAttemptID = &attempt.ID
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Unmatched references are normal; store unlinked.
		default:
			intakeErr = fmt.Sprintf("correlation lookup failed: %v", err)
		}
	}
	event.Error = intakeErr

	if err := s.webhooks.Create(event); err != nil {
		log.Printf("[Webhook] failed to store %s event: %v", provider, err)
		return IntakeResult{Stored: false, StoredErr: err.Error()}
	}
	return IntakeResult{
		EventID:    event.ID,
		Stored:     true,
		Correlated: event.VerificationAttemptID != nil,
		StoredErr:  intakeErr,
	}
}

// Attempts lists the user's most recent audit records.
func (s *Service) Attempts(userID uint, limit int) ([]models.VerificationAttempt, error) {
	return s.attempts.ListByUser(userID, limit)
}

// redactForAudit produces the persistable copy of a payload: a structural
// clone with transaction.account_number and transaction.meta.bvn forced to
// the redaction sentinel. Forcing the account_number key even though the wire
// payload carries the account only inside auth.secure guarantees the stored
// document can never contain it under any future payload shape.
func redactForAudit(p *onepipe.Payload) string {
	raw, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	tx, ok := doc["transaction"].(map[string]any)
	if !ok {
		tx = map[string]any{}
		doc["transaction"] = tx
	}
	tx["account_number"] = models.RedactionSentinel
	if meta, ok := tx["meta"].(map[string]any); ok {
		if _, has := meta["bvn"]; has {
			meta["bvn"] = models.RedactionSentinel
		}
	}
	return marshalJSON(doc)
}

func marshalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// marshalErrorDetail records a provider failure as the audit response body.
func marshalErrorDetail(err error) string {
	detail := map[string]any{"error": err.Error()}
	var apiErr *onepipe.APIError
	if errors.As(err, &apiErr) {
		detail["status_code"] = apiErr.StatusCode
		detail["body"] = apiErr.Body
	}
	return marshalJSON(detail)
}
