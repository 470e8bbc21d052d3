// Package mandates drives the recurring-debit mandate state machine:
// PENDING -> ACTIVE or FAILED, ACTIVE -> CANCELLED. FAILED and CANCELLED are
// terminal; a retry means a new mandate. Every create attempt leaves a
// persisted row, including total provider failure.
package mandates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/korehq/korebank/app/models"
	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/onepipe"
)

// Client is the provider surface the lifecycle needs.
type Client interface {
	BuildCreateMandatePayload(profile onepipe.MandateProfile, monthlyMaxDebit *decimal.Decimal, atRest onepipe.Decrypter) (*onepipe.Payload, error)
	BuildCancelMandatePayload(in onepipe.CancelMandateInput) (*onepipe.Payload, error)
	Transact(ctx context.Context, p *onepipe.Payload) (*onepipe.TransactResult, error)
}

// Service orchestrates mandate creation, cancellation and queries.
type Service struct {
	profiles repository.ProfileRepository
	rules    repository.RulesEngineRepository
	mandates repository.MandateRepository
	client   Client
	atRest   onepipe.Decrypter
}

// NewService creates a mandate lifecycle service.
func NewService(
	profiles repository.ProfileRepository,
	rules repository.RulesEngineRepository,
	mandates repository.MandateRepository,
	client Client,
	atRest onepipe.Decrypter,
) *Service {
	return &Service{
		profiles: profiles,
		rules:    rules,
		mandates: mandates,
		client:   client,
		atRest:   atRest,
	}
}

// CreateResult is the outcome of a create call.
type CreateResult struct {
	Mandate       *models.Mandate
	ActivationURL string
}

// Create drives a mandate creation for the user. Preconditions are checked
// before any provider call or record write; once they pass, a PENDING row
// with a fresh request reference is persisted, the provider is called, and
// the row is updated from the outcome. The provider call is deliberately
// outside any database transaction.
func (s *Service) Create(ctx context.Context, userID uint) (*CreateResult, error) {
	profile, err := s.profiles.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PreconditionError{Reason: "profile is not completed"}
		}
		return nil, err
	}
	if !profile.IsCompleted {
		return nil, &PreconditionError{Reason: "profile is not completed"}
	}

	rules, err := s.rules.GetActiveForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &PreconditionError{Reason: "no active rules engine for this user"}
		}
		return nil, err
	}

	if missing := profile.MissingMandateFields(); len(missing) > 0 {
		return nil, &PreconditionError{Reason: "profile is missing required fields", Missing: missing}
	}
	if !onepipe.ValidPhone(profile.PhoneNumber) {
		return nil, fmt.Errorf("%w: %q", onepipe.ErrInvalidPhone, profile.PhoneNumber)
	}

	var monthlyMax *decimal.Decimal
	if rules.MonthlyMaxDebit.Valid {
		monthlyMax = &rules.MonthlyMaxDebit.Decimal
	}

	payload, err := s.client.BuildCreateMandatePayload(onepipe.MandateProfile{
		CustomerRef:      fmt.Sprintf("user-%d", userID),
		FirstName:        profile.FirstName,
		LastName:         profile.Surname,
		MobileNo:         profile.PhoneNumber,
		BankCode:         profile.BankCode,
		AccountEncrypted: profile.AccountNumberEncrypted,
		BVNEncrypted:     profile.BVNEncrypted,
	}, monthlyMax, s.atRest)
	if err != nil {
		return nil, err
	}

	// The request reference is assigned exactly once, here, and never
	// reassigned. The row exists before the provider call so the attempt is
	// observable even if the process dies mid-call.
	mandate := &models.Mandate{
		UserID:        userID,
		RulesEngineID: &rules.ID,
		Status:        models.MandateStatusPending,
		RequestRef:    payload.RequestRef,
	}
	if err := s.mandates.Create(mandate); err != nil {
		return nil, err
	}

	result, err := s.client.Transact(ctx, payload)
	if err != nil {
		mandate.Status = models.MandateStatusFailed
		mandate.ProviderResponseJSON = marshalErrorDetail(err)
		if saveErr := s.mandates.Update(mandate); saveErr != nil {
			return nil, saveErr
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, providerErrorSummary(err))
	}

	resp := result.Response
	mandate.ProviderResponseJSON = marshalJSON(resp)
	mandate.ActivationURL = onepipe.ExtractActivationURL(resp)
	mandate.TransactionRef = onepipe.ExtractTransactionRef(resp)
	mandate.PaymentID = onepipe.ExtractPaymentID(resp)
	mandate.MandateReference = onepipe.ExtractMandateReference(resp)
	if subID, ok := onepipe.ExtractSubscriptionID(resp); ok {
		mandate.SubscriptionID = &subID
	}

	reported := onepipe.IsReportedSuccessful(resp)
	switch {
	case !reported:
		mandate.Status = models.MandateStatusFailed
	case strings.EqualFold(onepipe.ExtractMandateStatus(resp), models.MandateStatusActive):
		// The provider only rarely activates synchronously; most mandates
		// stay PENDING until an explicit activation trigger.
		mandate.Status = models.MandateStatusActive
	default:
		mandate.Status = models.MandateStatusPending
	}

	if err := s.mandates.Update(mandate); err != nil {
		return nil, err
	}

	if !reported {
		return nil, &RejectedError{Message: onepipe.ExtractErrorMessage(resp)}
	}
	return &CreateResult{Mandate: mandate, ActivationURL: mandate.ActivationURL}, nil
}

// CancelResult is the outcome of a cancel call.
type CancelResult struct {
	Mandate   *models.Mandate
	Cancelled bool
}

// Cancel sends a cancellation for the user's newest ACTIVE mandate. The raw
// cancel response is always persisted for audit. The transition to CANCELLED
// happens only when the provider's top-level status is "Successful" and
// data.provider_response_code is "00"; anything else leaves the mandate
// ACTIVE with the attempt recorded.
func (s *Service) Cancel(ctx context.Context, userID uint) (*CancelResult, error) {
	mandate, err := s.mandates.GetLatestActiveForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if mandate.CancellationKey() == "" {
		return nil, ErrMissingReference
	}

	profile, err := s.profiles.GetByUserID(userID)
	if err != nil {
		return nil, err
	}

	payload, err := s.client.BuildCancelMandatePayload(onepipe.CancelMandateInput{
		CustomerRef:      fmt.Sprintf("user-%d", userID),
		MobileNo:         profile.PhoneNumber,
		MandateReference: mandate.CancellationKey(),
	})
	if err != nil {
		return nil, err
	}

	result, err := s.client.Transact(ctx, payload)
	if err != nil {
		mandate.CancelResponseJSON = marshalErrorDetail(err)
		if saveErr := s.mandates.Update(mandate); saveErr != nil {
			return nil, saveErr
		}
		return nil, fmt.Errorf("%w: %v", ErrProvider, providerErrorSummary(err))
	}

	resp := result.Response
	mandate.CancelResponseJSON = marshalJSON(resp)

	cancelled := onepipe.IsCancelConfirmed(resp)
	if cancelled {
		now := time.Now()
		mandate.Status = models.MandateStatusCancelled
		mandate.CancelledAt = &now
	}
	if err := s.mandates.Update(mandate); err != nil {
		return nil, err
	}

	return &CancelResult{Mandate: mandate, Cancelled: cancelled}, nil
}

// View is the caller-facing projection of a mandate.
type View struct {
	ID                   uint       `json:"id"`
	Status               string     `json:"status"`
	RequestRef           string     `json:"request_ref"`
	MandateReference     string     `json:"mandate_reference"`
	SubscriptionID       *int       `json:"subscription_id"`
	ActivationURL        string     `json:"activation_url"`
	ProviderResponseCode *string    `json:"provider_response_code"`
	CancelledAt          *time.Time `json:"cancelled_at"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Latest returns the user's most recently created mandate in any state.
// The provider response code is read from the cancel response first, then
// from the create response.
func (s *Service) Latest(ctx context.Context, userID uint) (*View, error) {
	_ = ctx
	mandate, err := s.mandates.GetLatestForUser(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var code *string
	for _, raw := range []string{mandate.CancelResponseJSON, mandate.ProviderResponseJSON} {
		if raw == "" {
			continue
		}
		var resp any
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			continue
		}
		if c := onepipe.ExtractProviderResponseCode(resp); c != "" {
			code = &c
			break
		}
	}

	return &View{
		ID:                   mandate.ID,
		Status:               mandate.Status,
		RequestRef:           mandate.RequestRef,
		MandateReference:     mandate.MandateReference,
		SubscriptionID:       mandate.SubscriptionID,
		ActivationURL:        mandate.ActivationURL,
		ProviderResponseCode: code,
		CancelledAt:          mandate.CancelledAt,
		CreatedAt:            mandate.CreatedAt,
	}, nil
}

// Activate is the explicit activation trigger for callers whose webhook
// correlation policy drives mandate state. It is idempotent: PENDING
// transitions to ACTIVE, an already-ACTIVE mandate is a no-op, and terminal
// mandates refuse the transition.
func (s *Service) Activate(ctx context.Context, requestRef string) (*models.Mandate, error) {
	_ = ctx
	mandate, err := s.mandates.GetByRequestRef(requestRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch mandate.Status {
	case models.MandateStatusActive:
		return mandate, nil
	case models.MandateStatusPending:
		mandate.Status = models.MandateStatusActive
		if err := s.mandates.Update(mandate); err != nil {
			return nil, err
		}
		return mandate, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTransition, mandate.Status)
	}
}

func marshalJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// marshalErrorDetail captures a provider failure as the persisted response
// document: status code (when one exists) plus the error text. Credentials
// never appear in these errors by construction.
func marshalErrorDetail(err error) string {
	detail := map[string]any{"error": err.Error()}
	var apiErr *onepipe.APIError
	if errors.As(err, &apiErr) {
		detail["status_code"] = apiErr.StatusCode
		detail["body"] = apiErr.Body
	}
	return marshalJSON(detail)
}

func providerErrorSummary(err error) string {
	var apiErr *onepipe.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("provider returned %d", apiErr.StatusCode)
	}
	return "provider unreachable"
}
