package mandates

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/korehq/korebank/app/models"
	"github.com/korehq/korebank/app/repository"
	"github.com/korehq/korebank/internal/pkg/onepipe"
)

type fakeProfiles struct {
	profile *models.Profile
}

func (f *fakeProfiles) Create(p *models.Profile) error { f.profile = p; return nil }
func (f *fakeProfiles) GetByUserID(userID uint) (*models.Profile, error) {
	if f.profile == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.profile, nil
}
func (f *fakeProfiles) GetOrCreateByUserID(userID uint, defaults models.Profile) (*models.Profile, error) {
	if f.profile == nil {
		defaults.UserID = userID
		f.profile = &defaults
	}
	return f.profile, nil
}
func (f *fakeProfiles) Update(p *models.Profile) error                    { f.profile = p; return nil }
func (f *fakeProfiles) WithTx(tx *gorm.DB) repository.ProfileRepository   { return f }

type fakeRules struct {
	rules *models.RulesEngine
}

func (f *fakeRules) Create(r *models.RulesEngine) error { f.rules = r; return nil }
func (f *fakeRules) GetActiveForUser(userID uint) (*models.RulesEngine, error) {
	if f.rules == nil || !f.rules.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return f.rules, nil
}
func (f *fakeRules) GetLatestForUser(userID uint) (*models.RulesEngine, error) {
	if f.rules == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.rules, nil
}
func (f *fakeRules) Update(r *models.RulesEngine) error { f.rules = r; return nil }
func (f *fakeRules) DisableForUser(userID uint) error {
	if f.rules != nil {
		f.rules.IsActive = false
	}
	return nil
}

type fakeMandates struct {
	mandate *models.Mandate
	creates int
	updates int
}

func (f *fakeMandates) Create(m *models.Mandate) error {
	f.creates++
	m.ID = uint(f.creates)
	f.mandate = m
	return nil
}
func (f *fakeMandates) GetByRequestRef(requestRef string) (*models.Mandate, error) {
	if f.mandate == nil || f.mandate.RequestRef != requestRef {
		return nil, gorm.ErrRecordNotFound
	}
	return f.mandate, nil
}
func (f *fakeMandates) GetLatestForUser(userID uint) (*models.Mandate, error) {
	if f.mandate == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.mandate, nil
}
func (f *fakeMandates) GetLatestActiveForUser(userID uint) (*models.Mandate, error) {
	if f.mandate == nil || f.mandate.Status != models.MandateStatusActive {
		return nil, gorm.ErrRecordNotFound
	}
	return f.mandate, nil
}
func (f *fakeMandates) Update(m *models.Mandate) error {
	f.updates++
	f.mandate = m
	return nil
}
func (f *fakeMandates) WithTx(tx *gorm.DB) repository.MandateRepository { return f }

// fakeProviderClient returns canned payloads and responses. It records
// whether the pending row existed at the moment of the provider call.
type fakeProviderClient struct {
	repo *fakeMandates

	response     any
	transactErr  error
	builds       int
	transacts    int
	rowAtCall *models.Mandate
}

func (f *fakeProviderClient) BuildCreateMandatePayload(profile onepipe.MandateProfile, monthlyMaxDebit *decimal.Decimal, atRest onepipe.Decrypter) (*onepipe.Payload, error) {
	f.builds++
	return &onepipe.Payload{RequestRef: "req-create-1", RequestType: onepipe.RequestTypeCreateMandate}, nil
}

func (f *fakeProviderClient) BuildCancelMandatePayload(in onepipe.CancelMandateInput) (*onepipe.Payload, error) {
	f.builds++
	return &onepipe.Payload{RequestRef: "req-cancel-1", RequestType: onepipe.RequestTypeCancelMandate}, nil
}

func (f *fakeProviderClient) Transact(ctx context.Context, p *onepipe.Payload) (*onepipe.TransactResult, error) {
	f.transacts++
	if f.repo != nil && f.repo.mandate != nil {
		snapshot := *f.repo.mandate
		f.rowAtCall = &snapshot
	}
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	return &onepipe.TransactResult{RequestRef: p.RequestRef, Response: f.response}, nil
}

type identityDecrypter struct{}

func (identityDecrypter) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

func completedProfile() *models.Profile {
	return &models.Profile{
		UserID:                 1,
		FirstName:              "Ada",
		Surname:                "Obi",
		PhoneNumber:            "2348012345678",
		BankName:               "GTBank",
		BankCode:               "058",
		AccountNumberEncrypted: "enc-account",
		BVNEncrypted:           "enc-bvn",
		IsCompleted:            true,
	}
}

func activeRules() *models.RulesEngine {
	return &models.RulesEngine{
		ID:              7,
		UserID:          1,
		MonthlyMaxDebit: decimal.NewNullDecimal(decimal.RequireFromString("100000.00")),
		IsActive:        true,
	}
}

func decodeResponse(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func newTestService(profile *models.Profile, rules *models.RulesEngine) (*Service, *fakeMandates, *fakeProviderClient) {
	mandateRepo := &fakeMandates{}
	client := &fakeProviderClient{repo: mandateRepo}
	svc := NewService(&fakeProfiles{profile: profile}, &fakeRules{rules: rules}, mandateRepo, client, identityDecrypter{})
	return svc, mandateRepo, client
}

func TestCreate_NoProfile(t *testing.T) {
	svc, repo, client := newTestService(nil, activeRules())

	_, err := svc.Create(context.Background(), 1)

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "profile is not completed", pre.Reason)
	assert.Zero(t, repo.creates)
	assert.Zero(t, client.transacts)
}

func TestCreate_ProfileNotCompleted(t *testing.T) {
	profile := completedProfile()
	profile.IsCompleted = false
	svc, repo, _ := newTestService(profile, activeRules())

	_, err := svc.Create(context.Background(), 1)

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Zero(t, repo.creates)
}

func TestCreate_NoActiveRules(t *testing.T) {
	svc, repo, _ := newTestService(completedProfile(), nil)

	_, err := svc.Create(context.Background(), 1)

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, "no active rules engine for this user", pre.Reason)
	assert.Zero(t, repo.creates)
}

func TestCreate_MissingProfileFields(t *testing.T) {
	profile := completedProfile()
	profile.BankCode = ""
	profile.BVNEncrypted = ""
	svc, repo, client := newTestService(profile, activeRules())

	_, err := svc.Create(context.Background(), 1)

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.ElementsMatch(t, []string{"bank_code", "bvn"}, pre.Missing)
	assert.Zero(t, repo.creates)
	assert.Zero(t, client.transacts)
}

func TestCreate_InvalidPhone(t *testing.T) {
	profile := completedProfile()
	profile.PhoneNumber = "08012345678"
	svc, repo, _ := newTestService(profile, activeRules())

	_, err := svc.Create(context.Background(), 1)

	assert.ErrorIs(t, err, onepipe.ErrInvalidPhone)
	assert.Zero(t, repo.creates)
}

func TestCreate_PendingRowExistsBeforeProviderCall(t *testing.T) {
	svc, _, client := newTestService(completedProfile(), activeRules())
	client.response = decodeResponse(t, `{"status":"Successful","data":{"activation_url":"https://pay.example/activate"}}`)

	result, err := svc.Create(context.Background(), 1)
	require.NoError(t, err)

	// The PENDING row was persisted before the provider was called, carrying
	// the payload's request reference.
	require.NotNil(t, client.rowAtCall)
	assert.Equal(t, models.MandateStatusPending, client.rowAtCall.Status)
	assert.Equal(t, "req-create-1", client.rowAtCall.RequestRef)

	// No synchronous activation: the mandate stays PENDING.
	assert.Equal(t, models.MandateStatusPending, result.Mandate.Status)
	assert.Equal(t, "https://pay.example/activate", result.ActivationURL)
	assert.Equal(t, "req-create-1", result.Mandate.RequestRef)
	rulesID := result.Mandate.RulesEngineID
	require.NotNil(t, rulesID)
	assert.Equal(t, uint(7), *rulesID)
}

func TestCreate_SynchronousActivation(t *testing.T) {
	svc, _, client := newTestService(completedProfile(), activeRules())
	client.response = decodeResponse(t, `{"status":"Successful","data":{"mandate_status":"ACTIVE","mandate_reference":"MND-1","subscription_id":"42"}}`)

	result, err := svc.Create(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, models.MandateStatusActive, result.Mandate.Status)
	assert.Equal(t, "MND-1", result.Mandate.MandateReference)
	require.NotNil(t, result.Mandate.SubscriptionID)
	assert.Equal(t, 42, *result.Mandate.SubscriptionID)
}

func TestCreate_ProviderRejection(t *testing.T) {
	svc, repo, client := newTestService(completedProfile(), activeRules())
	client.response = decodeResponse(t, `{"status":"Failed","message":"Mandate not permitted"}`)

	_, err := svc.Create(context.Background(), 1)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Mandate not permitted", rejected.Message)

	// The row survives as FAILED with the raw response for audit.
	require.NotNil(t, repo.mandate)
	assert.Equal(t, models.MandateStatusFailed, repo.mandate.Status)
	assert.Contains(t, repo.mandate.ProviderResponseJSON, "Mandate not permitted")
}

func TestCreate_TransportFailure(t *testing.T) {
	svc, repo, client := newTestService(completedProfile(), activeRules())
	client.transactErr = errors.New("dial tcp: connection refused")

	_, err := svc.Create(context.Background(), 1)

	assert.ErrorIs(t, err, ErrProvider)
	require.NotNil(t, repo.mandate)
	assert.Equal(t, models.MandateStatusFailed, repo.mandate.Status)
	assert.Contains(t, repo.mandate.ProviderResponseJSON, "connection refused")
}

func TestCreate_APIErrorDetailPersisted(t *testing.T) {
	svc, repo, client := newTestService(completedProfile(), activeRules())
	client.transactErr = &onepipe.APIError{StatusCode: 502, Body: `{"message":"bad gateway"}`}

	_, err := svc.Create(context.Background(), 1)

	assert.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "502")

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(repo.mandate.ProviderResponseJSON), &detail))
	assert.Equal(t, float64(502), detail["status_code"])
}

func TestCancel_NoActiveMandate(t *testing.T) {
	svc, _, _ := newTestService(completedProfile(), activeRules())

	_, err := svc.Cancel(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_MissingReference(t *testing.T) {
	svc, repo, _ := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{UserID: 1, Status: models.MandateStatusActive, RequestRef: "req-1"}

	_, err := svc.Cancel(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestCancel_Confirmed(t *testing.T) {
	svc, repo, client := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{
		UserID:           1,
		Status:           models.MandateStatusActive,
		RequestRef:       "req-1",
		MandateReference: "MND-1",
	}
	client.response = decodeResponse(t, `{"status":"Successful","data":{"provider_response_code":"00"}}`)

	result, err := svc.Cancel(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Equal(t, models.MandateStatusCancelled, result.Mandate.Status)
	require.NotNil(t, result.Mandate.CancelledAt)
	assert.Contains(t, result.Mandate.CancelResponseJSON, `"00"`)
}

func TestCancel_NotConfirmedKeepsMandateActive(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"Wrong response code", `{"status":"Successful","data":{"provider_response_code":"01"}}`},
		{"Missing response code", `{"status":"Successful","data":{}}`},
		{"Failed status", `{"status":"Failed","data":{"provider_response_code":"00"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, client := newTestService(completedProfile(), activeRules())
			repo.mandate = &models.Mandate{
				UserID:           1,
				Status:           models.MandateStatusActive,
				RequestRef:       "req-1",
				MandateReference: "MND-1",
			}
			client.response = decodeResponse(t, tt.raw)

			result, err := svc.Cancel(context.Background(), 1)
			require.NoError(t, err)

			assert.False(t, result.Cancelled)
			assert.Equal(t, models.MandateStatusActive, result.Mandate.Status)
			assert.Nil(t, result.Mandate.CancelledAt)
			// The attempt is still on the record.
			assert.NotEmpty(t, result.Mandate.CancelResponseJSON)
		})
	}
}

func TestCancel_PaymentIDFallback(t *testing.T) {
	svc, repo, client := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{
		UserID:     1,
		Status:     models.MandateStatusActive,
		RequestRef: "req-1",
		PaymentID:  "PAY-55",
	}
	client.response = decodeResponse(t, `{"status":"Successful","data":{"provider_response_code":"00"}}`)

	result, err := svc.Cancel(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
}

func TestCancel_TransportFailurePersistsAttempt(t *testing.T) {
	svc, repo, client := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{
		UserID:           1,
		Status:           models.MandateStatusActive,
		RequestRef:       "req-1",
		MandateReference: "MND-1",
	}
	client.transactErr = errors.New("dial tcp: connection refused")

	_, err := svc.Cancel(context.Background(), 1)

	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, models.MandateStatusActive, repo.mandate.Status)
	assert.Contains(t, repo.mandate.CancelResponseJSON, "connection refused")
}

func TestLatest_None(t *testing.T) {
	svc, _, _ := newTestService(completedProfile(), activeRules())

	_, err := svc.Latest(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatest_PrefersCancelResponseCode(t *testing.T) {
	svc, repo, _ := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{
		ID:                   3,
		UserID:               1,
		Status:               models.MandateStatusCancelled,
		RequestRef:           "req-1",
		ProviderResponseJSON: `{"data":{"provider_response_code":"01"}}`,
		CancelResponseJSON:   `{"data":{"provider_response_code":"00"}}`,
	}

	view, err := svc.Latest(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, view.ProviderResponseCode)
	assert.Equal(t, "00", *view.ProviderResponseCode)
	assert.Equal(t, models.MandateStatusCancelled, view.Status)
}

func TestLatest_FallsBackToCreateResponseCode(t *testing.T) {
	svc, repo, _ := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{
		ID:                   3,
		UserID:               1,
		Status:               models.MandateStatusPending,
		RequestRef:           "req-1",
		ProviderResponseJSON: `{"data":{"provider_response_code":"09"}}`,
	}

	view, err := svc.Latest(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, view.ProviderResponseCode)
	assert.Equal(t, "09", *view.ProviderResponseCode)
}

func TestLatest_NoResponseCode(t *testing.T) {
	svc, repo, _ := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{ID: 3, UserID: 1, Status: models.MandateStatusPending, RequestRef: "req-1"}

	view, err := svc.Latest(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, view.ProviderResponseCode)
}

func TestActivate_PendingToActive(t *testing.T) {
	svc, repo, _ := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{UserID: 1, Status: models.MandateStatusPending, RequestRef: "req-1"}

	mandate, err := svc.Activate(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.MandateStatusActive, mandate.Status)
	assert.Equal(t, 1, repo.updates)
}

func TestActivate_AlreadyActiveIsNoOp(t *testing.T) {
	svc, repo, _ := newTestService(completedProfile(), activeRules())
	repo.mandate = &models.Mandate{UserID: 1, Status: models.MandateStatusActive, RequestRef: "req-1"}

	mandate, err := svc.Activate(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.MandateStatusActive, mandate.Status)
	assert.Zero(t, repo.updates)
}

func TestActivate_TerminalRefuses(t *testing.T) {
	for _, status := range []string{models.MandateStatusFailed, models.MandateStatusCancelled} {
		t.Run(status, func(t *testing.T) {
			svc, repo, _ := newTestService(completedProfile(), activeRules())
			repo.mandate = &models.Mandate{UserID: 1, Status: status, RequestRef: "req-1"}

			_, err := svc.Activate(context.Background(), "req-1")
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestActivate_UnknownRef(t *testing.T) {
	svc, _, _ := newTestService(completedProfile(), activeRules())

	_, err := svc.Activate(context.Background(), "no-such-ref")
	assert.ErrorIs(t, err, ErrNotFound)
}
