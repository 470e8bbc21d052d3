package verification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

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
func (f *fakeProfiles) Update(p *models.Profile) error                  { f.profile = p; return nil }
func (f *fakeProfiles) WithTx(tx *gorm.DB) repository.ProfileRepository { return f }

type fakeAttempts struct {
	attempts []models.VerificationAttempt
}

func (f *fakeAttempts) Create(a *models.VerificationAttempt) error {
	a.ID = uint(len(f.attempts) + 1)
	f.attempts = append(f.attempts, *a)
	return nil
}
func (f *fakeAttempts) GetByRequestRef(requestRef string) (*models.VerificationAttempt, error) {
	for i := range f.attempts {
		if f.attempts[i].RequestRef == requestRef {
			return &f.attempts[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeAttempts) ListByUser(userID uint, limit int) ([]models.VerificationAttempt, error) {
	return f.attempts, nil
}
func (f *fakeAttempts) WithTx(tx *gorm.DB) repository.VerificationAttemptRepository { return f }

type fakeWebhooks struct {
	events    []models.WebhookEvent
	createErr error
}

func (f *fakeWebhooks) Create(e *models.WebhookEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	e.ID = uint(len(f.events) + 1)
	f.events = append(f.events, *e)
	return nil
}
func (f *fakeWebhooks) GetByID(id uint) (*models.WebhookEvent, error) {
	for i := range f.events {
		if f.events[i].ID == id {
			return &f.events[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeWebhooks) Update(e *models.WebhookEvent) error {
	for i := range f.events {
		if f.events[i].ID == e.ID {
			f.events[i] = *e
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}
func (f *fakeWebhooks) ListUnprocessed(limit int) ([]models.WebhookEvent, error) {
	var out []models.WebhookEvent
	for _, e := range f.events {
		if !e.Processed {
			out = append(out, e)
		}
	}
	return out, nil
}
func (f *fakeWebhooks) MarkProcessed(id uint, processingError string) error {
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Processed = true
			f.events[i].Error = processingError
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeLookupClient builds a realistic lookup payload from the input so the
// redaction tests see the same shape the wire would carry.
type fakeLookupClient struct {
	response    any
	transactErr error
	transacts   int
}

func (f *fakeLookupClient) BuildLookupAccountPayload(in onepipe.LookupAccountInput) (*onepipe.Payload, error) {
	return &onepipe.Payload{
		RequestRef:  "req-lookup-1",
		RequestType: onepipe.RequestTypeLookupAccount,
		Auth:        &onepipe.Auth{Type: "bank.account", Secure: "wire-ciphertext", AuthProvider: "PaywithAccount"},
		Transaction: &onepipe.Transaction{
			MockMode: "live",
			Amount:   0,
			Customer: &onepipe.Customer{
				CustomerRef: in.CustomerRef,
				Firstname:   in.FirstName,
				Surname:     in.LastName,
				MobileNo:    in.MobileNo,
			},
			Meta:    map[string]any{"bvn": in.BVN},
			Details: map[string]any{},
		},
	}, nil
}

func (f *fakeLookupClient) Transact(ctx context.Context, p *onepipe.Payload) (*onepipe.TransactResult, error) {
	f.transacts++
	if f.transactErr != nil {
		return nil, f.transactErr
	}
	return &onepipe.TransactResult{RequestRef: p.RequestRef, Response: f.response}, nil
}

// prefixCipher marks ciphertext with a prefix instead of real encryption.
type prefixCipher struct{}

func (prefixCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }
func (prefixCipher) Decrypt(ciphertext string) (string, error) {
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

func draftedProfile(t *testing.T) *models.Profile {
	t.Helper()
	profile := &models.Profile{UserID: 1}
	require.NoError(t, profile.SetDraft(&models.ProfileDraft{
		Personal: &models.DraftPersonal{
			FirstName:   "Ada",
			Surname:     "Obi",
			PhoneNumber: "2348012345678",
			DateOfBirth: "1990-04-15",
			Gender:      "F",
		},
		Bank: &models.DraftBank{
			BankName:               "GTBank",
			BankCode:               "058",
			AccountNumberEncrypted: "enc:0123456789",
			BVNEncrypted:           "enc:22345678901",
		},
	}))
	return profile
}

func newTestService(profile *models.Profile) (*Service, *fakeAttempts, *fakeWebhooks, *fakeLookupClient) {
	attempts := &fakeAttempts{}
	webhooks := &fakeWebhooks{}
	client := &fakeLookupClient{}
	svc := NewService(nil, &fakeProfiles{profile: profile}, attempts, webhooks, client, prefixCipher{})
	return svc, attempts, webhooks, client
}

func decodeResponse(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestSavePersonal_TouchesDraftOnly(t *testing.T) {
	svc, _, _, _ := newTestService(&models.Profile{UserID: 1, FirstName: "Old"})

	_, err := svc.SavePersonal(1, models.DraftPersonal{FirstName: "Ada", Surname: "Obi"})
	require.NoError(t, err)

	profile, err := svc.profiles.GetByUserID(1)
	require.NoError(t, err)
	assert.Equal(t, "Old", profile.FirstName)
	assert.False(t, profile.IsCompleted)

	draft, err := profile.Draft()
	require.NoError(t, err)
	require.NotNil(t, draft.Personal)
	assert.Equal(t, "Ada", draft.Personal.FirstName)
}

func TestSaveBank_EncryptsSensitiveFields(t *testing.T) {
	svc, _, _, _ := newTestService(&models.Profile{UserID: 1})

	bank, err := svc.SaveBank(1, BankInput{
		BankName:      "GTBank",
		BankCode:      "058",
		AccountNumber: "0123456789",
		BVN:           "22345678901",
	})
	require.NoError(t, err)

	assert.Equal(t, "enc:0123456789", bank.AccountNumberEncrypted)
	assert.Equal(t, "enc:22345678901", bank.BVNEncrypted)

	// The stored draft never carries the plaintext values.
	profile, err := svc.profiles.GetByUserID(1)
	require.NoError(t, err)
	assert.NotContains(t, profile.DraftPayloadJSON, `"0123456789"`)
	assert.NotContains(t, profile.DraftPayloadJSON, `"22345678901"`)
}

func TestSaveBank_KeepsExistingPersonalSection(t *testing.T) {
	profile := &models.Profile{UserID: 1}
	require.NoError(t, profile.SetDraft(&models.ProfileDraft{
		Personal: &models.DraftPersonal{FirstName: "Ada"},
	}))
	svc, _, _, _ := newTestService(profile)

	_, err := svc.SaveBank(1, BankInput{BankName: "GTBank", BankCode: "058", AccountNumber: "0123456789", BVN: "22345678901"})
	require.NoError(t, err)

	draft, err := profile.Draft()
	require.NoError(t, err)
	require.NotNil(t, draft.Personal)
	assert.Equal(t, "Ada", draft.Personal.FirstName)
	assert.True(t, draft.Complete())
}

func TestSubmit_NoProfile(t *testing.T) {
	svc, attempts, _, client := newTestService(nil)

	_, err := svc.Submit(context.Background(), 1)

	assert.ErrorIs(t, err, ErrNoProfile)
	assert.Empty(t, attempts.attempts)
	assert.Zero(t, client.transacts)
}

func TestSubmit_IncompleteDraft(t *testing.T) {
	profile := &models.Profile{UserID: 1}
	require.NoError(t, profile.SetDraft(&models.ProfileDraft{
		Personal: &models.DraftPersonal{FirstName: "Ada"},
	}))
	svc, attempts, _, client := newTestService(profile)

	_, err := svc.Submit(context.Background(), 1)

	assert.ErrorIs(t, err, ErrDraftIncomplete)
	assert.Empty(t, attempts.attempts)
	assert.Zero(t, client.transacts)
}

func assertRedacted(t *testing.T, payloadJSON string) {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(payloadJSON), &doc))

	tx, ok := doc["transaction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.RedactionSentinel, tx["account_number"])

	meta, ok := tx["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.RedactionSentinel, meta["bvn"])

	assert.NotContains(t, payloadJSON, "0123456789")
	assert.NotContains(t, payloadJSON, "22345678901")
}

func TestSubmit_TransportErrorWritesOneErrorAttempt(t *testing.T) {
	svc, attempts, _, client := newTestService(draftedProfile(t))
	client.transactErr = errors.New("dial tcp: connection refused")

	_, err := svc.Submit(context.Background(), 1)

	assert.ErrorIs(t, err, ErrService)
	require.Len(t, attempts.attempts, 1)

	attempt := attempts.attempts[0]
	assert.Equal(t, models.AttemptStatusError, attempt.Status)
	assert.Equal(t, "req-lookup-1", attempt.RequestRef)
	assert.Equal(t, onepipe.RequestTypeLookupAccount, attempt.RequestType)
	assert.Contains(t, attempt.ResponseJSON, "connection refused")
	assertRedacted(t, attempt.PayloadSentJSON)
}

func TestSubmit_RejectionWritesOneFailedAttempt(t *testing.T) {
	svc, attempts, _, client := newTestService(draftedProfile(t))
	client.response = decodeResponse(t, `{"status":"Failed","message":"Account name mismatch"}`)

	_, err := svc.Submit(context.Background(), 1)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Account name mismatch", rejected.Message)

	require.Len(t, attempts.attempts, 1)
	attempt := attempts.attempts[0]
	assert.Equal(t, models.AttemptStatusFailed, attempt.Status)
	assert.Contains(t, attempt.ResponseJSON, "Account name mismatch")
	assertRedacted(t, attempt.PayloadSentJSON)
}

func TestSubmit_RejectionLeavesDraftAndProfileUntouched(t *testing.T) {
	profile := draftedProfile(t)
	svc, _, _, client := newTestService(profile)
	client.response = decodeResponse(t, `{"status":"Failed"}`)

	_, err := svc.Submit(context.Background(), 1)
	require.Error(t, err)

	assert.False(t, profile.IsCompleted)
	assert.NotEmpty(t, profile.DraftPayloadJSON)
	assert.Empty(t, profile.BankCode)
}

func TestHandleInbound_CorrelatesByRequestRef(t *testing.T) {
	svc, attempts, webhooks, _ := newTestService(draftedProfile(t))
	require.NoError(t, attempts.Create(&models.VerificationAttempt{
		UserID:     1,
		RequestRef: "req-lookup-1",
		Status:     models.AttemptStatusSuccess,
	}))

	result := svc.HandleInbound(context.Background(), models.ProviderOnePipe,
		[]byte(`{"request_ref":"req-lookup-1","status":"Successful"}`))

	assert.True(t, result.Stored)
	assert.True(t, result.Correlated)
	assert.Empty(t, result.StoredErr)

	require.Len(t, webhooks.events, 1)
	event := webhooks.events[0]
	assert.Equal(t, models.ProviderOnePipe, event.Provider)
	require.NotNil(t, event.VerificationAttemptID)
	assert.Equal(t, uint(1), *event.VerificationAttemptID)
}

func TestHandleInbound_UnmatchedRefStoredUnlinked(t *testing.T) {
	svc, _, webhooks, _ := newTestService(draftedProfile(t))

	result := svc.HandleInbound(context.Background(), models.ProviderOnePipe,
		[]byte(`{"request_ref":"unknown-ref"}`))

	assert.True(t, result.Stored)
	assert.False(t, result.Correlated)
	assert.Empty(t, result.StoredErr)

	require.Len(t, webhooks.events, 1)
	assert.Nil(t, webhooks.events[0].VerificationAttemptID)
}

func TestHandleInbound_NoRequestRef(t *testing.T) {
	svc, _, webhooks, _ := newTestService(draftedProfile(t))

	result := svc.HandleInbound(context.Background(), models.ProviderOnePipe,
		[]byte(`{"event":"transaction.settled"}`))

	assert.True(t, result.Stored)
	assert.False(t, result.Correlated)
	require.Len(t, webhooks.events, 1)
}

func TestHandleInbound_UnparseablePayloadStillStored(t *testing.T) {
	svc, _, webhooks, _ := newTestService(draftedProfile(t))

	result := svc.HandleInbound(context.Background(), models.ProviderOnePipe,
		[]byte(`this is not json at all`))

	assert.True(t, result.Stored)
	assert.False(t, result.Correlated)
	assert.Contains(t, result.StoredErr, "unparseable payload")

	require.Len(t, webhooks.events, 1)
	assert.Equal(t, "this is not json at all", webhooks.events[0].PayloadJSON)
	assert.Contains(t, webhooks.events[0].Error, "unparseable payload")
}

func TestHandleInbound_StorageFailure(t *testing.T) {
	svc, _, webhooks, _ := newTestService(draftedProfile(t))
	webhooks.createErr = errors.New("database gone")

	result := svc.HandleInbound(context.Background(), models.ProviderOnePipe,
		[]byte(`{"request_ref":"x"}`))

	assert.False(t, result.Stored)
	assert.Contains(t, result.StoredErr, "database gone")
}

func TestRedactForAudit_ForcesAccountNumberKey(t *testing.T) {
	// The wire payload carries the account number only inside auth.secure,
	// but the stored copy must still carry the sentinel under the key a
	// future payload shape might use.
	p := &onepipe.Payload{
		RequestRef:  "r",
		RequestType: onepipe.RequestTypeLookupAccount,
		Auth:        &onepipe.Auth{Secure: "wire-ciphertext"},
		Transaction: &onepipe.Transaction{Amount: 0, Details: map[string]any{}},
	}

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(redactForAudit(p)), &doc))

	tx := doc["transaction"].(map[string]any)
	assert.Equal(t, models.RedactionSentinel, tx["account_number"])
}

func TestRedactForAudit_NoTransactionBlock(t *testing.T) {
	p := &onepipe.Payload{RequestRef: "r", RequestType: onepipe.RequestTypeGetBanks}

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(redactForAudit(p)), &doc))

	tx, ok := doc["transaction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.RedactionSentinel, tx["account_number"])
}
