package onepipe

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RequestTypeGetBanks      = "get_banks"
	RequestTypeLookupAccount = "lookup account min"
	RequestTypeCreateMandate = "create mandate"
	RequestTypeCancelMandate = "cancel mandate"

	authType     = "bank.account"
	authProvider = "PaywithAccount"
)

var (
	// ErrMissingField signals an absent business field required by a builder.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidPhone signals a phone number that is not 13 digits starting with 234.
	ErrInvalidPhone = errors.New("invalid phone format")
)

// phonePattern matches NGN MSISDNs: 13 digits with the 234 country code.
var phonePattern = regexp.MustCompile(`^234\d{10}$`)

// ValidPhone reports whether phone is a 234-prefixed 13-digit number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Auth is the provider envelope's auth block.
type Auth struct {
	Type         string `json:"type"`
	Secure       string `json:"secure"`
	AuthProvider string `json:"auth_provider"`
}

// Customer carries the caller-side customer identity fields.
type Customer struct {
	CustomerRef string `json:"customer_ref"`
	Firstname   string `json:"firstname"`
	Surname     string `json:"surname"`
	MobileNo    string `json:"mobile_no"`
}

// Transaction is the provider envelope's transaction block. Amount is either
// an integer (lookups send 0) or an integral string in provider units.
type Transaction struct {
	MockMode        string         `json:"mock_mode,omitempty"`
	TransactionRef  string         `json:"transaction_ref,omitempty"`
	TransactionDesc string         `json:"transaction_desc,omitempty"`
	Amount          any            `json:"amount"`
	Customer        *Customer      `json:"customer,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
	Details         map[string]any `json:"details"`
}

// Payload is the outer request envelope sent to the transact endpoint.
type Payload struct {
	RequestRef  string         `json:"request_ref,omitempty"`
	RequestType string         `json:"request_type"`
	Auth        *Auth          `json:"auth,omitempty"`
	Transaction *Transaction   `json:"transaction,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Decrypter releases at-rest-encrypted values for in-memory use only.
// Implemented by the secrets package; injected so the builder never sees
// key material for the at-rest scheme.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// LookupAccountInput parameterizes a "lookup account min" payload.
type LookupAccountInput struct {
	CustomerRef   string
	AccountNumber string
	BankCode      string
	// BVN rides in meta.bvn in cleartext for lookups; the mandate flow uses
	// a TripleDES-encrypted channel instead. The asymmetry is intentional
	// provider behavior, keep both paths as-is.
	BVN             string
	FirstName       string
	LastName        string
	MobileNo        string
	TransactionRef  string
	TransactionDesc string
	Meta            map[string]any
}

// MandateProfile is the profile data a mandate payload is built from.
// Account number and BVN arrive at-rest encrypted and are decrypted in
// memory only for provider-wire re-encryption.
type MandateProfile struct {
	CustomerRef      string
	FirstName        string
	LastName         string
	MobileNo         string
	BankCode         string
	AccountEncrypted string
	BVNEncrypted     string
}

// BuildGetBanksPayload builds the minimal bank directory request.
func (c *Client) BuildGetBanksPayload() *Payload {
	p := &Payload{
		RequestType: RequestTypeGetBanks,
		Transaction: &Transaction{MockMode: "inspect", Amount: 0, Details: map[string]any{}},
	}
	if c.WebhookURL != "" {
		p.Meta = map[string]any{"webhook_url": c.WebhookURL}
	}
	return p
}

// BuildLookupAccountPayload builds a "lookup account min" payload with a
// fresh request_ref and auth.secure = 3DES("{account};{bank_code}").
func (c *Client) BuildLookupAccountPayload(in LookupAccountInput) (*Payload, error) {
	if c.ClientSecret == "" {
		return nil, ErrMissingConfig
	}
	secure, err := Encrypt(in.AccountNumber+";"+in.BankCode, c.ClientSecret)
	if err != nil {
		return nil, err
	}

	txRef := in.TransactionRef
	if txRef == "" {
		txRef = newRef()
	}
	desc := in.TransactionDesc
	if desc == "" {
		desc = "Verify account ownership"
	}

	p := &Payload{
		RequestRef:  newRef(),
		RequestType: RequestTypeLookupAccount,
		Auth:        &Auth{Type: authType, Secure: secure, AuthProvider: authProvider},
		Transaction: &Transaction{
			MockMode:        "live",
			TransactionRef:  txRef,
			TransactionDesc: desc,
			Amount:          0,
			Customer: &Customer{
				CustomerRef: in.CustomerRef,
				Firstname:   in.FirstName,
				Surname:     in.LastName,
				MobileNo:    in.MobileNo,
			},
			Details: map[string]any{},
		},
	}

	meta := map[string]any{}
	for k, v := range in.Meta {
		meta[k] = v
	}
	if in.BVN != "" {
		if _, ok := meta["bvn"]; !ok {
			meta["bvn"] = in.BVN
		}
	}
	if _, ok := meta["webhook_url"]; !ok && c.WebhookURL != "" {
		meta["webhook_url"] = c.WebhookURL
	}
	if len(meta) > 0 {
		p.Transaction.Meta = meta
	}
	return p, nil
}

// BuildCreateMandatePayload builds a mandate-creation payload. The at-rest
// ciphertexts are decrypted in memory and immediately re-encrypted with the
// provider-wire TripleDES scheme; plaintext is never retained.
func (c *Client) BuildCreateMandatePayload(profile MandateProfile, monthlyMaxDebit *decimal.Decimal, atRest Decrypter) (*Payload, error) {
	if c.ClientSecret == "" {
		return nil, ErrMissingConfig
	}
	if monthlyMaxDebit == nil {
		return nil, fmt.Errorf("%w: monthly_max_debit", ErrMissingField)
	}

	account, err := atRest.Decrypt(profile.AccountEncrypted)
	if err != nil {
		return nil, err
	}
	bvn, err := atRest.Decrypt(profile.BVNEncrypted)
	if err != nil {
		return nil, err
	}

	secure, err := Encrypt(account+";"+profile.BankCode, c.ClientSecret)
	if err != nil {
		return nil, err
	}
	secureBVN, err := Encrypt(bvn, c.ClientSecret)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	if c.BillerCode != "" {
		details["biller_code"] = c.BillerCode
	}

	p := &Payload{
		RequestRef:  newRef(),
		RequestType: RequestTypeCreateMandate,
		Auth:        &Auth{Type: authType, Secure: secure, AuthProvider: authProvider},
		Transaction: &Transaction{
			TransactionRef:  newRef(),
			TransactionDesc: "Recurring debit mandate",
			Amount:          ToProviderAmount(*monthlyMaxDebit),
			Customer: &Customer{
				CustomerRef: profile.CustomerRef,
				Firstname:   profile.FirstName,
				Surname:     profile.LastName,
				MobileNo:    profile.MobileNo,
			},
			Meta:    map[string]any{"bvn": secureBVN},
			Details: details,
		},
	}
	if c.WebhookURL != "" {
		p.Transaction.Meta["webhook_url"] = c.WebhookURL
	}
	return p, nil
}

// CancelMandateInput parameterizes a mandate-cancellation payload.
type CancelMandateInput struct {
	CustomerRef string
	MobileNo    string
	// MandateReference is the provider's cancellation key; callers fall back
	// to the payment id when the mandate reference is blank.
	MandateReference string
}

// BuildCancelMandatePayload builds a cancellation payload. The profile phone
// number must be a 234-prefixed 13-digit MSISDN.
func (c *Client) BuildCancelMandatePayload(in CancelMandateInput) (*Payload, error) {
	if c.ClientSecret == "" {
		return nil, ErrMissingConfig
	}
	if !ValidPhone(in.MobileNo) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhone, in.MobileNo)
	}

	p := &Payload{
		RequestRef:  newRef(),
		RequestType: RequestTypeCancelMandate,
		Transaction: &Transaction{
			TransactionRef:  newRef(),
			TransactionDesc: "Cancel recurring debit mandate",
			Amount:          0,
			Customer: &Customer{
				CustomerRef: in.CustomerRef,
				MobileNo:    in.MobileNo,
			},
			Details: map[string]any{"mandate_reference": in.MandateReference},
		},
	}
	if c.WebhookURL != "" {
		p.Transaction.Meta = map[string]any{"webhook_url": c.WebhookURL}
	}
	return p, nil
}

// newRef generates a 128-bit random reference rendered as 32 hex chars.
func newRef() string {
	u := uuid.New()
	return fmt.Sprintf("%x", u[:])
}
