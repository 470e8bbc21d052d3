package onepipe

import (
	"strconv"
	"strings"
)

// Defensive extraction over heterogeneous provider response shapes. Each
// extractor walks an ordered list of field paths and the first hit wins, so
// a new provider quirk is handled by adding one path, not a new branch.

// Bank is a normalized bank directory entry.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type fieldPath []string

var activationURLPaths = []fieldPath{
	{"data", "activation_url"},
	{"activation_url"},
	{"data", "url"},
	{"data", "meta", "activation_url"},
}

var transactionRefPaths = []fieldPath{
	{"data", "transaction_ref"},
	{"data", "tx_ref"},
	{"data", "transactionId"},
	{"data", "transaction_id"},
	{"transaction_ref"},
	{"tx_ref"},
	{"transactionId"},
	{"transaction_id"},
}

var paymentIDPaths = []fieldPath{
	{"data", "payment_id"},
	{"data", "paymentId"},
	{"data", "payment_reference"},
	{"payment_id"},
	{"paymentId"},
	{"payment_reference"},
}

var providerResponseCodePaths = []fieldPath{
	{"data", "provider_response_code"},
	{"provider_response_code"},
}

var mandateReferencePaths = []fieldPath{
	{"data", "mandate_reference"},
	{"data", "mandateReference"},
	{"mandate_reference"},
}

var subscriptionIDPaths = []fieldPath{
	{"data", "subscription_id"},
	{"data", "subscriptionId"},
	{"subscription_id"},
}

var mandateStatusPaths = []fieldPath{
	{"data", "mandate_status"},
	{"data", "status"},
}

var bankListPaths = []fieldPath{
	{"data", "banks"},
	{"banks"},
	{"data"},
	{"data", "provider_response", "banks"},
}

var bankNameKeys = []string{"bank_name", "name", "bank", "bankFullName"}
var bankCodeKeys = []string{"bank_code", "code", "bankCode"}

// ExtractBanks normalizes a bank directory response. The second return value
// distinguishes "no banks list found anywhere" (false) from a located list,
// even when that list normalizes to empty.
func ExtractBanks(resp any) ([]Bank, bool) {
	var list []any
	found := false
	for _, path := range bankListPaths {
		v, ok := lookupPath(resp, path)
		if !ok {
			continue
		}
		l, ok := v.([]any)
		if !ok {
			continue
		}
		list = l
		found = true
		break
	}
	if !found {
		return nil, false
	}

	banks := make([]Bank, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		code := firstStringKey(entry, bankCodeKeys)
		if code == "" {
			// Entries without a code are unusable for lookups; drop them.
			continue
		}
		name := firstStringKey(entry, bankNameKeys)
		if name == "" {
			name = "Unknown"
		}
		banks = append(banks, Bank{Name: name, Code: code})
	}
	return banks, true
}

// ExtractActivationURL returns the mandate activation URL, if any.
func ExtractActivationURL(resp any) string {
	return firstStringPath(resp, activationURLPaths)
}

// ExtractTransactionRef returns the provider transaction reference, if any.
func ExtractTransactionRef(resp any) string {
	return firstStringPath(resp, transactionRefPaths)
}

// ExtractPaymentID returns the provider payment identifier, if any.
func ExtractPaymentID(resp any) string {
	return firstStringPath(resp, paymentIDPaths)
}

// ExtractProviderResponseCode returns data.provider_response_code, if any.
func ExtractProviderResponseCode(resp any) string {
	return firstStringPath(resp, providerResponseCodePaths)
}

// ExtractMandateReference returns the provider mandate reference, if any.
func ExtractMandateReference(resp any) string {
	return firstStringPath(resp, mandateReferencePaths)
}

// ExtractSubscriptionID returns the provider subscription id, if any.
func ExtractSubscriptionID(resp any) (int, bool) {
	s := firstStringPath(resp, subscriptionIDPaths)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractMandateStatus returns the provider's mandate status field, if any.
// This is distinct from the top-level call status ("Successful"/"Failed").
func ExtractMandateStatus(resp any) string {
	return firstStringPath(resp, mandateStatusPaths)
}

// TopLevelStatus returns the response's top-level status field, if any.
func TopLevelStatus(resp any) string {
	return firstStringPath(resp, []fieldPath{{"status"}})
}

// IsVerificationSuccessful reports whether an account lookup verified the
// account: either top-level status is "successful" (any casing), or the
// provider_response block carries a non-empty accounts/account field.
func IsVerificationSuccessful(resp any) bool {
	if strings.EqualFold(TopLevelStatus(resp), "successful") {
		return true
	}
	pr, ok := lookupPath(resp, fieldPath{"data", "provider_response"})
	if !ok {
		return false
	}
	prMap, ok := pr.(map[string]any)
	if !ok {
		return false
	}
	return nonEmpty(prMap["accounts"]) || nonEmpty(prMap["account"])
}

// IsReportedSuccessful reports whether the top-level status, when present,
// names a success. An absent status is treated as success: some endpoints
// answer with bare data documents.
func IsReportedSuccessful(resp any) bool {
	status := TopLevelStatus(resp)
	if status == "" {
		return true
	}
	switch strings.ToLower(status) {
	case "successful", "success", "ok":
		return true
	}
	return false
}

// IsCancelConfirmed reports whether a cancel response confirms cancellation:
// top-level status "Successful" and data.provider_response_code "00", both
// required.
func IsCancelConfirmed(resp any) bool {
	return TopLevelStatus(resp) == "Successful" && ExtractProviderResponseCode(resp) == "00"
}

// ExtractErrorMessage pulls a human-readable failure message out of a
// provider response, falling back to a generic one.
func ExtractErrorMessage(resp any) string {
	paths := []fieldPath{
		{"message"},
		{"error"},
		{"data", "provider_response", "message"},
		{"data", "provider_response", "error"},
	}
	if msg := firstStringPath(resp, paths); msg != "" {
		return msg
	}
	return "Verification failed. Please check your details and try again."
}

func lookupPath(v any, path fieldPath) (any, bool) {
	cur := v
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func firstStringPath(v any, paths []fieldPath) string {
	for _, path := range paths {
		val, ok := lookupPath(v, path)
		if !ok {
			continue
		}
		if s := stringValue(val); s != "" {
			return s
		}
	}
	return ""
}

func firstStringKey(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringValue(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers; render integral values without a decimal point.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func nonEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
