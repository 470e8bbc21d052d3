package onepipe

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ToProviderAmount converts a naira amount to the provider's integer-like
// amount units by multiplying by 1000 with exact decimal arithmetic. The
// result is rendered without exponent notation and without trailing zeros:
// 100000.00 -> "100000000", 100.25 -> "100250", 0.001 -> "1".
func ToProviderAmount(amount decimal.Decimal) string {
	s := amount.Mul(decimal.NewFromInt(1000)).String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return s
}

// ToProviderAmountString parses a decimal string and converts it.
func ToProviderAmountString(amount string) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", err
	}
	return ToProviderAmount(d), nil
}
