package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyINR selects the Indian grouping profile.
const CurrencyINR = "INR"

// Symbols used by the generic profile. Codes missing here print as the ISO
// code followed by a no-break space.
var currencySymbols = map[string]string{
	"AUD": "A$",
	"BRL": "R$",
	"CAD": "CA$",
	"CNY": "CN¥",
	"EUR": "€",
	"GBP": "£",
	"HKD": "HK$",
	"ILS": "₪",
	"INR": "₹",
	"JPY": "¥",
	"KRW": "₩",
	"MXN": "MX$",
	"NZD": "NZ$",
	"PHP": "₱",
	"TWD": "NT$",
	"USD": "$",
	"VND": "₫",
	"XAF": "FCFA",
}

// FormatCurrency formats a decimal amount string for the currency code.
//
// Only two profiles exist: INR uses Indian digit grouping (12,34,567.00) and
// every other code uses Western grouping (1,234,567.00) with that code's
// symbol. Output always carries two fraction digits.
func FormatCurrency(amount, code string) (string, error) {
	value, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}
	return FormatAmount(value, code), nil
}

// ParseAmount parses a decimal amount string.
func ParseAmount(amount string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return decimal.Zero, NewError(KindParse, "amount is empty", nil)
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, NewError(KindParse, fmt.Sprintf("invalid amount %q", amount), err)
	}
	return value, nil
}

// FormatAmount formats a parsed amount for the currency code.
func FormatAmount(value decimal.Decimal, code string) string {
	code = NormalizeCurrency(code)

	rounded := value.Round(2)
	intPart, fracPart, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")

	var b strings.Builder
	if rounded.Sign() < 0 {
		b.WriteByte('-')
	}
	if code == CurrencyINR {
		b.WriteString(currencySymbols[CurrencyINR])
		b.WriteString(groupIndian(intPart))
	} else {
		b.WriteString(currencySymbol(code))
		b.WriteString(groupThousands(intPart))
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

// NormalizeCurrency upper-cases a code; empty codes select INR.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CurrencyINR
	}
	return code
}

func currencySymbol(code string) string {
	if symbol, ok := currencySymbols[code]; ok {
		return symbol
	}
	return code + "\u00a0"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// groupIndian keeps the last three digits together and groups the rest in
// pairs: 1234567 -> 12,34,567.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	rest, last := digits[:len(digits)-3], digits[len(digits)-3:]
	head := len(rest) % 2
	if head == 0 {
		head = 2
	}
	var b strings.Builder
	b.WriteString(rest[:head])
	for i := head; i < len(rest); i += 2 {
		b.WriteByte(',')
		b.WriteString(rest[i : i+2])
	}
	b.WriteByte(',')
	b.WriteString(last)
	return b.String()
}
