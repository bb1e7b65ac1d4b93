// Package parser normalizes raw price text and validates product records.
package parser

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"pricescout/models"
)

var (
	currencySymbolRe   = regexp.MustCompile(`[$€£¥₹₽¢]`)
	descriptiveTokenRe = regexp.MustCompile(`(?i)(USD|EUR|GBP|INR|Price|From|Starting at|Sale|Now)`)
)

// pricePatterns is tried in order; the first pattern matching anywhere in
// the cleaned text wins, so the grouped forms take precedence over the
// bare-integer fallback.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,3}(?:,\d{3})*(?:\.\d{2})`), // 1,299.99
	regexp.MustCompile(`\d{1,3}(?:\.\d{3})*(?:,\d{2})`), // 1.299,99
	regexp.MustCompile(`\d+\.\d{2}`),                    // 19.99
	regexp.MustCompile(`\d+,\d{2}`),                     // 19,99
	regexp.MustCompile(`\d+`),                           // 19
}

// currencySymbols maps symbols to codes in fixed priority order. The first
// symbol present wins, and any symbol beats a code token.
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₽", "RUB"},
	{"¢", "USD"},
}

var currencyCodes = []string{"USD", "EUR", "GBP", "JPY", "INR", "RUB", "AUD", "CAD"}

var displaySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

var zeroWidthReplacer = strings.NewReplacer("​", "", "‌", "", "‍", "")

// NormalizePrice extracts a canonical decimal amount from raw price text.
// It returns nil for empty or unparseable input; malformed text is an
// expected case, not an error. A minus sign anywhere before the first
// digit makes the text unparseable.
func NormalizePrice(raw string) *decimal.Decimal {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}

	cleaned := currencySymbolRe.ReplaceAllString(text, "")
	cleaned = descriptiveTokenRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil
	}
	if i := strings.IndexFunc(cleaned, unicode.IsDigit); i < 0 || strings.Contains(cleaned[:i], "-") {
		return nil
	}

	for _, pattern := range pricePatterns {
		match := pattern.FindString(cleaned)
		if match == "" {
			continue
		}
		value, err := decimal.NewFromString(normalizeSeparators(match))
		if err != nil {
			return nil
		}
		return &value
	}
	return nil
}

// normalizeSeparators rewrites a matched amount to use '.' as the decimal
// point. When both separators appear, the later occurrence is the decimal
// point and the earlier is grouping; a lone comma is decimal only when
// exactly two digits follow it.
func normalizeSeparators(match string) string {
	lastComma := strings.LastIndex(match, ",")
	lastDot := strings.LastIndex(match, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			match = strings.ReplaceAll(match, ".", "")
			match = strings.ReplaceAll(match, ",", ".")
		} else {
			match = strings.ReplaceAll(match, ",", "")
		}
	case lastComma >= 0:
		if len(match)-lastComma == 3 {
			match = strings.ReplaceAll(match, ",", ".")
		} else {
			match = strings.ReplaceAll(match, ",", "")
		}
	}
	return match
}

// ExtractCurrency returns the currency code detected in raw price text,
// defaulting to "USD" when nothing is recognized.
func ExtractCurrency(raw string) string {
	if raw == "" {
		return "USD"
	}
	for _, entry := range currencySymbols {
		if strings.Contains(raw, entry.symbol) {
			return entry.code
		}
	}
	upper := strings.ToUpper(raw)
	for _, code := range currencyCodes {
		if strings.Contains(upper, code) {
			return code
		}
	}
	return "USD"
}

// FormatPrice renders an amount for display, e.g. "$19.99". Currencies
// without a known symbol fall back to "CODE 19.99".
func FormatPrice(amount decimal.Decimal, currency string) string {
	symbol, ok := displaySymbols[currency]
	if !ok {
		symbol = currency + " "
	}
	return symbol + amount.StringFixed(2)
}

// SanitizeText collapses whitespace runs and strips the zero-width
// characters some sites embed in listing titles.
func SanitizeText(text string) string {
	text = zeroWidthReplacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// ValidateURL reports whether raw is an absolute http(s) URL.
func ValidateURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}

// ValidateProduct is the single gate between raw extraction and a stored
// ProductRecord. It reports false instead of raising; callers log and
// drop rejects. A nil price is valid (no parseable price was found); a
// present price must be non-negative.
func ValidateProduct(rec *models.ProductRecord) bool {
	if rec == nil {
		return false
	}
	if utf8.RuneCountInString(strings.TrimSpace(rec.Title)) < 3 {
		return false
	}
	if rec.Site == "" {
		return false
	}
	if !ValidateURL(rec.URL) {
		return false
	}
	if rec.Price != nil && rec.Price.IsNegative() {
		return false
	}
	return true
}
