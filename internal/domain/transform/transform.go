// Package transform normalises raw OCR field values into typed values.
//
// Every function here is total: unparsable input falls back to a documented
// default instead of returning an error, so a noisy scan never fails a whole
// invoice.
package transform

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// DefaultLeadDays is the delivery lead time applied to a PO date.
const DefaultLeadDays = 14

// Precision used for the common numeric shapes.
const (
	AmountPrecision   int32 = 2
	QuantityPrecision int32 = 3
	RatePrecision     int32 = 2
)

// DateLayouts lists the accepted invoice date layouts in match order.
// Day-first layouts come before month-first, so an ambiguous "05/08/2025"
// reads as 5 August.
var DateLayouts = []string{
	"2-Jan-2006",
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"2.1.2006",
	"1/2/2006",
}

// ParseDate tries each layout in DateLayouts and returns the first match.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var numberStripper = strings.NewReplacer(
	",", "",
	" ", "",
	"\t", "",
	"\u00a0", "",
	"₹", "",
	"$", "",
	"€", "",
)

// SafeNumber converts an OCR numeric string to a decimal rounded to
// precision. Thousands separators, whitespace and currency glyphs are
// stripped first; any failure yields def.
func SafeNumber(s string, def decimal.Decimal, precision int32) decimal.Decimal {
	cleaned := numberStripper.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return def
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return def
	}
	return d.Round(precision)
}

// SafeAmount is SafeNumber with a zero default and two decimals.
func SafeAmount(s string) decimal.Decimal {
	return SafeNumber(s, decimal.Zero, AmountPrecision)
}

// SafeQuantity is SafeNumber with a zero default and three decimals.
func SafeQuantity(s string) decimal.Decimal {
	return SafeNumber(s, decimal.Zero, QuantityPrecision)
}

// ExtractFirst returns the first value of a scalar-or-list field, trimmed.
// An empty result means the field is absent.
func ExtractFirst(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// CleanString composes combining marks (NFC), trims, collapses whitespace
// runs and truncates to maxLength runes. maxLength <= 0 disables
// truncation. Compatibility characters such as ½ are kept as written.
func CleanString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	if maxLength > 0 && utf8.RuneCountInString(s) > maxLength {
		runes := []rune(s)
		s = strings.TrimSpace(string(runes[:maxLength]))
	}
	return s
}

// CalculateExpectedDelivery returns poDate shifted by leadDays.
func CalculateExpectedDelivery(poDate time.Time, leadDays int) time.Time {
	return poDate.AddDate(0, 0, leadDays)
}
