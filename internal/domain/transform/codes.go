package transform

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownHSN is the sentinel used when an invoice line carries no HSN code.
const UnknownHSN = "999999"

// DefaultUOM is the unit of measure for missing or unrecognised units.
const DefaultUOM = "EA"

var uomSynonyms = map[string]string{
	"EA":        "EA",
	"EACH":      "EA",
	"PIECE":     "EA",
	"PIECES":    "EA",
	"PCS":       "EA",
	"PC":        "EA",
	"NOS":       "EA",
	"NO":        "EA",
	"UNIT":      "EA",
	"UNITS":     "EA",
	"KG":        "KG",
	"KGS":       "KG",
	"KILOGRAM":  "KG",
	"KILOGRAMS": "KG",
	"G":         "G",
	"GM":        "G",
	"GMS":       "G",
	"GRAM":      "G",
	"GRAMS":     "G",
	"L":         "L",
	"LTR":       "L",
	"LTRS":      "L",
	"LITRE":     "L",
	"LITRES":    "L",
	"LITER":     "L",
	"LITERS":    "L",
	"M":         "M",
	"MTR":       "M",
	"MTRS":      "M",
	"METER":     "M",
	"METERS":    "M",
	"METRE":     "M",
	"METRES":    "M",
	"BOX":       "BOX",
	"BOXES":     "BOX",
	"SET":       "SET",
	"SETS":      "SET",
	"DOZEN":     "DZN",
	"DOZ":       "DZN",
	"DZN":       "DZN",
	"HOUR":      "HR",
	"HOURS":     "HR",
	"HRS":       "HR",
	"HR":        "HR",
	"PACK":      "PAK",
	"PACKS":     "PAK",
	"PKT":       "PAK",
	"PAK":       "PAK",
	"TON":       "TON",
	"TONS":      "TON",
	"TONNE":     "TON",
	"MT":        "TON",
}

// NormalizeUOM maps a free-text unit onto a canonical code. Unknown units of
// up to three characters pass through; longer unknown units become EA.
func NormalizeUOM(s string) string {
	u := strings.ToUpper(strings.TrimSpace(s))
	u = strings.TrimSuffix(u, ".")
	if u == "" {
		return DefaultUOM
	}
	if code, ok := uomSynonyms[u]; ok {
		return code
	}
	if len(u) <= 3 {
		return u
	}
	return DefaultUOM
}

// ExtractHSNCode keeps only digits, pads to 6 and truncates to 8.
func ExtractHSNCode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return UnknownHSN
	case len(digits) < 6:
		return digits + strings.Repeat("0", 6-len(digits))
	case len(digits) > 8:
		return digits[:8]
	}
	return digits
}

var hundred = decimal.NewFromInt(100)

// ExtractTaxRate reads a percentage such as "18%", "18.00" or "0.18".
// Fractions in (0, 1] are scaled to percent. Unparsable input yields zero.
func ExtractTaxRate(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return decimal.Zero
	}
	rate, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	if rate.IsPositive() && rate.LessThanOrEqual(decimal.NewFromInt(1)) {
		rate = rate.Mul(hundred)
	}
	return rate.Round(RatePrecision)
}

var gstinPattern = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// IsValidGSTIN reports whether s is a well-formed 15 character GSTIN.
func IsValidGSTIN(s string) bool {
	return gstinPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// PANFromGSTIN returns the PAN embedded in a GSTIN (characters 3-12), or ""
// when the GSTIN is too short. Loose OCR values are accepted as long as they
// have at least 12 characters.
func PANFromGSTIN(gstin string) string {
	g := strings.ToUpper(strings.TrimSpace(gstin))
	if len(g) < 12 {
		return ""
	}
	return g[2:12]
}

// StateCodeFromGSTIN returns the two digit GST state code, or "".
func StateCodeFromGSTIN(gstin string) string {
	g := strings.TrimSpace(gstin)
	if len(g) < 2 || g[0] < '0' || g[0] > '9' || g[1] < '0' || g[1] > '9' {
		return ""
	}
	return g[:2]
}
