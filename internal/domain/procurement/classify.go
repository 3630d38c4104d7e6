package procurement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// POType classifies a purchase order.
type POType string

// PO types
const (
	POTypeMaterial POType = "MATERIAL"
	POTypeService  POType = "SERVICE"
	POTypeCapex    POType = "CAPEX"
)

// Keyword groups are checked in this order; the first group with a match
// anywhere in the descriptions wins.
var poTypeKeywords = []struct {
	poType   POType
	keywords []string
}{
	{POTypeService, []string{"service", "consulting", "maintenance", "support", "license"}},
	{POTypeCapex, []string{"equipment", "machinery", "capital", "installation", "infrastructure"}},
}

// ClassifyPOType infers the PO type from line descriptions.
func ClassifyPOType(descriptions []string) POType {
	lowered := make([]string, len(descriptions))
	for i, d := range descriptions {
		lowered[i] = strings.ToLower(d)
	}
	for _, group := range poTypeKeywords {
		for _, d := range lowered {
			for _, kw := range group.keywords {
				if strings.Contains(d, kw) {
					return group.poType
				}
			}
		}
	}
	return POTypeMaterial
}

// Terms are the commercial defaults attached to a PO type.
type Terms struct {
	PaymentTerms string
	MatchingType string
	Incoterms    string
}

// TermsFor returns payment terms, invoice matching and incoterms for t.
func TermsFor(t POType) Terms {
	switch t {
	case POTypeService:
		return Terms{PaymentTerms: "NET15", MatchingType: "TWO_WAY", Incoterms: "DDP"}
	case POTypeCapex:
		return Terms{PaymentTerms: "NET60", MatchingType: "THREE_WAY", Incoterms: "EXW"}
	default:
		return Terms{PaymentTerms: "NET30", MatchingType: "THREE_WAY", Incoterms: "DDP"}
	}
}

// Tax condition types
const (
	TaxIGST  = "IGST"
	TaxCGST  = "CGST"
	TaxSGST  = "SGST"
	TaxUTGST = "UTGST"
)

// TaxRates is the set of GST component rates stated on an invoice.
type TaxRates struct {
	IGST  decimal.Decimal
	CGST  decimal.Decimal
	SGST  decimal.Decimal
	UTGST decimal.Decimal
}

// TaxRateName builds the composite name a tax rate is stored under, e.g.
// IGST_18 for inter-state supply or CGST_SGST_18 for intra-state supply.
// The second return value is the tax type and the third the effective rate.
func TaxRateName(r TaxRates) (string, string, decimal.Decimal) {
	switch {
	case r.IGST.IsPositive():
		return "IGST_" + rateLabel(r.IGST), TaxIGST, r.IGST
	case r.CGST.IsPositive() && r.SGST.IsPositive():
		total := r.CGST.Add(r.SGST)
		return "CGST_SGST_" + rateLabel(total), "CGST_SGST", total
	case r.CGST.IsPositive() && r.UTGST.IsPositive():
		total := r.CGST.Add(r.UTGST)
		return "CGST_UTGST_" + rateLabel(total), "CGST_UTGST", total
	case r.CGST.IsPositive():
		return "CGST_" + rateLabel(r.CGST), TaxCGST, r.CGST
	case r.SGST.IsPositive():
		return "SGST_" + rateLabel(r.SGST), TaxSGST, r.SGST
	case r.UTGST.IsPositive():
		return "UTGST_" + rateLabel(r.UTGST), TaxUTGST, r.UTGST
	}
	return "EXEMPT_0", "EXEMPT", decimal.Zero
}

// rateLabel renders 18 as "18" and 2.5 as "2.5".
func rateLabel(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
