package procurement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind names a master-data entity kind.
type Kind string

// Master-data kinds
const (
	KindSupplier        Kind = "supplier"
	KindSupplierSite    Kind = "supplier_site"
	KindLegalEntity     Kind = "legal_entity"
	KindLegalEntitySite Kind = "legal_entity_site"
	KindItem            Kind = "item"
	KindCostCenter      Kind = "cost_center"
	KindProfitCenter    Kind = "profit_center"
	KindProject         Kind = "project"
	KindPlant           Kind = "plant"
	KindGLAccount       Kind = "gl_account"
	KindTaxRate         Kind = "tax_rate"
	KindCurrency        Kind = "currency"
)

// MasterRef is a resolved reference to a master-data row. Code is the
// stable business key the row is stored under; ID is the row identifier
// the transactional rows point at.
type MasterRef struct {
	Kind Kind      `json:"kind"`
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// IsZero reports whether the reference was never resolved.
func (r MasterRef) IsZero() bool {
	return r.ID == uuid.Nil
}

// SupplierInfo holds the supplier and supplier site facts taken from the
// invoice header.
type SupplierInfo struct {
	Supplier  MasterRef `json:"supplier"`
	Site      MasterRef `json:"site"`
	Name      string    `json:"name"`
	GSTIN     string    `json:"gstin,omitempty"`
	ValidGST  bool      `json:"valid_gstin"`
	PAN       string    `json:"pan,omitempty"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	StateCode string    `json:"state_code,omitempty"`
}

// BuyerInfo holds the receiving legal entity and its billing site.
type BuyerInfo struct {
	LegalEntity MasterRef `json:"legal_entity"`
	Site        MasterRef `json:"site"`
	Name        string    `json:"name"`
	GSTIN       string    `json:"gstin,omitempty"`
	ValidGST    bool      `json:"valid_gstin"`
	PAN         string    `json:"pan,omitempty"`
	Address     string    `json:"address,omitempty"`
	ShipTo      string    `json:"ship_to,omitempty"`
	StateCode   string    `json:"state_code,omitempty"`
}

// ItemInfo describes the item referenced by one invoice line.
type ItemInfo struct {
	Ref         MasterRef `json:"ref"`
	LineIndex   int       `json:"line_index"`
	Description string    `json:"description"`
	HSN         string    `json:"hsn"`
	UOM         string    `json:"uom"`
	Category    string    `json:"category"`
}

// CodedMaster is a master row identified only by its code, such as a cost
// centre or GL account.
type CodedMaster struct {
	Ref         MasterRef `json:"ref"`
	Description string    `json:"description"`
}

// TaxRateInfo is a tax rate keyed by its composite name, e.g. IGST_18.
type TaxRateInfo struct {
	Ref     MasterRef       `json:"ref"`
	Name    string          `json:"name"`
	TaxType string          `json:"tax_type"`
	Rate    decimal.Decimal `json:"rate"`
}

// EnsureResult is the outcome of reconciling one master row.
type EnsureResult struct {
	ID      uuid.UUID
	Created bool
}
