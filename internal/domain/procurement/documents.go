// Package procurement models the PO and GRN document graph derived from one
// OCR invoice, together with the master-data facts the graph references.
package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Document statuses and fixed attribute values
const (
	POStatusApproved   = "APPROVED"
	POLineStatusOpen   = "OPEN"
	GRNStatusReceived  = "RECEIVED"
	QCStatusPending    = "PENDING"
	CalculationPercent = "PERCENTAGE"
	UOMPercent         = "PERCENT"
	WeightUOMKilogram  = "KG"
)

// POHeader is the purchase order header. PONumber always comes from the
// invoice and is the natural key across submissions.
type POHeader struct {
	ID                 uuid.UUID       `json:"id"`
	PONumber           string          `json:"po_number"`
	POID               string          `json:"po_id"`
	PODate             time.Time       `json:"po_date"`
	Status             string          `json:"status"`
	Type               POType          `json:"type"`
	SupplierRef        uuid.UUID       `json:"supplier_ref"`
	SupplierSiteRef    uuid.UUID       `json:"supplier_site_ref"`
	LegalEntityRef     uuid.UUID       `json:"legal_entity_ref"`
	LegalEntitySiteRef uuid.UUID       `json:"legal_entity_site_ref"`
	CostCenterRef      uuid.UUID       `json:"cost_center_ref"`
	ProfitCenterRef    uuid.UUID       `json:"profit_center_ref"`
	ProjectRef         uuid.UUID       `json:"project_ref"`
	PlantRef           uuid.UUID       `json:"plant_ref"`
	TaxRateRef         uuid.UUID       `json:"tax_rate_ref"`
	Currency           string          `json:"currency"`
	TotalValue         decimal.Decimal `json:"total_value"`
	PaymentTerms       string          `json:"payment_terms"`
	MatchingType       string          `json:"matching_type"`
	Incoterms          string          `json:"incoterms"`
	FreightIncluded    bool            `json:"freight_included"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidTo            time.Time       `json:"valid_to"`
	EffectiveFrom      time.Time       `json:"effective_from"`
	CreatedBy          string          `json:"created_by"`
	ExternalSystem     string          `json:"external_system"`
	ExternalSystemID   string          `json:"external_system_id"`
}

// POLine is one purchase order line, 1:1 with an invoice line.
type POLine struct {
	ID               uuid.UUID       `json:"id"`
	POHeaderRef      uuid.UUID       `json:"po_header_ref"`
	POLineID         string          `json:"po_line_id"`
	LineNumber       int             `json:"line_number"`
	Status           string          `json:"status"`
	ItemRef          uuid.UUID       `json:"item_ref"`
	HSN              string          `json:"hsn"`
	OrderedQuantity  decimal.Decimal `json:"ordered_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineAmount       decimal.Decimal `json:"line_amount"`
	UOM              string          `json:"uom"`
	ExpectedDelivery time.Time       `json:"expected_delivery"`
	EffectiveFrom    time.Time       `json:"effective_from"`
	QCRequired       bool            `json:"qc_required"`
	ExternalSystem   string          `json:"external_system"`
	ExternalSystemID string          `json:"external_system_id"`
}

// POCondition is a tax condition on a PO. At most one exists per
// (ConditionType, Rate).
type POCondition struct {
	ID               uuid.UUID       `json:"id"`
	POHeaderRef      uuid.UUID       `json:"po_header_ref"`
	ConditionID      string          `json:"condition_id"`
	ConditionType    string          `json:"condition_type"`
	CalculationBasis string          `json:"calculation_basis"`
	Rate             decimal.Decimal `json:"rate"`
	UOM              string          `json:"uom"`
	EffectiveFrom    time.Time       `json:"effective_from"`
	ExternalSystem   string          `json:"external_system"`
	ExternalSystemID string          `json:"external_system_id"`
}

// GRNHeader is the goods receipt header. One is produced for every
// processed invoice.
type GRNHeader struct {
	ID                  uuid.UUID       `json:"id"`
	GRNNumber           string          `json:"grn_number"`
	GRNID               string          `json:"grn_id"`
	GRNDate             time.Time       `json:"grn_date"`
	Status              string          `json:"status"`
	QCStatus            string          `json:"qc_status"`
	SupplierSiteRef     uuid.UUID       `json:"supplier_site_ref"`
	LegalEntitySiteRef  uuid.UUID       `json:"legal_entity_site_ref"`
	POLineRef           uuid.UUID       `json:"po_line_ref"`
	GLAccountRef        uuid.UUID       `json:"gl_account_ref"`
	TotalReceivedQty    decimal.Decimal `json:"total_received_qty"`
	TotalReceivedAmount decimal.Decimal `json:"total_received_amount"`
	WeightUOM           string          `json:"weight_uom"`
	EffectiveFrom       time.Time       `json:"effective_from"`
	ExternalSystem      string          `json:"external_system"`
	ExternalSystemID    string          `json:"external_system_id"`
}

// GRNLine is one receipt line, 1:1 with an invoice line.
type GRNLine struct {
	ID                  uuid.UUID       `json:"id"`
	GRNRef              uuid.UUID       `json:"grn_ref"`
	GRNLineID           string          `json:"grn_line_id"`
	LineNumber          int             `json:"line_number"`
	ItemDescription     string          `json:"item_description"`
	ItemRef             uuid.UUID       `json:"item_ref"`
	ReceivedQty         decimal.Decimal `json:"received_qty"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TotalReceivedAmount decimal.Decimal `json:"total_received_amount"`
	AcceptedQty         decimal.Decimal `json:"accepted_qty"`
	RejectedQty         decimal.Decimal `json:"rejected_qty"`
	UOM                 string          `json:"uom"`
	WeightUOM           string          `json:"weight_uom"`
	QCRequired          bool            `json:"qc_required"`
	QCResult            string          `json:"qc_result"`
	Status              string          `json:"status"`
	BatchNumber         string          `json:"batch_number"`
	EffectiveFrom       time.Time       `json:"effective_from"`
	ExternalSystem      string          `json:"external_system"`
	ExternalSystemID    string          `json:"external_system_id"`
}
