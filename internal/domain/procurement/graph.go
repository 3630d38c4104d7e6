package procurement

import (
	"time"

	"github.com/google/uuid"
)

// Graph is everything derived from one invoice: the optional PO, the GRN,
// and the master-data facts both point at.
type Graph struct {
	InvoiceNo   string    `json:"invoice_no"`
	InvoiceDate time.Time `json:"invoice_date"`
	Currency    string    `json:"currency"`

	PO           *POHeader     `json:"po,omitempty"`
	POLines      []POLine      `json:"po_lines"`
	POConditions []POCondition `json:"po_conditions"`
	GRN          GRNHeader     `json:"grn"`
	GRNLines     []GRNLine     `json:"grn_lines"`

	Supplier     SupplierInfo `json:"supplier"`
	Buyer        BuyerInfo    `json:"buyer"`
	Items        []ItemInfo   `json:"items"`
	CostCenter   CodedMaster  `json:"cost_center"`
	ProfitCenter CodedMaster  `json:"profit_center"`
	Project      CodedMaster  `json:"project"`
	Plant        CodedMaster  `json:"plant"`
	GLAccount    CodedMaster  `json:"gl_account"`
	TaxRate      *TaxRateInfo `json:"tax_rate,omitempty"`
}

// HasPO reports whether a PO number was found on the invoice.
func (g *Graph) HasPO() bool {
	return g.PO != nil
}

// FirstPOLine returns the PO line with the lowest line number.
func (g *Graph) FirstPOLine() (POLine, bool) {
	if len(g.POLines) == 0 {
		return POLine{}, false
	}
	first := g.POLines[0]
	for _, l := range g.POLines[1:] {
		if l.LineNumber < first.LineNumber {
			first = l
		}
	}
	return first, true
}

// ReplaceRef rewrites every occurrence of old with new across rows and
// master records. It is used once reconciliation returns the stored
// identifier for a placeholder. Returns the number of fields rewritten.
func (g *Graph) ReplaceRef(old, new uuid.UUID) int {
	if old == new || old == uuid.Nil {
		return 0
	}
	n := 0
	swap := func(id *uuid.UUID) {
		if *id == old {
			*id = new
			n++
		}
	}

	if g.PO != nil {
		po := g.PO
		for _, id := range []*uuid.UUID{
			&po.ID, &po.SupplierRef, &po.SupplierSiteRef, &po.LegalEntityRef,
			&po.LegalEntitySiteRef, &po.CostCenterRef, &po.ProfitCenterRef,
			&po.ProjectRef, &po.PlantRef, &po.TaxRateRef,
		} {
			swap(id)
		}
	}
	for i := range g.POLines {
		swap(&g.POLines[i].ID)
		swap(&g.POLines[i].POHeaderRef)
		swap(&g.POLines[i].ItemRef)
	}
	for i := range g.POConditions {
		swap(&g.POConditions[i].POHeaderRef)
	}

	grn := &g.GRN
	for _, id := range []*uuid.UUID{
		&grn.ID, &grn.SupplierSiteRef, &grn.LegalEntitySiteRef, &grn.POLineRef, &grn.GLAccountRef,
	} {
		swap(id)
	}
	for i := range g.GRNLines {
		swap(&g.GRNLines[i].GRNRef)
		swap(&g.GRNLines[i].ItemRef)
	}

	swap(&g.Supplier.Supplier.ID)
	swap(&g.Supplier.Site.ID)
	swap(&g.Buyer.LegalEntity.ID)
	swap(&g.Buyer.Site.ID)
	for i := range g.Items {
		swap(&g.Items[i].Ref.ID)
	}
	for _, m := range []*CodedMaster{&g.CostCenter, &g.ProfitCenter, &g.Project, &g.Plant, &g.GLAccount} {
		swap(&m.Ref.ID)
	}
	if g.TaxRate != nil {
		swap(&g.TaxRate.Ref.ID)
	}
	return n
}

// Counts summarises the rows a graph would write.
type Counts struct {
	POLines      int
	POConditions int
	GRNLines     int
}

// Counts returns the number of transactional lines in the graph.
func (g *Graph) Counts() Counts {
	return Counts{
		POLines:      len(g.POLines),
		POConditions: len(g.POConditions),
		GRNLines:     len(g.GRNLines),
	}
}
