package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/docid"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/ocr"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/procurement"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/transform"
)

// Column widths applied while cleaning OCR text.
const (
	maxCodeLength    = 50
	maxNameLength    = 255
	maxAddressLength = 500
	maxInvoiceLength = 100
)

// UnknownDescription stands in for a line without a description.
const UnknownDescription = "UNKNOWN"

// LineNumberStep is the PO line numbering increment (10, 20, 30, ...).
const LineNumberStep = 10

// Config holds the values stamped onto every mapped document.
type Config struct {
	CreatedBy       string
	ExternalSystem  string
	DefaultCurrency string
	LeadDays        int
}

// DefaultConfig returns the mapper defaults.
func DefaultConfig() Config {
	return Config{
		CreatedBy:       "OCR_AUTOMATION",
		ExternalSystem:  "OCR_SYSTEM",
		DefaultCurrency: DefaultCurrency,
		LeadDays:        transform.DefaultLeadDays,
	}
}

// Mapper builds procurement graphs from validated OCR documents.
type Mapper struct {
	resolver *Resolver
	cfg      Config
	clock    func() time.Time
	logger   *zap.Logger
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithClock sets the clock used for fallback dates and GRN identifiers.
func WithClock(clock func() time.Time) MapperOption {
	return func(m *Mapper) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLogger sets the mapper logger.
func WithLogger(logger *zap.Logger) MapperOption {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMapper creates a Mapper drawing references from resolver.
func NewMapper(resolver *Resolver, cfg Config, opts ...MapperOption) *Mapper {
	def := DefaultConfig()
	if cfg.CreatedBy == "" {
		cfg.CreatedBy = def.CreatedBy
	}
	if cfg.ExternalSystem == "" {
		cfg.ExternalSystem = def.ExternalSystem
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = def.DefaultCurrency
	}
	if cfg.LeadDays <= 0 {
		cfg.LeadDays = def.LeadDays
	}
	m := &Mapper{
		resolver: resolver,
		cfg:      cfg,
		clock:    time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("mapper")
	return m
}

// Resolver returns the resolver backing this mapper.
func (m *Mapper) Resolver() *Resolver {
	return m.resolver
}

// lineValues are the transformed numbers of one invoice line.
type lineValues struct {
	description string
	hsn         string
	uom         string
	quantity    decimal.Decimal
	unitPrice   decimal.Decimal
	amount      decimal.Decimal
	rates       procurement.TaxRates
	item        procurement.MasterRef
	category    procurement.POType
}

// Map builds the document graph for doc. grnNumber comes from the caller's
// sequence. Map never fails: missing or unreadable values fall back to
// defaults.
func (m *Mapper) Map(doc *ocr.Document, grnNumber string) *procurement.Graph {
	return m.MapAt(doc, grnNumber, m.clock())
}

// MapAt is Map with an explicit receipt time. Pass the time grnNumber was
// formatted with so the GRN id carries the same year.
func (m *Mapper) MapAt(doc *ocr.Document, grnNumber string, receivedAt time.Time) *procurement.Graph {
	now := receivedAt.UTC()
	h := doc.Header
	if h == nil {
		h = &ocr.Header{}
	}

	invoiceNo := transform.CleanString(transform.ExtractFirst(h.InvoiceNo), maxInvoiceLength)
	if invoiceNo == "" {
		invoiceNo = "INV" + now.Format("20060102150405")
	}
	invoiceDate, ok := transform.ParseDate(transform.ExtractFirst(h.InvoiceDate))
	if !ok {
		invoiceDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	currency := firstNonEmpty(
		transform.ExtractFirst(h.InvoiceCurrency),
		transform.ExtractFirst(h.Currency),
		m.cfg.DefaultCurrency,
	)

	g := &procurement.Graph{
		InvoiceNo:   invoiceNo,
		InvoiceDate: invoiceDate,
		Currency:    m.resolver.ResolveCurrency(currency),
	}

	m.mapParties(g, h)

	lines := m.mapLines(g, doc.Lines)
	descriptions := make([]string, len(lines))
	for i, l := range lines {
		descriptions[i] = l.description
	}
	poType := procurement.ClassifyPOType(descriptions)

	if poNumber := poNumberOf(doc); poNumber != "" {
		m.mapPO(g, h, lines, poNumber, poType)
	}

	project := m.resolver.ResolveProject()
	g.Project = procurement.CodedMaster{Ref: project, Description: "OCR default project"}

	m.mapGRN(g, h, lines, grnNumber, now)

	counts := g.Counts()
	m.logger.Debug("Mapped OCR document",
		zap.String("invoice_no", g.InvoiceNo),
		zap.String("grn_number", grnNumber),
		zap.Bool("has_po", g.HasPO()),
		zap.Int("po_lines", counts.POLines),
		zap.Int("po_conditions", counts.POConditions),
		zap.Int("grn_lines", counts.GRNLines),
	)
	return g
}

// poNumberOf returns the header po_number or, failing that, the first line
// po_number. It is never synthesised.
func poNumberOf(doc *ocr.Document) string {
	if doc.Header != nil {
		if po := transform.CleanString(transform.ExtractFirst(doc.Header.PONumber), maxCodeLength); po != "" {
			return po
		}
	}
	for _, l := range doc.Lines {
		if po := transform.CleanString(l.PONumber, maxCodeLength); po != "" {
			return po
		}
	}
	return ""
}

func (m *Mapper) mapParties(g *procurement.Graph, h *ocr.Header) {
	supplierGSTIN := normalizeGSTIN(transform.ExtractFirst(h.SupplierGSTN))
	supplierName := transform.CleanString(transform.ExtractFirst(h.SupplierName), maxNameLength)
	supplierAddress := transform.CleanString(transform.ExtractFirst(h.SupplierAddress), maxAddressLength)

	supplier := m.resolver.ResolveSupplier(supplierName, supplierGSTIN)
	g.Supplier = procurement.SupplierInfo{
		Supplier:  supplier,
		Site:      m.resolver.ResolveSupplierSite(supplier.Code, supplierAddress, supplierGSTIN),
		Name:      supplierName,
		GSTIN:     supplierGSTIN,
		ValidGST:  m.checkGSTIN("supplier", supplierGSTIN),
		PAN:       transform.PANFromGSTIN(supplierGSTIN),
		Address:   supplierAddress,
		City:      transform.CleanString(transform.ExtractFirst(h.SupplierCity), 100),
		StateCode: transform.StateCodeFromGSTIN(supplierGSTIN),
	}

	buyerGSTIN := normalizeGSTIN(firstNonEmpty(
		transform.ExtractFirst(h.LocationGSTN),
		transform.ExtractFirst(h.GSTNumber),
	))
	billTo := transform.CleanString(firstNonEmpty(
		transform.ExtractFirst(h.BillToAddress),
		transform.ExtractFirst(h.CustomerAddress),
	), maxAddressLength)
	shipTo := transform.CleanString(firstNonEmpty(
		transform.ExtractFirst(h.ShipToAddress),
		transform.ExtractFirst(h.DeliveryLocation),
	), maxAddressLength)

	entity := m.resolver.ResolveLegalEntity(buyerGSTIN, "")
	g.Buyer = procurement.BuyerInfo{
		LegalEntity: entity,
		Site:        m.resolver.ResolveLegalEntitySite(entity.Code, billTo, buyerGSTIN),
		GSTIN:       buyerGSTIN,
		ValidGST:    m.checkGSTIN("buyer", buyerGSTIN),
		PAN:         transform.PANFromGSTIN(buyerGSTIN),
		Address:     billTo,
		ShipTo:      shipTo,
		StateCode:   transform.StateCodeFromGSTIN(buyerGSTIN),
	}
}

// checkGSTIN reports whether gstin is well formed. Malformed values are
// kept as read, since OCR noise is common, but logged.
func (m *Mapper) checkGSTIN(party, gstin string) bool {
	if gstin == "" {
		return false
	}
	if transform.IsValidGSTIN(gstin) {
		return true
	}
	m.logger.Warn("Malformed GSTIN on invoice", zap.String("party", party), zap.String("gstin", gstin))
	return false
}

// mapLines transforms every line and resolves its item. Items are resolved
// whether or not a PO is built since GRN lines reference them too.
func (m *Mapper) mapLines(g *procurement.Graph, in []ocr.InvoiceLine) []lineValues {
	out := make([]lineValues, len(in))
	g.Items = make([]procurement.ItemInfo, len(in))
	for i, l := range in {
		desc := transform.CleanString(l.Description, maxNameLength)
		if desc == "" {
			desc = UnknownDescription
		}
		v := lineValues{
			description: desc,
			hsn:         transform.ExtractHSNCode(l.HSNNumber),
			uom:         transform.NormalizeUOM(l.Unit),
			quantity:    transform.SafeQuantity(l.Quantity),
			unitPrice:   transform.SafeAmount(l.UnitPrice),
			amount:      transform.SafeAmount(l.LineAmount),
			rates: procurement.TaxRates{
				IGST:  transform.ExtractTaxRate(l.IGSTRate),
				CGST:  transform.ExtractTaxRate(l.CGSTRate),
				SGST:  transform.ExtractTaxRate(l.SGSTRate),
				UTGST: transform.ExtractTaxRate(l.UTGSTRate),
			},
			category: procurement.ClassifyPOType([]string{desc}),
		}
		if v.amount.IsZero() && v.quantity.IsPositive() && v.unitPrice.IsPositive() {
			v.amount = v.quantity.Mul(v.unitPrice).Round(transform.AmountPrecision)
		}
		v.item = m.resolver.ResolveItem(v.description, v.hsn)
		out[i] = v

		g.Items[i] = procurement.ItemInfo{
			Ref:         v.item,
			LineIndex:   i,
			Description: v.description,
			HSN:         v.hsn,
			UOM:         v.uom,
			Category:    string(v.category),
		}
	}
	return out
}

func (m *Mapper) mapPO(g *procurement.Graph, h *ocr.Header, lines []lineValues, poNumber string, poType procurement.POType) {
	poDate := g.InvoiceDate
	poID := docid.POID(poNumber)
	terms := procurement.TermsFor(poType)

	total := transform.SafeAmount(transform.ExtractFirst(h.TotalInvoiceAmount))
	if total.IsZero() {
		total = sumAmounts(lines)
	}

	g.CostCenter = procurement.CodedMaster{Ref: m.resolver.ResolveCostCenter(), Description: "OCR default cost center"}
	g.ProfitCenter = procurement.CodedMaster{Ref: m.resolver.ResolveProfitCenter(), Description: "OCR default profit center"}
	g.Plant = procurement.CodedMaster{Ref: m.resolver.ResolvePlant(), Description: "OCR default plant"}

	name, taxType, rate := procurement.TaxRateName(headerOrLineRates(h, lines))
	g.TaxRate = &procurement.TaxRateInfo{
		Ref:     m.resolver.ResolveTaxRate(name),
		Name:    name,
		TaxType: taxType,
		Rate:    rate,
	}

	header := &procurement.POHeader{
		ID:                 m.resolver.NewID(),
		PONumber:           poNumber,
		POID:               poID,
		PODate:             poDate,
		Status:             procurement.POStatusApproved,
		Type:               poType,
		SupplierRef:        g.Supplier.Supplier.ID,
		SupplierSiteRef:    g.Supplier.Site.ID,
		LegalEntityRef:     g.Buyer.LegalEntity.ID,
		LegalEntitySiteRef: g.Buyer.Site.ID,
		CostCenterRef:      g.CostCenter.Ref.ID,
		ProfitCenterRef:    g.ProfitCenter.Ref.ID,
		ProjectRef:         m.resolver.ResolveProject().ID,
		PlantRef:           g.Plant.Ref.ID,
		TaxRateRef:         g.TaxRate.Ref.ID,
		Currency:           g.Currency,
		TotalValue:         total,
		PaymentTerms:       terms.PaymentTerms,
		MatchingType:       terms.MatchingType,
		Incoterms:          terms.Incoterms,
		FreightIncluded:    transform.SafeAmount(transform.ExtractFirst(h.ShippingAmount)).IsPositive(),
		ValidFrom:          poDate,
		EffectiveFrom:      poDate,
		CreatedBy:          m.cfg.CreatedBy,
		ExternalSystem:     m.cfg.ExternalSystem,
		ExternalSystemID:   "OCR-" + poNumber,
	}
	g.PO = header

	expected := transform.CalculateExpectedDelivery(poDate, m.cfg.LeadDays)
	g.POLines = make([]procurement.POLine, len(lines))
	for i, l := range lines {
		lineNumber := (i + 1) * LineNumberStep
		g.POLines[i] = procurement.POLine{
			ID:               m.resolver.NewID(),
			POHeaderRef:      header.ID,
			POLineID:         docid.POLineID(poID, lineNumber),
			LineNumber:       lineNumber,
			Status:           procurement.POLineStatusOpen,
			ItemRef:          l.item.ID,
			HSN:              l.hsn,
			OrderedQuantity:  l.quantity,
			UnitPrice:        l.unitPrice,
			LineAmount:       l.amount,
			UOM:              l.uom,
			ExpectedDelivery: expected,
			EffectiveFrom:    poDate,
			QCRequired:       true,
			ExternalSystem:   m.cfg.ExternalSystem,
			ExternalSystemID: fmt.Sprintf("OCR-LINE-%d", lineNumber),
		}
	}

	g.POConditions = m.conditions(h, lines, header, poID)
}

// conditions collects the header rates then every line's rates, dropping
// zero rates and repeats of an already seen (type, rate) pair.
func (m *Mapper) conditions(h *ocr.Header, lines []lineValues, po *procurement.POHeader, poID string) []procurement.POCondition {
	type seenKey struct {
		taxType string
		rate    string
	}
	seen := make(map[seenKey]bool)
	var out []procurement.POCondition

	add := func(r procurement.TaxRates) {
		for _, c := range []struct {
			taxType string
			rate    decimal.Decimal
		}{
			{procurement.TaxIGST, r.IGST},
			{procurement.TaxCGST, r.CGST},
			{procurement.TaxSGST, r.SGST},
			{procurement.TaxUTGST, r.UTGST},
		} {
			if !c.rate.IsPositive() {
				continue
			}
			k := seenKey{c.taxType, c.rate.StringFixed(transform.RatePrecision)}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, procurement.POCondition{
				ID:               m.resolver.NewID(),
				POHeaderRef:      po.ID,
				ConditionID:      docid.POConditionID(poID, c.taxType, c.rate),
				ConditionType:    c.taxType,
				CalculationBasis: procurement.CalculationPercent,
				Rate:             c.rate,
				UOM:              procurement.UOMPercent,
				EffectiveFrom:    po.EffectiveFrom,
				ExternalSystem:   m.cfg.ExternalSystem,
				ExternalSystemID: fmt.Sprintf("OCR-COND-%s-%s", c.taxType, k.rate),
			})
		}
	}

	add(headerRates(h))
	for _, l := range lines {
		add(l.rates)
	}
	return out
}

func (m *Mapper) mapGRN(g *procurement.Graph, h *ocr.Header, lines []lineValues, grnNumber string, now time.Time) {
	grnID := docid.GRNID(grnNumber, now)

	totalQty := decimal.Zero
	for _, l := range lines {
		totalQty = totalQty.Add(l.quantity)
	}
	amountField := transform.ExtractFirst(h.Subtotal)
	if amountField == "" {
		amountField = transform.ExtractFirst(h.TotalInvoiceAmount)
	}

	poLineRef := g.Project.Ref.ID
	if first, ok := g.FirstPOLine(); ok {
		poLineRef = first.ID
	}

	gl := m.resolver.ResolveGLAccount()
	g.GLAccount = procurement.CodedMaster{Ref: gl, Description: "OCR goods receipt clearing"}

	g.GRN = procurement.GRNHeader{
		ID:                  m.resolver.NewID(),
		GRNNumber:           grnNumber,
		GRNID:               grnID,
		GRNDate:             g.InvoiceDate,
		Status:              procurement.GRNStatusReceived,
		QCStatus:            procurement.QCStatusPending,
		SupplierSiteRef:     g.Supplier.Site.ID,
		LegalEntitySiteRef:  g.Buyer.Site.ID,
		POLineRef:           poLineRef,
		GLAccountRef:        gl.ID,
		TotalReceivedQty:    totalQty,
		TotalReceivedAmount: transform.SafeAmount(amountField),
		WeightUOM:           procurement.WeightUOMKilogram,
		EffectiveFrom:       g.InvoiceDate,
		ExternalSystem:      m.cfg.ExternalSystem,
		ExternalSystemID:    "OCR-GRN-" + grnNumber,
	}

	g.GRNLines = make([]procurement.GRNLine, len(lines))
	for i, l := range lines {
		lineNumber := i + 1
		g.GRNLines[i] = procurement.GRNLine{
			ID:                  m.resolver.NewID(),
			GRNRef:              g.GRN.ID,
			GRNLineID:           docid.GRNLineID(grnID, lineNumber),
			LineNumber:          lineNumber,
			ItemDescription:     l.description,
			ItemRef:             l.item.ID,
			ReceivedQty:         l.quantity,
			UnitPrice:           l.unitPrice,
			TotalReceivedAmount: l.amount,
			AcceptedQty:         l.quantity,
			RejectedQty:         decimal.Zero,
			UOM:                 l.uom,
			WeightUOM:           procurement.WeightUOMKilogram,
			QCRequired:          true,
			QCResult:            procurement.QCStatusPending,
			Status:              procurement.GRNStatusReceived,
			BatchNumber:         docid.BatchNumber(g.InvoiceDate, l.hsn, lineNumber),
			EffectiveFrom:       g.InvoiceDate,
			ExternalSystem:      m.cfg.ExternalSystem,
			ExternalSystemID:    fmt.Sprintf("OCR-GRNLINE-%d", lineNumber),
		}
	}
}

func headerRates(h *ocr.Header) procurement.TaxRates {
	return procurement.TaxRates{
		IGST:  transform.ExtractTaxRate(transform.ExtractFirst(h.IGST)),
		CGST:  transform.ExtractTaxRate(transform.ExtractFirst(h.CGST)),
		SGST:  transform.ExtractTaxRate(transform.ExtractFirst(h.SGST)),
		UTGST: transform.ExtractTaxRate(transform.ExtractFirst(h.UTGST)),
	}
}

// headerOrLineRates prefers the header rates and otherwise takes the first
// line carrying any rate.
func headerOrLineRates(h *ocr.Header, lines []lineValues) procurement.TaxRates {
	if r := headerRates(h); hasRate(r) {
		return r
	}
	for _, l := range lines {
		if hasRate(l.rates) {
			return l.rates
		}
	}
	return procurement.TaxRates{}
}

func hasRate(r procurement.TaxRates) bool {
	return r.IGST.IsPositive() || r.CGST.IsPositive() || r.SGST.IsPositive() || r.UTGST.IsPositive()
}

func sumAmounts(lines []lineValues) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.amount)
	}
	return total
}

func normalizeGSTIN(s string) string {
	return strings.ToUpper(transform.CleanString(s, 15))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
