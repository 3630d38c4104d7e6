// Package invoice persists mapped OCR invoices and drives single and batch
// processing.
package invoice

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/procurement"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/persistence"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/telemetry"
)

// MasterDataReconciler ensures master rows exist and returns their stored
// identifiers.
type MasterDataReconciler interface {
	EnsureSupplier(ctx context.Context, s procurement.SupplierInfo) (procurement.EnsureResult, error)
	EnsureSupplierSite(ctx context.Context, s procurement.SupplierInfo) (procurement.EnsureResult, error)
	EnsureLegalEntity(ctx context.Context, b procurement.BuyerInfo) (procurement.EnsureResult, error)
	EnsureLegalEntitySite(ctx context.Context, b procurement.BuyerInfo) (procurement.EnsureResult, error)
	EnsureItem(ctx context.Context, it procurement.ItemInfo) (procurement.EnsureResult, error)
	EnsureCostCenter(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error)
	EnsureProfitCenter(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error)
	EnsureProject(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error)
	EnsurePlant(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error)
	EnsureGLAccount(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error)
	EnsureTaxRate(ctx context.Context, t procurement.TaxRateInfo) (procurement.EnsureResult, error)
}

// DocumentStore reads and writes PO and GRN rows.
type DocumentStore interface {
	FindPOByNumber(ctx context.Context, poNumber string) (uuid.UUID, bool, error)
	FirstPOLine(ctx context.Context, poHeaderID uuid.UUID) (uuid.UUID, bool, error)
	InsertPO(ctx context.Context, po procurement.POHeader, lines []procurement.POLine, conditions []procurement.POCondition) error
	InsertGRN(ctx context.Context, grn procurement.GRNHeader, lines []procurement.GRNLine) error
}

// Binder learns the stored id behind a placeholder reference.
type Binder interface {
	Bind(placeholder, stored uuid.UUID)
}

// InsertSummary reports what one Persist call wrote.
type InsertSummary struct {
	POHeaderID    uuid.UUID      `json:"po_header_id"`
	GRNHeaderID   uuid.UUID      `json:"grn_header_id"`
	POExists      bool           `json:"po_exists"`
	POLines       int            `json:"po_lines"`
	POConditions  int            `json:"po_conditions"`
	GRNLines      int            `json:"grn_lines"`
	MasterCreated map[string]int `json:"master_created"`
	Errors        []string       `json:"errors"`
}

func newInsertSummary() *InsertSummary {
	return &InsertSummary{MasterCreated: make(map[string]int), Errors: []string{}}
}

// Orchestrator writes a document graph in dependency order: master data,
// then the PO when it is new, then the GRN.
type Orchestrator struct {
	master MasterDataReconciler
	docs   DocumentStore
	binder Binder
	logger *zap.Logger
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(master MasterDataReconciler, docs DocumentStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		master: master,
		docs:   docs,
		logger: logger.Named("orchestrator"),
	}
}

// SetBinder sets the resolver that is told about every stored id, so later
// documents of the same run resolve straight to stored rows.
func (o *Orchestrator) SetBinder(b Binder) {
	o.binder = b
}

// Persist writes g. The graph is rewritten in place as stored ids replace
// placeholders. On failure the summary holds what was written before the
// failing step and the error is also recorded in summary.Errors.
func (o *Orchestrator) Persist(ctx context.Context, g *procurement.Graph) (*InsertSummary, error) {
	summary := newInsertSummary()
	fail := func(err error) (*InsertSummary, error) {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}

	if err := o.ensureParties(ctx, g, summary); err != nil {
		return fail(err)
	}
	if g.HasPO() {
		if err := o.ensurePOMasters(ctx, g, summary); err != nil {
			return fail(err)
		}
	}
	if err := o.ensureGRNMasters(ctx, g, summary); err != nil {
		return fail(err)
	}

	if g.HasPO() {
		if err := o.persistPO(ctx, g, summary); err != nil {
			return fail(err)
		}
	}

	if err := o.persistGRN(ctx, g, summary); err != nil {
		return fail(err)
	}
	return summary, nil
}

// ensure runs one reconciler call and rebinds the graph to the stored id.
func (o *Orchestrator) ensure(ctx context.Context, g *procurement.Graph, s *InsertSummary, ref procurement.MasterRef,
	fn func(context.Context) (procurement.EnsureResult, error)) error {
	ctx, span := telemetry.StartSpan(ctx, "invoice.ensure_master",
		telemetry.WithAttribute(telemetry.SpanAttrMasterKind, string(ref.Kind)))
	defer span.End()

	res, err := fn(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("ensure %s %s: %w", ref.Kind, ref.Code, err)
	}
	if res.Created {
		s.MasterCreated[string(ref.Kind)]++
	}
	if res.ID != uuid.Nil && res.ID != ref.ID {
		g.ReplaceRef(ref.ID, res.ID)
		if o.binder != nil {
			o.binder.Bind(ref.ID, res.ID)
		}
	}
	return nil
}

func (o *Orchestrator) ensureParties(ctx context.Context, g *procurement.Graph, s *InsertSummary) error {
	if err := o.ensure(ctx, g, s, g.Supplier.Supplier, func(ctx context.Context) (procurement.EnsureResult, error) {
		return o.master.EnsureSupplier(ctx, g.Supplier)
	}); err != nil {
		return err
	}
	if err := o.ensure(ctx, g, s, g.Supplier.Site, func(ctx context.Context) (procurement.EnsureResult, error) {
		return o.master.EnsureSupplierSite(ctx, g.Supplier)
	}); err != nil {
		return err
	}
	if err := o.ensure(ctx, g, s, g.Buyer.LegalEntity, func(ctx context.Context) (procurement.EnsureResult, error) {
		return o.master.EnsureLegalEntity(ctx, g.Buyer)
	}); err != nil {
		return err
	}
	if err := o.ensure(ctx, g, s, g.Buyer.Site, func(ctx context.Context) (procurement.EnsureResult, error) {
		return o.master.EnsureLegalEntitySite(ctx, g.Buyer)
	}); err != nil {
		return err
	}

	// Lines naming the same item share one reference; ensure it once.
	seen := make(map[string]bool, len(g.Items))
	for i := range g.Items {
		item := g.Items[i]
		if seen[item.Ref.Code] {
			continue
		}
		seen[item.Ref.Code] = true
		if err := o.ensure(ctx, g, s, item.Ref, func(ctx context.Context) (procurement.EnsureResult, error) {
			return o.master.EnsureItem(ctx, item)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) ensureCoded(ctx context.Context, g *procurement.Graph, s *InsertSummary, m *procurement.CodedMaster,
	fn func(context.Context, procurement.CodedMaster) (procurement.EnsureResult, error)) error {
	return o.ensure(ctx, g, s, m.Ref, func(ctx context.Context) (procurement.EnsureResult, error) {
		return fn(ctx, *m)
	})
}

func (o *Orchestrator) ensurePOMasters(ctx context.Context, g *procurement.Graph, s *InsertSummary) error {
	steps := []struct {
		master *procurement.CodedMaster
		fn     func(context.Context, procurement.CodedMaster) (procurement.EnsureResult, error)
	}{
		{&g.CostCenter, o.master.EnsureCostCenter},
		{&g.ProfitCenter, o.master.EnsureProfitCenter},
		{&g.Project, o.master.EnsureProject},
		{&g.Plant, o.master.EnsurePlant},
	}
	for _, step := range steps {
		if err := o.ensureCoded(ctx, g, s, step.master, step.fn); err != nil {
			return err
		}
	}
	if g.TaxRate != nil {
		tax := g.TaxRate
		if err := o.ensure(ctx, g, s, tax.Ref, func(ctx context.Context) (procurement.EnsureResult, error) {
			return o.master.EnsureTaxRate(ctx, *tax)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ensureGRNMasters ensures the GL account and, when the GRN points at the
// project instead of a PO line, the project as well.
func (o *Orchestrator) ensureGRNMasters(ctx context.Context, g *procurement.Graph, s *InsertSummary) error {
	if err := o.ensureCoded(ctx, g, s, &g.GLAccount, o.master.EnsureGLAccount); err != nil {
		return err
	}
	if !g.HasPO() && g.GRN.POLineRef == g.Project.Ref.ID {
		return o.ensureCoded(ctx, g, s, &g.Project, o.master.EnsureProject)
	}
	return nil
}

// persistPO inserts the PO unless one with the same number is stored. An
// insert that loses a race on the PO number falls back to the stored PO.
func (o *Orchestrator) persistPO(ctx context.Context, g *procurement.Graph, s *InsertSummary) error {
	ctx, span := telemetry.StartSpan(ctx, "invoice.persist_po",
		telemetry.WithAttribute(telemetry.SpanAttrPONumber, g.PO.PONumber))
	defer span.End()

	poNumber := g.PO.PONumber
	existing, found, err := o.docs.FindPOByNumber(ctx, poNumber)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("check po %s: %w", poNumber, err)
	}
	if found {
		telemetry.SetAttributes(span, telemetry.SpanAttrPOExists, true)
		return o.reusePO(ctx, g, s, existing)
	}

	err = o.docs.InsertPO(ctx, *g.PO, g.POLines, g.POConditions)
	if err != nil {
		if !persistence.IsUniqueViolation(err) {
			telemetry.RecordError(span, err)
			return fmt.Errorf("insert po %s: %w", poNumber, err)
		}
		o.logger.Info("PO inserted concurrently, reusing stored PO", zap.String("po_number", poNumber))
		existing, found, err = o.docs.FindPOByNumber(ctx, poNumber)
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("check po %s after conflict: %w", poNumber, err)
		}
		if !found {
			return fmt.Errorf("po %s conflicted on insert but is not readable", poNumber)
		}
		telemetry.SetAttributes(span, telemetry.SpanAttrPOExists, true)
		return o.reusePO(ctx, g, s, existing)
	}

	s.POHeaderID = g.PO.ID
	s.POLines = len(g.POLines)
	s.POConditions = len(g.POConditions)
	telemetry.SetAttributes(span, telemetry.SpanAttrPOExists, false,
		telemetry.SpanAttrRowsWritten, 1+s.POLines+s.POConditions)
	return nil
}

// reusePO points the graph at a stored PO and its lowest numbered line.
func (o *Orchestrator) reusePO(ctx context.Context, g *procurement.Graph, s *InsertSummary, poHeaderID uuid.UUID) error {
	g.ReplaceRef(g.PO.ID, poHeaderID)
	s.POExists = true
	s.POHeaderID = poHeaderID

	lineID, found, err := o.docs.FirstPOLine(ctx, poHeaderID)
	if err != nil {
		return fmt.Errorf("first line of po %s: %w", g.PO.PONumber, err)
	}
	if found {
		g.GRN.POLineRef = lineID
	} else {
		if err := o.ensureCoded(ctx, g, s, &g.Project, o.master.EnsureProject); err != nil {
			return err
		}
		g.GRN.POLineRef = g.Project.Ref.ID
	}

	o.logger.Info("PO already stored, skipping PO rows",
		zap.String("po_number", g.PO.PONumber),
		zap.String("po_header_id", poHeaderID.String()),
		zap.String("po_line_ref", g.GRN.POLineRef.String()),
	)
	return nil
}

func (o *Orchestrator) persistGRN(ctx context.Context, g *procurement.Graph, s *InsertSummary) error {
	ctx, span := telemetry.StartSpan(ctx, "invoice.persist_grn",
		telemetry.WithAttribute(telemetry.SpanAttrGRNNumber, g.GRN.GRNNumber))
	defer span.End()

	if err := o.docs.InsertGRN(ctx, g.GRN, g.GRNLines); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("insert grn %s: %w", g.GRN.GRNNumber, err)
	}
	s.GRNHeaderID = g.GRN.ID
	s.GRNLines = len(g.GRNLines)
	telemetry.SetAttributes(span, telemetry.SpanAttrRowsWritten, 1+s.GRNLines)
	telemetry.SetOK(span)
	return nil
}
