package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/procurement"
)

// DocumentStoreConfig configures a DocumentStore.
type DocumentStoreConfig struct {
	Schema    string
	CreatedBy string
	Clock     func() time.Time
}

// DocumentStore reads and writes purchase orders and goods receipts.
type DocumentStore struct {
	db     TxExecutor
	tables tables
	cfg    DocumentStoreConfig
	logger *zap.Logger
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db TxExecutor, cfg DocumentStoreConfig, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &DocumentStore{
		db:     db,
		tables: tables{schema: cfg.Schema},
		cfg:    cfg,
		logger: logger.Named("document_store"),
	}
}

// FindPOByNumber returns the id of the PO header stored under poNumber.
func (s *DocumentStore) FindPOByNumber(ctx context.Context, poNumber string) (uuid.UUID, bool, error) {
	stmt := fmt.Sprintf("SELECT id FROM %s WHERE s_po_number = ? LIMIT 1", s.tables.name("s_po_header"))
	rows, err := s.db.Execute(ctx, stmt, poNumber)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find po %q: %w", poNumber, err)
	}
	return firstID(rows, "id")
}

// FirstPOLine returns the id of the lowest numbered line of a PO.
func (s *DocumentStore) FirstPOLine(ctx context.Context, poHeaderID uuid.UUID) (uuid.UUID, bool, error) {
	stmt := fmt.Sprintf("SELECT id FROM %s WHERE s_po_header_ref = ? ORDER BY s_line_number ASC LIMIT 1",
		s.tables.name("s_po_line"))
	rows, err := s.db.Execute(ctx, stmt, poHeaderID)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find first line of po %s: %w", poHeaderID, err)
	}
	return firstID(rows, "id")
}

func (s *DocumentStore) audit() []column {
	now := s.cfg.Clock()
	return []column{
		{"is_deleted", false},
		{"created_at", now},
		{"updated_at", now},
		{"created_by", s.cfg.CreatedBy},
		{"updated_by", s.cfg.CreatedBy},
	}
}

func (s *DocumentStore) insert(ctx context.Context, q QueryExecutor, table string, cols []column) error {
	names, values := splitColumns(append(s.audit(), cols...))
	if _, err := q.Execute(ctx, insertStatement(s.tables.name(table), names), values...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

// InsertPO writes the header, lines and conditions of a PO in one
// transaction. A unique violation on the PO number is returned unchanged so
// callers can detect it with IsUniqueViolation.
func (s *DocumentStore) InsertPO(ctx context.Context, po procurement.POHeader, lines []procurement.POLine, conditions []procurement.POCondition) error {
	err := s.db.WithinTransaction(ctx, func(q QueryExecutor) error {
		if err := s.insert(ctx, q, "s_po_header", poHeaderColumns(po)); err != nil {
			return err
		}
		for _, l := range lines {
			if err := s.insert(ctx, q, "s_po_line", poLineColumns(l)); err != nil {
				return err
			}
		}
		for _, c := range conditions {
			if err := s.insert(ctx, q, "s_po_condition", poConditionColumns(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("PO inserted",
		zap.String("po_number", po.PONumber),
		zap.String("po_header_id", po.ID.String()),
		zap.Int("lines", len(lines)),
		zap.Int("conditions", len(conditions)),
	)
	return nil
}

// InsertGRN writes a GRN header and its lines in one transaction.
func (s *DocumentStore) InsertGRN(ctx context.Context, grn procurement.GRNHeader, lines []procurement.GRNLine) error {
	err := s.db.WithinTransaction(ctx, func(q QueryExecutor) error {
		if err := s.insert(ctx, q, "s_grn_header", grnHeaderColumns(grn)); err != nil {
			return err
		}
		for _, l := range lines {
			if err := s.insert(ctx, q, "s_grn_line", grnLineColumns(l)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("GRN inserted",
		zap.String("grn_number", grn.GRNNumber),
		zap.String("grn_header_id", grn.ID.String()),
		zap.Int("lines", len(lines)),
	)
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func poHeaderColumns(po procurement.POHeader) []column {
	return []column{
		{"id", po.ID},
		{"s_po_number", po.PONumber},
		{"s_po_id", po.POID},
		{"s_po_date", po.PODate},
		{"s_po_status", po.Status},
		{"s_po_type", string(po.Type)},
		{"s_supplier_ref", po.SupplierRef},
		{"s_supplier_site_ref", po.SupplierSiteRef},
		{"s_legal_entity_ref", po.LegalEntityRef},
		{"s_legal_entity_site_ref", po.LegalEntitySiteRef},
		{"s_cost_center_ref", po.CostCenterRef},
		{"s_profit_center_ref", po.ProfitCenterRef},
		{"s_project_ref", po.ProjectRef},
		{"s_plant_ref", po.PlantRef},
		{"s_tax_rate_ref", po.TaxRateRef},
		{"s_currency_id", po.Currency},
		{"s_po_total_value", po.TotalValue},
		{"s_payment_terms", po.PaymentTerms},
		{"s_matching_type", po.MatchingType},
		{"s_incoterms", nullString(po.Incoterms)},
		{"s_freight_included_flag", po.FreightIncluded},
		{"s_po_valid_from", nullTime(po.ValidFrom)},
		{"s_po_valid_to", nullTime(po.ValidTo)},
		{"s_effective_from", po.EffectiveFrom},
		{"s_created_by", po.CreatedBy},
		{"s_external_system", nullString(po.ExternalSystem)},
		{"s_external_system_id", nullString(po.ExternalSystemID)},
	}
}

func poLineColumns(l procurement.POLine) []column {
	return []column{
		{"id", l.ID},
		{"s_po_header_ref", l.POHeaderRef},
		{"s_po_line_id", l.POLineID},
		{"s_line_number", l.LineNumber},
		{"s_line_status", l.Status},
		{"s_item_ref", l.ItemRef},
		{"s_hsn_id", l.HSN},
		{"s_ordered_quantity", l.OrderedQuantity},
		{"s_unit_price", l.UnitPrice},
		{"s_line_amount", l.LineAmount},
		{"s_uom_id", l.UOM},
		{"s_expected_delivery_date", nullTime(l.ExpectedDelivery)},
		{"s_qc_required_flag", l.QCRequired},
		{"s_effective_from", l.EffectiveFrom},
		{"s_external_system", nullString(l.ExternalSystem)},
		{"s_external_system_id", nullString(l.ExternalSystemID)},
	}
}

func poConditionColumns(c procurement.POCondition) []column {
	return []column{
		{"id", c.ID},
		{"s_po_header_ref", c.POHeaderRef},
		{"s_po_condition_id", c.ConditionID},
		{"s_condition_type", c.ConditionType},
		{"s_calculation_basis", c.CalculationBasis},
		{"s_rate", c.Rate},
		{"s_uom_id", c.UOM},
		{"s_effective_from", c.EffectiveFrom},
		{"s_external_system", nullString(c.ExternalSystem)},
		{"s_external_system_id", nullString(c.ExternalSystemID)},
	}
}

func grnHeaderColumns(g procurement.GRNHeader) []column {
	return []column{
		{"id", g.ID},
		{"s_grn_number", g.GRNNumber},
		{"s_grn_id", g.GRNID},
		{"s_grn_date", g.GRNDate},
		{"s_grn_status", g.Status},
		{"s_qc_status", g.QCStatus},
		{"s_supplier_site_ref", g.SupplierSiteRef},
		{"s_legal_entity_site_ref", g.LegalEntitySiteRef},
		{"s_po_line_ref", g.POLineRef},
		{"s_gl_account_ref", g.GLAccountRef},
		{"s_total_received_qty", g.TotalReceivedQty},
		{"s_total_received_amount", g.TotalReceivedAmount},
		{"s_weight_uom_id", g.WeightUOM},
		{"s_effective_from", g.EffectiveFrom},
		{"s_external_system", nullString(g.ExternalSystem)},
		{"s_external_system_id", nullString(g.ExternalSystemID)},
	}
}

func grnLineColumns(l procurement.GRNLine) []column {
	return []column{
		{"id", l.ID},
		{"s_grn_ref", l.GRNRef},
		{"s_grn_line_id", l.GRNLineID},
		{"s_line_number", l.LineNumber},
		{"s_item_description", l.ItemDescription},
		{"s_item_ref", l.ItemRef},
		{"s_received_qty", l.ReceivedQty},
		{"s_unit_price", l.UnitPrice},
		{"s_total_received_amount", l.TotalReceivedAmount},
		{"s_accepted_qty", l.AcceptedQty},
		{"s_rejected_qty", l.RejectedQty},
		{"s_uom_id", l.UOM},
		{"s_weight_uom", l.WeightUOM},
		{"s_qc_required_flag", l.QCRequired},
		{"s_qc_result", l.QCResult},
		{"s_grn_line_status", l.Status},
		{"s_batch_number", nullString(l.BatchNumber)},
		{"s_effective_from", l.EffectiveFrom},
		{"s_external_system", nullString(l.ExternalSystem)},
		{"s_external_system_id", nullString(l.ExternalSystemID)},
	}
}
