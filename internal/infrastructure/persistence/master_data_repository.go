package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/procurement"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/transform"
)

// Defaults written on master rows that the invoice cannot describe.
const (
	supplierTypeCompany    = "COMPANY"
	itemCategoryMaterial   = "MATERIAL"
	glAccountTypeAsset     = "ASSET"
	defaultLegalEntityName = "Default Legal Entity"
	defaultSupplierName    = "Unknown Supplier"
)

// MasterDataConfig configures a MasterDataRepository.
type MasterDataConfig struct {
	Schema             string
	CreatedBy          string
	DefaultCountryCode string
	DefaultStateCode   string
	Clock              func() time.Time
}

// MasterDataRepository reconciles master-data rows by business key. Every
// Ensure call is idempotent: an existing row is reused, a missing row is
// inserted, and an insert that loses a race to a concurrent writer returns
// the row that won.
type MasterDataRepository struct {
	exec   QueryExecutor
	tables tables
	cfg    MasterDataConfig
	logger *zap.Logger
}

// NewMasterDataRepository creates a new MasterDataRepository
func NewMasterDataRepository(exec QueryExecutor, cfg MasterDataConfig, logger *zap.Logger) *MasterDataRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &MasterDataRepository{
		exec:   exec,
		tables: tables{schema: cfg.Schema},
		cfg:    cfg,
		logger: logger.Named("master_data"),
	}
}

// masterRecord describes one business-keyed master row.
type masterRecord struct {
	kind     procurement.Kind
	table    string
	idColumn string // s_<kind>_id
	keyCol   string
	key      string
	id       uuid.UUID
	columns  []column
}

func (r *MasterDataRepository) lookup(ctx context.Context, rec masterRecord) (uuid.UUID, bool, error) {
	stmt := fmt.Sprintf("SELECT id FROM %s WHERE %s = ? LIMIT 1", r.tables.name(rec.table), rec.keyCol)
	rows, err := r.exec.Execute(ctx, stmt, rec.key)
	if err != nil {
		return uuid.Nil, false, err
	}
	return firstID(rows, "id")
}

func (r *MasterDataRepository) ensure(ctx context.Context, rec masterRecord) (procurement.EnsureResult, error) {
	if rec.key == "" {
		return procurement.EnsureResult{}, fmt.Errorf("ensure %s: empty business key", rec.kind)
	}

	id, found, err := r.lookup(ctx, rec)
	if err != nil {
		return procurement.EnsureResult{}, fmt.Errorf("lookup %s %q: %w", rec.kind, rec.key, err)
	}
	if found {
		r.logger.Debug("Master row exists",
			zap.String("kind", string(rec.kind)), zap.String("key", rec.key), zap.String("id", id.String()))
		return procurement.EnsureResult{ID: id}, nil
	}

	if rec.id == uuid.Nil {
		rec.id = uuid.New()
	}
	now := r.cfg.Clock()
	cols := append([]column{
		{"id", rec.id},
		{"is_deleted", false},
		{"created_at", now},
		{"updated_at", now},
		{"created_by", r.cfg.CreatedBy},
		{"updated_by", r.cfg.CreatedBy},
		{rec.idColumn, rec.id.String()},
		{rec.keyCol, rec.key},
	}, rec.columns...)
	names, values := splitColumns(cols)

	if _, err := r.exec.Execute(ctx, insertStatement(r.tables.name(rec.table), names), values...); err != nil {
		if !IsUniqueViolation(err) {
			return procurement.EnsureResult{}, fmt.Errorf("insert %s %q: %w", rec.kind, rec.key, err)
		}
		r.logger.Info("Master row created concurrently, reselecting",
			zap.String("kind", string(rec.kind)), zap.String("key", rec.key))
		id, found, err := r.lookup(ctx, rec)
		if err != nil {
			return procurement.EnsureResult{}, fmt.Errorf("lookup %s %q after conflict: %w", rec.kind, rec.key, err)
		}
		if !found {
			return procurement.EnsureResult{}, fmt.Errorf("%s %q conflicted on insert but is not readable", rec.kind, rec.key)
		}
		return procurement.EnsureResult{ID: id}, nil
	}

	r.logger.Info("Master row created",
		zap.String("kind", string(rec.kind)), zap.String("key", rec.key), zap.String("id", rec.id.String()))
	return procurement.EnsureResult{ID: rec.id, Created: true}, nil
}

func (r *MasterDataRepository) effectiveFrom() time.Time {
	y, m, d := r.cfg.Clock().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// countryID returns s_country_id for the configured default country, or the
// country code itself when the country table has no such row.
func (r *MasterDataRepository) countryID(ctx context.Context) (string, error) {
	code := r.cfg.DefaultCountryCode
	stmt := fmt.Sprintf("SELECT s_country_id FROM %s WHERE s_country_code = ? LIMIT 1", r.tables.name("s_country"))
	rows, err := r.exec.Execute(ctx, stmt, code)
	if err != nil {
		return "", fmt.Errorf("lookup country %q: %w", code, err)
	}
	if len(rows) == 0 {
		r.logger.Warn("Country not found, using code as id", zap.String("country_code", code))
		return code, nil
	}
	return fmt.Sprint(rows[0]["s_country_id"]), nil
}

// stateID returns s_state_id for a GST state code, falling back to the
// configured default state.
func (r *MasterDataRepository) stateID(ctx context.Context, stateCode string) (string, error) {
	stmt := fmt.Sprintf("SELECT s_state_id FROM %s WHERE s_state_code = ? LIMIT 1", r.tables.name("s_state"))
	for _, code := range []string{stateCode, r.cfg.DefaultStateCode} {
		if code == "" {
			continue
		}
		rows, err := r.exec.Execute(ctx, stmt, code)
		if err != nil {
			return "", fmt.Errorf("lookup state %q: %w", code, err)
		}
		if len(rows) > 0 {
			return fmt.Sprint(rows[0]["s_state_id"]), nil
		}
		r.logger.Warn("State not found", zap.String("state_code", code))
	}
	return r.cfg.DefaultCountryCode + "-" + r.cfg.DefaultStateCode, nil
}

// EnsureSupplier reconciles the supplier keyed by its code.
func (r *MasterDataRepository) EnsureSupplier(ctx context.Context, s procurement.SupplierInfo) (procurement.EnsureResult, error) {
	name := s.Name
	if name == "" {
		name = defaultSupplierName
	}
	return r.ensure(ctx, masterRecord{
		kind:     procurement.KindSupplier,
		table:    "s_supplier",
		idColumn: "s_supplier_id",
		keyCol:   "s_supplier_code",
		key:      s.Supplier.Code,
		id:       s.Supplier.ID,
		columns: []column{
			{"s_legal_name", transform.CleanString(name, 255)},
			{"s_pan_number", nullString(s.PAN)},
			{"s_gstin", nullString(s.GSTIN)},
			{"s_supplier_type", supplierTypeCompany},
			{"s_msme_flag", false},
			{"s_effective_from", r.effectiveFrom()},
		},
	})
}

// EnsureSupplierSite reconciles the supplier site. s.Supplier.ID must already
// hold the stored supplier id.
func (r *MasterDataRepository) EnsureSupplierSite(ctx context.Context, s procurement.SupplierInfo) (procurement.EnsureResult, error) {
	countryID, err := r.countryID(ctx)
	if err != nil {
		return procurement.EnsureResult{}, err
	}
	stateID, err := r.stateID(ctx, s.StateCode)
	if err != nil {
		return procurement.EnsureResult{}, err
	}
	return r.ensure(ctx, masterRecord{
		kind:     procurement.KindSupplierSite,
		table:    "s_supplier_site",
		idColumn: "s_supplier_site_id",
		keyCol:   "s_supplier_site_code",
		key:      s.Site.Code,
		id:       s.Site.ID,
		columns: []column{
			{"s_supplier_ref", s.Supplier.ID},
			{"s_gstin", nullString(s.GSTIN)},
			{"s_address", nullString(s.Address)},
			{"s_city", nullString(transform.CleanString(s.City, 100))},
			{"s_country_id", countryID},
			{"s_state_id", stateID},
			{"s_sez_flag", false},
			{"s_default_dispatch_flag", true},
			{"s_default_billing_flag", true},
			{"s_effective_from", r.effectiveFrom()},
		},
	})
}

// EnsureLegalEntity reconciles the buying legal entity.
func (r *MasterDataRepository) EnsureLegalEntity(ctx context.Context, b procurement.BuyerInfo) (procurement.EnsureResult, error) {
	name := b.Name
	if name == "" {
		name = defaultLegalEntityName
	}
	return r.ensure(ctx, masterRecord{
		kind:     procurement.KindLegalEntity,
		table:    "s_legal_entity",
		idColumn: "s_legal_entity_id",
		keyCol:   "s_legal_entity_code",
		key:      b.LegalEntity.Code,
		id:       b.LegalEntity.ID,
		columns: []column{
			{"s_legal_entity_name", transform.CleanString(name, 255)},
			{"s_legal_entity_pan", nullString(b.PAN)},
			{"s_gstin", nullString(b.GSTIN)},
			{"s_effective_from", r.effectiveFrom()},
		},
	})
}

// EnsureLegalEntitySite reconciles the billing site of the legal entity.
// b.LegalEntity.ID must already hold the stored legal entity id.
func (r *MasterDataRepository) EnsureLegalEntitySite(ctx context.Context, b procurement.BuyerInfo) (procurement.EnsureResult, error) {
	countryID, err := r.countryID(ctx)
	if err != nil {
		return procurement.EnsureResult{}, err
	}
	stateID, err := r.stateID(ctx, b.StateCode)
	if err != nil {
		return procurement.EnsureResult{}, err
	}
	return r.ensure(ctx, masterRecord{
		kind:     procurement.KindLegalEntitySite,
		table:    "s_legal_entity_site",
		idColumn: "s_legal_entity_site_id",
		keyCol:   "s_legal_entity_site_code",
		key:      b.Site.Code,
		id:       b.Site.ID,
		columns: []column{
			{"s_legal_entity_ref", b.LegalEntity.ID},
			{"s_gstin", nullString(b.GSTIN)},
			{"s_address", nullString(b.Address)},
			{"s_ship_to_address", nullString(b.ShipTo)},
			{"s_country_id", countryID},
			{"s_state_id", stateID},
			{"s_sez_flag", false},
			{"s_default_shipping_flag", true},
			{"s_default_billing_flag", true},
			{"s_effective_from", r.effectiveFrom()},
		},
	})
}

// EnsureItem reconciles the item of one invoice line.
func (r *MasterDataRepository) EnsureItem(ctx context.Context, it procurement.ItemInfo) (procurement.EnsureResult, error) {
	category := it.Category
	if category == "" {
		category = itemCategoryMaterial
	}
	hsn := it.HSN
	if hsn == "" {
		hsn = transform.UnknownHSN
	}
	uom := it.UOM
	if uom == "" {
		uom = transform.DefaultUOM
	}
	return r.ensure(ctx, masterRecord{
		kind:     procurement.KindItem,
		table:    "s_item",
		idColumn: "s_item_id",
		keyCol:   "s_item_code",
		key:      it.Ref.Code,
		id:       it.Ref.ID,
		columns: []column{
			{"s_item_name", transform.CleanString(it.Description, 255)},
			{"s_item_category", category},
			{"s_hsn_id", hsn},
			{"s_uom_id", uom},
			{"s_effective_from", r.effectiveFrom()},
		},
	})
}

// codedTables lists the tables behind the code-only master kinds.
var codedTables = map[procurement.Kind]struct {
	table, prefix string
}{
	procurement.KindCostCenter:   {"s_cost_center", "s_cost_center"},
	procurement.KindProfitCenter: {"s_profit_center", "s_profit_center"},
	procurement.KindProject:      {"s_project_wbs", "s_project"},
	procurement.KindPlant:        {"s_plant", "s_plant"},
	procurement.KindGLAccount:    {"s_gl_account", "s_gl_account"},
}

func (r *MasterDataRepository) ensureCoded(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error) {
	t, ok := codedTables[m.Ref.Kind]
	if !ok {
		return procurement.EnsureResult{}, fmt.Errorf("ensure: unsupported master kind %q", m.Ref.Kind)
	}
	cols := []column{
		{t.prefix + "_description", nullString(transform.CleanString(m.Description, 255))},
		{"s_effective_from", r.effectiveFrom()},
	}
	if m.Ref.Kind == procurement.KindGLAccount {
		cols = append(cols, column{"s_gl_account_type", glAccountTypeAsset})
	}
	return r.ensure(ctx, masterRecord{
		kind:     m.Ref.Kind,
		table:    t.table,
		idColumn: t.prefix + "_id",
		keyCol:   t.prefix + "_code",
		key:      m.Ref.Code,
		id:       m.Ref.ID,
		columns:  cols,
	})
}

// EnsureCostCenter reconciles a cost centre by code.
func (r *MasterDataRepository) EnsureCostCenter(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error) {
	m.Ref.Kind = procurement.KindCostCenter
	return r.ensureCoded(ctx, m)
}

// EnsureProfitCenter reconciles a profit centre by code.
func (r *MasterDataRepository) EnsureProfitCenter(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error) {
	m.Ref.Kind = procurement.KindProfitCenter
	return r.ensureCoded(ctx, m)
}

// EnsureProject reconciles a project (WBS element) by code.
func (r *MasterDataRepository) EnsureProject(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error) {
	m.Ref.Kind = procurement.KindProject
	return r.ensureCoded(ctx, m)
}

// EnsurePlant reconciles a plant by code.
func (r *MasterDataRepository) EnsurePlant(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error) {
	m.Ref.Kind = procurement.KindPlant
	return r.ensureCoded(ctx, m)
}

// EnsureGLAccount reconciles a GL account by code.
func (r *MasterDataRepository) EnsureGLAccount(ctx context.Context, m procurement.CodedMaster) (procurement.EnsureResult, error) {
	m.Ref.Kind = procurement.KindGLAccount
	return r.ensureCoded(ctx, m)
}

// EnsureTaxRate reconciles a tax rate by its composite name, e.g. IGST_18.
func (r *MasterDataRepository) EnsureTaxRate(ctx context.Context, t procurement.TaxRateInfo) (procurement.EnsureResult, error) {
	return r.ensure(ctx, masterRecord{
		kind:     procurement.KindTaxRate,
		table:    "s_tax_rate",
		idColumn: "s_tax_rate_id",
		keyCol:   "s_tax_rate_name",
		key:      t.Name,
		id:       t.Ref.ID,
		columns: []column{
			{"s_tax_type", t.TaxType},
			{"s_rate", t.Rate},
			{"s_effective_from", r.effectiveFrom()},
		},
	})
}
