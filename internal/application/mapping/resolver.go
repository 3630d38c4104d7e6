// Package mapping turns a validated OCR document into a procurement
// document graph: it resolves master data references and builds the PO and
// GRN rows that will be persisted.
package mapping

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/procurement"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/transform"
)

// Business key prefixes of derived master codes.
const (
	PrefixSupplier        = "SUP-"
	PrefixSupplierSite    = "SUPS-"
	PrefixLegalEntity     = "LE-"
	PrefixLegalEntitySite = "LES-"
	PrefixItem            = "ITM-"
)

// DefaultCurrency is used for currencies outside SupportedCurrencies.
const DefaultCurrency = "INR"

// SupportedCurrencies is the currency allow-list.
var SupportedCurrencies = map[string]bool{
	"INR": true, "USD": true, "EUR": true, "GBP": true,
	"JPY": true, "AUD": true, "CAD": true, "SGD": true,
}

// MasterCodes are the configured codes of the organisational masters an OCR
// invoice never names.
type MasterCodes struct {
	CostCenter   string
	ProfitCenter string
	Project      string
	Plant        string
	GLAccount    string
}

// DefaultMasterCodes returns the codes used when none are configured.
func DefaultMasterCodes() MasterCodes {
	return MasterCodes{
		CostCenter:   "CC-OCR-DEFAULT",
		ProfitCenter: "PC-OCR-DEFAULT",
		Project:      "PRJ-OCR-DEFAULT",
		Plant:        "PLT-OCR-DEFAULT",
		GLAccount:    "GL-OCR-GRIR",
	}
}

type cacheKey struct {
	kind procurement.Kind
	key  string
}

// Resolver maps business keys to master references. A key resolves to the
// same reference for the lifetime of the resolver (or until Reset), so a
// document or batch that mentions an entity twice refers to one row.
//
// The IDs handed out are placeholders: the reconciler replaces them with
// the stored ids once each row is ensured.
type Resolver struct {
	mu    sync.Mutex
	cache map[cacheKey]procurement.MasterRef
	codes MasterCodes
	newID func() uuid.UUID
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithIDGenerator sets the placeholder id source.
func WithIDGenerator(fn func() uuid.UUID) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewResolver creates a Resolver. Empty codes fall back to DefaultMasterCodes.
func NewResolver(codes MasterCodes, opts ...ResolverOption) *Resolver {
	def := DefaultMasterCodes()
	if codes.CostCenter == "" {
		codes.CostCenter = def.CostCenter
	}
	if codes.ProfitCenter == "" {
		codes.ProfitCenter = def.ProfitCenter
	}
	if codes.Project == "" {
		codes.Project = def.Project
	}
	if codes.Plant == "" {
		codes.Plant = def.Plant
	}
	if codes.GLAccount == "" {
		codes.GLAccount = def.GLAccount
	}
	r := &Resolver{
		cache: make(map[cacheKey]procurement.MasterRef),
		codes: codes,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID returns a fresh placeholder id from the resolver's generator.
func (r *Resolver) NewID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newID()
}

// Reset drops every cached reference.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}

// Len returns the number of cached references.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// Bind records the stored id of a reference previously handed out, so later
// resolutions of the same key return the stored id directly.
func (r *Resolver) Bind(placeholder, stored uuid.UUID) {
	if placeholder == stored || stored == uuid.Nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, ref := range r.cache {
		if ref.ID == placeholder {
			ref.ID = stored
			r.cache[k] = ref
		}
	}
}

// normalizeKey upper-cases and collapses whitespace.
func normalizeKey(s string) string {
	return strings.ToUpper(transform.CleanString(s, 0))
}

// derivedCode is prefix plus the first 12 hex digits of SHA-1(key).
func derivedCode(prefix, key string) string {
	sum := sha1.Sum([]byte(key))
	return prefix + strings.ToUpper(hex.EncodeToString(sum[:])[:12])
}

func (r *Resolver) resolve(kind procurement.Kind, key, code string) procurement.MasterRef {
	r.mu.Lock()
	defer r.mu.Unlock()

	ck := cacheKey{kind: kind, key: key}
	if ref, ok := r.cache[ck]; ok {
		return ref
	}
	ref := procurement.MasterRef{Kind: kind, ID: r.newID(), Code: code}
	r.cache[ck] = ref
	return ref
}

func (r *Resolver) resolveDerived(kind procurement.Kind, prefix string, parts ...string) procurement.MasterRef {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = normalizeKey(p)
	}
	key := strings.Join(normalized, "|")
	return r.resolve(kind, key, derivedCode(prefix, key))
}

// ResolveSupplier keys a supplier by GSTIN, or by name when no GSTIN was
// captured.
func (r *Resolver) ResolveSupplier(name, gstin string) procurement.MasterRef {
	if g := normalizeKey(gstin); g != "" {
		return r.resolveDerived(procurement.KindSupplier, PrefixSupplier, "GSTIN", g)
	}
	return r.resolveDerived(procurement.KindSupplier, PrefixSupplier, "NAME", name)
}

// ResolveSupplierSite keys a supplier site by its supplier, address and GSTIN.
func (r *Resolver) ResolveSupplierSite(supplierCode, address, gstin string) procurement.MasterRef {
	return r.resolveDerived(procurement.KindSupplierSite, PrefixSupplierSite, supplierCode, address, gstin)
}

// ResolveLegalEntity keys the buying entity by GSTIN, falling back to name.
func (r *Resolver) ResolveLegalEntity(gstin, name string) procurement.MasterRef {
	if g := normalizeKey(gstin); g != "" {
		return r.resolveDerived(procurement.KindLegalEntity, PrefixLegalEntity, "GSTIN", g)
	}
	return r.resolveDerived(procurement.KindLegalEntity, PrefixLegalEntity, "NAME", name)
}

// ResolveLegalEntitySite keys a buyer site by its entity, address and GSTIN.
func (r *Resolver) ResolveLegalEntitySite(entityCode, address, gstin string) procurement.MasterRef {
	return r.resolveDerived(procurement.KindLegalEntitySite, PrefixLegalEntitySite, entityCode, address, gstin)
}

// ResolveItem keys an item by description and HSN code.
func (r *Resolver) ResolveItem(description, hsn string) procurement.MasterRef {
	return r.resolveDerived(procurement.KindItem, PrefixItem, description, hsn)
}

func (r *Resolver) resolveCoded(kind procurement.Kind, code string) procurement.MasterRef {
	return r.resolve(kind, code, code)
}

// ResolveCostCenter returns the configured cost centre.
func (r *Resolver) ResolveCostCenter() procurement.MasterRef {
	return r.resolveCoded(procurement.KindCostCenter, r.codes.CostCenter)
}

// ResolveProfitCenter returns the configured profit centre.
func (r *Resolver) ResolveProfitCenter() procurement.MasterRef {
	return r.resolveCoded(procurement.KindProfitCenter, r.codes.ProfitCenter)
}

// ResolveProject returns the configured project.
func (r *Resolver) ResolveProject() procurement.MasterRef {
	return r.resolveCoded(procurement.KindProject, r.codes.Project)
}

// ResolvePlant returns the configured plant.
func (r *Resolver) ResolvePlant() procurement.MasterRef {
	return r.resolveCoded(procurement.KindPlant, r.codes.Plant)
}

// ResolveGLAccount returns the configured goods receipt GL account.
func (r *Resolver) ResolveGLAccount() procurement.MasterRef {
	return r.resolveCoded(procurement.KindGLAccount, r.codes.GLAccount)
}

// ResolveTaxRate keys a tax rate by its composite name, e.g. IGST_18.
func (r *Resolver) ResolveTaxRate(name string) procurement.MasterRef {
	return r.resolveCoded(procurement.KindTaxRate, name)
}

// ResolveCurrency returns the upper-cased currency when supported and
// DefaultCurrency otherwise.
func (r *Resolver) ResolveCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if SupportedCurrencies[c] {
		return c
	}
	return DefaultCurrency
}
