package procurement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyPOType(t *testing.T) {
	t.Run("defaults to material", func(t *testing.T) {
		assert.Equal(t, POTypeMaterial, ClassifyPOType([]string{"Dell UltraSharp 27-inch QHD IPS Monitor"}))
		assert.Equal(t, POTypeMaterial, ClassifyPOType(nil))
	})

	t.Run("service keyword", func(t *testing.T) {
		assert.Equal(t, POTypeService, ClassifyPOType([]string{"Monitor", "Annual MAINTENANCE contract"}))
	})

	t.Run("capex keyword", func(t *testing.T) {
		assert.Equal(t, POTypeCapex, ClassifyPOType([]string{"CNC machinery"}))
	})

	t.Run("service group wins over capex", func(t *testing.T) {
		assert.Equal(t, POTypeService, ClassifyPOType([]string{"Equipment installation", "Software license"}))
	})
}

func TestTermsFor(t *testing.T) {
	assert.Equal(t, Terms{"NET30", "THREE_WAY", "DDP"}, TermsFor(POTypeMaterial))
	assert.Equal(t, Terms{"NET15", "TWO_WAY", "DDP"}, TermsFor(POTypeService))
	assert.Equal(t, Terms{"NET60", "THREE_WAY", "EXW"}, TermsFor(POTypeCapex))
}

func TestTaxRateName(t *testing.T) {
	d := decimal.RequireFromString

	name, taxType, rate := TaxRateName(TaxRates{IGST: d("18.00")})
	assert.Equal(t, "IGST_18", name)
	assert.Equal(t, TaxIGST, taxType)
	assert.True(t, rate.Equal(d("18")))

	name, _, rate = TaxRateName(TaxRates{CGST: d("9"), SGST: d("9")})
	assert.Equal(t, "CGST_SGST_18", name)
	assert.True(t, rate.Equal(d("18")))

	name, _, _ = TaxRateName(TaxRates{CGST: d("2.5"), UTGST: d("2.5")})
	assert.Equal(t, "CGST_UTGST_5", name)

	name, _, _ = TaxRateName(TaxRates{CGST: d("1.25"), SGST: d("1.25")})
	assert.Equal(t, "CGST_SGST_2.5", name)

	name, taxType, rate = TaxRateName(TaxRates{})
	assert.Equal(t, "EXEMPT_0", name)
	assert.Equal(t, "EXEMPT", taxType)
	assert.True(t, rate.IsZero())
}

func TestGraphReplaceRef(t *testing.T) {
	item := uuid.New()
	site := uuid.New()
	poID := uuid.New()
	g := &Graph{
		PO:       &POHeader{ID: poID, SupplierSiteRef: site},
		POLines:  []POLine{{ID: uuid.New(), POHeaderRef: poID, ItemRef: item}, {ID: uuid.New(), POHeaderRef: poID, ItemRef: item}},
		GRN:      GRNHeader{SupplierSiteRef: site},
		GRNLines: []GRNLine{{ItemRef: item}, {ItemRef: item}},
		Supplier: SupplierInfo{Site: MasterRef{Kind: KindSupplierSite, ID: site}},
		Items:    []ItemInfo{{Ref: MasterRef{Kind: KindItem, ID: item}}, {Ref: MasterRef{Kind: KindItem, ID: item}}},
	}

	t.Run("rewrites every occurrence", func(t *testing.T) {
		stored := uuid.New()
		n := g.ReplaceRef(item, stored)
		assert.Equal(t, 6, n)
		for _, l := range g.POLines {
			assert.Equal(t, stored, l.ItemRef)
		}
		for _, l := range g.GRNLines {
			assert.Equal(t, stored, l.ItemRef)
		}
		assert.Equal(t, stored, g.Items[1].Ref.ID)
	})

	t.Run("rewrites header links", func(t *testing.T) {
		existing := uuid.New()
		n := g.ReplaceRef(poID, existing)
		assert.Equal(t, 3, n)
		assert.Equal(t, existing, g.PO.ID)
		assert.Equal(t, existing, g.POLines[0].POHeaderRef)
	})

	t.Run("noop for identical or nil ids", func(t *testing.T) {
		assert.Zero(t, g.ReplaceRef(site, site))
		assert.Zero(t, g.ReplaceRef(uuid.Nil, uuid.New()))
	})
}

func TestGraphFirstPOLine(t *testing.T) {
	g := &Graph{}
	_, ok := g.FirstPOLine()
	assert.False(t, ok)

	a, b := uuid.New(), uuid.New()
	g.POLines = []POLine{{ID: a, LineNumber: 20}, {ID: b, LineNumber: 10}}
	first, ok := g.FirstPOLine()
	require.True(t, ok)
	assert.Equal(t, b, first.ID)
	assert.Equal(t, Counts{POLines: 2}, g.Counts())
}
