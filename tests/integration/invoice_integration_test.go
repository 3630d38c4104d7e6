//go:build integration

package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/easyml-code/ocr-data-insertion/internal/application/invoice"
	"github.com/easyml-code/ocr-data-insertion/internal/application/mapping"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/config"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/persistence"
	"github.com/easyml-code/ocr-data-insertion/tests/testutil"
)

// newProcessor wires a processor the way invoicectl does, with the GRN
// sequence chosen by the default configuration.
func newProcessor(t *testing.T, tdb *TestDB) *invoice.Processor {
	t.Helper()
	log := zaptest.NewLogger(t)
	exec := tdb.DB.Executor()

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, config.SequencePostgres, cfg.Ingest.SequenceBackend)

	master := persistence.NewMasterDataRepository(exec, persistence.MasterDataConfig{
		Schema:             Schema,
		CreatedBy:          "OCR_AUTOMATION",
		DefaultCountryCode: "IN",
		DefaultStateCode:   "29",
	}, log)
	docs := persistence.NewDocumentStore(exec, persistence.DocumentStoreConfig{
		Schema:    Schema,
		CreatedBy: "OCR_AUTOMATION",
	}, log)
	mapper := mapping.NewMapper(mapping.NewResolver(mapping.DefaultMasterCodes()), mapping.DefaultConfig(),
		mapping.WithLogger(log))

	return invoice.NewProcessor(mapper, invoice.NewOrchestrator(master, docs, log),
		persistence.NewPostgresSequence(exec, Schema, cfg.Ingest.SequenceName), log)
}

func TestInvoiceIngestion_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	ctx := context.Background()
	p := newProcessor(t, tdb)
	dell := testutil.InvoiceFixture(t, "dell_monitor")

	t.Run("new PO and GRN", func(t *testing.T) {
		result := p.ProcessInvoice(ctx, dell)
		require.True(t, result.Succeeded(), "errors: %v", result.Errors)
		assert.False(t, result.Details.POExists)
		assert.Equal(t, 1, result.Details.POLinesInserted)
		assert.Equal(t, 1, result.Details.POConditionsInserted)
		assert.Equal(t, 1, result.Details.GRNLinesInserted)
		assert.Len(t, result.GRNNumber, 10)

		assert.Equal(t, int64(1), tdb.Count("s_po_header"))
		assert.Equal(t, int64(1), tdb.Count("s_grn_header"))
		assert.Equal(t, int64(1), tdb.Count("s_supplier"))
	})

	t.Run("repeat invoice reuses the PO", func(t *testing.T) {
		result := p.ProcessInvoice(ctx, dell)
		require.True(t, result.Succeeded(), "errors: %v", result.Errors)
		assert.True(t, result.Details.POExists)
		assert.Empty(t, result.Details.MasterCreated)

		assert.Equal(t, int64(1), tdb.Count("s_po_header"))
		assert.Equal(t, int64(2), tdb.Count("s_grn_header"))
	})

	t.Run("invoice without PO", func(t *testing.T) {
		result := p.ProcessInvoice(ctx, testutil.InvoiceFixture(t, "service_no_po"))
		require.True(t, result.Succeeded(), "errors: %v", result.Errors)
		assert.Empty(t, result.Details.POHeaderID)
		assert.Equal(t, 2, result.Details.GRNLinesInserted)
		assert.Equal(t, int64(1), tdb.Count("s_po_header"))
	})
}

func TestRepeatedRuns_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	ctx := context.Background()
	dell := testutil.InvoiceFixture(t, "dell_monitor")

	// Each processor stands for a separate invoicectl run on the same day.
	first := newProcessor(t, tdb).ProcessInvoice(ctx, dell)
	require.True(t, first.Succeeded(), "errors: %v", first.Errors)

	second := newProcessor(t, tdb).ProcessInvoice(ctx, dell)
	require.True(t, second.Succeeded(), "errors: %v", second.Errors)

	assert.NotEqual(t, first.GRNNumber, second.GRNNumber)
	assert.True(t, second.Details.POExists)
	assert.Equal(t, int64(2), tdb.Count("s_grn_header"))
}

func TestConcurrentIngestion_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	ctx := context.Background()
	dell := testutil.InvoiceFixture(t, "dell_monitor")

	const workers = 4
	results := make([]*invoice.ProcessingResult, workers)
	var wg sync.WaitGroup
	for i := range workers {
		// Each worker has its own resolver, as separate processes would.
		p := newProcessor(t, tdb)
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.ProcessInvoice(ctx, dell)
		}()
	}
	wg.Wait()

	grnNumbers := map[string]bool{}
	for i, r := range results {
		require.True(t, r.Succeeded(), "worker %d errors: %v", i, r.Errors)
		grnNumbers[r.GRNNumber] = true
	}
	assert.Len(t, grnNumbers, workers, "every worker draws its own GRN number")

	assert.Equal(t, int64(1), tdb.Count("s_po_header"))
	assert.Equal(t, int64(1), tdb.Count("s_po_line"))
	assert.Equal(t, int64(1), tdb.Count("s_supplier"))
	assert.Equal(t, int64(1), tdb.Count("s_item"))
	assert.Equal(t, int64(workers), tdb.Count("s_grn_header"))

	var orphans int64
	require.NoError(t, tdb.Gorm().Raw(fmt.Sprintf(
		`SELECT COUNT(*) FROM %[1]s.s_grn_header g
		 WHERE NOT EXISTS (SELECT 1 FROM %[1]s.s_po_line l WHERE l.id::text = g.s_po_line_ref::text)`, Schema)).
		Scan(&orphans).Error)
	assert.Zero(t, orphans, "every GRN references the stored PO line")
}
