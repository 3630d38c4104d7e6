package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/procurement"
	"github.com/easyml-code/ocr-data-insertion/tests/testutil"
)

func newSQLiteDocumentStore(t *testing.T) (*DocumentStore, *gorm.DB) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	store := NewDocumentStore(NewGormExecutor(db), DocumentStoreConfig{
		CreatedBy: "OCR_AUTOMATION",
		Clock:     testutil.FixedClock(fixedNow),
	}, zaptest.NewLogger(t))
	return store, db
}

func samplePO(poNumber string) (procurement.POHeader, []procurement.POLine, []procurement.POCondition) {
	id := testutil.NewTestUUID("po-" + poNumber)
	header := procurement.POHeader{
		ID:            id,
		PONumber:      poNumber,
		POID:          poNumber + "-A1B2C3",
		PODate:        fixedNow,
		Status:        procurement.POStatusApproved,
		Type:          procurement.POTypeMaterial,
		Currency:      "INR",
		TotalValue:    decimal.RequireFromString("21238.82"),
		PaymentTerms:  "NET30",
		MatchingType:  "THREE_WAY",
		Incoterms:     "DDP",
		ValidFrom:     fixedNow,
		EffectiveFrom: fixedNow,
		CreatedBy:     "OCR_AUTOMATION",
	}
	// Line 20 is inserted first so FirstPOLine has to sort.
	lines := []procurement.POLine{
		{ID: testutil.NewTestUUID(poNumber + "-20"), POHeaderRef: id, LineNumber: 20, Status: procurement.POLineStatusOpen,
			HSN: "852851", OrderedQuantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(10), UOM: "EA", EffectiveFrom: fixedNow},
		{ID: testutil.NewTestUUID(poNumber + "-10"), POHeaderRef: id, LineNumber: 10, Status: procurement.POLineStatusOpen,
			HSN: "852851", OrderedQuantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(17999), UOM: "EA", EffectiveFrom: fixedNow},
	}
	conds := []procurement.POCondition{
		{ID: uuid.New(), POHeaderRef: id, ConditionID: "JIGG1A2B", ConditionType: "IGST",
			CalculationBasis: procurement.CalculationPercent, Rate: decimal.NewFromInt(18), UOM: procurement.UOMPercent, EffectiveFrom: fixedNow},
	}
	return header, lines, conds
}

func TestDocumentStore_PO(t *testing.T) {
	ctx := context.Background()

	t.Run("insert then find by number", func(t *testing.T) {
		store, db := newSQLiteDocumentStore(t)
		header, lines, conds := samplePO("9500877232")

		require.NoError(t, store.InsertPO(ctx, header, lines, conds))

		id, found, err := store.FindPOByNumber(ctx, "9500877232")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, header.ID, id)

		first, found, err := store.FirstPOLine(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, testutil.NewTestUUID("9500877232-10"), first)

		assert.Equal(t, int64(2), testutil.CountRows(t, db, "s_po_line"))
		assert.Equal(t, int64(1), testutil.CountRows(t, db, "s_po_condition"))
		assert.Equal(t, "OCR_AUTOMATION", scalar[string](t, db, "SELECT s_created_by FROM s_po_header"))
	})

	t.Run("unknown po number is not found", func(t *testing.T) {
		store, _ := newSQLiteDocumentStore(t)

		_, found, err := store.FindPOByNumber(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)

		_, found, err = store.FirstPOLine(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("duplicate po number rolls back and reports unique violation", func(t *testing.T) {
		store, db := newSQLiteDocumentStore(t)
		header, lines, conds := samplePO("PO-DUP")
		require.NoError(t, store.InsertPO(ctx, header, lines, conds))

		again, againLines, againConds := samplePO("PO-DUP")
		again.ID = uuid.New()
		for i := range againLines {
			againLines[i].ID = uuid.New()
			againLines[i].POHeaderRef = again.ID
		}
		againConds[0].POHeaderRef = again.ID

		err := store.InsertPO(ctx, again, againLines, againConds)
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
		assert.Equal(t, int64(1), testutil.CountRows(t, db, "s_po_header"))
		assert.Equal(t, int64(2), testutil.CountRows(t, db, "s_po_line"))
	})
}

func TestDocumentStore_GRN(t *testing.T) {
	ctx := context.Background()

	t.Run("writes header and lines", func(t *testing.T) {
		store, db := newSQLiteDocumentStore(t)
		grnID := uuid.New()
		header := procurement.GRNHeader{
			ID: grnID, GRNNumber: "2522700001", GRNID: "2522700001259", GRNDate: fixedNow,
			Status: procurement.GRNStatusReceived, QCStatus: procurement.QCStatusPending,
			POLineRef: uuid.New(), TotalReceivedQty: decimal.NewFromInt(1),
			TotalReceivedAmount: decimal.RequireFromString("17999.00"), WeightUOM: procurement.WeightUOMKilogram,
			EffectiveFrom: fixedNow,
		}
		lines := []procurement.GRNLine{{
			ID: uuid.New(), GRNRef: grnID, GRNLineID: "2522700001259-0001", LineNumber: 1,
			ItemDescription: "Dell UltraSharp", ReceivedQty: decimal.NewFromInt(1), AcceptedQty: decimal.NewFromInt(1),
			RejectedQty: decimal.Zero, UOM: "EA", WeightUOM: procurement.WeightUOMKilogram,
			QCResult: procurement.QCStatusPending, Status: procurement.GRNStatusReceived, BatchNumber: "B25227417",
			EffectiveFrom: fixedNow,
		}}

		require.NoError(t, store.InsertGRN(ctx, header, lines))
		assert.Equal(t, int64(1), testutil.CountRows(t, db, "s_grn_header"))
		assert.Equal(t, "B25227417", scalar[string](t, db, "SELECT s_batch_number FROM s_grn_line"))
		assert.Equal(t, grnID.String(), scalar[string](t, db, "SELECT s_grn_ref FROM s_grn_line"))
	})

	t.Run("line failure rolls back the header", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()
		store := NewDocumentStore(NewGormExecutor(mockDB.DB), DocumentStoreConfig{Schema: "tenant_data"}, nil)

		mockDB.Mock.ExpectBegin()
		mockDB.Mock.ExpectExec(`INSERT INTO tenant_data\.s_grn_header`).WillReturnResult(sqlmock.NewResult(0, 1))
		mockDB.Mock.ExpectExec(`INSERT INTO tenant_data\.s_grn_line`).WillReturnError(assert.AnError)
		mockDB.Mock.ExpectRollback()

		err := store.InsertGRN(ctx, procurement.GRNHeader{ID: uuid.New()}, []procurement.GRNLine{{ID: uuid.New()}})
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "insert s_grn_line")
		mockDB.ExpectationsWereMet(t)
	})
}
