package docid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/shared"
)

var receivedAt = time.Date(2025, time.August, 15, 10, 30, 0, 0, time.UTC)

func TestPOIdentifiers(t *testing.T) {
	t.Run("po id is number plus content hash", func(t *testing.T) {
		assert.Equal(t, "9500877232-843122", POID("9500877232"))
		assert.Equal(t, POID("9500877232"), POID("9500877232"))
		assert.NotEqual(t, POID("9500877232"), POID("9500877233"))
	})

	t.Run("po line id pads to five digits", func(t *testing.T) {
		assert.Equal(t, "9500877232-843122-00010", POLineID("9500877232-843122", 10))
	})

	t.Run("condition id uses type code and rate", func(t *testing.T) {
		poID := POID("9500877232")
		igst18 := POConditionID(poID, "IGST", decimal.NewFromInt(18))
		assert.Regexp(t, `^JIGG[0-9A-F]{4}$`, igst18)
		assert.Equal(t, igst18, POConditionID(poID, "igst", decimal.RequireFromString("18.00")))
		assert.NotEqual(t, igst18, POConditionID(poID, "IGST", decimal.NewFromInt(12)))
		assert.Regexp(t, `^JICG`, POConditionID(poID, "CGST", decimal.NewFromInt(9)))
		assert.Regexp(t, `^JISG`, POConditionID(poID, "SGST", decimal.NewFromInt(9)))
		assert.Regexp(t, `^JIUG`, POConditionID(poID, "UTGST", decimal.NewFromInt(9)))
	})

	t.Run("unknown condition type keeps a prefix", func(t *testing.T) {
		assert.Equal(t, "JCES", ConditionCode("cess"))
	})
}

func TestGRNIdentifiers(t *testing.T) {
	t.Run("grn number is year day and sequence", func(t *testing.T) {
		assert.Equal(t, "2522700042", GRNNumber(receivedAt, 42))
		assert.Equal(t, "2522700001", GRNNumber(receivedAt, 100001))
	})

	t.Run("grn id appends year and digit checksum", func(t *testing.T) {
		assert.Equal(t, "2522700042254", GRNID("2522700042", receivedAt))
	})

	t.Run("grn line id pads to four digits", func(t *testing.T) {
		assert.Equal(t, "2522700042254-0001", GRNLineID("2522700042254", 1))
	})

	t.Run("batch number is julian date based", func(t *testing.T) {
		assert.Equal(t, "B25227633", BatchNumber(receivedAt, "852851", 1))
		assert.Regexp(t, `^B25227\d{3}$`, BatchNumber(receivedAt, "999999", 2))
	})
}

func TestMemorySequence(t *testing.T) {
	ctx := context.Background()

	t.Run("starts at the injected value", func(t *testing.T) {
		seq := NewMemorySequence(7)
		n, err := seq.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
		n, err = seq.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(8), n)
	})

	t.Run("concurrent callers get distinct values", func(t *testing.T) {
		seq := NewMemorySequence(1)
		var mu sync.Mutex
		seen := map[int64]bool{}
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := seq.Next(ctx)
				assert.NoError(t, err)
				mu.Lock()
				seen[n] = true
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Len(t, seen, 50)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewMemorySequence(1).Next(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type failingSequence struct{}

func (failingSequence) Next(context.Context) (int64, error) {
	return 0, errors.New("sequence down")
}

func TestNextGRNNumber(t *testing.T) {
	got, err := NextGRNNumber(context.Background(), NewMemorySequence(42), receivedAt)
	require.NoError(t, err)
	assert.Equal(t, "2522700042", got)

	_, err = NextGRNNumber(context.Background(), failingSequence{}, receivedAt)
	assert.ErrorIs(t, err, shared.ErrSequenceFailure)
	assert.ErrorContains(t, err, "sequence down")
}
