package docid

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/easyml-code/ocr-data-insertion/internal/domain/shared"
)

// SequenceSource hands out monotonically increasing GRN sequence values.
// Implementations must be safe for concurrent use.
type SequenceSource interface {
	Next(ctx context.Context) (int64, error)
}

// MemorySequence is a process-local SequenceSource.
type MemorySequence struct {
	next atomic.Int64
}

// NewMemorySequence returns a sequence whose first value is start.
func NewMemorySequence(start int64) *MemorySequence {
	s := &MemorySequence{}
	s.next.Store(start)
	return s
}

// Next implements SequenceSource.
func (s *MemorySequence) Next(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.next.Add(1) - 1, nil
}

// NextGRNNumber draws one value from seq and formats it as a GRN number.
// Failures wrap shared.ErrSequenceFailure.
func NextGRNNumber(ctx context.Context, seq SequenceSource, at time.Time) (string, error) {
	n, err := seq.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrSequenceFailure, err)
	}
	return GRNNumber(at, n), nil
}
