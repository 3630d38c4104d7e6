package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/easyml-code/ocr-data-insertion/internal/application/mapping"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/docid"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/ocr"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/procurement"
	"github.com/easyml-code/ocr-data-insertion/internal/domain/shared"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/logger"
	"github.com/easyml-code/ocr-data-insertion/internal/infrastructure/telemetry"
)

// Result statuses
const (
	StatusSuccess = telemetry.StatusSuccess
	StatusFailed  = telemetry.StatusFailed
)

// ResultDetails are the row counts and ids of a processed invoice.
type ResultDetails struct {
	GRNHeaderID          string         `json:"grn_header_id,omitempty"`
	GRNLinesInserted     int            `json:"grn_lines_inserted"`
	POHeaderID           string         `json:"po_header_id,omitempty"`
	POLinesInserted      int            `json:"po_lines_inserted"`
	POConditionsInserted int            `json:"po_conditions_inserted"`
	POExists             bool           `json:"po_exists"`
	MasterCreated        map[string]int `json:"master_created,omitempty"`
}

// ProcessingResult is the outcome of one invoice. Processing never returns
// an error past this boundary; failures are reported here.
type ProcessingResult struct {
	Status    string        `json:"status"`
	Message   string        `json:"message"`
	InvoiceNo string        `json:"invoice_no,omitempty"`
	GRNNumber string        `json:"grn_number,omitempty"`
	GRNID     string        `json:"grn_id,omitempty"`
	PONumber  string        `json:"po_number,omitempty"`
	Details   ResultDetails `json:"details"`
	Errors    []string      `json:"errors"`
}

// Succeeded reports whether the invoice was stored.
func (r *ProcessingResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// BatchItem is the per-invoice entry of a BatchResult.
type BatchItem struct {
	Index     int      `json:"index"`
	Source    string   `json:"source,omitempty"`
	GRNNumber string   `json:"grn_number,omitempty"`
	Status    string   `json:"status"`
	Errors    []string `json:"errors"`
}

// BatchResult summarises a batch run.
type BatchResult struct {
	RunID      string      `json:"run_id,omitempty"`
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Invoices   []BatchItem `json:"invoices"`
}

// Payload is one batch entry: the raw OCR JSON and where it came from.
type Payload struct {
	Source string
	Data   []byte
}

// Processor turns OCR payloads into stored POs and GRNs.
type Processor struct {
	mapper       *mapping.Mapper
	orchestrator *Orchestrator
	sequence     docid.SequenceSource
	metrics      *telemetry.InvoiceMetrics
	clock        func() time.Time
	log          *zap.Logger
}

// NewProcessor creates a new Processor. The orchestrator is bound to the
// mapper's resolver so stored ids are reused by later invoices.
func NewProcessor(mapper *mapping.Mapper, orchestrator *Orchestrator, sequence docid.SequenceSource, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	orchestrator.SetBinder(mapper.Resolver())
	return &Processor{
		mapper:       mapper,
		orchestrator: orchestrator,
		sequence:     sequence,
		clock:        time.Now,
		log:          log.Named("processor"),
	}
}

// SetMetrics sets the invoice metrics recorder
func (p *Processor) SetMetrics(m *telemetry.InvoiceMetrics) {
	p.metrics = m
}

// SetClock sets the clock used for GRN numbering
func (p *Processor) SetClock(clock func() time.Time) {
	if clock != nil {
		p.clock = clock
	}
}

// ProcessInvoice validates a raw OCR payload and processes it.
func (p *Processor) ProcessInvoice(ctx context.Context, payload []byte) *ProcessingResult {
	doc, err := ocr.Parse(payload)
	if err != nil {
		return p.rejected(ctx, err)
	}
	return p.ProcessDocument(ctx, doc)
}

// ProcessMap validates an already decoded OCR payload and processes it.
func (p *Processor) ProcessMap(ctx context.Context, payload map[string]any) *ProcessingResult {
	doc, err := ocr.FromMap(payload)
	if err != nil {
		return p.rejected(ctx, err)
	}
	return p.ProcessDocument(ctx, doc)
}

func (p *Processor) rejected(ctx context.Context, err error) *ProcessingResult {
	result := &ProcessingResult{Status: StatusFailed, Message: "Invoice validation failed", Errors: []string{}}
	var verr *ocr.ValidationError
	if errors.As(err, &verr) {
		result.Errors = verr.Messages()
	} else {
		result.Errors = []string{err.Error()}
	}
	logger.WithTrace(ctx, p.baseLogger(ctx)).Warn("Rejected OCR payload", zap.Strings("violations", result.Errors))
	p.metrics.RecordProcessed(ctx, StatusFailed, 0)
	return result
}

// ProcessDocument maps and persists one validated document. Panics are
// recovered into a failed result.
func (p *Processor) ProcessDocument(ctx context.Context, doc *ocr.Document) (result *ProcessingResult) {
	if doc == nil {
		return p.rejected(ctx, fmt.Errorf("%w: no document", shared.ErrInvalidInput))
	}
	start := p.clock()
	ctx, span := telemetry.StartSpan(ctx, "invoice.process",
		telemetry.WithAttribute(telemetry.SpanAttrLineCount, len(doc.Lines)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", shared.ErrUnexpected, r)
			logger.WithTrace(ctx, p.baseLogger(ctx)).Error("Unexpected failure while processing invoice", zap.Any("panic", r), zap.Stack("stack"))
			telemetry.RecordError(span, err)
			if result == nil {
				result = &ProcessingResult{}
			}
			result.Status = StatusFailed
			result.Message = "Invoice processing failed unexpectedly"
			result.Errors = append(result.Errors, err.Error())
		}
		p.metrics.RecordProcessed(ctx, result.Status, p.clock().Sub(start))
	}()

	result = &ProcessingResult{Status: StatusFailed, Errors: []string{}}

	receivedAt := start.UTC()
	grnNumber, err := docid.NextGRNNumber(ctx, p.sequence, receivedAt)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithTrace(ctx, p.baseLogger(ctx)).Error("Failed to allocate GRN number", zap.Error(err))
		result.Message = "Invoice processing failed"
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	g := p.mapDocument(ctx, doc, grnNumber, receivedAt)
	ctx, log := logger.WithInvoice(ctx, p.baseLogger(ctx), g.InvoiceNo)
	log = logger.WithTrace(ctx, log).With(zap.String("grn_number", grnNumber))
	result.InvoiceNo = g.InvoiceNo
	result.GRNNumber = grnNumber
	result.GRNID = g.GRN.GRNID
	if g.HasPO() {
		result.PONumber = g.PO.PONumber
		log = log.With(zap.String("po_number", g.PO.PONumber))
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNo, g.InvoiceNo,
		telemetry.SpanAttrGRNNumber, grnNumber,
		telemetry.SpanAttrPONumber, result.PONumber,
	)

	summary, err := p.orchestrator.Persist(ctx, g)
	result.Details = detailsOf(summary)
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to persist invoice", zap.Error(err))
		result.Message = "Invoice processing failed"
		result.Errors = append(result.Errors, summary.Errors...)
		p.metrics.RecordMasterCreated(ctx, summary.MasterCreated)
		return result
	}

	if summary.POExists {
		p.metrics.RecordPOReused(ctx)
	}
	p.metrics.RecordMasterCreated(ctx, summary.MasterCreated)
	telemetry.SetAttributes(span, telemetry.SpanAttrPOExists, summary.POExists)
	telemetry.SetOK(span)

	result.Status = StatusSuccess
	result.Message = "Invoice processed successfully"
	log.Info("Invoice processed",
		zap.Bool("po_exists", summary.POExists),
		zap.Int("po_lines", summary.POLines),
		zap.Int("po_conditions", summary.POConditions),
		zap.Int("grn_lines", summary.GRNLines),
		zap.Duration("elapsed", p.clock().Sub(start)),
	)
	return result
}

// baseLogger prefers a logger carried by ctx, e.g. one tagged with the
// batch position.
func (p *Processor) baseLogger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(logger.LoggerKey).(*zap.Logger); ok {
		return l
	}
	return p.log
}

func (p *Processor) mapDocument(ctx context.Context, doc *ocr.Document, grnNumber string, receivedAt time.Time) *procurement.Graph {
	_, span := telemetry.StartSpan(ctx, "invoice.map")
	defer span.End()
	g := p.mapper.MapAt(doc, grnNumber, receivedAt)
	telemetry.SetAttributes(span, telemetry.SpanAttrLineCount, len(g.GRNLines))
	return g
}

func detailsOf(s *InsertSummary) ResultDetails {
	d := ResultDetails{
		GRNLinesInserted:     s.GRNLines,
		POLinesInserted:      s.POLines,
		POConditionsInserted: s.POConditions,
		POExists:             s.POExists,
	}
	if len(s.MasterCreated) > 0 {
		d.MasterCreated = s.MasterCreated
	}
	if s.GRNHeaderID != uuid.Nil {
		d.GRNHeaderID = s.GRNHeaderID.String()
	}
	if s.POHeaderID != uuid.Nil {
		d.POHeaderID = s.POHeaderID.String()
	}
	return d
}

// ProcessBatch processes payloads one at a time in order. A failing invoice
// is recorded and the batch continues. The resolver cache is cleared first
// so batches never share placeholder references.
func (p *Processor) ProcessBatch(ctx context.Context, payloads []Payload) *BatchResult {
	ctx, span := telemetry.StartSpan(ctx, "invoice.batch",
		telemetry.WithAttribute(telemetry.SpanAttrBatchSize, len(payloads)))
	defer span.End()

	p.mapper.Resolver().Reset()
	batch := &BatchResult{RunID: logger.GetRunID(ctx), Total: len(payloads), Invoices: make([]BatchItem, 0, len(payloads))}

	for i, payload := range payloads {
		itemCtx := logger.WithContext(ctx, p.baseLogger(ctx).With(
			zap.Int("batch_index", i), zap.String("source", payload.Source)))
		result := p.ProcessInvoice(itemCtx, payload.Data)

		telemetry.AddEvent(span, "invoice.processed",
			telemetry.SpanAttrBatchIndex, i,
			telemetry.SpanAttrSourceURI, payload.Source,
			telemetry.SpanAttrGRNNumber, result.GRNNumber,
			"status", result.Status,
		)
		item := BatchItem{
			Index:     i,
			Source:    payload.Source,
			GRNNumber: result.GRNNumber,
			Status:    result.Status,
			Errors:    result.Errors,
		}
		if result.Succeeded() {
			batch.Successful++
		} else {
			batch.Failed++
		}
		batch.Invoices = append(batch.Invoices, item)
	}

	telemetry.SetAttributes(span, "batch.successful", batch.Successful, "batch.failed", batch.Failed)
	p.log.Info("Batch processed",
		zap.Int("total", batch.Total),
		zap.Int("successful", batch.Successful),
		zap.Int("failed", batch.Failed),
	)
	return batch
}
