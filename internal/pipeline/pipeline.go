package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aquila-erp/invoice-extractor/constants"
	"github.com/aquila-erp/invoice-extractor/internal/ledger"
	"github.com/aquila-erp/invoice-extractor/internal/llm"
	"github.com/aquila-erp/invoice-extractor/internal/patterns"
	"github.com/aquila-erp/invoice-extractor/internal/resolver"
)

// minUsableText is the floor below which extracted text is considered
// unreadable and the run fails terminally.
const minUsableText = 50

// TextReader is the OCR collaborator. ReadText never fails: "" signals a
// soft failure. PDFText is the native-text-with-OCR-fallback secondary path.
type TextReader interface {
	ReadText(ctx context.Context, path string) string
	PDFText(ctx context.Context, path string) string
}

// LedgerStore is the narrow contract the pipeline needs from the ledger.
type LedgerStore interface {
	PrefixForTaxID(ctx context.Context, taxID string) (string, error)
	PODetail(ctx context.Context, poNumber string) (*ledger.Table, *ledger.Table, error)
}

// LedgerData carries the enrichment tables attached to a result.
type LedgerData struct {
	Vendor *ledger.Table `json:"vendor,omitempty"`
	PO     *ledger.Table `json:"po,omitempty"`
}

// Result is the terminal output of one pipeline run.
type Result struct {
	Success        bool               `json:"success"`
	Fields         *llm.InvoiceFields `json:"data,omitempty"`
	Error          string             `json:"error,omitempty"`
	Method         llm.Method         `json:"method,omitempty"`
	Model          string             `json:"model,omitempty"`
	ProcessingTime time.Duration      `json:"processing_time_ms"`
	PONumber       string             `json:"po_number"`
	TaxIDs         []string           `json:"tax_ids,omitempty"`
	HasLedgerData  bool               `json:"has_ledger_data"`
	Ledger         *LedgerData        `json:"ledger,omitempty"`
}

// Pipeline orchestrates one extraction: AI and OCR fan-out, fallback chain,
// PO resolution, tax-ID discovery, ledger enrichment.
type Pipeline struct {
	extractor llm.FieldExtractor
	workflow  llm.WorkflowExtractor
	reader    TextReader
	resolver  *resolver.Resolver
	taxIDs    *patterns.TaxIDMatcher
	store     LedgerStore // nil when ledger is not configured
	model     string
	logger    *slog.Logger
}

func New(
	extractor llm.FieldExtractor,
	workflow llm.WorkflowExtractor,
	reader TextReader,
	res *resolver.Resolver,
	taxIDs *patterns.TaxIDMatcher,
	store LedgerStore,
	model string,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		workflow:  workflow,
		reader:    reader,
		resolver:  res,
		taxIDs:    taxIDs,
		store:     store,
		model:     model,
		logger:    logger,
	}
}

// Process runs the full extraction state machine for one invoice document.
// It never panics past this entry point; every failure becomes a Result with
// Success=false and a reason.
func (p *Pipeline) Process(ctx context.Context, path string) Result {
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return Result{
			Success:        false,
			Error:          "no invoice document found",
			ProcessingTime: time.Since(start),
		}
	}
	p.logger.Info("pipeline.start", "path", path, "format", string(constants.FormatOf(path)))

	// AI extraction and OCR reading run concurrently; the join waits for
	// both. One side failing never discards the other's output.
	var (
		wg       sync.WaitGroup
		aiResult *llm.Outcome
		ocrText  string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer p.recoverTask("ai")
		aiResult = p.runAI(ctx, path)
	}()
	go func() {
		defer wg.Done()
		defer p.recoverTask("ocr")
		ocrText = p.reader.ReadText(ctx, path)
	}()
	wg.Wait()

	// Fallback: text-mode extraction over the OCR text already computed.
	if aiResult == nil {
		text := ocrText
		if len(strings.TrimSpace(text)) < minUsableText && constants.FormatOf(path) == constants.PDF {
			p.logger.Warn("pipeline.ocr_text_sparse", "chars", len(text))
			text = p.reader.PDFText(ctx, path)
		}
		if len(strings.TrimSpace(text)) < minUsableText {
			p.logger.Error("pipeline.no_readable_content", "path", path)
			return Result{
				Success:        false,
				Error:          "failed to extract text from document (scanned or empty content)",
				ProcessingTime: time.Since(start),
			}
		}
		out := p.extractor.ExtractText(ctx, text)
		aiResult = &out
	}

	if !aiResult.Success {
		return Result{
			Success:        false,
			Error:          nonEmpty(aiResult.Error, "extraction failed"),
			Method:         aiResult.Method,
			Model:          nonEmpty(aiResult.Model, p.model),
			ProcessingTime: time.Since(start),
		}
	}

	fields := aiResult.Fields
	if fields == nil {
		fields = &llm.InvoiceFields{}
	}

	// PO resolution happens exactly once; the field overwrite is final.
	poNumber := p.resolver.Resolve(ctx, fields, ocrText, p.prefixLookup())
	if poNumber != "" {
		fields.PONumber = poNumber
		p.logger.Info("pipeline.po_resolved", "po_number", poNumber)
	}

	taxIDs := p.taxIDs.Extract(llm.SerializeFields(fields))
	if len(taxIDs) > 0 {
		p.logger.Info("pipeline.tax_ids", "count", len(taxIDs), "ids", taxIDs)
	}

	var ledgerData *LedgerData
	if poNumber != "" && p.store != nil {
		ledgerData = p.enrich(ctx, poNumber, fields)
	}

	return Result{
		Success:        true,
		Fields:         fields,
		Method:         aiResult.Method,
		Model:          nonEmpty(aiResult.Model, p.model),
		ProcessingTime: time.Since(start),
		PONumber:       poNumber,
		TaxIDs:         taxIDs,
		HasLedgerData:  ledgerData != nil,
		Ledger:         ledgerData,
	}
}

// runAI tries the high-priority extraction variants: workflow when
// configured, then vision for images on a vision-capable model. nil signals
// the orchestrator to fall back to text mode.
func (p *Pipeline) runAI(ctx context.Context, path string) *llm.Outcome {
	if p.workflow != nil {
		p.logger.Info("pipeline.ai.workflow")
		out := p.workflow.ExtractFile(ctx, path)
		if out.Success {
			return &out
		}
		p.logger.Warn("pipeline.ai.workflow_failed", "error", out.Error)
	}

	if constants.FormatOf(path) == constants.IMAGE && constants.IsVisionModel(p.model) {
		p.logger.Info("pipeline.ai.vision", "model", p.model)
		out := p.extractor.ExtractVision(ctx, path)
		if out.Success {
			return &out
		}
		p.logger.Warn("pipeline.ai.vision_failed", "error", out.Error)
	}

	return nil
}

// prefixLookup adapts the ledger store to the resolver's lookup contract.
// Query failures degrade to "no prefix".
func (p *Pipeline) prefixLookup() resolver.PrefixLookupFn {
	if p.store == nil {
		return nil
	}
	return func(ctx context.Context, taxID string) string {
		prefix, err := p.store.PrefixForTaxID(ctx, taxID)
		if err != nil {
			p.logger.Warn("pipeline.ledger.prefix_failed", "tax_id", taxID, "error", err)
			return ""
		}
		return prefix
	}
}

// enrich attaches vendor/PO detail and overwrites the name fields with the
// ledger's authoritative values. Any failure leaves the field map untouched.
func (p *Pipeline) enrich(ctx context.Context, poNumber string, fields *llm.InvoiceFields) *LedgerData {
	vendor, po, err := p.store.PODetail(ctx, poNumber)
	if err != nil {
		p.logger.Warn("pipeline.ledger.detail_failed", "po_number", poNumber, "error", err)
		return nil
	}
	if vendor.Empty() && po.Empty() {
		return nil
	}

	if name := vendor.Cell(0, "vendorname"); name != "" {
		fields.VendorName = name
		p.logger.Info("pipeline.ledger.vendor_name", "name", name)
	}
	if branch := vendor.Cell(0, "branchname"); branch != "" {
		fields.CustomerName = branch
		p.logger.Info("pipeline.ledger.customer_name", "name", branch)
	}

	data := &LedgerData{}
	if !vendor.Empty() {
		data.Vendor = vendor
	}
	if !po.Empty() {
		data.PO = po
	}
	return data
}

func (p *Pipeline) recoverTask(name string) {
	if r := recover(); r != nil {
		p.logger.Error("pipeline.task_panic", "task", name, "panic", fmt.Sprint(r))
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
