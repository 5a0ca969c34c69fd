package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aquila-erp/invoice-extractor/constants"
	"github.com/aquila-erp/invoice-extractor/internal/common"
)

// Config for the text reader.
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
}

// Result is one text extraction.
type Result struct {
	Text     string
	Pages    int
	Format   constants.Format
	Method   string // "pdf-ocr" | "pdf-text" | "image-ocr"
	Language string
	Duration time.Duration
	Warnings []string
}

// Reader converts invoice documents to raw text. All strategies run external
// tools through a Runner so tests can stub them.
type Reader struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewReader(cfg Config, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Reader{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract picks an OCR strategy based on file extension.
func (r *Reader) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	format := constants.FormatOf(path)
	r.logger.Debug("ocr.extract.start", "path", path, "format", string(format))

	switch format {
	case constants.PDF:
		res, err := r.extractPDF(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	case constants.IMAGE:
		res, err := r.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		r.logger.Error("ocr.extract.unsupported", "path", path)
		return Result{}, common.NewAppError("OCR_UNSUPPORTED_FORMAT",
			fmt.Sprintf("unsupported extension: %q", path), common.ErrInvalidInput)
	}
}

// ReadText is the soft-failure entry the pipeline uses: any internal error
// is logged and yields "", so the caller can apply its own fallback policy.
func (r *Reader) ReadText(ctx context.Context, path string) string {
	res, err := r.Extract(ctx, path)
	if err != nil {
		r.logger.Warn("ocr.read_text.failed", "path", path, "error", err)
		return ""
	}
	r.logger.Info("ocr.read_text.ok",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res.Text
}
