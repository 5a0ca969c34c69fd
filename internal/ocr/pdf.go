package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/aquila-erp/invoice-extractor/constants"
	"github.com/aquila-erp/invoice-extractor/internal/common"
)

// sparseTextThreshold marks native PDF text too thin to trust; below it the
// document is almost certainly a scan.
const sparseTextThreshold = 100

// extractPDF rasterizes each page and OCRs it, concatenating page text with
// a newline separator in page order.
func (r *Reader) extractPDF(ctx context.Context, path string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "inv-pp-*")
	if err != nil {
		return Result{Format: constants.PDF}, err
	}
	defer func(dir string) {
		if rerr := os.RemoveAll(dir); rerr != nil {
			r.logger.Warn("ocr.pdf.tmp_cleanup_failed", "dir", dir, "error", rerr)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", r.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return Result{Format: constants.PDF, Warnings: []string{string(errb)}}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if r.cfg.MaxPages > 0 && len(matches) > r.cfg.MaxPages {
		matches = matches[:r.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{Format: constants.PDF, Warnings: []string{"pdftoppm produced no images"}},
			common.WrapError(common.ErrNoContent, "no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := r.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}

	return Result{
		Text:     b.String(),
		Pages:    len(matches),
		Format:   constants.PDF,
		Method:   "pdf-ocr",
		Language: r.cfg.TesseractLang,
		Warnings: warns,
	}, nil
}

// PDFText extracts the embedded text layer of a PDF and falls back to OCR
// when that text is sparse or the file cannot be read natively. Used by the
// pipeline as a secondary text source when OCR itself came back thin.
func (r *Reader) PDFText(ctx context.Context, path string) string {
	text, err := nativePDFText(path)
	if err != nil {
		r.logger.Warn("ocr.pdf_text.native_failed", "path", path, "error", err)
		return r.ReadText(ctx, path)
	}
	if len(strings.TrimSpace(text)) < sparseTextThreshold {
		r.logger.Warn("ocr.pdf_text.sparse", "path", path, "chars", len(text))
		if ocrText := r.ReadText(ctx, path); len(ocrText) > len(text) {
			return ocrText
		}
	}
	return text
}

func nativePDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		txt, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(txt)
	}
	return b.String(), nil
}
