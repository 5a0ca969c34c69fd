package ocr

import (
	"context"
	"fmt"

	"github.com/aquila-erp/invoice-extractor/constants"
)

func (r *Reader) extractImage(ctx context.Context, path string) (Result, error) {
	txt, warn, err := r.tesseractOCR(ctx, path)
	if err != nil {
		return Result{Format: constants.IMAGE, Warnings: warn}, err
	}
	return Result{
		Text:     txt,
		Pages:    1,
		Format:   constants.IMAGE,
		Method:   "image-ocr",
		Language: r.cfg.TesseractLang,
		Warnings: warn,
	}, nil
}

func (r *Reader) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := r.runner.Run(ctx, r.cfg.Tesseract, path, "stdout", "-l", r.cfg.TesseractLang)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}
