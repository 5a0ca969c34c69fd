package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aquila-erp/invoice-extractor/internal/common"
	"github.com/aquila-erp/invoice-extractor/internal/export"
	"github.com/aquila-erp/invoice-extractor/internal/ledger"
	"github.com/aquila-erp/invoice-extractor/internal/llm"
	"github.com/aquila-erp/invoice-extractor/internal/llm/ollama"
	"github.com/aquila-erp/invoice-extractor/internal/llm/workflow"
	"github.com/aquila-erp/invoice-extractor/internal/ocr"
	"github.com/aquila-erp/invoice-extractor/internal/patterns"
	"github.com/aquila-erp/invoice-extractor/internal/pipeline"
	"github.com/aquila-erp/invoice-extractor/internal/resolver"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Invoice extraction utilities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(extractCmd(logger), ocrCmd(logger), taxidsCmd(logger), exportCmd(logger))

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func extractCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file>",
		Short: "Run the full extraction pipeline on an invoice document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, store, err := buildPipeline(logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res := pipe.Process(cmd.Context(), args[0])
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			if !res.Success {
				return fmt.Errorf("extraction failed: %s", res.Error)
			}
			return nil
		},
	}
}

func ocrCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "ocr <file>",
		Short: "OCR an invoice document and print the raw text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			reader := ocr.NewReader(ocr.Config{
				Pdftoppm:      cfg.OCR.Pdftoppm,
				Tesseract:     cfg.OCR.Tesseract,
				TesseractLang: cfg.OCR.TesseractLang,
				DPI:           cfg.OCR.DPI,
				MaxPages:      cfg.OCR.MaxPages,
			}, logger)

			res, err := reader.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(res.Text)
			return nil
		},
	}
}

func taxidsCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "taxids <file|->",
		Short: "Extract tax-registration numbers from a document or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			matcher := patterns.NewTaxIDMatcher(cfg.Patterns.TaxIDCountry)

			var text string
			if args[0] == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			} else {
				reader := ocr.NewReader(ocr.Config{
					Pdftoppm:      cfg.OCR.Pdftoppm,
					Tesseract:     cfg.OCR.Tesseract,
					TesseractLang: cfg.OCR.TesseractLang,
					DPI:           cfg.OCR.DPI,
				}, logger)
				text = reader.ReadText(cmd.Context(), args[0])
			}

			ids := matcher.Extract(text)
			if len(ids) == 0 {
				fmt.Println("no tax IDs found")
				return nil
			}
			fmt.Println(strings.Join(ids, "\n"))
			return nil
		},
	}
}

func exportCmd(logger *slog.Logger) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Extract an invoice and write the result as an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, store, err := buildPipeline(logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res := pipe.Process(cmd.Context(), args[0])
			if !res.Success {
				return fmt.Errorf("extraction failed: %s", res.Error)
			}

			b, err := export.NewService(logger).WorkbookBytes(res)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, b, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", outPath, len(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "invoice.xlsx", "output workbook path")
	return cmd
}

func buildPipeline(logger *slog.Logger) (*pipeline.Pipeline, *ledger.Store, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	store, err := ledger.Open(ledger.Config{
		DSN:          cfg.Ledger.DSN,
		QueryTimeout: cfg.Ledger.QueryTimeout,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	reader := ocr.NewReader(ocr.Config{
		Pdftoppm:      cfg.OCR.Pdftoppm,
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
	}, logger)

	model := ollama.NewClient(ollama.Config{
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.Temperature,
		TopP:          cfg.LLM.TopP,
		Timeout:       cfg.LLM.Timeout,
		VisionTimeout: cfg.LLM.VisionTimeout,
	}, logger)

	taxIDs := patterns.NewTaxIDMatcher(cfg.Patterns.TaxIDCountry)
	res := resolver.New(patterns.DefaultLibrary(), taxIDs, resolver.DefaultPolicy(), logger)

	var ls pipeline.LedgerStore
	if store != nil {
		ls = store
	}
	var wfe llm.WorkflowExtractor
	if cfg.Workflow.WebhookURL != "" {
		wfe = workflow.NewClient(workflow.Config{
			WebhookURL: cfg.Workflow.WebhookURL,
			Timeout:    cfg.Workflow.Timeout,
		}, logger)
	}

	return pipeline.New(model, wfe, reader, res, taxIDs, ls, cfg.LLM.Model, logger), store, nil
}
