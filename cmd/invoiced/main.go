package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

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
	"github.com/aquila-erp/invoice-extractor/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := ledger.Open(ledger.Config{
		DSN:          cfg.Ledger.DSN,
		QueryTimeout: cfg.Ledger.QueryTimeout,
	}, logger)
	if err != nil {
		logger.Error("ledger open failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	pipe := buildPipeline(cfg, store, logger)
	srv := server.New(pipe, export.NewService(logger), cfg.Server.UploadDir, logger)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func buildPipeline(cfg *common.Config, store *ledger.Store, logger *slog.Logger) *pipeline.Pipeline {
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

	// nil concrete values must stay nil interfaces inside the pipeline
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

	return pipeline.New(model, wfe, reader, res, taxIDs, ls, cfg.LLM.Model, logger)
}
