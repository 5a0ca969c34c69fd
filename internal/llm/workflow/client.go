package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/aquila-erp/invoice-extractor/internal/llm"
)

// Config for the external workflow endpoint.
type Config struct {
	WebhookURL string
	Timeout    time.Duration // default 300s; complex invoices run long
}

// Client posts the raw invoice file to a workflow webhook and parses the
// JSON it returns. Implements llm.WorkflowExtractor.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Configured reports whether a webhook URL is set.
func (c *Client) Configured() bool { return c.cfg.WebhookURL != "" }

// ExtractFile uploads the file as multipart form data and normalizes the
// response. The workflow may wrap its payload in a single-element list
// and/or under an "output" string key.
func (c *Client) ExtractFile(ctx context.Context, path string) llm.Outcome {
	start := time.Now()
	reqID := uuid.New().String()

	if c.cfg.WebhookURL == "" {
		return llm.Outcome{Method: llm.MethodWorkflow, Error: "workflow webhook not configured"}
	}

	f, err := os.Open(path)
	if err != nil {
		return llm.Outcome{Method: llm.MethodWorkflow, Error: fmt.Sprintf("open file: %v", err)}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			c.logger.Warn("workflow.file_close_error", "req_id", reqID, "error", cerr)
		}
	}()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("data", filepath.Base(path))
	if err != nil {
		return llm.Outcome{Method: llm.MethodWorkflow, Error: fmt.Sprintf("build multipart: %v", err)}
	}
	if _, err := io.Copy(part, f); err != nil {
		return llm.Outcome{Method: llm.MethodWorkflow, Error: fmt.Sprintf("copy file: %v", err)}
	}
	if err := mw.Close(); err != nil {
		return llm.Outcome{Method: llm.MethodWorkflow, Error: fmt.Sprintf("close multipart: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, &buf)
	if err != nil {
		return llm.Outcome{Method: llm.MethodWorkflow, Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("workflow.upload", "req_id", reqID, "file", filepath.Base(path))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("workflow.http_error", "req_id", reqID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Outcome{
			Method:         llm.MethodWorkflow,
			ProcessingTime: time.Since(start),
			Error:          fmt.Sprintf("workflow request: %v", err),
		}
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("workflow.response_body_close_error", "req_id", reqID, "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Info("workflow.response", "req_id", reqID, "status", resp.StatusCode,
		"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())

	if resp.StatusCode/100 != 2 {
		return llm.Outcome{
			Method:         llm.MethodWorkflow,
			ProcessingTime: time.Since(start),
			Error:          fmt.Sprintf("workflow status %d", resp.StatusCode),
			Raw:            string(raw),
		}
	}

	v, cleaned, err := c.unwrap(raw)
	if err != nil {
		return llm.Outcome{
			Method:         llm.MethodWorkflow,
			ProcessingTime: time.Since(start),
			Error:          err.Error(),
			Raw:            cleaned,
		}
	}
	llm.CheckFieldShape(cleaned, c.logger)

	fields, err := llm.DecodeFields(v)
	if err != nil {
		return llm.Outcome{
			Method:         llm.MethodWorkflow,
			ProcessingTime: time.Since(start),
			Error:          err.Error(),
			Raw:            cleaned,
		}
	}

	c.logger.Info("workflow.ok", "req_id", reqID, "invoice_no", fields.InvoiceNo,
		"elapsed_ms", time.Since(start).Milliseconds())
	return llm.Outcome{
		Success:        true,
		Fields:         fields,
		Method:         llm.MethodWorkflow,
		ProcessingTime: time.Since(start),
	}
}

// unwrap peels the workflow's envelope: optional single-element list, then
// optional "output" key carrying JSON as a string.
func (c *Client) unwrap(raw []byte) (any, string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, string(raw), fmt.Errorf("decode workflow response: %w", err)
	}

	if list, ok := v.([]any); ok && len(list) > 0 {
		v = list[0]
	}

	if m, ok := v.(map[string]any); ok {
		if out, ok := m["output"].(string); ok {
			parsed, cleaned, err := llm.ParseModelJSON(out, c.logger)
			if err != nil {
				return nil, cleaned, fmt.Errorf("parse workflow output: %w", err)
			}
			return parsed, cleaned, nil
		}
	}

	v = llm.CleanKeys(v)
	b, _ := json.Marshal(v)
	return v, string(b), nil
}
