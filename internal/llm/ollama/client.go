package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aquila-erp/invoice-extractor/internal/llm"
)

// Config for the Ollama client.
type Config struct {
	BaseURL       string        // default http://127.0.0.1:11435
	Model         string        // e.g. "llama3.1:latest"
	Temperature   float64       // fixed low for deterministic extraction
	TopP          float64
	Timeout       time.Duration // direct text call
	VisionTimeout time.Duration // image call
}

// Client talks to an Ollama-compatible /api/generate endpoint in text and
// vision modes. Both implement the same Outcome contract.
type Client struct {
	cfg    Config
	http   *http.Client
	vision *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11435"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1:latest"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.1
	}
	if cfg.TopP <= 0 {
		cfg.TopP = 0.9
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.VisionTimeout <= 0 {
		cfg.VisionTimeout = 180 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		vision: &http.Client{Timeout: cfg.VisionTimeout},
		logger: logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.cfg.Model }

type generateResponse struct {
	Response string `json:"response"`
}

// ExtractText submits invoice text with the fixed schema prompt.
func (c *Client) ExtractText(ctx context.Context, invoiceText string) llm.Outcome {
	start := time.Now()

	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": llm.Prompt(invoiceText),
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"top_p":       c.cfg.TopP,
		},
	}
	return c.generate(ctx, c.http, payload, llm.MethodText, start)
}

// ExtractVision submits a base64-encoded image with the abbreviated prompt.
func (c *Client) ExtractVision(ctx context.Context, imagePath string) llm.Outcome {
	start := time.Now()

	b, err := os.ReadFile(imagePath)
	if err != nil {
		return llm.Outcome{
			Method: llm.MethodVision,
			Model:  c.cfg.Model,
			Error:  fmt.Sprintf("read image: %v", err),
		}
	}

	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": llm.VisionPrompt(),
		"images": []string{base64.StdEncoding.EncodeToString(b)},
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
		},
	}
	return c.generate(ctx, c.vision, payload, llm.MethodVision, start)
}

func (c *Client) generate(ctx context.Context, hc *http.Client, payload map[string]any, method llm.Method, start time.Time) llm.Outcome {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"

	raw, _, err := llm.SendJSON(ctx, hc, endpoint, payload, nil, c.logger)
	if err != nil {
		c.logger.Error("ollama.generate.http_error",
			"method", string(method), "model", c.cfg.Model, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Outcome{
			Method:         method,
			Model:          c.cfg.Model,
			ProcessingTime: time.Since(start),
			Error:          fmt.Sprintf("model api error: %v", err),
		}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return llm.Outcome{
			Method:         method,
			Model:          c.cfg.Model,
			ProcessingTime: time.Since(start),
			Error:          fmt.Sprintf("decode model response: %v", err),
			Raw:            string(raw),
		}
	}

	v, cleaned, err := llm.ParseModelJSON(gr.Response, c.logger)
	if err != nil {
		c.logger.Error("ollama.generate.parse_error",
			"method", string(method), "error", err, "raw_prefix", prefix(cleaned, 200))
		return llm.Outcome{
			Method:         method,
			Model:          c.cfg.Model,
			ProcessingTime: time.Since(start),
			Error:          fmt.Sprintf("failed to parse model json: %v", err),
			Raw:            cleaned,
		}
	}
	llm.CheckFieldShape(cleaned, c.logger)

	fields, err := llm.DecodeFields(v)
	if err != nil {
		return llm.Outcome{
			Method:         method,
			Model:          c.cfg.Model,
			ProcessingTime: time.Since(start),
			Error:          err.Error(),
			Raw:            cleaned,
		}
	}

	c.logger.Info("ollama.generate.ok",
		"method", string(method),
		"model", c.cfg.Model,
		"invoice_no", fields.InvoiceNo,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Outcome{
		Success:        true,
		Fields:         fields,
		Method:         method,
		Model:          c.cfg.Model,
		ProcessingTime: time.Since(start),
	}
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
