package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Workflow WorkflowConfig
	Ledger   LedgerConfig
	Patterns PatternsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr      string
	UploadDir string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	DPI           int
	MaxPages      int
}

// LLMConfig holds generative-model configuration
type LLMConfig struct {
	BaseURL       string
	Model         string
	Temperature   float64
	TopP          float64
	Timeout       time.Duration
	VisionTimeout time.Duration
}

// WorkflowConfig holds the external workflow endpoint configuration.
// An empty URL disables the workflow extraction path.
type WorkflowConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// LedgerConfig holds the external ledger connection parameters.
// An empty DSN disables ledger lookups.
type LedgerConfig struct {
	DSN          string
	QueryTimeout time.Duration
}

// PatternsConfig holds tunables for the pattern library.
type PatternsConfig struct {
	TaxIDCountry string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      getEnv("HTTP_ADDR", ":8080"),
			UploadDir: getEnv("UPLOAD_DIR", "./tmp/invoices"),
		},
		OCR: OCRConfig{
			Pdftoppm:      getEnv("PDFTOPPM", "pdftoppm"),
			Tesseract:     getEnv("TESSERACT", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		LLM: LLMConfig{
			BaseURL:       getEnv("OLLAMA_BASE_URL", "http://127.0.0.1:11435"),
			Model:         getEnv("OLLAMA_MODEL", "llama3.1:latest"),
			Temperature:   getEnvAsFloat64("OLLAMA_TEMPERATURE", 0.1),
			TopP:          getEnvAsFloat64("OLLAMA_TOP_P", 0.9),
			Timeout:       getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
			VisionTimeout: getEnvAsDuration("OLLAMA_VISION_TIMEOUT", 180*time.Second),
		},
		Workflow: WorkflowConfig{
			WebhookURL: getEnv("WORKFLOW_WEBHOOK_URL", ""),
			Timeout:    getEnvAsDuration("WORKFLOW_TIMEOUT", 300*time.Second),
		},
		Ledger: LedgerConfig{
			DSN:          getEnv("LEDGER_DSN", ""),
			QueryTimeout: getEnvAsDuration("LEDGER_QUERY_TIMEOUT", 10*time.Second),
		},
		Patterns: PatternsConfig{
			TaxIDCountry: getEnv("TAXID_COUNTRY", "OM"),
		},
	}
}

// Validate checks the loaded configuration. Ledger and workflow settings are
// optional: their absence disables the feature rather than failing startup.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OLLAMA_BASE_URL is required", ErrInvalidInput)
	}
	if c.LLM.Model == "" {
		return NewAppError("CONFIG_ERROR", "OLLAMA_MODEL is required", ErrInvalidInput)
	}
	if len(c.Patterns.TaxIDCountry) != 2 {
		return NewAppError("CONFIG_ERROR", "TAXID_COUNTRY must be a two-letter code", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
