package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "http://127.0.0.1:11435", cfg.LLM.BaseURL)
	assert.Equal(t, "llama3.1:latest", cfg.LLM.Model)
	assert.InDelta(t, 0.1, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, "", cfg.Ledger.DSN)
	assert.Equal(t, "OM", cfg.Patterns.TaxIDCountry)
	assert.Equal(t, 300*time.Second, cfg.Workflow.Timeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "moondream")
	t.Setenv("OCR_DPI", "150")
	t.Setenv("OLLAMA_TIMEOUT", "30s")
	t.Setenv("TAXID_COUNTRY", "ae")

	cfg := LoadConfig()
	assert.Equal(t, "moondream", cfg.LLM.Model)
	assert.Equal(t, 150, cfg.OCR.DPI)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "ae", cfg.Patterns.TaxIDCountry)
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	t.Setenv("OCR_DPI", "not-a-number")
	t.Setenv("OLLAMA_TIMEOUT", "soon")

	cfg := LoadConfig()
	assert.Equal(t, 300, cfg.OCR.DPI)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.LLM.Model = ""
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.Patterns.TaxIDCountry = "OMN"
	assert.Error(t, cfg.Validate())
}
