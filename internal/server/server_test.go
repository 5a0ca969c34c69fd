package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquila-erp/invoice-extractor/internal/export"
	"github.com/aquila-erp/invoice-extractor/internal/llm"
	"github.com/aquila-erp/invoice-extractor/internal/patterns"
	"github.com/aquila-erp/invoice-extractor/internal/pipeline"
	"github.com/aquila-erp/invoice-extractor/internal/resolver"
)

type stubExtractor struct {
	out llm.Outcome
}

func (s *stubExtractor) ExtractText(_ context.Context, _ string) llm.Outcome   { return s.out }
func (s *stubExtractor) ExtractVision(_ context.Context, _ string) llm.Outcome { return s.out }

type stubReader struct {
	text string
}

func (s *stubReader) ReadText(_ context.Context, _ string) string { return s.text }
func (s *stubReader) PDFText(_ context.Context, _ string) string  { return s.text }

func newTestRouter(t *testing.T, out llm.Outcome, ocrText string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	taxIDs := patterns.NewTaxIDMatcher("OM")
	res := resolver.New(patterns.DefaultLibrary(), taxIDs, resolver.DefaultPolicy(), nil)
	pipe := pipeline.New(&stubExtractor{out: out}, nil, &stubReader{text: ocrText}, res, taxIDs, nil, "llama3.1:latest", nil)

	srv := New(pipe, export.NewService(nil), t.TempDir(), nil)
	return srv.Router()
}

func uploadRequest(t *testing.T, target, field, filename string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("dummy invoice bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func successOutcome() llm.Outcome {
	return llm.Outcome{
		Success: true,
		Fields:  &llm.InvoiceFields{InvoiceNo: "INV-1"},
		Method:  llm.MethodText,
		Model:   "llama3.1:latest",
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, successOutcome(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExtractEndpoint(t *testing.T) {
	ocrText := strings.Repeat("invoice body ", 5) + "purchase order ATCPO-0012345"
	r := newTestRouter(t, successOutcome(), ocrText)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/invoices/extract", "invoice", "invoice.pdf"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "ATCPO012345", res.PONumber)
	assert.Equal(t, "INV-1", res.Fields.InvoiceNo)
}

func TestExtractEndpointMissingFile(t *testing.T) {
	r := newTestRouter(t, successOutcome(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/invoices/extract", "document", "invoice.pdf"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpointUnsupportedType(t *testing.T) {
	r := newTestRouter(t, successOutcome(), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/invoices/extract", "invoice", "invoice.docx"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpointPipelineFailure(t *testing.T) {
	failed := llm.Outcome{Method: llm.MethodText, Error: "model api error: connection refused"}
	r := newTestRouter(t, failed, strings.Repeat("invoice body text ", 5))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/invoices/extract", "invoice", "invoice.pdf"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "model api error")
}

func TestExportEndpoint(t *testing.T) {
	r := newTestRouter(t, successOutcome(), strings.Repeat("invoice body text ", 5))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/invoices/export", "invoice", "invoice.pdf"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotEmpty(t, w.Body.Bytes())
}
