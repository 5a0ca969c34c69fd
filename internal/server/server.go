package server

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquila-erp/invoice-extractor/constants"
	"github.com/aquila-erp/invoice-extractor/internal/export"
	"github.com/aquila-erp/invoice-extractor/internal/pipeline"
)

// Server exposes the extraction pipeline over a narrow HTTP surface:
// multipart upload in, extraction result out. No sessions, no rendering.
type Server struct {
	pipe      *pipeline.Pipeline
	exporter  *export.Service
	uploadDir string
	logger    *slog.Logger
}

func New(pipe *pipeline.Pipeline, exporter *export.Service, uploadDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &Server{pipe: pipe, exporter: exporter, uploadDir: uploadDir, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	api := r.Group("/api/v1")
	{
		api.POST("/invoices/extract", s.extract)
		api.POST("/invoices/export", s.exportXLSX)
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// extract accepts a multipart "invoice" file, runs the pipeline, and returns
// the extraction result as JSON. Resolution ambiguity (no PO, no tax IDs) is
// still a 200: the record was produced.
func (s *Server) extract(c *gin.Context) {
	path, cleanup, ok := s.receiveFile(c)
	if !ok {
		return
	}
	defer cleanup()

	res := s.pipe.Process(c.Request.Context(), path)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// exportXLSX runs the pipeline and streams the result as a workbook.
func (s *Server) exportXLSX(c *gin.Context) {
	path, cleanup, ok := s.receiveFile(c)
	if !ok {
		return
	}
	defer cleanup()

	res := s.pipe.Process(c.Request.Context(), path)
	if !res.Success {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}

	b, err := s.exporter.WorkbookBytes(res)
	if err != nil {
		s.logger.Error("server.export.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	name := "invoice-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", b)
}

// receiveFile saves the uploaded invoice to the upload dir and returns its
// path plus a cleanup func. Replies with an error response when intake fails.
func (s *Server) receiveFile(c *gin.Context) (string, func(), bool) {
	fh, err := c.FormFile("invoice")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing invoice file"})
		return "", nil, false
	}

	ext := constants.NormalizeExt(filepath.Ext(fh.Filename))
	if _, allowed := constants.AllowedExtensions[ext]; !allowed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type: " + ext})
		return "", nil, false
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.logger.Error("server.upload_dir", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return "", nil, false
	}

	dst := filepath.Join(s.uploadDir, uuid.New().String()+"."+ext)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		s.logger.Error("server.save_upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		return "", nil, false
	}

	s.logger.Info("server.upload.ok", "file", fh.Filename, "bytes", fh.Size, "stored", dst)
	cleanup := func() {
		if rerr := os.Remove(dst); rerr != nil {
			s.logger.Warn("server.upload_cleanup", "path", dst, "error", rerr)
		}
	}
	return dst, cleanup, true
}
