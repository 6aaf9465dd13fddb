package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/asaadkhaja99/rabbit-hole/internal/api/dto"
	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/gin-gonic/gin"
)

// PDFHandler handles PDF upload and lookup
type PDFHandler struct {
	logger        *slog.Logger
	pdfs          PDFService
	maxUploadSize int64
}

// NewPDFHandler creates a new PDFHandler instance
func NewPDFHandler(deps *Dependencies) *PDFHandler {
	return &PDFHandler{
		logger:        deps.Logger,
		pdfs:          deps.PDFs,
		maxUploadSize: deps.MaxUploadSize,
	}
}

// Upload handles POST /api/pdf/upload (multipart "file" and optional "display_name")
func (h *PDFHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
			return
		}
		badRequest(c, "file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("failed to read upload: %w", err))
		return
	}
	defer file.Close()

	result, err := h.pdfs.Upload(c.Request.Context(), header.Filename, c.PostForm("display_name"), file)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// List handles GET /api/pdf/list
func (h *PDFHandler) List(c *gin.Context) {
	records, err := h.pdfs.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, dto.PDFListResponse{
		PDFs:  records,
		Total: len(records),
	})
}

// Get handles GET /api/pdf/:filename
func (h *PDFHandler) Get(c *gin.Context) {
	filename := c.Param("filename")

	record, err := h.pdfs.Get(c.Request.Context(), filename)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("PDF '%s' not found", filename)})
			return
		}
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
