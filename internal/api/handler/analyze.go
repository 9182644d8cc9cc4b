package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/motionclinic/casematch/internal/api/middleware"
	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/storage"
)

// maxScanBytes bounds an uploaded scan image.
const maxScanBytes = 10 << 20

// AnalyzeHandler handles evaluation endpoints.
type AnalyzeHandler struct {
	evaluator *engine.Evaluator
	scans     storage.ScanStorage
}

// NewAnalyzeHandler creates a new analyze handler.
// Parameters:
//   - evaluator: evaluation pipeline instance.
//   - scans: storage for uploaded scan images; may be nil to disable archiving.
// Returns:
//   - *AnalyzeHandler: initialized handler.
func NewAnalyzeHandler(evaluator *engine.Evaluator, scans storage.ScanStorage) *AnalyzeHandler {
	return &AnalyzeHandler{
		evaluator: evaluator,
		scans:     scans,
	}
}

// TextAnalyzeRequest is the body for POST /api/v1/analyze/text.
type TextAnalyzeRequest struct {
	Query    string `json:"query" binding:"required"`
	Category string `json:"category" binding:"required"`
	Age      *int   `json:"age"`
}

// Analyze handles POST /api/v1/analyze: multipart scan image upload.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	category := c.PostForm("category")
	if category == "" {
		c.JSON(http.StatusBadRequest, domain.NewErrorPayload(
			wrapMalformed("category is required")))
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, domain.NewErrorPayload(
			wrapMalformed("image file is required")))
		return
	}
	defer file.Close()

	if header.Size > maxScanBytes {
		c.JSON(http.StatusRequestEntityTooLarge, domain.NewErrorPayload(
			wrapMalformed("image exceeds size limit")))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxScanBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, domain.NewErrorPayload(
			wrapMalformed("failed to read image")))
		return
	}

	format := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	q := engine.Query{
		Image:       data,
		ImageFormat: format,
		Age:         parseAge(c.PostForm("age")),
	}

	// Archive the scan for later audit; a storage failure is logged but
	// does not block the evaluation.
	if h.scans != nil {
		key := category + "/" + uuid.NewString() + filepath.Ext(header.Filename)
		contentType := header.Header.Get("Content-Type")
		if err := h.scans.Upload(c.Request.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			middleware.GetLogger(c).WithError(err).Warn("failed to archive scan")
		}
	}

	h.evaluate(c, q, category)
}

// AnalyzeText handles POST /api/v1/analyze/text: text query evaluation.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AnalyzeHandler) AnalyzeText(c *gin.Context) {
	var req TextAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, domain.NewErrorPayload(
			wrapMalformed("invalid request: "+err.Error())))
		return
	}

	q := engine.Query{
		Text: req.Query,
		Age:  req.Age,
	}
	h.evaluate(c, q, req.Category)
}

// GetCategories handles GET /api/v1/categories.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *AnalyzeHandler) GetCategories(c *gin.Context) {
	categories := h.evaluator.Categories()
	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"total":      len(categories),
	})
}

// evaluate runs the query and writes the report or a mapped error.
func (h *AnalyzeHandler) evaluate(c *gin.Context, q engine.Query, category string) {
	report, err := h.evaluator.Evaluate(c.Request.Context(), q, category)
	if err != nil {
		c.JSON(errorStatus(err), domain.NewErrorPayload(err))
		return
	}
	c.JSON(http.StatusOK, report)
}

// errorStatus maps sentinel errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrCorpusNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEncoding), errors.Is(err, domain.ErrCaption):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func wrapMalformed(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedRequest, msg)
}

// parseAge parses an optional age form value; invalid values are ignored.
func parseAge(s string) *int {
	if s == "" {
		return nil
	}
	age, err := strconv.Atoi(s)
	if err != nil || age < 0 {
		return nil
	}
	return &age
}
