package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/repository"
)

// CaseHandler handles case-record endpoints.
type CaseHandler struct {
	caseRepo *repository.CaseRepository
}

// NewCaseHandler creates a new case handler.
// Parameters:
//   - caseRepo: case record repository.
// Returns:
//   - *CaseHandler: initialized handler.
func NewCaseHandler(caseRepo *repository.CaseRepository) *CaseHandler {
	return &CaseHandler{
		caseRepo: caseRepo,
	}
}

// GetCase handles GET /api/v1/cases/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CaseHandler) GetCase(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Case ID is required",
		})
		return
	}

	record, err := h.caseRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Case not found",
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// GetStats handles GET /api/v1/stats.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CaseHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	byCategory := make(map[string]int64, len(domain.Categories))
	var total int64
	for _, category := range domain.Categories {
		count, err := h.caseRepo.CountByCategory(ctx, category)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to get stats: " + err.Error(),
			})
			return
		}
		byCategory[category] = count
		total += count
	}

	c.JSON(http.StatusOK, gin.H{
		"total_cases": total,
		"by_category": byCategory,
	})
}
