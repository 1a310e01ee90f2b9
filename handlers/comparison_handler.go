package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/chankeypathak/AuditSync-Pro/models"
	"github.com/chankeypathak/AuditSync-Pro/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ComparisonHandler handles HTTP requests for document comparisons
type ComparisonHandler struct {
	comparisonService *service.ComparisonService
}

// NewComparisonHandler creates a new comparison handler
func NewComparisonHandler(comparisonService *service.ComparisonService) *ComparisonHandler {
	return &ComparisonHandler{comparisonService: comparisonService}
}

// CreateComparisonRequest is the JSON body for POST /api/comparisons
type CreateComparisonRequest struct {
	CompanyID        uuid.UUID `json:"company_id" binding:"required"`
	SourceDocumentID uuid.UUID `json:"source_document_id" binding:"required"`
	TargetDocumentID uuid.UUID `json:"target_document_id" binding:"required"`
	ComparisonType   string    `json:"comparison_type" binding:"required"`
}

// CreateComparison handles POST /api/comparisons. The engine runs in the
// background; the response carries the pending comparison handle.
func (h *ComparisonHandler) CreateComparison(c *gin.Context) {
	var req CreateComparisonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	cmp, err := h.comparisonService.StartComparison(c.Request.Context(), service.CreateComparisonRequest{
		CompanyID:        req.CompanyID,
		SourceDocumentID: req.SourceDocumentID,
		TargetDocumentID: req.TargetDocumentID,
		Type:             models.ComparisonType(req.ComparisonType),
	})
	if err != nil {
		var valErr *service.ValidationError
		var preErr *service.PreconditionError
		switch {
		case errors.As(err, &valErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_COMPARISON",
					"message": valErr.Reason,
				},
			})
		case errors.As(err, &preErr):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DOCUMENTS_NOT_PROCESSED",
					"message": preErr.Reason,
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "COMPARISON_FAILED",
					"message": fmt.Sprintf("Failed to create comparison: %v", err),
				},
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"id":     cmp.ID,
			"status": cmp.Status,
		},
	})
}

// GetComparison handles GET /api/comparisons/:id
func (h *ComparisonHandler) GetComparison(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid comparison ID format",
			},
		})
		return
	}

	cmp, err := h.comparisonService.GetComparison(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "COMPARISON_NOT_FOUND",
				"message": "Comparison not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    cmp,
	})
}

// ListComparisons handles GET /api/companies/:id/comparisons
func (h *ComparisonHandler) ListComparisons(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_COMPANY_ID",
				"message": "Invalid company ID format",
			},
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	comparisons, err := h.comparisonService.ListComparisons(c.Request.Context(), companyID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": fmt.Sprintf("Failed to list comparisons: %v", err),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"comparisons": comparisons,
			"count":       len(comparisons),
		},
	})
}

// GetComparisonStats handles GET /api/companies/:id/comparisons/stats
func (h *ComparisonHandler) GetComparisonStats(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_COMPANY_ID",
				"message": "Invalid company ID format",
			},
		})
		return
	}

	stats, err := h.comparisonService.ComparisonStats(c.Request.Context(), companyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": fmt.Sprintf("Failed to compute stats: %v", err),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}
