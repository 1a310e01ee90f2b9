package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/chankeypathak/AuditSync-Pro/models"
	"github.com/chankeypathak/AuditSync-Pro/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler handles HTTP requests for audit documents
type DocumentHandler struct {
	auditService *service.AuditService
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(auditService *service.AuditService) *DocumentHandler {
	return &DocumentHandler{auditService: auditService}
}

// UploadDocument handles POST /api/documents/upload
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	companyIDStr := c.PostForm("company_id")
	companyID, err := uuid.Parse(companyIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_COMPANY_ID",
				"message": "Invalid company_id format",
			},
		})
		return
	}

	source := models.DocumentSource(c.PostForm("source"))
	switch source {
	case models.SourceInternalAudit, models.SourceRegulatoryFiling, models.SourceVendorAssessment:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SOURCE",
				"message": "source must be one of: internal_audit, regulatory_filing, vendor_assessment",
			},
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "File is required",
			},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_OPEN_ERROR",
				"message": err.Error(),
			},
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_READ_ERROR",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.auditService.UploadDocument(c.Request.Context(), service.UploadDocumentRequest{
		CompanyID: companyID,
		Source:    source,
		Filename:  fileHeader.Filename,
		Data:      data,
	})
	if err != nil {
		var valErr *service.ValidationError
		switch {
		case errors.As(err, &valErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_DOCUMENT",
					"message": valErr.Reason,
				},
			})
		case errors.Is(err, service.ErrCompanyNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "COMPANY_NOT_FOUND",
					"message": "Company not found",
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UPLOAD_FAILED",
					"message": fmt.Sprintf("Failed to upload document: %v", err),
				},
			})
		}
		return
	}

	if result.Duplicate {
		// Identical content already ingested for this company
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"document":  result.Document,
				"duplicate": true,
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"document":  result.Document,
			"duplicate": false,
		},
	})
}

// GetDocument handles GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid document ID format",
			},
		})
		return
	}

	doc, err := h.auditService.GetDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOCUMENT_NOT_FOUND",
				"message": "Document not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    doc,
	})
}

// ReprocessDocument handles POST /api/documents/:id/reprocess
func (h *DocumentHandler) ReprocessDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid document ID format",
			},
		})
		return
	}

	doc, err := h.auditService.ReprocessDocument(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOCUMENT_NOT_FOUND",
				"message": "Document not found",
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"id":     doc.ID,
			"status": doc.Status,
		},
	})
}

// ListDocuments handles GET /api/companies/:id/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
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

	var source *models.DocumentSource
	if s := c.Query("source"); s != "" {
		src := models.DocumentSource(s)
		source = &src
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, err := h.auditService.ListDocuments(c.Request.Context(), companyID, source, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": fmt.Sprintf("Failed to list documents: %v", err),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"documents": docs,
			"count":     len(docs),
		},
	})
}

// GetProcessingStats handles GET /api/companies/:id/documents/stats
func (h *DocumentHandler) GetProcessingStats(c *gin.Context) {
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

	stats, err := h.auditService.ProcessingStats(c.Request.Context(), companyID)
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
