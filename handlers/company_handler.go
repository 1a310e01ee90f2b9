package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/chankeypathak/AuditSync-Pro/models"
	"github.com/chankeypathak/AuditSync-Pro/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CompanyHandler handles HTTP requests for companies
type CompanyHandler struct {
	companies service.CompanyStore
}

// NewCompanyHandler creates a new company handler
func NewCompanyHandler(companies service.CompanyStore) *CompanyHandler {
	return &CompanyHandler{companies: companies}
}

// CreateCompanyRequest is the JSON body for POST /api/companies
type CreateCompanyRequest struct {
	Name     string  `json:"name" binding:"required"`
	Ticker   *string `json:"ticker"`
	Industry *string `json:"industry"`
}

// CreateCompany handles POST /api/companies
func (h *CompanyHandler) CreateCompany(c *gin.Context) {
	var req CreateCompanyRequest
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

	company := &models.Company{
		Name:     req.Name,
		Ticker:   req.Ticker,
		Industry: req.Industry,
	}
	if err := h.companies.Create(c.Request.Context(), company); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": fmt.Sprintf("Failed to create company: %v", err),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    company,
	})
}

// GetCompany handles GET /api/companies/:id
func (h *CompanyHandler) GetCompany(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid company ID format",
			},
		})
		return
	}

	company, err := h.companies.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "COMPANY_NOT_FOUND",
				"message": "Company not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    company,
	})
}

// ListCompanies handles GET /api/companies
func (h *CompanyHandler) ListCompanies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	companies, err := h.companies.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": fmt.Sprintf("Failed to list companies: %v", err),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"companies": companies,
			"count":     len(companies),
		},
	})
}
