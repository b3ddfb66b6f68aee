package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/pagination"
	"budgetledger/internal/services"
)

var auditResourceTypes = map[string]bool{
	"user":                true,
	"category":            true,
	"transaction":         true,
	"import_batch":        true,
	"pending_transaction": true,
	"monthly_summary":     true,
}

// AuditHandler exposes a user's own audit trail.
type AuditHandler struct {
	auditService services.AuditServicer
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService services.AuditServicer) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// ListAuditLogs handles listing audit entries
// @Summary     List audit entries
// @Description List the authenticated user's audit entries, newest first
// @Tags        audit
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       resource_type query string false "Filter by resource type such as transaction or pending_transaction"
// @Param       page          query int    false "Page number (default 1)"
// @Param       page_size     query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.AuditLog] "Audit entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /audit [get]
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	resourceType := c.Query("resource_type")
	if resourceType != "" && !auditResourceTypes[resourceType] {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "unknown resource_type"))
		return
	}

	result, err := h.auditService.ListAuditLogs(userID, resourceType, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
