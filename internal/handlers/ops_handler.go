package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/services"
)

// OpsHandler serves operator-only maintenance endpoints.
type OpsHandler struct {
	stagingService services.StagingServicer
	now            func() time.Time
}

// NewOpsHandler creates a new OpsHandler
func NewOpsHandler(stagingService services.StagingServicer) *OpsHandler {
	return &OpsHandler{stagingService: stagingService, now: time.Now}
}

// PurgeRequest optionally moves the expiry cutoff.
type PurgeRequest struct {
	Before string `json:"before"`
}

// PurgeExpired deletes expired staged rows for every user
// @Summary     Purge expired staged rows
// @Description Delete every staged row that has expired at the cutoff (default now). Never runs on its own.
// @Tags        ops
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body PurgeRequest false "Cutoff (RFC3339)"
// @Success     200 {object} map[string]interface{} "Rows purged"
// @Failure     400 {object} ErrorResponse "Invalid cutoff"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     503 {object} ErrorResponse "Operator key not configured"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /ops/staging/purge [post]
func (h *OpsHandler) PurgeExpired(c *gin.Context) {
	var req PurgeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
	}

	before := h.now().UTC()
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "before must be an RFC3339 timestamp"))
			return
		}
		before = t.UTC()
	}

	purged, err := h.stagingService.PurgeExpired(c.Request.Context(), before)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purged": purged,
		"before": before.Format(time.RFC3339),
	})
}
