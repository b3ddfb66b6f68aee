package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/ledger"
	"budgetledger/internal/services"
)

// SummaryHandler serves the monthly rollups.
type SummaryHandler struct {
	summaryService services.SummaryServicer
	auditService   services.AuditServicer
}

// NewSummaryHandler creates a new SummaryHandler
func NewSummaryHandler(summaryService services.SummaryServicer, auditService services.AuditServicer) *SummaryHandler {
	return &SummaryHandler{summaryService: summaryService, auditService: auditService}
}

// SummaryResponse represents a monthly summary in the response
type SummaryResponse struct {
	Month            string `json:"month"`
	IncomeTotal      string `json:"income_total"`
	NeedsTotal       string `json:"needs_total"`
	WantsTotal       string `json:"wants_total"`
	ReservesTotal    string `json:"reserves_total"`
	InvestmentsTotal string `json:"investments_total"`
	ClosingBalance   string `json:"closing_balance"`
}

// ListSummaries lists stored monthly summaries
// @Summary     List monthly summaries
// @Description List the authenticated user's monthly summaries in month order, optionally for one year
// @Tags        summaries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       year query int false "Calendar year"
// @Success     200 {array}  SummaryResponse "Summaries"
// @Failure     400 {object} ErrorResponse "Invalid year"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /summaries [get]
func (h *SummaryHandler) ListSummaries(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	year := 0
	if v := c.Query("year"); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil || year < 1 || year > 9999 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid year"))
			return
		}
	}

	summaries, err := h.summaryService.ListSummaries(userID, year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

// GetMonthlySummary returns one month's summary
// @Summary     Get monthly summary
// @Description Get the stored summary for one month
// @Tags        summaries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       month path string true "Month (YYYY-MM)"
// @Success     200 {object} SummaryResponse "Summary"
// @Failure     400 {object} ErrorResponse "Invalid month"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "No summary for this month"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /summaries/{month} [get]
func (h *SummaryHandler) GetMonthlySummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, err := ledger.ParseMonth(c.Param("month"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	summary, err := h.summaryService.GetMonthlySummary(userID, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// RecomputeSummary rebuilds one month from its transactions
// @Summary     Recompute monthly summary
// @Description Rebuild a month's totals from the permanent transactions and carry the closing balance forward
// @Tags        summaries
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       month path string true "Month (YYYY-MM)"
// @Success     200 {object} SummaryResponse "Recomputed summary"
// @Failure     400 {object} ErrorResponse "Invalid month"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /summaries/{month}/recompute [post]
func (h *SummaryHandler) RecomputeSummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	month, err := ledger.ParseMonth(c.Param("month"))
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	summary, err := h.summaryService.RecomputeMonth(c.Request.Context(), userID, month)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RECOMPUTE_SUMMARY", "monthly_summary", summary.ID, c.ClientIP(),
		map[string]interface{}{"month": ledger.FormatMonth(month)})

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}
