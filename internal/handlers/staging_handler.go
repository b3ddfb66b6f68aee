package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/importer"
	"budgetledger/internal/pagination"
	"budgetledger/internal/services"
	"budgetledger/internal/uuid"
)

// StagingHandler handles statement imports, the review of staged rows and
// their promotion into the permanent ledger.
type StagingHandler struct {
	stagingService services.StagingServicer
	commitService  services.CommitServicer
	maxBytes       int64
}

// NewStagingHandler creates a new StagingHandler. Uploads are read up to
// one byte past maxBytes so the parser can report the overflow.
func NewStagingHandler(
	stagingService services.StagingServicer,
	commitService services.CommitServicer,
	maxBytes int64,
) *StagingHandler {
	return &StagingHandler{
		stagingService: stagingService,
		commitService:  commitService,
		maxBytes:       maxBytes,
	}
}

// UpdatePendingRequest represents the editable fields of a staged row.
// Amount and date use the same tolerant formats as the import files.
type UpdatePendingRequest struct {
	Description *string        `json:"description" binding:"omitempty,max=255"`
	Amount      *string        `json:"amount"`
	Kind        *string        `json:"kind"`
	Date        *string        `json:"date"`
	CategoryID  nullableString `json:"category_id" swaggertype:"string"`
}

// CommitRequest names the staged rows to commit. Either field may be used.
type CommitRequest struct {
	ID  string   `json:"id" binding:"omitempty,uuid_id"`
	IDs []string `json:"ids" binding:"omitempty,dive,uuid_id"`
}

func (h *StagingHandler) readLimited(r io.Reader) ([]byte, error) {
	if h.maxBytes > 0 {
		r = io.LimitReader(r, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidImportFile, err.Error())
	}
	return data, nil
}

// readUpload returns the file bytes and declared format of an import
// request: a multipart "file" part, or the raw body with ?format=.
func (h *StagingHandler) readUpload(c *gin.Context) ([]byte, importer.Format, error) {
	declared := c.Query("format")

	if fh, err := c.FormFile("file"); err == nil {
		if v := c.PostForm("format"); v != "" {
			declared = v
		}
		if declared == "" {
			declared = filepath.Ext(fh.Filename)
		}
		format, err := importer.ParseFormat(declared)
		if err != nil {
			return nil, "", apperrors.ErrUnsupportedImportFormat
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", apperrors.WithMessage(apperrors.ErrInvalidImportFile, err.Error())
		}
		defer f.Close()
		data, err := h.readLimited(f)
		return data, format, err
	}

	if declared == "" {
		return nil, "", apperrors.WithMessage(apperrors.ErrInvalidInput, "format is required for a raw upload")
	}
	format, err := importer.ParseFormat(declared)
	if err != nil {
		return nil, "", apperrors.ErrUnsupportedImportFormat
	}
	data, err := h.readLimited(c.Request.Body)
	return data, format, err
}

// Import handles a statement upload
// @Summary     Import a statement
// @Description Parse a CSV, JSON or OFX statement, validate every row and stage the valid ones for review. Rows already in the ledger are flagged as duplicates. With auto_commit the non-duplicate rows are committed right away.
// @Tags        imports
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       file        formData file   false "Statement file"
// @Param       format      formData string false "csv, json or ofx (defaults to the file extension)"
// @Param       format      query    string false "Format of a raw request body"
// @Param       auto_commit query    bool   false "Commit non-duplicate rows immediately"
// @Success     201 {object} services.ImportResult "Rows staged"
// @Failure     400 {object} ErrorResponse "Invalid file or format"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     413 {object} ErrorResponse "File too large"
// @Failure     422 {object} ErrorResponse "No valid rows"
// @Failure     429 {object} ErrorResponse "Rate limited"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /imports [post]
func (h *StagingHandler) Import(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	data, format, err := h.readUpload(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	opts := services.ImportOptions{IPAddress: c.ClientIP()}
	if v := c.Query("auto_commit"); v != "" {
		opts.AutoCommit, err = strconv.ParseBool(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid auto_commit"))
			return
		}
	}

	result, err := h.stagingService.Import(c.Request.Context(), userID, format, data, opts)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if result.Staged == 0 && result.Created == 0 {
		c.JSON(apperrors.ErrNothingStaged.StatusCode, gin.H{
			"error": gin.H{
				"code":    apperrors.ErrNothingStaged.Code,
				"message": apperrors.ErrNothingStaged.Message,
			},
			"import": result,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"import": result})
}

// ListPending handles listing staged rows
// @Summary     List staged rows
// @Description List the authenticated user's staged rows, oldest first. Expired rows are included and marked.
// @Tags        imports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       batch_id  query string false "Only rows from this import"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PendingTransaction] "Staged rows"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /imports/pending [get]
func (h *StagingHandler) ListPending(c *gin.Context) {
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

	batchID := c.Query("batch_id")
	if batchID != "" {
		if batchID, err = uuid.Parse(batchID); err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid batch_id"))
			return
		}
	}

	result, err := h.stagingService.ListPending(userID, batchID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPending handles the retrieval of one staged row
// @Summary     Get staged row
// @Description Get one staged row by ID
// @Tags        imports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Pending transaction ID"
// @Success     200 {object} models.PendingTransaction "Staged row"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /imports/pending/{id} [get]
func (h *StagingHandler) GetPending(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	pendingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	pending, err := h.stagingService.GetPending(userID, pendingID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

// UpdatePending handles edits to a staged row
// @Summary     Update staged row
// @Description Edit a staged row before commit. The row is validated again and its duplicate flag recomputed. Expired rows are read-only.
// @Tags        imports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string               true "Pending transaction ID"
// @Param       request body UpdatePendingRequest true "Fields to update"
// @Success     200 {object} models.PendingTransaction "Updated row"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Not found"
// @Failure     410 {object} ErrorResponse "Expired"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /imports/pending/{id} [put]
func (h *StagingHandler) UpdatePending(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	pendingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	upd := services.PendingUpdate{
		Description: req.Description,
		Amount:      req.Amount,
		Kind:        req.Kind,
		Date:        req.Date,
	}
	switch {
	case req.CategoryID.cleared():
		upd.ClearCategory = true
	case req.CategoryID.Set:
		id, parseErr := uuid.Parse(*req.CategoryID.Value)
		if parseErr != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid category_id"))
			return
		}
		upd.CategoryID = &id
	}

	pending, err := h.stagingService.UpdatePending(c.Request.Context(), userID, pendingID, upd)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

// RejectPending handles discarding a staged row
// @Summary     Reject staged row
// @Description Discard a staged row, expired or not
// @Tags        imports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Pending transaction ID"
// @Success     200 {object} MessageResponse "Row rejected"
// @Failure     400 {object} ErrorResponse "Invalid ID"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /imports/pending/{id} [delete]
func (h *StagingHandler) RejectPending(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	pendingID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.stagingService.RejectPending(c.Request.Context(), userID, pendingID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pending transaction rejected"})
}

// Commit handles promoting staged rows
// @Summary     Commit staged rows
// @Description Promote staged rows into the permanent ledger one at a time. Each row succeeds or fails on its own.
// @Tags        imports
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CommitRequest true "Row ids"
// @Success     200 {object} services.CommitReport "At least one row committed"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Single row not found"
// @Failure     410 {object} ErrorResponse "Single row expired"
// @Failure     422 {object} ErrorResponse "Nothing committed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /imports/commit [post]
func (h *StagingHandler) Commit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	ids := req.IDs
	single := len(ids) == 0 && req.ID != ""
	if single {
		ids = []string{req.ID}
	}

	report, err := h.commitService.Commit(c.Request.Context(), userID, ids)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if single && report.Committed == 0 {
		respondWithError(c, report.Results[0].Err)
		return
	}
	if report.Committed == 0 {
		c.JSON(apperrors.ErrNothingCommitted.StatusCode, gin.H{
			"error": gin.H{
				"code":    apperrors.ErrNothingCommitted.Code,
				"message": apperrors.ErrNothingCommitted.Message,
			},
			"commit": report,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"commit": report})
}
