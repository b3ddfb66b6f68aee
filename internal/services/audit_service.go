package services

import (
	"encoding/json"

	"gorm.io/gorm"

	apperrors "budgetledger/internal/errors"
	"budgetledger/internal/logger"
	"budgetledger/internal/models"
	"budgetledger/internal/pagination"
)

// auditService records and lists the audit trail of ledger mutations.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log writes one audit entry. It runs outside any unit of work: a failed
// write is logged and never rolls back the audited change.
func (s *auditService) Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	entry := &models.AuditLog{
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(action, changes),
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("audit write failed",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

func encodeChanges(action string, changes map[string]interface{}) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		logger.Get().Warnw("audit changes not encodable", "action", action, "error", err)
		return "{}"
	}
	return string(data)
}

// ListAuditLogs returns a user's audit trail, newest first, optionally
// narrowed to one resource type.
func (s *auditService) ListAuditLogs(userID, resourceType string, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	query := s.db.Model(&models.AuditLog{}).Where("user_id = ?", userID)
	if resourceType != "" {
		query = query.Where("resource_type = ?", resourceType)
	}

	result, err := pagination.Fetch[models.AuditLog](query, page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}
