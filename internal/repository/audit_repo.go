package repository

import (
	"context"

	"icu-bed-management/internal/models"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog creates a new audit log entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, bedNumber *string, action string, details string) error {
	log := &models.AuditLog{
		BedNumber: bedNumber,
		Action:    action,
		Details:   details,
	}
	return r.db.WithContext(ctx).Create(log).Error
}
