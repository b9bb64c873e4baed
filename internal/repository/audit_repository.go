package repository

import (
	"context"

	"gorm.io/gorm"

	"natours/internal/models"
)

// AuditRepository persists audit log entries.
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListForUser returns the newest entries for a user.
func (r *AuditRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
