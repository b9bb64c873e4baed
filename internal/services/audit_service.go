package services

import (
	"context"
	"encoding/json"

	"natours/internal/logger"
	"natours/internal/models"
)

type clientIPKey struct{}

// WithClientIP attaches the caller's IP address to ctx for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// auditService handles audit log recording.
type auditService struct {
	store AuditStore
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(store AuditStore) AuditServicer {
	return &auditService{store: store}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(ctx context.Context, userID, action string, changes map[string]any) {
	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	entry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		IPAddress: clientIP(ctx),
		Changes:   changesJSON,
	}

	if err := s.store.Create(context.WithoutCancel(ctx), entry); err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
		)
	}
}
