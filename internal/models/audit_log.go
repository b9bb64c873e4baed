package models

// Audit actions recorded for credential lifecycle events.
const (
	AuditSignup          = "user.signup"
	AuditLoginSucceeded  = "user.login_succeeded"
	AuditLoginFailed     = "user.login_failed"
	AuditAccountLocked   = "user.account_locked"
	AuditResetRequested  = "user.password_reset_requested"
	AuditResetCompleted  = "user.password_reset_completed"
	AuditPasswordChanged = "user.password_changed"
	AuditProfileUpdated  = "user.profile_updated"
	AuditDeactivated     = "user.deactivated"
)

// AuditLog records sensitive user operations for security and compliance.
type AuditLog struct {
	Base
	UserID    string `gorm:"type:uuid;not null;index" json:"user_id"`
	Action    string `gorm:"not null;index" json:"action"`
	IPAddress string `json:"ip_address"`
	Changes   string `json:"changes,omitempty"`
}
