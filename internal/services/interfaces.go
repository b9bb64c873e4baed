package services

import (
	"context"
	"time"

	"natours/internal/models"
	"natours/internal/pagination"
	"natours/internal/repository"
)

// UserStore is the persistence contract consumed by the services. Lookups
// only ever return active users.
type UserStore interface {
	FindByEmail(ctx context.Context, email string, includeSecrets bool) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User, opts repository.SaveOptions) error
	ReleaseLock(ctx context.Context, id string, now time.Time) (bool, error)
	RecordFailedLogin(ctx context.Context, id string, now time.Time, escalate func(*models.User)) (*models.User, error)
	ResetLockout(ctx context.Context, id string, now time.Time) error
	CompletePasswordReset(ctx context.Context, user *models.User, tokenHash string) error
	ClearPasswordReset(ctx context.Context, id, tokenHash string) error
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context, page pagination.PageRequest) ([]models.User, int64, error)
}

// AuditStore persists audit entries.
type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// Notifier delivers account emails.
type Notifier interface {
	SendPasswordReset(ctx context.Context, user *models.User, resetURL string) error
	SendWelcome(ctx context.Context, user *models.User, profileURL string) error
}

// AuthResult is returned by every operation that logs a user in.
type AuthResult struct {
	Token string
	User  *models.User
}

// SignUpInput holds the fields accepted on registration.
type SignUpInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Role            models.Role
	// ProfileURL is linked from the welcome email.
	ProfileURL string
}

// AuthServicer defines the contract for credential lifecycle operations.
type AuthServicer interface {
	SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Protect(ctx context.Context, token string) (*models.User, error)
	RestrictTo(user *models.User, roles ...models.Role) error
	ForgotPassword(ctx context.Context, email, resetURLBase string) error
	ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (*AuthResult, error)
	UpdatePassword(ctx context.Context, userID, currentPassword, password, passwordConfirm string) (*AuthResult, error)
}

// UpdateMeInput holds the profile fields a user may change. Nil fields are
// left untouched.
type UpdateMeInput struct {
	Name  *string
	Email *string
	// HasPassword is set when the request tried to change the password.
	HasPassword bool
}

// UserServicer defines the contract for profile and admin user operations.
type UserServicer interface {
	GetMe(ctx context.Context, userID string) (*models.User, error)
	UpdateMe(ctx context.Context, userID string, in UpdateMeInput) (*models.User, error)
	DeleteMe(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(ctx context.Context, userID, action string, changes map[string]any)
}
