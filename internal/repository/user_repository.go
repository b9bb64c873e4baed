// Package repository implements GORM-backed persistence for users and audit
// entries. Every user lookup is scoped to active accounts.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"natours/internal/models"
	"natours/internal/pagination"
	"natours/internal/validator"
)

var (
	// ErrNotFound is returned when no active user matches a lookup.
	ErrNotFound = errors.New("repository: user not found")
	// ErrDuplicateEmail is returned when the email uniqueness constraint fails.
	ErrDuplicateEmail = errors.New("repository: email already registered")
	// ErrStaleWrite is returned when a conditional update matched no rows
	// because another request changed the row first.
	ErrStaleWrite = errors.New("repository: row changed concurrently")
	// ErrAccountLocked matches every *LockedError.
	ErrAccountLocked = errors.New("repository: account locked")
)

// LockedError is returned by lockout writes refused because the stored lock
// is still active.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("repository: account locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Is reports whether target is ErrAccountLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// unlockedAt matches rows with no lock, or whose lock has expired.
const unlockedAt = "(lock_until IS NULL OR lock_until <= ?)"

// Column groups written by targeted saves.
var (
	ResetColumns    = []string{"password_reset_token", "password_reset_expires"}
	PasswordColumns = []string{"password", "password_changed_at"}
	ProfileColumns  = []string{"name", "email"}
)

// secretColumns are left out of lookups that do not ask for secrets.
var secretColumns = []string{
	"password",
	"password_changed_at",
	"password_reset_token",
	"password_reset_expires",
	"login_attempts",
	"failed_rounds",
	"lock_until",
}

// SaveOptions controls how Save writes a user.
type SaveOptions struct {
	// Validate runs struct validation before writing. Administrative writes
	// of lockout or reset fields skip it.
	Validate bool
	// Fields restricts the write to the named columns. Empty writes every
	// column, so the user must have been loaded with its secrets.
	Fields []string
}

// UserRepository is the GORM-backed user store.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("active = ?", true)
}

// FindByEmail returns the active user with the given email. Password, reset
// and lockout columns are only loaded when includeSecrets is true.
func (r *UserRepository) FindByEmail(ctx context.Context, email string, includeSecrets bool) (*models.User, error) {
	q := r.active(ctx).Where("email = ?", NormalizeEmail(email))
	if !includeSecrets {
		q = q.Omit(secretColumns...)
	}

	var user models.User
	if err := q.First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByID returns the active user with the given ID, secrets included.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.active(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByResetToken returns the active user whose stored reset hash matches
// tokenHash and whose reset has not expired at now.
func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	var user models.User
	err := r.active(ctx).
		Where("password_reset_token = ? AND password_reset_expires > ?", tokenHash, now.UTC()).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Create validates and inserts a new user. The email is normalized first.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	user.Active = true

	if err := validator.New().Struct(user); err != nil {
		return fmt.Errorf("validate user: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return translate(err)
	}
	return nil
}

// Save writes user according to opts.
func (r *UserRepository) Save(ctx context.Context, user *models.User, opts SaveOptions) error {
	if user.ID == "" {
		return errors.New("repository: save requires a persisted user")
	}
	user.Email = NormalizeEmail(user.Email)

	if opts.Validate {
		if err := validator.New().Struct(user); err != nil {
			return fmt.Errorf("validate user: %w", err)
		}
	}

	db := r.db.WithContext(ctx)
	var err error
	if len(opts.Fields) == 0 {
		err = db.Save(user).Error
	} else {
		err = db.Model(user).Select(opts.Fields).Updates(user).Error
	}
	if err != nil {
		return translate(err)
	}
	return nil
}

// ReleaseLock clears an expired lock. It only matches while the stored lock
// is still expired at now, so a lock set by a concurrent request survives.
// FailedRounds is left untouched. The returned bool reports whether a row changed.
func (r *UserRepository) ReleaseLock(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND lock_until IS NOT NULL AND lock_until <= ?", id, now.UTC()).
		UpdateColumns(map[string]interface{}{
			"login_attempts": 0,
			"lock_until":     nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RecordFailedLogin atomically increments the failed-attempt counter, then
// lets escalate inspect the fresh row and decide whether a lock starts.
// Concurrent failures for the same user are serialized by the row update.
// Nothing is written while the stored lock is active at now; a *LockedError
// is returned instead.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, escalate func(*models.User)) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND active = ?", id, true).
			Where(unlockedAt, now.UTC()).
			UpdateColumn("login_attempts", gorm.Expr("login_attempts + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return lockedOrMissing(tx, id, now)
		}

		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			return err
		}

		attempts, rounds := user.LoginAttempts, user.FailedRounds
		escalate(&user)
		if user.LoginAttempts == attempts && user.FailedRounds == rounds {
			return nil
		}

		return tx.Model(&models.User{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
			"login_attempts": user.LoginAttempts,
			"failed_rounds":  user.FailedRounds,
			"lock_until":     user.LockUntil,
		}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// ResetLockout clears the attempt counter, the round counter and any
// expired lock after a successful login. It returns a *LockedError without
// writing when a lock active at now was set in the meantime.
func (r *UserRepository) ResetLockout(ctx context.Context, id string, now time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND active = ?", id, true).
			Where(unlockedAt, now.UTC()).
			UpdateColumns(map[string]interface{}{
				"login_attempts": 0,
				"failed_rounds":  0,
				"lock_until":     nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return lockedOrMissing(tx, id, now)
		}
		return nil
	})
	return translate(err)
}

// lockedOrMissing explains why a lockout write guarded by unlockedAt matched
// no row.
func lockedOrMissing(tx *gorm.DB, id string, now time.Time) error {
	var user models.User
	err := tx.Model(&models.User{}).
		Select("id", "lock_until").
		Where("id = ? AND active = ?", id, true).
		First(&user).Error
	if err != nil {
		return err
	}
	if user.LockUntil != nil && user.LockUntil.After(now) {
		return &LockedError{Until: user.LockUntil.UTC()}
	}
	return ErrStaleWrite
}

// CompletePasswordReset writes the new password and clears the reset
// fields, but only while the stored reset hash still equals tokenHash. A
// reset secret can therefore be consumed once.
func (r *UserRepository) CompletePasswordReset(ctx context.Context, user *models.User, tokenHash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND active = ? AND password_reset_token = ?", user.ID, true, tokenHash).
		Updates(map[string]interface{}{
			"password":               user.Password,
			"password_changed_at":    user.PasswordChangedAt,
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	user.ClearPasswordReset()
	return nil
}

// ClearPasswordReset removes an outstanding reset, but only while the stored
// hash still equals tokenHash so a newer reset request is left intact.
func (r *UserRepository) ClearPasswordReset(ctx context.Context, id, tokenHash string) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_reset_token = ?", id, tokenHash).
		Updates(map[string]interface{}{
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleWrite
	}
	return nil
}

// Deactivate soft-deletes the user. The row is kept.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	res := r.active(ctx).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of active users, oldest first, without secrets.
func (r *UserRepository) List(ctx context.Context, page pagination.PageRequest) ([]models.User, int64, error) {
	page.Defaults()

	var total int64
	if err := r.active(ctx).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := r.active(ctx).
		Omit(secretColumns...).
		Order("created_at ASC").
		Scopes(pagination.Paginate(page)).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicateEmail
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
