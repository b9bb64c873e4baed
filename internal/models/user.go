package models

import (
	"strings"
	"time"
)

// Role is the authorization role of a user.
type Role string

// Supported roles.
const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	for _, role := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents an account in the database. Credential, reset and lockout
// columns are never serialized.
type User struct {
	Base
	Name     string `gorm:"not null" json:"name" validate:"required,max=100"`
	Email    string `gorm:"uniqueIndex;not null" json:"email" validate:"required,email,max=255"`
	Photo    string `gorm:"default:'default.jpg'" json:"photo"`
	Role     Role   `gorm:"type:varchar(20);default:'user';not null" json:"role" validate:"required,user_role"`
	Password string `gorm:"not null" json:"-" validate:"required"`
	Active   bool   `gorm:"default:true;not null;index" json:"-"`

	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   *string    `gorm:"size:64;index" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`

	LoginAttempts int        `gorm:"default:0;not null" json:"-"`
	FailedRounds  int        `gorm:"default:0;not null" json:"-"`
	LockUntil     *time.Time `json:"-"`
}

// ChangedPasswordAfter reports whether the password was changed after a
// token issued at issuedAt. Both sides are compared at second resolution.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// HasPendingReset reports whether a password reset is outstanding.
func (u *User) HasPendingReset() bool {
	return u.PasswordResetToken != nil && u.PasswordResetExpires != nil
}

// SetPasswordReset records an outstanding reset. Hash and expiry are always
// written together.
func (u *User) SetPasswordReset(tokenHash string, expiresAt time.Time) {
	u.PasswordResetToken = &tokenHash
	u.PasswordResetExpires = &expiresAt
}

// ClearPasswordReset removes an outstanding reset.
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// FirstName returns the first word of a full name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
