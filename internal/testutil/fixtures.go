package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"natours/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, email, models.RoleUser)
}

// CreateTestUserWithRole creates a user with the given email and role.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Name:     fmt.Sprintf("Test User %d", nextID()),
		Email:    email,
		Password: string(hash),
		Role:     role,
		Active:   true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// DeactivateTestUser soft-deletes a fixture user.
func DeactivateTestUser(t *testing.T, db *gorm.DB, user *models.User) {
	t.Helper()

	if err := db.Model(user).Update("active", false).Error; err != nil {
		t.Fatalf("failed to deactivate test user: %v", err)
	}
}

// ReloadUser reads a user row back, bypassing the active filter.
func ReloadUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()

	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload user %s: %v", id, err)
	}
	return &user
}
