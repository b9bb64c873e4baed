package services

import (
	"context"
	"testing"

	"natours/internal/models"
	"natours/internal/pagination"
	"natours/internal/repository"
	"natours/internal/testutil"
)

func newTestUserService(t *testing.T) (UserServicer, *repository.UserRepository, func()) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repo := repository.NewUserRepository(db)
	svc := NewUserService(repo, NewAuditService(repository.NewAuditRepository(db)))
	return svc, repo, func() { testutil.TeardownTestDB(t, db) }
}

func strPtr(s string) *string { return &s }

func TestGetMe(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(repository.NewUserRepository(db), NewAuditService(repository.NewAuditRepository(db)))
	user := testutil.CreateTestUser(t, db)

	me, err := svc.GetMe(ctx, user.ID)
	testutil.AssertNoError(t, err)
	if me.Email != user.Email {
		t.Errorf("expected %s, got %s", user.Email, me.Email)
	}

	testutil.DeactivateTestUser(t, db, user)
	_, err = svc.GetMe(ctx, user.ID)
	testutil.AssertAppError(t, err, "NOT_FOUND")
}

func TestUpdateMe(t *testing.T) {
	ctx := context.Background()

	t.Run("updates_name_and_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewUserRepository(db), NewAuditService(repository.NewAuditRepository(db)))
		user := testutil.CreateTestUser(t, db)

		updated, err := svc.UpdateMe(ctx, user.ID, UpdateMeInput{Name: strPtr(" Jonas "), Email: strPtr("Jonas@Example.com")})
		testutil.AssertNoError(t, err)
		if updated.Name != "Jonas" || updated.Email != "jonas@example.com" {
			t.Errorf("unexpected profile %q <%s>", updated.Name, updated.Email)
		}

		stored := testutil.ReloadUser(t, db, user.ID)
		if stored.Email != "jonas@example.com" {
			t.Errorf("expected stored email to change, got %s", stored.Email)
		}
		if stored.Password != user.Password {
			t.Error("expected the password to be untouched")
		}
	})

	t.Run("rejects_password_fields", func(t *testing.T) {
		svc, _, done := newTestUserService(t)
		defer done()

		_, err := svc.UpdateMe(ctx, "any", UpdateMeInput{HasPassword: true})
		testutil.AssertAppError(t, err, "PASSWORD_ROUTE_MISUSE")
	})

	t.Run("rejects_invalid_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewUserRepository(db), NewAuditService(repository.NewAuditRepository(db)))
		user := testutil.CreateTestUser(t, db)

		_, err := svc.UpdateMe(ctx, user.ID, UpdateMeInput{Email: strPtr("nope")})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("rejects_taken_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(repository.NewUserRepository(db), NewAuditService(repository.NewAuditRepository(db)))
		user := testutil.CreateTestUser(t, db)
		other := testutil.CreateTestUser(t, db)

		_, err := svc.UpdateMe(ctx, user.ID, UpdateMeInput{Email: strPtr(other.Email)})
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})
}

func TestDeleteMe(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	repo := repository.NewUserRepository(db)
	svc := NewUserService(repo, NewAuditService(repository.NewAuditRepository(db)))
	user := testutil.CreateTestUser(t, db)

	testutil.AssertNoError(t, svc.DeleteMe(ctx, user.ID))
	if testutil.ReloadUser(t, db, user.ID).Active {
		t.Error("expected the user to be inactive")
	}
	if _, err := repo.FindByEmail(ctx, user.Email, false); err == nil {
		t.Error("expected inactive user to be hidden from lookups")
	}
	if countAudit(t, db, user.ID, models.AuditDeactivated) != 1 {
		t.Error("expected a deactivation audit entry")
	}

	testutil.AssertAppError(t, svc.DeleteMe(ctx, user.ID), "USER_GONE")
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewUserService(repository.NewUserRepository(db), NewAuditService(repository.NewAuditRepository(db)))

	for i := 0; i < 5; i++ {
		testutil.CreateTestUser(t, db)
	}

	page, err := svc.ListUsers(ctx, pagination.PageRequest{Page: 2, Limit: 2})
	testutil.AssertNoError(t, err)
	if page.TotalItems != 5 || page.TotalPages != 3 || len(page.Data) != 2 {
		t.Errorf("unexpected page: total=%d pages=%d len=%d", page.TotalItems, page.TotalPages, len(page.Data))
	}

	page, err = svc.ListUsers(ctx, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if page.Limit != pagination.DefaultLimit || len(page.Data) != 5 {
		t.Errorf("expected defaults to apply, got limit=%d len=%d", page.Limit, len(page.Data))
	}
}

func TestAuditServiceRecordsClientIP(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(repository.NewAuditRepository(db))
	user := testutil.CreateTestUser(t, db)

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	svc.Log(ctx, user.ID, models.AuditLoginSucceeded, map[string]any{"k": "v"})

	var entry models.AuditLog
	if err := db.Where("user_id = ?", user.ID).First(&entry).Error; err != nil {
		t.Fatalf("expected an audit entry: %v", err)
	}
	if entry.IPAddress != "203.0.113.9" {
		t.Errorf("expected client ip, got %q", entry.IPAddress)
	}
	if entry.Changes != `{"k":"v"}` {
		t.Errorf("unexpected changes %q", entry.Changes)
	}
}
