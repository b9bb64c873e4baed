package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "natours/internal/errors"
	"natours/internal/models"
	"natours/internal/pagination"
	"natours/internal/services"
)

func setupUserRouter(handler *UserHandler) *gin.Engine {
	r := gin.New()
	me := r.Group("/users", injectUser(testUser()))
	me.GET("/me", handler.GetMe)
	me.PATCH("/updateMe", handler.UpdateMe)
	me.DELETE("/deleteMe", handler.DeleteMe)
	me.GET("", handler.ListUsers)
	me.GET("/:id", handler.GetUser)
	return r
}

func TestUserHandler_GetMe(t *testing.T) {
	t.Run("returns the current profile", func(t *testing.T) {
		var gotID string
		svc := &mockUserService{
			getMeFn: func(_ context.Context, userID string) (*models.User, error) {
				gotID = userID
				return testUser(), nil
			},
		}
		r := setupUserRouter(NewUserHandler(svc))

		rec := doRequest(r, http.MethodGet, "/users/me", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if gotID != testUserID {
			t.Errorf("expected %s, got %s", testUserID, gotID)
		}
		user := responseUser(t, parseJSON(t, rec))
		if user["name"] != "Jonas Schmedtmann" || user["role"] != "user" {
			t.Errorf("unexpected user %v", user)
		}
	})

	t.Run("returns 401 when the user is gone", func(t *testing.T) {
		svc := &mockUserService{
			getMeFn: func(context.Context, string) (*models.User, error) { return nil, apperrors.ErrUserGone },
		}
		r := setupUserRouter(NewUserHandler(svc))

		rec := doRequest(r, http.MethodGet, "/users/me", "")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "USER_GONE")
	})
}

func TestUserHandler_UpdateMe(t *testing.T) {
	t.Run("forwards only provided fields", func(t *testing.T) {
		var got services.UpdateMeInput
		svc := &mockUserService{
			updateMeFn: func(_ context.Context, _ string, in services.UpdateMeInput) (*models.User, error) {
				got = in
				user := testUser()
				user.Name = *in.Name
				return user, nil
			},
		}
		r := setupUserRouter(NewUserHandler(svc))

		rec := doRequest(r, http.MethodPatch, "/users/updateMe", `{"name":"Jonas S."}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Name == nil || *got.Name != "Jonas S." {
			t.Errorf("expected name to be forwarded, got %v", got.Name)
		}
		if got.Email != nil {
			t.Error("expected email to be absent")
		}
		if got.HasPassword {
			t.Error("expected HasPassword to be false")
		}
		if responseUser(t, parseJSON(t, rec))["name"] != "Jonas S." {
			t.Error("expected updated name in response")
		}
	})

	t.Run("flags password fields", func(t *testing.T) {
		var got services.UpdateMeInput
		svc := &mockUserService{
			updateMeFn: func(_ context.Context, _ string, in services.UpdateMeInput) (*models.User, error) {
				got = in
				return nil, apperrors.ErrPasswordRouteMisuse
			},
		}
		r := setupUserRouter(NewUserHandler(svc))

		rec := doRequest(r, http.MethodPatch, "/users/updateMe", `{"passwordConfirm":"newpass123"}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if !got.HasPassword {
			t.Error("expected HasPassword to be set")
		}
		assertErrorCode(t, parseJSON(t, rec), "PASSWORD_ROUTE_MISUSE")
	})
}

func TestUserHandler_DeleteMe(t *testing.T) {
	var gotID string
	svc := &mockUserService{
		deleteMeFn: func(_ context.Context, userID string) error {
			gotID = userID
			return nil
		},
	}
	r := setupUserRouter(NewUserHandler(svc))

	rec := doRequest(r, http.MethodDelete, "/users/deleteMe", "")

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", rec.Body.String())
	}
	if gotID != testUserID {
		t.Errorf("expected %s, got %s", testUserID, gotID)
	}
}

func TestUserHandler_ListUsers(t *testing.T) {
	t.Run("returns a page", func(t *testing.T) {
		var got pagination.PageRequest
		svc := &mockUserService{
			listUsersFn: func(_ context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
				got = page
				res := pagination.NewPageResponse([]models.User{*testUser()}, 2, 1, 3)
				return &res, nil
			},
		}
		r := setupUserRouter(NewUserHandler(svc))

		rec := doRequest(r, http.MethodGet, "/users?page=2&limit=1", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if got.Page != 2 || got.Limit != 1 {
			t.Errorf("unexpected page request %+v", got)
		}
		result := parseJSON(t, rec)
		if result["results"] != float64(1) || result["total_pages"] != float64(3) {
			t.Errorf("unexpected pagination metadata %v", result)
		}
		data := result["data"].([]interface{})
		if len(data) != 1 {
			t.Fatalf("expected one user, got %d", len(data))
		}
	})

	t.Run("rejects limit above maximum", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}))

		rec := doRequest(r, http.MethodGet, "/users?limit=500", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})
}

func TestUserHandler_GetUser(t *testing.T) {
	t.Run("returns the user", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}))

		rec := doRequest(r, http.MethodGet, "/users/"+testUserID, "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if responseUser(t, parseJSON(t, rec))["id"] != testUserID {
			t.Error("expected requested id")
		}
	})

	t.Run("returns 400 on malformed id", func(t *testing.T) {
		r := setupUserRouter(NewUserHandler(&mockUserService{}))

		rec := doRequest(r, http.MethodGet, "/users/not-a-uuid", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "INVALID_INPUT")
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		svc := &mockUserService{
			getUserFn: func(context.Context, string) (*models.User, error) {
				return nil, apperrors.WithMessage(apperrors.ErrNotFound, "No user found with that ID")
			},
		}
		r := setupUserRouter(NewUserHandler(svc))

		rec := doRequest(r, http.MethodGet, "/users/"+testUserID, "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NOT_FOUND")
	})
}
