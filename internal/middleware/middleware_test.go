package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "natours/internal/errors"
	"natours/internal/models"
	"natours/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockAuthService implements services.AuthServicer for middleware tests.
type mockAuthService struct {
	services.AuthServicer
	users     map[string]*models.User
	gotToken  string
	protectFn func(token string) (*models.User, error)
}

func (m *mockAuthService) Protect(_ context.Context, token string) (*models.User, error) {
	m.gotToken = token
	if m.protectFn != nil {
		return m.protectFn(token)
	}
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if u, ok := m.users[token]; ok {
		return u, nil
	}
	return nil, apperrors.ErrTokenInvalid
}

func (m *mockAuthService) RestrictTo(user *models.User, roles ...models.Role) error {
	if user == nil {
		return apperrors.ErrUnauthorized
	}
	for _, r := range roles {
		if user.Role == r {
			return nil
		}
	}
	return apperrors.ErrForbidden
}

func newMock() *mockAuthService {
	return &mockAuthService{users: map[string]*models.User{
		"user-token":  {Base: models.Base{ID: "u1"}, Role: models.RoleUser},
		"admin-token": {Base: models.Base{ID: "a1"}, Role: models.RoleAdmin},
	}}
}

func setupRouter(svc services.AuthServicer) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/me", Protect(svc), func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID})
	})
	r.GET("/admin", Protect(svc), RestrictTo(svc, models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doGet(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
	return body.Error.Code
}

func TestProtect(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid", "Bearer user-token", http.StatusOK, ""},
		{"lowercase_scheme", "bearer user-token", http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong_scheme", "Basic user-token", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no_token", "Bearer", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown_token", "Bearer nope", http.StatusUnauthorized, "INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doGet(setupRouter(newMock()), "/me", tt.header)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" && errorCode(t, w) != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, errorCode(t, w))
			}
		})
	}
}

func TestProtectPassesTokenThrough(t *testing.T) {
	svc := newMock()
	doGet(setupRouter(svc), "/me", "Bearer   user-token  ")
	if svc.gotToken != "user-token" {
		t.Errorf("expected trimmed token, got %q", svc.gotToken)
	}
}

func TestRestrictTo(t *testing.T) {
	r := setupRouter(newMock())

	if w := doGet(r, "/admin", "Bearer admin-token"); w.Code != http.StatusOK {
		t.Errorf("expected admin to pass, got %d", w.Code)
	}

	w := doGet(r, "/admin", "Bearer user-token")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if errorCode(t, w) != "FORBIDDEN" {
		t.Errorf("expected FORBIDDEN, got %s", errorCode(t, w))
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/locked", func(c *gin.Context) {
		_ = c.Error(apperrors.WithRetryAfter(apperrors.ErrTooManyAttempts, "wait", 42))
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("database exploded"))
	})

	w := doGet(r, "/locked", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "42" {
		t.Errorf("expected Retry-After 42, got %q", got)
	}

	w = doGet(r, "/boom", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if errorCode(t, w) != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %s", errorCode(t, w))
	}
	if body := w.Body.String(); body == "" || strings.Contains(body, "exploded") {
		t.Errorf("expected a generic body, got %s", body)
	}
}

func TestRequestLoggingSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging(), Metrics())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := doGet(r, "/ping", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected an X-Request-ID header")
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", http.NoBody)
	req.Header.Set("X-Request-ID", "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b" {
		t.Errorf("expected the caller's request id to be kept, got %s", got)
	}
}

func TestAPIKey(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/open", APIKey(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/closed", APIKey("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := doGet(r, "/open", ""); w.Code != http.StatusOK {
		t.Errorf("expected open route, got %d", w.Code)
	}
	if w := doGet(r, "/closed", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/closed", http.NoBody)
	req.Header.Set("X-API-Key", "s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with key, got %d", w.Code)
	}
}
