package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"natours/internal/models"
	"natours/internal/services"
)

// TokenCookieName is the httpOnly cookie that mirrors every issued token.
const TokenCookieName = "jwt"

// TokenCookie configures the token cookie.
type TokenCookie struct {
	// MaxAge should match the token lifetime. Zero sets a session cookie.
	MaxAge time.Duration
	// Secure restricts the cookie to HTTPS.
	Secure bool
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService services.AuthServicer
	appURL      string
	cookie      TokenCookie
}

// NewAuthHandler creates a new AuthHandler. appURL is the public base URL
// used in emailed links; when empty the request's scheme and host are used.
func NewAuthHandler(authService services.AuthServicer, appURL string, cookie TokenCookie) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		appURL:      strings.TrimRight(appURL, "/"),
		cookie:      cookie,
	}
}

// SignupRequest represents the registration request payload
type SignupRequest struct {
	Name            string `json:"name" binding:"max=100"`
	Email           string `json:"email" binding:"omitempty,email,max=255"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Role            string `json:"role" binding:"omitempty,user_role"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest represents the forgot password request payload
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest represents the reset password request payload
type ResetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// UpdatePasswordRequest represents the change password request payload
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup handles user registration
// @Summary     Sign up
// @Description Register a new user and return a bearer token
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body SignupRequest true "User registration data"
// @Success     201 {object} AuthResponse "User registered and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Email already registered"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	res, err := h.authService.SignUp(requestContext(c), services.SignUpInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            models.Role(req.Role),
		ProfileURL:      h.baseURL(c) + "/me",
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.sendToken(c, http.StatusCreated, res)
}

// Login handles user login
// @Summary     Log in
// @Description Authenticate with email and password. Three consecutive failures lock the account with exponential backoff.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "User login credentials"
// @Success     200 {object} AuthResponse "User authenticated and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Incorrect email or password"
// @Failure     429 {object} ErrorResponse "Account temporarily locked, see Retry-After"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	res, err := h.authService.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.sendToken(c, http.StatusOK, res)
}

// ForgotPassword emails a password reset link
// @Summary     Forgot password
// @Description Email a single-use reset link valid for 10 minutes
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body ForgotPasswordRequest true "Account email"
// @Success     200 {object} MessageResponse "Reset link sent"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "No user with that email"
// @Failure     500 {object} ErrorResponse "Email could not be sent"
// @Router      /users/forgotPassword [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	resetBase := h.baseURL(c) + "/api/v1/users/resetPassword"
	if err := h.authService.ForgotPassword(requestContext(c), req.Email, resetBase); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Status: "success", Message: "Token sent to email!"})
}

// ResetPassword sets a new password using an emailed reset token
// @Summary     Reset password
// @Description Consume a reset token and set a new password
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       token   path string               true "Reset token from the email"
// @Param       request body ResetPasswordRequest true "New password"
// @Success     200 {object} AuthResponse "Password reset and token generated"
// @Failure     400 {object} ErrorResponse "Token is invalid or has expired"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/resetPassword/{token} [patch]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	res, err := h.authService.ResetPassword(requestContext(c), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.sendToken(c, http.StatusOK, res)
}

// UpdatePassword changes the password of the logged-in user
// @Summary     Update my password
// @Description Change the current user's password. Tokens issued before the change stop working.
// @Tags        auth
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body UpdatePasswordRequest true "Current and new password"
// @Success     200 {object} AuthResponse "Password changed and token generated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Current password is wrong"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /users/updateMyPassword [patch]
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	res, err := h.authService.UpdatePassword(requestContext(c), user.ID, req.CurrentPassword, req.Password, req.PasswordConfirm)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.sendToken(c, http.StatusOK, res)
}

// sendToken writes the token both as an httpOnly cookie and in the body.
func (h *AuthHandler) sendToken(c *gin.Context, status int, res *services.AuthResult) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookieName, res.Token, int(h.cookie.MaxAge/time.Second), "/", "", h.cookie.Secure, true)
	c.JSON(status, newAuthResponse(res.Token, res.User))
}

func (h *AuthHandler) baseURL(c *gin.Context) string {
	if h.appURL != "" {
		return h.appURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
