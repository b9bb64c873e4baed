package handlers

import (
	"time"

	"natours/internal/models"
)

// UserResponse is the public representation of a user. Credential, reset
// and lockout fields are never included.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Photo     string      `json:"photo"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// UserData wraps a single user.
type UserData struct {
	User UserResponse `json:"user"`
}

// AuthResponse represents the authentication response with token
type AuthResponse struct {
	Status string   `json:"status"`
	Token  string   `json:"token"`
	Data   UserData `json:"data"`
}

// UserEnvelope is returned by single-user endpoints.
type UserEnvelope struct {
	Status string   `json:"status"`
	Data   UserData `json:"data"`
}

// MessageResponse is returned by endpoints that only confirm an action.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// UserListResponse is a page of users.
type UserListResponse struct {
	Status     string         `json:"status"`
	Results    int            `json:"results"`
	Data       []UserResponse `json:"data"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalItems int64          `json:"total_items"`
	TotalPages int            `json:"total_pages"`
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Photo:     u.Photo,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func newAuthResponse(token string, u *models.User) AuthResponse {
	return AuthResponse{
		Status: "success",
		Token:  token,
		Data:   UserData{User: toUserResponse(u)},
	}
}
