// Package errors provides the application error type for the Natours API.
// Service-layer failures are returned as *AppError so handlers can render a
// consistent envelope without leaking internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
	// RetryAfter is the number of seconds a client should wait before retrying.
	RetryAfter int `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so that
// copies made by Wrap and WithMessage still match their sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
		RetryAfter: sentinel.RetryAfter,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
		RetryAfter: sentinel.RetryAfter,
	}
}

// WithRetryAfter creates a copy of sentinel carrying a retry delay in seconds.
func WithRetryAfter(sentinel *AppError, message string, seconds int) *AppError {
	err := WithMessage(sentinel, message)
	err.RetryAfter = seconds
	return err
}

// Authentication errors. All of them render as 401.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "You are not logged in! Please log in to get access.", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Incorrect email or password", StatusCode: http.StatusUnauthorized}
	ErrIncorrectPassword  = &AppError{Code: "INCORRECT_PASSWORD", Message: "Your current password is wrong", StatusCode: http.StatusUnauthorized}
	ErrTokenInvalid       = &AppError{Code: "INVALID_TOKEN", Message: "Invalid token. Please log in again.", StatusCode: http.StatusUnauthorized}
	ErrTokenExpired       = &AppError{Code: "TOKEN_EXPIRED", Message: "Your token has expired. Please log in again.", StatusCode: http.StatusUnauthorized}
	ErrUserGone           = &AppError{Code: "USER_GONE", Message: "The user belonging to this token no longer exists.", StatusCode: http.StatusUnauthorized}
	ErrPasswordChanged    = &AppError{Code: "PASSWORD_CHANGED", Message: "User recently changed password. Please log in again.", StatusCode: http.StatusUnauthorized}
)

// Authorization and throttling errors.
var (
	ErrForbidden       = &AppError{Code: "FORBIDDEN", Message: "You do not have permission to perform this action", StatusCode: http.StatusForbidden}
	ErrTooManyAttempts = &AppError{Code: "TOO_MANY_ATTEMPTS", Message: "Too many login attempts. Please try again later.", StatusCode: http.StatusTooManyRequests}
)

// Validation errors.
var (
	ErrInvalidInput        = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrPasswordMismatch    = &AppError{Code: "PASSWORD_MISMATCH", Message: "Passwords are not the same", StatusCode: http.StatusBadRequest}
	ErrPasswordTooShort    = &AppError{Code: "PASSWORD_TOO_SHORT", Message: "Password must be at least 8 characters long", StatusCode: http.StatusBadRequest}
	ErrPasswordTooLong     = &AppError{Code: "PASSWORD_TOO_LONG", Message: "Password must be at most 72 bytes long", StatusCode: http.StatusBadRequest}
	ErrPasswordRouteMisuse = &AppError{Code: "PASSWORD_ROUTE_MISUSE", Message: "This route is not for password updates. Please use /updateMyPassword.", StatusCode: http.StatusBadRequest}
	ErrResetTokenInvalid   = &AppError{Code: "RESET_TOKEN_INVALID", Message: "Token is invalid or has expired", StatusCode: http.StatusBadRequest}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "There is no user with that email address", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Delivery and general errors.
var (
	ErrEmailDelivery  = &AppError{Code: "EMAIL_DELIVERY_FAILED", Message: "There was an error sending the email. Try again later!", StatusCode: http.StatusInternalServerError}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "Something went very wrong!", StatusCode: http.StatusInternalServerError}
)
