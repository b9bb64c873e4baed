package services

import (
	"context"
	"errors"
	"strings"

	apperrors "natours/internal/errors"
	"natours/internal/logger"
	"natours/internal/models"
	"natours/internal/pagination"
	"natours/internal/repository"
)

// userService handles profile and admin user operations.
type userService struct {
	users UserStore
	audit AuditServicer
}

// NewUserService creates a new UserServicer.
func NewUserService(users UserStore, audit AuditServicer) UserServicer {
	return &userService{users: users, audit: audit}
}

// GetMe returns the current user.
func (s *userService) GetMe(ctx context.Context, userID string) (*models.User, error) {
	return s.GetUser(ctx, userID)
}

// UpdateMe changes the name or email of the current user. Password changes
// are rejected and must go through UpdatePassword.
func (s *userService) UpdateMe(ctx context.Context, userID string, in UpdateMeInput) (*models.User, error) {
	if in.HasPassword {
		return nil, apperrors.ErrPasswordRouteMisuse
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}

	changes := map[string]any{}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
		changes["name"] = user.Name
	}
	if in.Email != nil {
		user.Email = repository.NormalizeEmail(*in.Email)
		changes["email"] = user.Email
	}
	if len(changes) == 0 {
		return user, nil
	}

	err = s.users.Save(ctx, user, repository.SaveOptions{Validate: true, Fields: repository.ProfileColumns})
	if err != nil {
		return nil, storeError(err)
	}

	s.audit.Log(ctx, user.ID, models.AuditProfileUpdated, changes)
	return user, nil
}

// DeleteMe deactivates the current user. The record is kept.
func (s *userService) DeleteMe(ctx context.Context, userID string) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrUserGone
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("user deactivated", "user_id", userID)
	s.audit.Log(ctx, userID, models.AuditDeactivated, nil)
	return nil
}

// ListUsers returns a page of active users.
func (s *userService) ListUsers(ctx context.Context, page pagination.PageRequest) (*pagination.PageResponse[models.User], error) {
	page.Defaults()

	users, total, err := s.users.List(ctx, page)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	resp := pagination.NewPageResponse(users, page.Page, page.Limit, total)
	return &resp, nil
}

// GetUser returns an active user by ID.
func (s *userService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}
