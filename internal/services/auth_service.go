package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"natours/internal/auth"
	apperrors "natours/internal/errors"
	"natours/internal/logger"
	"natours/internal/metrics"
	"natours/internal/models"
	"natours/internal/repository"
)

// AuthOptions tunes the credential service. Zero values select defaults.
type AuthOptions struct {
	// Clock returns the current time. Defaults to time.Now in UTC.
	Clock func() time.Time
	// Lockout is the brute-force policy. Defaults to auth.DefaultLockoutPolicy.
	Lockout *auth.LockoutPolicy
	// AllowAdminSignup lets public registration request the admin role.
	AllowAdminSignup bool
}

// authService implements signup, login, token protection and the password
// reset and change lifecycle.
type authService struct {
	users    UserStore
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenIssuer
	resets   *auth.ResetTokenVault
	policy   auth.LockoutPolicy
	notifier Notifier
	audit    AuditServicer
	now      func() time.Time

	allowAdminSignup bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new AuthServicer.
func NewAuthService(
	users UserStore,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenIssuer,
	resets *auth.ResetTokenVault,
	notifier Notifier,
	audit AuditServicer,
	opts AuthOptions,
) AuthServicer {
	now := opts.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	policy := auth.DefaultLockoutPolicy()
	if opts.Lockout != nil {
		policy = *opts.Lockout
	}
	return &authService{
		users:            users,
		hasher:           hasher,
		tokens:           tokens,
		resets:           resets,
		policy:           policy,
		notifier:         notifier,
		audit:            audit,
		now:              now,
		allowAdminSignup: opts.AllowAdminSignup,
	}
}

// SignUp registers a new user and logs them in.
func (s *authService) SignUp(ctx context.Context, in SignUpInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := repository.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" || in.PasswordConfirm == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Please provide name, email, password and passwordConfirm")
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperrors.ErrPasswordMismatch
	}

	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Invalid input data. Role %q is not supported", role))
	}
	if role == models.RoleAdmin && !s.allowAdminSignup {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid input data. The admin role cannot be self-assigned")
	}

	hashed, err := s.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hashed,
		Role:     role,
	}
	if err := s.users.Create(context.WithoutCancel(ctx), user); err != nil {
		return nil, storeError(err)
	}

	logger.Get().Infow("user signed up", "user_id", user.ID, "email", user.Email)
	s.audit.Log(ctx, user.ID, models.AuditSignup, map[string]any{"email": user.Email, "role": user.Role})

	if s.notifier != nil {
		if err := s.notifier.SendWelcome(ctx, user, in.ProfileURL); err != nil {
			logger.Get().Warnw("failed to send welcome email", "user_id", user.ID, "error", err)
		}
	}

	return s.issue(user)
}

// Login verifies credentials under the lockout policy and issues a token.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Please provide email and password!")
	}

	user, err := s.users.FindByEmail(ctx, email, true)
	if errors.Is(err, repository.ErrNotFound) {
		s.burnHash(ctx, password)
		metrics.AuthAttempts.WithLabelValues(metrics.ResultFailure).Inc()
		logger.Get().Infow("login failed", "email", email, "reason", "unknown_email")
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	now := s.now()
	decision := s.policy.Evaluate(now, lockStateOf(user))
	if decision.Locked {
		return nil, lockedOut(user.ID, decision)
	}
	if decision.Released {
		if _, err := s.users.ReleaseLock(ctx, user.ID, now); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		applyLockState(user, s.policy.Release(lockStateOf(user)))
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	ok, err := s.hasher.Verify(password, user.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	// The hash already ran; the outcome is recorded even if the caller left.
	writeCtx := context.WithoutCancel(ctx)
	var lockErr *repository.LockedError

	if !ok {
		locked := false
		updated, err := s.users.RecordFailedLogin(writeCtx, user.ID, now, func(u *models.User) {
			before := u.FailedRounds
			applyLockState(u, s.policy.Escalate(now, lockStateOf(u)))
			locked = u.FailedRounds > before
		})
		if errors.As(err, &lockErr) {
			return nil, s.lockedSince(user.ID, now, lockErr)
		}
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		metrics.AuthAttempts.WithLabelValues(metrics.ResultFailure).Inc()
		logger.Get().Infow("login failed", "user_id", user.ID, "reason", "bad_password")
		s.audit.Log(ctx, user.ID, models.AuditLoginFailed, nil)
		if locked {
			metrics.AccountLockouts.Inc()
			logger.Get().Warnw("account locked",
				"user_id", user.ID,
				"round", updated.FailedRounds,
				"lock_until", updated.LockUntil,
			)
			s.audit.Log(ctx, user.ID, models.AuditAccountLocked, map[string]any{"round": updated.FailedRounds})
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	err = s.users.ResetLockout(writeCtx, user.ID, now)
	if errors.As(err, &lockErr) {
		return nil, s.lockedSince(user.ID, now, lockErr)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	applyLockState(user, s.policy.RecordSuccess())

	metrics.AuthAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
	logger.Get().Infow("login succeeded", "user_id", user.ID)
	s.audit.Log(ctx, user.ID, models.AuditLoginSucceeded, nil)

	return s.issue(user)
}

// lockedSince handles a lock another request set after the user was read.
func (s *authService) lockedSince(userID string, now time.Time, lockErr *repository.LockedError) error {
	until := lockErr.Until
	return lockedOut(userID, s.policy.Evaluate(now, auth.LockState{LockUntil: &until}))
}

func lockedOut(userID string, decision auth.Decision) error {
	metrics.AuthAttempts.WithLabelValues(metrics.ResultLocked).Inc()
	logger.Get().Infow("login rejected while locked", "user_id", userID, "retry_after", decision.RetryAfter)
	return apperrors.WithRetryAfter(apperrors.ErrTooManyAttempts,
		fmt.Sprintf("Too many login attempts. Please try again in %d seconds.", decision.RetryAfter),
		decision.RetryAfter)
}

// Protect resolves a bearer token to the current user.
func (s *authService) Protect(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}

	verified, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrTokenInvalid
	}

	user, err := s.users.FindByID(ctx, verified.SubjectID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserGone
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if user.ChangedPasswordAfter(verified.IssuedAt) {
		return nil, apperrors.ErrPasswordChanged
	}
	return user, nil
}

// RestrictTo fails unless user holds one of roles.
func (s *authService) RestrictTo(user *models.User, roles ...models.Role) error {
	if user == nil {
		return apperrors.ErrUnauthorized
	}
	for _, role := range roles {
		if user.Role == role {
			return nil
		}
	}
	return apperrors.ErrForbidden
}

// ForgotPassword stores a reset hash and emails the raw secret. When the
// email cannot be delivered the reset is rolled back.
func (s *authService) ForgotPassword(ctx context.Context, email, resetURLBase string) error {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Please provide your email address")
	}

	user, err := s.users.FindByEmail(ctx, email, false)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrUserNotFound
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	secret, err := s.resets.Generate()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	writeCtx := context.WithoutCancel(ctx)
	user.SetPasswordReset(secret.Hash, secret.ExpiresAt)
	if err := s.users.Save(writeCtx, user, repository.SaveOptions{Fields: repository.ResetColumns}); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	metrics.PasswordResets.WithLabelValues(metrics.StageRequested).Inc()
	s.audit.Log(ctx, user.ID, models.AuditResetRequested, nil)

	resetURL := strings.TrimRight(resetURLBase, "/") + "/" + secret.Raw
	if err := s.notifier.SendPasswordReset(ctx, user, resetURL); err != nil {
		if rbErr := s.users.ClearPasswordReset(writeCtx, user.ID, secret.Hash); rbErr != nil && !errors.Is(rbErr, repository.ErrStaleWrite) {
			logger.Get().Errorw("failed to roll back password reset", "user_id", user.ID, "error", rbErr)
		}
		user.ClearPasswordReset()
		metrics.PasswordResets.WithLabelValues(metrics.StageRolledBack).Inc()
		logger.Get().Warnw("password reset email failed", "user_id", user.ID, "error", err)
		return apperrors.Wrap(apperrors.ErrEmailDelivery, err)
	}

	metrics.PasswordResets.WithLabelValues(metrics.StageDelivered).Inc()
	logger.Get().Infow("password reset email sent", "user_id", user.ID)
	return nil
}

// ResetPassword consumes a reset secret and sets a new password.
func (s *authService) ResetPassword(ctx context.Context, rawToken, password, passwordConfirm string) (*AuthResult, error) {
	if rawToken == "" {
		metrics.PasswordResets.WithLabelValues(metrics.StageRejected).Inc()
		return nil, apperrors.ErrResetTokenInvalid
	}

	tokenHash := s.resets.Hash(rawToken)
	now := s.now()

	user, err := s.users.FindByResetToken(ctx, tokenHash, now)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordResets.WithLabelValues(metrics.StageRejected).Inc()
		return nil, apperrors.ErrResetTokenInvalid
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if password == "" || passwordConfirm == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Please provide password and passwordConfirm")
	}
	if password != passwordConfirm {
		return nil, apperrors.ErrPasswordMismatch
	}

	hashed, err := s.hashPassword(ctx, password)
	if err != nil {
		return nil, err
	}

	changedAt := now
	user.Password = hashed
	user.PasswordChangedAt = &changedAt
	if err := s.users.CompletePasswordReset(context.WithoutCancel(ctx), user, tokenHash); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			metrics.PasswordResets.WithLabelValues(metrics.StageRejected).Inc()
			return nil, apperrors.ErrResetTokenInvalid
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	metrics.PasswordResets.WithLabelValues(metrics.StageCompleted).Inc()
	logger.Get().Infow("password reset completed", "user_id", user.ID)
	s.audit.Log(ctx, user.ID, models.AuditResetCompleted, nil)

	return s.issue(user)
}

// UpdatePassword changes the password of a logged-in user after checking
// the current one.
func (s *authService) UpdatePassword(ctx context.Context, userID, currentPassword, password, passwordConfirm string) (*AuthResult, error) {
	if currentPassword == "" || password == "" || passwordConfirm == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Please provide currentPassword, password and passwordConfirm")
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrUserGone
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	ok, err := s.hasher.Verify(currentPassword, user.Password)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !ok {
		logger.Get().Infow("password change rejected", "user_id", user.ID, "reason", "bad_current_password")
		return nil, apperrors.ErrIncorrectPassword
	}

	if password != passwordConfirm {
		return nil, apperrors.ErrPasswordMismatch
	}

	hashed, err := s.hashPassword(ctx, password)
	if err != nil {
		return nil, err
	}

	changedAt := s.now()
	user.Password = hashed
	user.PasswordChangedAt = &changedAt
	if err := s.users.Save(context.WithoutCancel(ctx), user, repository.SaveOptions{Fields: repository.PasswordColumns}); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("password changed", "user_id", user.ID)
	s.audit.Log(ctx, user.ID, models.AuditPasswordChanged, nil)

	return s.issue(user)
}

func (s *authService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

// hashPassword hashes plaintext unless ctx is already done. A hash that has
// started is never interrupted.
func (s *authService) hashPassword(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	hashed, err := s.hasher.Hash(plaintext)
	switch {
	case err == nil:
		return hashed, nil
	case errors.Is(err, auth.ErrPasswordTooShort):
		return "", apperrors.ErrPasswordTooShort
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "", apperrors.ErrPasswordTooLong
	default:
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// burnHash runs one verification against a fixed hash so unknown emails take
// as long as wrong passwords.
func (s *authService) burnHash(ctx context.Context, password string) {
	if ctx.Err() != nil {
		return
	}
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("natours-timing-equalizer")
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(password, s.dummyHash)
	}
}

func lockStateOf(u *models.User) auth.LockState {
	return auth.LockState{
		LoginAttempts: u.LoginAttempts,
		FailedRounds:  u.FailedRounds,
		LockUntil:     u.LockUntil,
	}
}

func applyLockState(u *models.User, s auth.LockState) {
	u.LoginAttempts = s.LoginAttempts
	u.FailedRounds = s.FailedRounds
	u.LockUntil = s.LockUntil
}

// storeError maps repository failures to AppErrors.
func storeError(err error) error {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.ErrDuplicateEmail
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.WithMessage(apperrors.ErrNotFound, "No user found with that ID")
	case errors.As(err, &verrs):
		return apperrors.WithMessage(apperrors.ErrInvalidInput, validationMessage(verrs))
	default:
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("A user must have a %s", field))
		case "email":
			msgs = append(msgs, "Please provide a valid email")
		case "max":
			msgs = append(msgs, fmt.Sprintf("The %s must have at most %s characters", field, fe.Param()))
		case "user_role":
			msgs = append(msgs, fmt.Sprintf("Role %q is not supported", fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("The %s is invalid", field))
		}
	}
	return "Invalid input data. " + strings.Join(msgs, ". ")
}
