package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"

	"github.com/vozurbana/voz-urbana-api/app/observability/metrics"
	"github.com/vozurbana/voz-urbana-api/internal/api"
)

var _ Service = (*ServiceImpl)(nil)

// Service owns the identity lifecycle workflows. Every operation surfaces
// only the named errors from the api package; unexpected internal faults are
// logged in full and collapsed to api.ErrAuthenticationFailed so no internal
// detail leaks to callers.
type Service interface {
	// Login verifies a login/password pair and issues a token pair. Unknown
	// login and wrong password produce the same error on purpose, so callers
	// cannot enumerate registered logins.
	Login(ctx context.Context, login, password string) (*TokenPair, error)

	// LoginWithGoogle issues a token pair for an email already verified
	// upstream, creating the identity on first sight (find-or-create).
	LoginWithGoogle(ctx context.Context, verifiedEmail string) (*TokenPair, error)

	// Register creates a new identity in status SIGNUP with the given role.
	Register(ctx context.Context, login, password string, role Role) error

	// ChangePassword replaces the stored hash after proving knowledge of the
	// current password.
	ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error

	// CompleteAuthentication moves the identity from SIGNUP to SIGNIN once
	// its role-matching profile-completion record exists, and returns a
	// fresh token pair reflecting the new status.
	CompleteAuthentication(ctx context.Context, accessToken string) (*TokenPair, error)

	// RefreshSession exchanges a valid refresh token for a fresh pair.
	RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	tokens *TokenService
}

func NewService(repo Repository, tokens *TokenService, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger: logger,
		repo:   repo,
		tokens: tokens,
	}
}

// named reports whether err belongs to the outward-facing taxonomy.
func named(err error) bool {
	for _, target := range []error{
		api.ErrMissingCredentials,
		api.ErrInvalidCredentials,
		api.ErrUnknownIdentity,
		api.ErrAlreadyExists,
		api.ErrIncorrectPassword,
		api.ErrProfileIncomplete,
		api.ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// normalize passes taxonomy errors through and hides everything else behind
// the generic authentication failure, logging the real cause.
func (s *ServiceImpl) normalize(ctx context.Context, op string, err error) error {
	if named(err) {
		return err
	}
	s.logger.ErrorContext(ctx, "Unexpected internal error",
		slog.String("operation", op), slog.Any("error", err))
	return api.ErrAuthenticationFailed
}

func (s *ServiceImpl) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	rejected := func() {
		metrics.Get().LoginAttemptsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", "rejected")))
	}

	ident, err := s.repo.GetIdentityByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, api.ErrUnknownIdentity) {
			// Same outward shape as a wrong password.
			rejected()
			return nil, api.ErrInvalidCredentials
		}
		return nil, s.normalize(ctx, "Login", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)); err != nil {
		rejected()
		return nil, api.ErrInvalidCredentials
	}

	pair, err := s.tokens.IssueTokenPair(ident)
	if err != nil {
		return nil, s.normalize(ctx, "Login", err)
	}

	metrics.Get().LoginAttemptsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", "accepted")))
	return pair, nil
}

func (s *ServiceImpl) LoginWithGoogle(ctx context.Context, verifiedEmail string) (*TokenPair, error) {
	ident, err := s.repo.GetIdentityByLogin(ctx, verifiedEmail)
	if errors.Is(err, api.ErrUnknownIdentity) {
		ident, err = s.createExternalIdentity(ctx, verifiedEmail)
	}
	if err != nil {
		return nil, s.normalize(ctx, "LoginWithGoogle", err)
	}

	pair, err := s.tokens.IssueTokenPair(ident)
	if err != nil {
		return nil, s.normalize(ctx, "LoginWithGoogle", err)
	}

	s.logger.InfoContext(ctx, "Externally-verified login",
		slog.Int64("auth_user_id", ident.ID))
	return pair, nil
}

// createExternalIdentity creates the identity behind a first-time external
// login. The password hash is derived from a random server-generated value,
// so the password path can never authenticate this identity. Two concurrent
// first logins for the same email race on the insert; the loser hits the
// login uniqueness constraint and retries the lookup.
func (s *ServiceImpl) createExternalIdentity(ctx context.Context, email string) (*Identity, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ident, err := s.repo.CreateIdentity(ctx, email, string(hash), RoleUser)
	if errors.Is(err, api.ErrAlreadyExists) {
		return s.repo.GetIdentityByLogin(ctx, email)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Identity created via external login",
		slog.Int64("auth_user_id", ident.ID))
	return ident, nil
}

func (s *ServiceImpl) Register(ctx context.Context, login, password string, role Role) error {
	if !role.Valid() {
		return s.normalize(ctx, "Register", errors.New("unknown role "+string(role)))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return s.normalize(ctx, "Register", err)
	}

	// No read-before-write: the uniqueness constraint decides conflicts.
	ident, err := s.repo.CreateIdentity(ctx, login, string(hash), role)
	if err != nil {
		return s.normalize(ctx, "Register", err)
	}

	metrics.Get().RegistrationsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", string(role))))
	s.logger.InfoContext(ctx, "Identity registered",
		slog.Int64("auth_user_id", ident.ID), slog.String("role", string(role)))
	return nil
}

func (s *ServiceImpl) ChangePassword(ctx context.Context, accessToken, currentPassword, newPassword string) error {
	ident, err := s.resolveToken(ctx, accessToken)
	if err != nil {
		return err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(currentPassword)); err != nil {
		return api.ErrIncorrectPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return s.normalize(ctx, "ChangePassword", err)
	}

	if err = s.repo.UpdatePasswordHash(ctx, ident.ID, string(hash)); err != nil {
		return s.normalize(ctx, "ChangePassword", err)
	}

	s.logger.InfoContext(ctx, "Password changed", slog.Int64("auth_user_id", ident.ID))
	return nil
}

func (s *ServiceImpl) CompleteAuthentication(ctx context.Context, accessToken string) (*TokenPair, error) {
	ident, err := s.resolveToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ProfileExists(ctx, ident.ID, ident.Role)
	if err != nil {
		return nil, s.normalize(ctx, "CompleteAuthentication", err)
	}
	if !exists {
		return nil, api.ErrProfileIncomplete
	}

	if err = s.repo.UpdateStatus(ctx, ident.ID, StatusSignin); err != nil {
		return nil, s.normalize(ctx, "CompleteAuthentication", err)
	}
	ident.Status = StatusSignin

	pair, err := s.tokens.IssueTokenPair(ident)
	if err != nil {
		return nil, s.normalize(ctx, "CompleteAuthentication", err)
	}

	s.logger.InfoContext(ctx, "Authentication completed",
		slog.Int64("auth_user_id", ident.ID))
	return pair, nil
}

func (s *ServiceImpl) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	subject, err := s.tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, api.ErrInvalidCredentials
	}

	ident, err := s.repo.GetIdentityByID(ctx, subject)
	if err != nil {
		if errors.Is(err, api.ErrUnknownIdentity) {
			return nil, api.ErrInvalidCredentials
		}
		return nil, s.normalize(ctx, "RefreshSession", err)
	}

	pair, err := s.tokens.IssueTokenPair(ident)
	if err != nil {
		return nil, s.normalize(ctx, "RefreshSession", err)
	}
	return pair, nil
}

// resolveToken validates an access token and loads its subject identity. Both
// an invalid token and a vanished subject come back as invalid credentials.
func (s *ServiceImpl) resolveToken(ctx context.Context, accessToken string) (*Identity, error) {
	subject, err := s.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, api.ErrInvalidCredentials
	}

	ident, err := s.repo.GetIdentityByID(ctx, subject)
	if err != nil {
		if errors.Is(err, api.ErrUnknownIdentity) {
			return nil, api.ErrInvalidCredentials
		}
		return nil, s.normalize(ctx, "resolveToken", err)
	}
	return ident, nil
}
