package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vozurbana/voz-urbana-api/config"
	"github.com/vozurbana/voz-urbana-api/internal/api"
)

// TokenService mints and validates the bearer credentials. It is a pure
// function of its signing material and the clock: no state is kept between
// calls, so a single instance is safe for unlimited concurrent use.
// Rotating either secret invalidates all outstanding tokens.
type TokenService struct {
	cfg config.JWTConfig
	now func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{cfg: cfg, now: time.Now}
}

// IssueTokenPair signs an access/refresh token pair for the identity. Both
// carry subject = identity id; the refresh token is signed with a separate
// secret so one can never be presented as the other.
func (s *TokenService) IssueTokenPair(identity *Identity) (*TokenPair, error) {
	now := s.now()

	accessClaims := Claims{
		Role:   string(identity.Role),
		Status: string(identity.Status),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).
		SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshClaims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(identity.ID, 10),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.RefreshTokenTTL)),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).
		SignedString([]byte(s.cfg.RefreshSecretKey))
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ValidateAccessToken checks signature, expiry and issuer, and returns the
// subject identity id. The caller must still confirm the id refers to an
// existing identity.
func (s *TokenService) ValidateAccessToken(tokenString string) (int64, error) {
	return s.validate(tokenString, []byte(s.cfg.SecretKey))
}

// ValidateRefreshToken is ValidateAccessToken against the refresh secret.
func (s *TokenService) ValidateRefreshToken(tokenString string) (int64, error) {
	return s.validate(tokenString, []byte(s.cfg.RefreshSecretKey))
}

func (s *TokenService) validate(tokenString string, secret []byte) (int64, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.cfg.Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", api.ErrInvalidCredentials, err)
	}
	if !token.Valid {
		return 0, api.ErrInvalidCredentials
	}

	subject, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed subject claim", api.ErrInvalidCredentials)
	}
	return subject, nil
}
